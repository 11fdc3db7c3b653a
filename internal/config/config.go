// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验；环境变量可覆盖敏感或部署相关字段。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config 为站点后端的全部配置。
type Config struct {
	Site           Site          `yaml:"SITE"`
	GitHub         GitHub        `yaml:"GITHUB"`
	Projects       []Project     `yaml:"PROJECTS"`
	Series         []SeriesEntry `yaml:"SERIES"`
	BlogDir        string        `yaml:"BLOG_DIR"`
	Changelog      string        `yaml:"CHANGELOG"`
	ImagesMetadata string        `yaml:"IMAGES_METADATA"`
	Views          Views         `yaml:"VIEWS"`
	HTTP           HTTP          `yaml:"HTTP"`
	CacheTTL       time.Duration `yaml:"CACHE_TTL"`
	Concurrency    Concurrency   `yaml:"CONCURRENCY"`
	Proxy          Proxy         `yaml:"PROXY"`
	Dev            bool          `yaml:"DEV" env:"DEVFOLIO_DEV"`
	LogLevel       string        `yaml:"LOG_LEVEL" env:"DEVFOLIO_LOG_LEVEL"`
	LogFormat      string        `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale      string        `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor       string        `yaml:"LOG_COLOR"`  // auto|always|never
}

type Site struct {
	URL         string   `yaml:"url"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Language    string   `yaml:"language"`
	Author      string   `yaml:"author"` // RSS <author>，形如 mail@host (Name)
	StaticPaths []string `yaml:"static_paths"`
	BirthDate   string   `yaml:"birth_date"` // YYYY-MM-DD，用于首页年龄
}

type GitHub struct {
	User     string `yaml:"user"`
	JoinYear int    `yaml:"join_year"`
	// Token 仅从环境变量读取更安全，yaml 中也允许填写
	Token    string `yaml:"token" env:"GITHUB_API_TOKEN"`
	WebURL   string `yaml:"web_url"`  // https://github.com
	APIURL   string `yaml:"api_url"`  // https://api.github.com/
	RepoURL  string `yaml:"repo_url"` // 站点自身仓库，用于更新日志 commit 链接
	Attempts int    `yaml:"attempts"`
	// BaseDelay 为仓库请求的首次退避间隔（之后按 2 倍增长）
	BaseDelay time.Duration `yaml:"base_delay"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Project 为项目页展示的仓库。
type Project struct {
	Name       string `yaml:"name"`
	HasArticle bool   `yaml:"has_article"`
}

// SeriesEntry 为系列文章的静态描述。
type SeriesEntry struct {
	Slug        string `yaml:"slug"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

type Views struct {
	Type string `yaml:"type"` // json (default) | sqlite
	Path string `yaml:"path"` // ./data/views.json 或 sqlite 文件
}

type HTTP struct {
	Addr    string        `yaml:"addr" env:"DEVFOLIO_ADDR"`
	Timeout time.Duration `yaml:"timeout"`
}

type Concurrency struct {
	Fetch int `yaml:"fetch"`
	Retry int `yaml:"retry"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Load 从文件读取 YAML 并反序列化为 Config，随后应用环境变量覆盖并校验。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("read env overrides: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GitHub.User) == "" {
		return errors.New("GITHUB.user is required")
	}
	if c.GitHub.JoinYear == 0 {
		c.GitHub.JoinYear = time.Now().Year()
	}
	if c.GitHub.JoinYear < 2008 || c.GitHub.JoinYear > time.Now().Year() {
		return fmt.Errorf("GITHUB.join_year out of range: %d", c.GitHub.JoinYear)
	}
	if c.GitHub.WebURL == "" {
		c.GitHub.WebURL = "https://github.com"
	}
	c.GitHub.WebURL = strings.TrimRight(c.GitHub.WebURL, "/")
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = "https://api.github.com/"
	}
	if !strings.HasSuffix(c.GitHub.APIURL, "/") {
		c.GitHub.APIURL += "/"
	}
	if c.GitHub.Attempts <= 0 {
		c.GitHub.Attempts = 3
	}
	if c.GitHub.BaseDelay <= 0 {
		c.GitHub.BaseDelay = time.Second
	}
	if c.GitHub.Timeout <= 0 {
		c.GitHub.Timeout = 30 * time.Second
	}
	seen := map[string]struct{}{}
	for i, p := range c.Projects {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("PROJECTS[%d].name is required", i)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate project: %s", name)
		}
		seen[name] = struct{}{}
		c.Projects[i].Name = name
	}
	for i, s := range c.Series {
		if strings.TrimSpace(s.Slug) == "" {
			return fmt.Errorf("SERIES[%d].slug is required", i)
		}
	}
	if c.Site.URL == "" {
		c.Site.URL = "http://localhost:8080"
	}
	c.Site.URL = strings.TrimRight(c.Site.URL, "/")
	if c.Site.Language == "" {
		c.Site.Language = "en-us"
	}
	if len(c.Site.StaticPaths) == 0 {
		c.Site.StaticPaths = []string{"/", "/blog", "/projects", "/changelog"}
	}
	if c.BlogDir == "" {
		c.BlogDir = "./blog"
	}
	if c.Changelog == "" {
		c.Changelog = "./CHANGELOG.md"
	}
	if c.ImagesMetadata == "" {
		c.ImagesMetadata = "./static/images/images-metadata.json"
	}
	if c.Views.Type == "" {
		c.Views.Type = "json"
	}
	switch c.Views.Type {
	case "json":
		if c.Views.Path == "" {
			c.Views.Path = "./data/views.json"
		}
	case "sqlite":
		if c.Views.Path == "" {
			c.Views.Path = "./data/views.db"
		}
	default:
		return fmt.Errorf("unsupported views store type: %s", c.Views.Type)
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 60 * time.Second
	}
	if c.CacheTTL < 0 {
		return errors.New("CACHE_TTL must be >= 0")
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.Concurrency.Fetch <= 0 {
		c.Concurrency.Fetch = 4
	}
	if c.Concurrency.Retry < 0 {
		return errors.New("CONCURRENCY.retry must be >= 0")
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}
