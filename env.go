package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/urfave/cli/v2"

	"go-devfolio/internal/blog"
	"go-devfolio/internal/changelog"
	"go-devfolio/internal/config"
	"go-devfolio/internal/contrib"
	"go-devfolio/internal/fetch"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/mdx"
	"go-devfolio/internal/model"
	"go-devfolio/internal/repos"
	"go-devfolio/internal/rules"
	"go-devfolio/internal/store"
	"go-devfolio/internal/views"
)

// env 为各子命令共享的运行环境。
type env struct {
	cfg   *config.Config
	rules *rules.Rules
	fetch *fetch.Client
}

type viewStore interface {
	views.Store
	Close() error
}

// loadEnv 加载配置与规则，并初始化日志与 HTTP 客户端。
func loadEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logx.Init(level, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	e := &env{cfg: cfg}
	if path := c.String("rules"); path != "" {
		r, err := rules.Load(path)
		switch {
		case err == nil:
			e.rules = r
		case errors.Is(err, fs.ErrNotExist):
			logx.Debugf("未找到规则文件，使用默认选择器：%s", path)
		default:
			logx.Warnf("加载规则失败，使用默认选择器：%v", err)
		}
	}
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.GitHub.Timeout,
		Retry:      cfg.Concurrency.Retry,
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	e.fetch = cl
	return e, nil
}

func (e *env) contributions() (*contrib.Service, error) {
	return contrib.New(e.fetch, contrib.Options{
		User:        e.cfg.GitHub.User,
		JoinYear:    e.cfg.GitHub.JoinYear,
		BaseURL:     e.cfg.GitHub.WebURL,
		Preset:      e.rules.ContributionsFor("default"),
		Concurrency: e.cfg.Concurrency.Fetch,
		TTL:         e.cfg.CacheTTL,
		Timeout:     e.cfg.GitHub.Timeout,
		Mock:        e.cfg.Dev,
	})
}

func (e *env) repositories() (*repos.Service, error) {
	gh := e.cfg.GitHub
	return repos.New(e.fetch.HTTPClient(), repos.Options{
		Owner:       gh.User,
		Token:       gh.Token,
		APIURL:      gh.APIURL,
		Attempts:    gh.Attempts,
		BaseDelay:   gh.BaseDelay,
		Timeout:     gh.Timeout,
		TTL:         e.cfg.CacheTTL,
		Concurrency: e.cfg.Concurrency.Fetch,
	})
}

func (e *env) blog() (*blog.Repository, error) {
	return blog.Load(e.cfg.BlogDir, e.cfg.Dev)
}

func (e *env) images() *mdx.ImageIndex {
	return mdx.NewImageIndex(e.cfg.ImagesMetadata)
}

func (e *env) processor(images *mdx.ImageIndex) (*mdx.Processor, error) {
	return mdx.New(mdx.Options{Images: images})
}

// viewStore 按配置打开 json 或 sqlite 存储。
func (e *env) viewStore() (viewStore, error) {
	switch e.cfg.Views.Type {
	case "sqlite":
		return store.OpenSQLite(e.cfg.Views.Path)
	default:
		return store.OpenJSONFile(e.cfg.Views.Path)
	}
}

// changelog 加载更新日志；文件缺失时返回空日志。
func (e *env) changelog() *changelog.Log {
	l, err := changelog.Load(e.cfg.Changelog, e.cfg.GitHub.RepoURL)
	if err != nil {
		logx.Warnf("加载更新日志失败，使用空日志：%v", err)
		return changelog.New(model.Changelog{Entries: []model.ChangelogEntry{}}, e.cfg.GitHub.RepoURL)
	}
	return l
}
