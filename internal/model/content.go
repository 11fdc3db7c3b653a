package model

import "time"

// ChangeType 为更新日志条目类型。
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeChanged  ChangeType = "changed"
	ChangeFixed    ChangeType = "fixed"
	ChangeSecurity ChangeType = "security"
	ChangeMoved    ChangeType = "moved"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeTypes 为固定的类型优先级顺序。
var ChangeTypes = []ChangeType{ChangeAdded, ChangeChanged, ChangeFixed, ChangeSecurity, ChangeMoved, ChangeRemoved}

// ChangeItem 为一次具体变更。
type ChangeItem struct {
	Type        ChangeType `json:"type"`
	Description string     `json:"description"`
	Component   string     `json:"component,omitempty"`
	CommitHash  string     `json:"commitHash,omitempty"`
}

// ChangelogEntry 为一个版本的更新记录。
type ChangelogEntry struct {
	Version     string       `json:"version"`
	Date        string       `json:"date"`
	CommitHash  string       `json:"commitHash,omitempty"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Changes     []ChangeItem `json:"changes"`
}

// Changelog 为解析后的完整更新日志，进程内只读。
type Changelog struct {
	Entries []ChangelogEntry `json:"entries"`
}

// Frontmatter 为文章头部元数据。
type Frontmatter struct {
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	PublishedAt string       `json:"publishedAt" yaml:"publishedAt"`
	UpdatedAt   string       `json:"updatedAt,omitempty" yaml:"updatedAt"`
	Image       string       `json:"image,omitempty" yaml:"image"`
	Tags        []string     `json:"tags" yaml:"tags"`
	Draft       bool         `json:"draft" yaml:"draft"`
	ReadingTime *ReadingTime `json:"readingTime,omitempty" yaml:"readingTime"`
	Series      string       `json:"series,omitempty" yaml:"series"`
	SeriesOrder int          `json:"seriesOrder,omitempty" yaml:"seriesOrder"`
}

// Post 为文章列表条目。
type Post struct {
	Slug        string      `json:"slug"`
	Frontmatter Frontmatter `json:"frontmatter"`
	Views       int         `json:"views"`
}

// Series 为系列文章。
type Series struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Posts       []Post `json:"posts"`
	TotalPosts  int    `json:"totalPosts"`
}

// Article 为单篇文章页的数据。
type Article struct {
	Slug        string            `json:"slug"`
	Frontmatter Frontmatter       `json:"frontmatter"`
	Content     *ProcessedContent `json:"content"`
	Views       int               `json:"views"`
}

// ViewsRecord 为 views.json 中单个 slug 的记录。
type ViewsRecord struct {
	Views       int       `json:"views"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Stats 为导出快照的统计信息。
type Stats struct {
	PostsTotal         int       `json:"posts_total"`
	ProjectsTotal      int       `json:"projects_total"`
	ContributionsTotal int       `json:"contributions_total"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Home 为首页聚合数据。
type Home struct {
	Contributions map[int]YearResult `json:"github"`
	Projects      []RepositoryInfo   `json:"projects"`
	Articles      []Post             `json:"articles"`
	// Age 由 SITE.birth_date 计算，未配置时省略
	Age int `json:"age,omitempty"`
}

// Export 为 data.json 顶层结构。
type Export struct {
	Stats Stats `json:"stats"`
	Home
}
