// 包 model 定义站点的数据模型（贡献日历/仓库/文章/更新日志/浏览量/导出结构）。
package model

// Level 为上游给出的贡献强度分档（0..4），本地不重新计算。
type Level int

// Contribution 表示日历中的一天。
type Contribution struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level Level  `json:"level"`
}

// YearResult 为单年的贡献数据。
// Days 按年内序号（从 0 开始，即 dayOfYear-1）存放，长度覆盖全年；缺失的日期为 nil。
type YearResult struct {
	Total int             `json:"total"`
	Days  []*Contribution `json:"days"`
}

// Week 为日历中的一周，nil 表示补齐的空位。
type Week []*Contribution

// MonthLabel 为月份标签及其所在周序号。
type MonthLabel struct {
	WeekIndex int    `json:"weekIndex"`
	Label     string `json:"label"`
}

// RepositoryInfo 为项目卡片展示用的仓库信息。
// Contributor 为 true 表示该仓库是 fork，展示字段取自上游 parent。
type RepositoryInfo struct {
	Owner       string `json:"owner"`
	OwnerPic    string `json:"ownerPic"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Href        string `json:"href"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	LastUpdate  string `json:"lastUpdate"`
	Contributor bool   `json:"contributor"`
	HasArticle  bool   `json:"hasArticle,omitempty"`
}

// Heading 为目录用的标题元数据。
type Heading struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// CodeBlock 为渲染后的代码块元数据，Index 按文档顺序从 0 递增。
type CodeBlock struct {
	Index    int    `json:"index"`
	Title    string `json:"title,omitempty"`
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// ReadingTime 为阅读时长统计。
type ReadingTime struct {
	Text    string  `json:"text" yaml:"text"`
	Minutes int     `json:"minutes" yaml:"minutes"`
	Time    float64 `json:"time" yaml:"time"`
	Words   int     `json:"words" yaml:"words"`
}

// ProcessedContent 为 Markdown 渲染结果，不落盘。
type ProcessedContent struct {
	HTML        string      `json:"html"`
	Headings    []Heading   `json:"headings"`
	CodeBlocks  []CodeBlock `json:"codeBlocks"`
	ReadingTime ReadingTime `json:"readingTime"`
}
