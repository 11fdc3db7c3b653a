// 包 changelog 解析带哨兵注释的 CHANGELOG.md。
// 文件只在部署时变化，进程内解析一次后只读。
package changelog

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"go-devfolio/internal/model"
)

const (
	entryStart = "<!--CHANGELOG_ENTRY_START-->"
	entryEnd   = "<!--CHANGELOG_ENTRY_END-->"
)

var (
	entryRe   = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(entryStart) + `(.*?)` + regexp.QuoteMeta(entryEnd))
	headerRe  = regexp.MustCompile(`^##\s*\[([^\]]+)\]\s*-\s*(\d{4}-\d{2}-\d{2})`)
	commitRe  = regexp.MustCompile(`@@commit:([a-f0-9]+)@@`)
	titleRe   = regexp.MustCompile(`@@title:(.+?)@@`)
	sectionRe = regexp.MustCompile(`### ::(\w+)::\n`)
	changeRe  = regexp.MustCompile("-\\s*\\*\\*(.+?)\\*\\*\\s*@@hash:([a-f0-9]+)@@(?:\\n\\s*``([^`]+)``)?")
)

// Parse 扫描全部条目；缺少 "## [版本] - 日期" 首行的条目被丢弃。
func Parse(markdown string) model.Changelog {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	out := model.Changelog{Entries: []model.ChangelogEntry{}}
	for _, m := range entryRe.FindAllStringSubmatch(markdown, -1) {
		if e, ok := parseEntry(strings.TrimSpace(m[1])); ok {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

func parseEntry(content string) (model.ChangelogEntry, bool) {
	first, _, _ := strings.Cut(content, "\n")
	hm := headerRe.FindStringSubmatch(first)
	if hm == nil {
		return model.ChangelogEntry{}, false
	}
	e := model.ChangelogEntry{Version: hm[1], Date: hm[2], Changes: []model.ChangeItem{}}
	if m := commitRe.FindStringSubmatch(content); m != nil {
		e.CommitHash = m[1]
	}
	if m := titleRe.FindStringSubmatch(content); m != nil {
		e.Title = m[1]
	}

	// 描述为标题哨兵所在行之后、第一个 ### 小节之前的文本
	titleAt := max(strings.Index(content, "@@title:"), 0)
	if rel := strings.Index(content[titleAt:], "@@\n"); rel >= 0 {
		from := titleAt + rel + len("@@\n")
		if sec := strings.Index(content, "\n### "); sec > from {
			e.Description = strings.TrimSpace(content[from:sec])
		}
	}

	sections := sectionRe.FindAllStringSubmatchIndex(content, -1)
	for i, s := range sections {
		typ := model.ChangeType(content[s[2]:s[3]])
		if !slices.Contains(model.ChangeTypes, typ) {
			continue
		}
		body := content[s[1]:]
		if i+1 < len(sections) {
			body = content[s[1]:sections[i+1][0]]
		}
		for _, cm := range changeRe.FindAllStringSubmatch(body, -1) {
			e.Changes = append(e.Changes, model.ChangeItem{
				Type:        typ,
				Description: strings.TrimSpace(cm[1]),
				CommitHash:  strings.TrimSpace(cm[2]),
				Component:   strings.TrimSpace(cm[3]),
			})
		}
	}
	slices.SortStableFunc(e.Changes, func(a, b model.ChangeItem) int {
		return rank(a.Type) - rank(b.Type)
	})
	return e, true
}

func rank(t model.ChangeType) int { return slices.Index(model.ChangeTypes, t) }

// Log 为加载后的只读更新日志。
type Log struct {
	model.Changelog
	repoURL string
}

// Load 读取并解析文件；repoURL 用于生成 commit 链接。
func Load(path, repoURL string) (*Log, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read changelog: %w", err)
	}
	return &Log{Changelog: Parse(string(raw)), repoURL: repoURL}, nil
}

// New 包装已解析的更新日志。
func New(c model.Changelog, repoURL string) *Log {
	return &Log{Changelog: c, repoURL: repoURL}
}

// Latest 返回语义化版本最高的条目版本；无法解析时取第一条，空日志为 "0.0.0"。
func (l *Log) Latest() string {
	if len(l.Entries) == 0 {
		return "0.0.0"
	}
	var best *semver.Version
	latest := l.Entries[0].Version
	for _, e := range l.Entries {
		v, err := semver.NewVersion(e.Version)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, latest = v, e.Version
		}
	}
	return latest
}

// Entry 按版本号精确查找。
func (l *Log) Entry(version string) (model.ChangelogEntry, bool) {
	for _, e := range l.Entries {
		if e.Version == version {
			return e, true
		}
	}
	return model.ChangelogEntry{}, false
}

// CommitURL 返回提交的网页地址。
func (l *Log) CommitURL(hash string) string { return CommitURL(l.repoURL, hash) }

// CommitURL 拼接 {repoURL}/commit/{hash}。
func CommitURL(repoURL, hash string) string {
	return strings.TrimSuffix(repoURL, "/") + "/commit/" + hash
}
