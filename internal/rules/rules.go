// 包 rules 负责加载并提供抓取规则（rules.yaml），
// 以预设名（如 default）组织 CSS 选择器，用于解析 GitHub 贡献日历页面。
// 上游页面结构变化时只需调整 rules.yaml，无需改代码。
package rules

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个预设的解析规则集合。
type Preset struct {
	Contributions *Contributions `yaml:"contributions"`
}

// Contributions 描述贡献日历页的选择器：
// - day：每个日期格子；id/date/level 取文本或属性（支持 "@data-date" / "span@title" / "||" 回退）
// - total/total_pattern：年度总数所在节点及提取整数的正则（第一个分组）
// - tooltip/tooltip_key：提示节点及其指向格子 id 的属性
type Contributions struct {
	Day          string `yaml:"day"`
	ID           string `yaml:"id"`
	Date         string `yaml:"date"`
	Level        string `yaml:"level"`
	Total        string `yaml:"total"`
	TotalPattern string `yaml:"total_pattern"`
	Tooltip      string `yaml:"tooltip"`
	TooltipKey   string `yaml:"tooltip_key"`
}

// DefaultContributions 为当前 GitHub 页面结构对应的选择器。
func DefaultContributions() Contributions {
	return Contributions{
		Day:          ".js-calendar-graph-table .ContributionCalendar-day",
		ID:           "@id",
		Date:         "@data-date",
		Level:        "@data-level",
		Total:        ".js-yearly-contributions h2",
		TotalPattern: `^([0-9,]+)\s`,
		Tooltip:      ".js-calendar-graph tool-tip",
		TooltipKey:   "for",
	}
}

// WithDefaults 用默认值补齐未配置的字段。
func (c Contributions) WithDefaults() Contributions {
	d := DefaultContributions()
	if strings.TrimSpace(c.Day) == "" {
		c.Day = d.Day
	}
	if strings.TrimSpace(c.ID) == "" {
		c.ID = d.ID
	}
	if strings.TrimSpace(c.Date) == "" {
		c.Date = d.Date
	}
	if strings.TrimSpace(c.Level) == "" {
		c.Level = d.Level
	}
	if strings.TrimSpace(c.Total) == "" {
		c.Total = d.Total
	}
	if strings.TrimSpace(c.TotalPattern) == "" {
		c.TotalPattern = d.TotalPattern
	}
	if strings.TrimSpace(c.Tooltip) == "" {
		c.Tooltip = d.Tooltip
	}
	if strings.TrimSpace(c.TooltipKey) == "" {
		c.TooltipKey = d.TooltipKey
	}
	return c
}

func Load(path string) (*Rules, error) {
	// 从文件加载 YAML 到 Rules.Presets
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	for name, p := range r.Presets {
		if p.Contributions == nil || p.Contributions.TotalPattern == "" {
			continue
		}
		if _, err := regexp.Compile(p.Contributions.TotalPattern); err != nil {
			return nil, fmt.Errorf("rules %s: preset %s: total_pattern: %w", path, name, err)
		}
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写），若为空或不存在则回退到 "default"。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p, true
	}
	return Preset{}, false
}

// ContributionsFor 返回指定预设的贡献日历选择器（已补齐默认值）；r 为 nil 时直接返回默认值。
func (r *Rules) ContributionsFor(name string) Contributions {
	if p, ok := r.GetPreset(name); ok && p.Contributions != nil {
		return p.Contributions.WithDefaults()
	}
	return DefaultContributions()
}
