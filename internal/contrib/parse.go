package contrib

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"go-devfolio/internal/calendar"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
	"go-devfolio/internal/rules"
)

var (
	// ErrTotalNotFound 表示页面缺少年度总数节点或其文本不以整数开头；整年视为失败。
	ErrTotalNotFound = errors.New("total contributions not found")
	// ErrDayAttr 表示单个日期格子缺少或无法解析 id/date/level。
	ErrDayAttr = errors.New("invalid contribution day")
)

var leadingInt = regexp.MustCompile(`^\d+`)

// Parse 从贡献日历 HTML 中解析一年的数据。
// 单个日期解析失败只记录日志并留空该位置；总数缺失返回 ErrTotalNotFound。
func Parse(r io.Reader, year int, preset rules.Contributions) (model.YearResult, error) {
	preset = preset.WithDefaults()
	totalRe, err := regexp.Compile(preset.TotalPattern)
	if err != nil {
		return model.YearResult{}, fmt.Errorf("compile total pattern: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return model.YearResult{}, fmt.Errorf("parse contributions html: %w", err)
	}

	total, err := parseTotal(doc, preset.Total, totalRe)
	if err != nil {
		return model.YearResult{}, err
	}

	tooltips := map[string]*goquery.Selection{}
	doc.Find(preset.Tooltip).Each(func(_ int, s *goquery.Selection) {
		if k, ok := s.Attr(preset.TooltipKey); ok && k != "" {
			tooltips[k] = s
		}
	})

	res := model.YearResult{Total: total, Days: make([]*model.Contribution, calendar.DaysInYear(year))}
	doc.Find(preset.Day).Each(func(_ int, s *goquery.Selection) {
		day, idx, err := parseDay(s, tooltips, preset, year)
		if err != nil {
			logx.Warnf("解析贡献日期失败：年份=%d 错误=%v", year, err)
			return
		}
		res.Days[idx] = day
	})
	return res, nil
}

func parseTotal(doc *goquery.Document, sel string, re *regexp.Regexp) (int, error) {
	node := doc.Find(sel).First()
	if node.Length() == 0 {
		return 0, fmt.Errorf("%w: no node matches %q", ErrTotalNotFound, sel)
	}
	text := strings.TrimSpace(node.Text())
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrTotalNotFound, text)
	}
	raw := m[0]
	if len(m) > 1 {
		raw = m[1]
	}
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrTotalNotFound, text)
	}
	return n, nil
}

// parseDay 返回解析结果及其在 Days 中的下标（dayOfYear-1）。
func parseDay(s *goquery.Selection, tooltips map[string]*goquery.Selection, preset rules.Contributions, year int) (*model.Contribution, int, error) {
	id := getVal(s, preset.ID)
	date := getVal(s, preset.Date)
	levelRaw := getVal(s, preset.Level)
	switch {
	case id == "":
		return nil, 0, fmt.Errorf("%w: missing id (date=%q)", ErrDayAttr, date)
	case date == "":
		return nil, 0, fmt.Errorf("%w: missing date (id=%q)", ErrDayAttr, id)
	case levelRaw == "":
		return nil, 0, fmt.Errorf("%w: missing level (date=%q)", ErrDayAttr, date)
	}
	level, err := strconv.Atoi(levelRaw)
	if err != nil || level < 0 || level > 4 {
		return nil, 0, fmt.Errorf("%w: level %q (date=%q)", ErrDayAttr, levelRaw, date)
	}
	t, err := calendar.ParseISO(date)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDayAttr, err)
	}
	if t.Year() != year {
		return nil, 0, fmt.Errorf("%w: date %s outside %d", ErrDayAttr, date, year)
	}
	return &model.Contribution{
		Date:  date,
		Count: tooltipCount(tooltips[id]),
		Level: model.Level(level),
	}, t.YearDay() - 1, nil
}

// tooltipCount 取提示节点首个文本子节点的前导整数，缺失或非数字时为 0。
func tooltipCount(tip *goquery.Selection) int {
	if tip == nil || tip.Length() == 0 {
		return 0
	}
	first := tip.Nodes[0].FirstChild
	if first == nil || first.Type != html.TextNode {
		return 0
	}
	m := leadingInt.FindString(strings.TrimSpace(first.Data))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
