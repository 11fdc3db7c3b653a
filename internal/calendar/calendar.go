// 包 calendar 提供贡献日历相关的日期工具：年内序号、年份列表、按周分组、月份标签与尺寸计算。
package calendar

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go-devfolio/internal/model"
)

// DefaultMonthLabels 为默认的英文月份缩写。
var DefaultMonthLabels = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// minWeeksForLabel 为首尾月份标签保留所需的最少周数。
const minWeeksForLabel = 3

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrEmptyWeek   = errors.New("empty week")
)

// ParseISO 解析 YYYY-MM-DD 或 YYYY-MM-DDTHH:MM:SS（本地无时区，按 UTC 处理），并校验各字段范围。
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "T")
	if len(parts) > 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	dp := strings.Split(parts[0], "-")
	if len(dp) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	ymd := make([]int, 3)
	for i, p := range dp {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		ymd[i] = n
	}
	hms := make([]int, 3)
	if len(parts) == 2 {
		tp := strings.Split(strings.TrimSuffix(parts[1], "Z"), ":")
		if len(tp) > 3 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		for i, p := range tp {
			// 秒可能带小数部分
			if i == 2 {
				p, _, _ = strings.Cut(p, ".")
			}
			n, err := strconv.Atoi(p)
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
			}
			hms[i] = n
		}
	}
	switch {
	case ymd[1] < 1 || ymd[1] > 12:
		return time.Time{}, fmt.Errorf("%w: month %d", ErrInvalidDate, ymd[1])
	case ymd[2] < 1 || ymd[2] > 31:
		return time.Time{}, fmt.Errorf("%w: day %d", ErrInvalidDate, ymd[2])
	case hms[0] < 0 || hms[0] >= 24:
		return time.Time{}, fmt.Errorf("%w: hour %d", ErrInvalidDate, hms[0])
	case hms[1] < 0 || hms[1] >= 60:
		return time.Time{}, fmt.Errorf("%w: minute %d", ErrInvalidDate, hms[1])
	case hms[2] < 0 || hms[2] >= 60:
		return time.Time{}, fmt.Errorf("%w: second %d", ErrInvalidDate, hms[2])
	}
	t := time.Date(ymd[0], time.Month(ymd[1]), ymd[2], hms[0], hms[1], hms[2], 0, time.UTC)
	// time.Date 会把 2 月 31 日进位到 3 月
	if t.Day() != ymd[2] {
		return time.Time{}, fmt.Errorf("%w: day %d out of range for %d-%02d", ErrInvalidDate, ymd[2], ymd[0], ymd[1])
	}
	return t, nil
}

// DayOfYear 返回日期在当年中的序号（1..366）。
func DayOfYear(date string) (int, error) {
	t, err := ParseISO(date)
	if err != nil {
		return 0, err
	}
	return t.YearDay(), nil
}

// DaysInYear 返回该年天数。
func DaysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

// GitHubYears 返回从当前年份倒序到加入年份（含）的年份列表；joinYear<=0 返回空。
func GitHubYears(joinYear int, now time.Time) []int {
	if joinYear <= 0 {
		return nil
	}
	cur := now.Year()
	if joinYear > cur {
		return nil
	}
	out := make([]int, 0, cur-joinYear+1)
	for y := cur; y >= joinYear; y-- {
		out = append(out, y)
	}
	return out
}

// CalculateAge 返回 now 时刻的周岁；生日无效或在未来时返回错误。
func CalculateAge(birth, now time.Time) (int, error) {
	if birth.IsZero() {
		return 0, fmt.Errorf("%w: zero birth date", ErrInvalidDate)
	}
	if birth.After(now) {
		return 0, fmt.Errorf("%w: birth date in the future", ErrInvalidDate)
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, nil
}

// GroupByWeeks 以 weekStart 为每周首日把连续的日期切片分组为周。
// 首周前补 nil 对齐；days 中的 nil 视为缺失日期，保留其位置。
func GroupByWeeks(days []*model.Contribution, weekStart time.Weekday) ([]model.Week, error) {
	first := -1
	for i, d := range days {
		if d != nil {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, nil
	}
	t, err := ParseISO(days[first].Date)
	if err != nil {
		return nil, fmt.Errorf("parse first date: %w", err)
	}
	start := t.AddDate(0, 0, -first)
	pad := (int(start.Weekday()) - int(weekStart) + 7) % 7
	padded := make([]*model.Contribution, pad, pad+len(days))
	padded = append(padded, days...)
	n := (len(padded) + 6) / 7
	weeks := make([]model.Week, 0, n)
	for i := 0; i < n; i++ {
		end := min(i*7+7, len(padded))
		weeks = append(weeks, model.Week(padded[i*7:end]))
	}
	return weeks, nil
}

// MonthLabels 为每次月份变化生成一个标签；首个标签距下一个不足 3 周时丢弃，
// 末个标签之后不足 3 周时也丢弃。names 为空时使用 DefaultMonthLabels。
func MonthLabels(weeks []model.Week, names []string) ([]model.MonthLabel, error) {
	if len(names) == 0 {
		names = DefaultMonthLabels
	}
	var labels []model.MonthLabel
	for i, w := range weeks {
		var first *model.Contribution
		for _, d := range w {
			if d != nil {
				first = d
				break
			}
		}
		if first == nil {
			return nil, fmt.Errorf("%w: week %d", ErrEmptyWeek, i+1)
		}
		t, err := ParseISO(first.Date)
		if err != nil {
			return nil, fmt.Errorf("parse week %d date: %w", i+1, err)
		}
		m := int(t.Month()) - 1
		if m >= len(names) || names[m] == "" {
			return nil, fmt.Errorf("undefined month label for %s", t.Month())
		}
		label := names[m]
		if len(labels) == 0 || labels[len(labels)-1].Label != label {
			labels = append(labels, model.MonthLabel{WeekIndex: i, Label: label})
		}
	}
	out := make([]model.MonthLabel, 0, len(labels))
	for i, l := range labels {
		switch {
		case i == 0:
			if len(labels) < 2 || labels[1].WeekIndex-l.WeekIndex < minWeeksForLabel {
				continue
			}
		case i == len(labels)-1:
			if len(weeks)-l.WeekIndex < minWeeksForLabel {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// Dimensions 计算日历 SVG 的宽高。
func Dimensions(weeks []model.Week, blockSize, blockMargin, labelHeight int) (width, height int) {
	width = len(weeks)*(blockSize+blockMargin) - blockMargin
	height = labelHeight + (blockSize+blockMargin)*7 - blockMargin
	return width, height
}

// MockYear 生成一年的伪造贡献数据（开发环境使用），每天都有显式条目。
func MockYear(year int, seed int64) model.YearResult {
	rng := rand.New(rand.NewSource(seed))
	n := DaysInYear(year)
	res := model.YearResult{Days: make([]*model.Contribution, n)}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		count := 0
		if rng.Intn(3) > 0 {
			count = rng.Intn(20)
		}
		res.Days[i] = &model.Contribution{
			Date:  start.AddDate(0, 0, i).Format(time.DateOnly),
			Count: count,
			Level: levelFor(count),
		}
		res.Total += count
	}
	return res
}

// levelFor 按次数粗略分档，仅用于伪造数据。
func levelFor(count int) model.Level {
	switch {
	case count == 0:
		return 0
	case count < 5:
		return 1
	case count < 10:
		return 2
	case count < 15:
		return 3
	default:
		return 4
	}
}
