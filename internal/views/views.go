// 包 views 实现文章浏览量统计：过滤爬虫 UA，其余请求计数加一。
// 存储出错时只记录日志，返回旧值或 0，不影响页面渲染。
package views

import (
	"context"
	"strings"
	"time"

	"go-devfolio/internal/logx"
)

// botSignatures 为大小写不敏感的 UA 子串。
var botSignatures = []string{
	"bot", "crawler", "spider", "scraper",
	"facebookexternalhit", "twitterbot", "linkedinbot",
	"googlebot", "bingbot", "slurp",
}

// IsBot 判断 UA 是否属于爬虫；空 UA 不视为爬虫。
func IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// Store 为计数存储（store.JSONFile / store.SQLite）。
type Store interface {
	Views(ctx context.Context, slug string) (int, error)
	Increment(ctx context.Context, slug string, at time.Time) (int, error)
	Batch(ctx context.Context, slugs []string) (map[string]int, error)
	All(ctx context.Context) (map[string]int, error)
}

// Tracker 为浏览量统计入口。
type Tracker struct {
	store Store
	now   func() time.Time
}

// Option 为 Tracker 选项。
type Option func(*Tracker)

// WithClock 替换时间源。
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Track 记录一次浏览并返回最新计数；爬虫请求不计数，直接返回当前值。
func (t *Tracker) Track(ctx context.Context, slug, userAgent string) int {
	if IsBot(userAgent) {
		logx.Debugf("忽略爬虫浏览：%s UA=%s", slug, userAgent)
		return t.Views(ctx, slug)
	}
	n, err := t.store.Increment(ctx, slug, t.now())
	if err != nil {
		logx.Errorf("记录浏览量失败：%s 错误=%v", slug, err)
		return t.Views(ctx, slug)
	}
	return n
}

// Views 返回单篇文章计数，出错时为 0。
func (t *Tracker) Views(ctx context.Context, slug string) int {
	n, err := t.store.Views(ctx, slug)
	if err != nil {
		logx.Errorf("读取浏览量失败：%s 错误=%v", slug, err)
		return 0
	}
	return n
}

// Batch 返回多篇文章计数，出错时全部为 0。
func (t *Tracker) Batch(ctx context.Context, slugs []string) map[string]int {
	out, err := t.store.Batch(ctx, slugs)
	if err != nil {
		logx.Errorf("批量读取浏览量失败：错误=%v", err)
		out = make(map[string]int, len(slugs))
		for _, s := range slugs {
			out[s] = 0
		}
	}
	return out
}

// All 返回全部计数，出错时为空。
func (t *Tracker) All(ctx context.Context) map[string]int {
	out, err := t.store.All(ctx)
	if err != nil {
		logx.Errorf("读取全部浏览量失败：错误=%v", err)
		return map[string]int{}
	}
	return out
}
