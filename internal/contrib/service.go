// 包 contrib 抓取并解析 GitHub 个人主页的贡献日历（按年），
// 结果按年份缓存，多年份通过 ants 协程池并行抓取。
package contrib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"go-devfolio/internal/cache"
	"go-devfolio/internal/calendar"
	"go-devfolio/internal/fetch"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
	"go-devfolio/internal/rules"
)

// maxPageSize 限制单个日历页面的读取大小。
const maxPageSize = 8 << 20

// Options 为服务构造参数。
type Options struct {
	User     string
	JoinYear int
	// BaseURL 为 GitHub 网页地址（测试中替换为本地服务器）
	BaseURL     string
	Preset      rules.Contributions
	Concurrency int
	TTL         time.Duration
	// Timeout 为单个年份请求的上限
	Timeout time.Duration
	// Mock 为 true 时不访问网络，使用伪造数据（开发环境）
	Mock bool
	Now  func() time.Time
}

// Service 为贡献日历服务。
type Service struct {
	cl    *fetch.Client
	opts  Options
	cache *cache.TTL[int, model.YearResult]
	pool  *ants.Pool
}

// New 创建服务；调用方负责 Close 以释放协程池。
func New(cl *fetch.Client, opts Options) (*Service, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://github.com"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Preset = opts.Preset.WithDefaults()
	c, err := cache.New[int, model.YearResult](opts.TTL, 64, cache.WithClock(opts.Now))
	if err != nil {
		return nil, fmt.Errorf("new contributions cache: %w", err)
	}
	pool, err := ants.NewPool(opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("new contributions pool: %w", err)
	}
	return &Service{cl: cl, opts: opts, cache: c, pool: pool}, nil
}

// Close 释放协程池。
func (s *Service) Close() { s.pool.Release() }

// Contributions 返回从当前年份到加入年份的全部数据。
// 单个年份失败会被记录并汇总到返回的 error 中，成功的年份仍然返回。
func (s *Service) Contributions(ctx context.Context) (map[int]model.YearResult, error) {
	years := calendar.GitHubYears(s.opts.JoinYear, s.opts.Now())
	out := make(map[int]model.YearResult, len(years))
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	for _, y := range years {
		y := y
		wg.Add(1)
		task := func() {
			defer wg.Done()
			res, err := s.Year(ctx, y)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logx.Warnf("获取贡献数据失败：年份=%d 错误=%v", y, err)
				errs = append(errs, fmt.Errorf("year %d: %w", y, err))
				return
			}
			out[y] = res
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("submit year %d: %w", y, err))
			mu.Unlock()
		}
	}
	wg.Wait()
	logx.Infof("贡献数据完成：成功=%d 失败=%d", len(out), len(errs))
	return out, errors.Join(errs...)
}

// Year 返回单个年份的数据，优先使用未过期缓存。
func (s *Service) Year(ctx context.Context, year int) (model.YearResult, error) {
	if res, ok := s.cache.Get(year); ok {
		return res, nil
	}
	if s.opts.Mock {
		res := calendar.MockYear(year, int64(year))
		s.cache.Set(year, res)
		return res, nil
	}
	res, err := s.scrape(ctx, year)
	if err != nil {
		return model.YearResult{}, err
	}
	s.cache.Set(year, res)
	return res, nil
}

func (s *Service) scrape(ctx context.Context, year int) (model.YearResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	u := fmt.Sprintf("%s/users/%s/contributions?from=%d-01-01&to=%d-12-31",
		s.opts.BaseURL, url.PathEscape(s.opts.User), year, year)
	logx.Debugf("抓取贡献日历：%s", u)
	resp, err := s.cl.Get(ctx, u)
	if err != nil {
		if fetch.IsStatus(err, http.StatusNotFound) {
			return model.YearResult{}, fmt.Errorf("unknown github user %q: %w", s.opts.User, err)
		}
		return model.YearResult{}, fmt.Errorf("GET contributions %d: %w", year, err)
	}
	defer resp.Body.Close()
	return Parse(io.LimitReader(resp.Body, maxPageSize), year, s.opts.Preset)
}
