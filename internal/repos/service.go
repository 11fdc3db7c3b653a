// 包 repos 通过 GitHub REST API 获取项目页展示的仓库信息：
// 指数退避重试、JSON Schema 校验、按仓库名缓存，失败时回退到过期缓存。
package repos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-github/v57/github"
	"github.com/panjf2000/ants/v2"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/oauth2"

	"go-devfolio/internal/cache"
	"go-devfolio/internal/config"
	"go-devfolio/internal/fetch"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
)

// Options 为服务构造参数。
type Options struct {
	Owner string
	Token string
	// APIURL 为 REST API 根地址，需以 "/" 结尾
	APIURL      string
	Attempts    int
	BaseDelay   time.Duration
	Timeout     time.Duration
	TTL         time.Duration
	Concurrency int
	Now         func() time.Time
}

// Service 为仓库信息服务。
type Service struct {
	gh     *github.Client
	opts   Options
	schema *jsonschema.Schema
	cache  *cache.TTL[string, model.RepositoryInfo]
	pool   *ants.Pool
}

// New 创建服务；hc 提供代理等传输设置，Token 非空时以 Bearer 方式附加。
func New(hc *http.Client, opts Options) (*Service, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Token != "" {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc = &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
				Base:   base,
			},
			Timeout: hc.Timeout,
		}
	}
	gh := github.NewClient(hc)
	if opts.APIURL != "" {
		if !strings.HasSuffix(opts.APIURL, "/") {
			opts.APIURL += "/"
		}
		u, err := url.Parse(opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("parse api url: %w", err)
		}
		gh.BaseURL = u
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	c, err := cache.New[string, model.RepositoryInfo](opts.TTL, 0, cache.WithClock(opts.Now))
	if err != nil {
		return nil, fmt.Errorf("new repository cache: %w", err)
	}
	pool, err := ants.NewPool(opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("new repository pool: %w", err)
	}
	return &Service{gh: gh, opts: opts, schema: schema, cache: c, pool: pool}, nil
}

// Close 释放协程池。
func (s *Service) Close() { s.pool.Release() }

// Repository 返回仓库信息。缓存未过期时直接返回；
// 请求失败时退回到过期缓存（若有），否则返回 false。
func (s *Service) Repository(ctx context.Context, name string) (*model.RepositoryInfo, bool) {
	if info, ok := s.cache.Get(name); ok {
		return &info, true
	}
	info, err := s.load(ctx, name)
	if err != nil {
		if stale, ok := s.cache.Peek(name); ok {
			logx.Warnf("获取仓库失败，使用过期缓存：%s 错误=%v", name, err)
			return &stale, true
		}
		logx.Errorf("获取仓库失败：%s 错误=%v", name, err)
		return nil, false
	}
	s.cache.Set(name, info)
	return &info, true
}

// Projects 并发获取配置中的项目，缺失的项目被丢弃，结果按最后更新时间倒序。
func (s *Service) Projects(ctx context.Context, projects []config.Project) []model.RepositoryInfo {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make([]model.RepositoryInfo, 0, len(projects))
	)
	for _, p := range projects {
		p := p
		wg.Add(1)
		task := func() {
			defer wg.Done()
			info, ok := s.Repository(ctx, p.Name)
			if !ok {
				return
			}
			info.HasArticle = p.HasArticle
			mu.Lock()
			out = append(out, *info)
			mu.Unlock()
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			logx.Warnf("提交仓库任务失败：%s 错误=%v", p.Name, err)
		}
	}
	wg.Wait()
	sort.SliceStable(out, func(i, j int) bool {
		return parseTime(out[i].LastUpdate).After(parseTime(out[j].LastUpdate))
	})
	return out
}

// load 带重试地请求并映射单个仓库。
func (s *Service) load(ctx context.Context, name string) (model.RepositoryInfo, error) {
	attempt := 0
	op := func() (model.RepositoryInfo, error) {
		attempt++
		actx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
		raw, err := s.get(actx, name)
		if err != nil {
			if ctx.Err() != nil {
				return model.RepositoryInfo{}, backoff.Permanent(err)
			}
			return model.RepositoryInfo{}, err
		}
		if err := validatePayload(s.schema, raw); err != nil {
			return model.RepositoryInfo{}, backoff.Permanent(err)
		}
		var repo github.Repository
		if err := json.Unmarshal(raw, &repo); err != nil {
			return model.RepositoryInfo{}, backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		}
		return toInfo(&repo), nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(fetch.NewBackOff(s.opts.BaseDelay)),
		backoff.WithMaxTries(uint(s.opts.Attempts)),
		backoff.WithNotify(func(err error, d time.Duration) {
			logx.Infof("仓库请求第 %d 次失败，%v 后重试：%s 错误=%v", attempt, d, name, err)
		}),
	)
}

// get 发起 GET /repos/{owner}/{name}，返回原始响应体。
// 非重试类的 4xx（429 除外）包装为 backoff.Permanent。
func (s *Service) get(ctx context.Context, name string) ([]byte, error) {
	path := fmt.Sprintf("repos/%s/%s", url.PathEscape(s.opts.Owner), url.PathEscape(name))
	req, err := s.gh.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	var buf bytes.Buffer
	resp, err := s.gh.Do(ctx, req, &buf)
	if err != nil {
		if resp != nil && !fetch.Retryable(resp.StatusCode) {
			return nil, backoff.Permanent(fmt.Errorf("GET %s: status %d: %w", path, resp.StatusCode, err))
		}
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// toInfo 映射为展示结构；fork 仓库的 owner/链接/语言/统计/更新时间取自上游 parent。
func toInfo(repo *github.Repository) model.RepositoryInfo {
	src := repo
	if repo.Parent != nil {
		src = repo.Parent
	}
	return model.RepositoryInfo{
		Owner:       src.GetOwner().GetLogin(),
		OwnerPic:    src.GetOwner().GetAvatarURL(),
		Name:        repo.GetName(),
		Description: repo.GetDescription(),
		Href:        src.GetHTMLURL(),
		Language:    src.GetLanguage(),
		Stars:       src.GetStargazersCount(),
		Forks:       src.GetForksCount(),
		LastUpdate:  src.GetUpdatedAt().UTC().Format(time.RFC3339),
		Contributor: repo.Parent != nil,
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
