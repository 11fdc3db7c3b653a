// 包 aggregate 负责首页数据编排：
// - 文章列表 + 批量浏览量
// - GitHub 贡献日历
// - 项目仓库列表
// 三路并发加载，任一路失败只记录日志并降级为空。
package aggregate

import (
	"context"
	"sync"
	"time"

	"go-devfolio/internal/calendar"
	"go-devfolio/internal/config"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
)

// PostSource 提供已排序的文章列表。
type PostSource interface {
	Posts() []model.Post
}

// ViewCounter 提供批量浏览量。
type ViewCounter interface {
	Batch(ctx context.Context, slugs []string) map[string]int
}

// ContributionSource 提供按年份的贡献数据；出错时仍可能返回部分年份。
type ContributionSource interface {
	Contributions(ctx context.Context) (map[int]model.YearResult, error)
}

// ProjectSource 提供项目仓库信息。
type ProjectSource interface {
	Projects(ctx context.Context, projects []config.Project) []model.RepositoryInfo
}

// Runner 首页聚合执行器；任一来源可为 nil，对应部分返回空。
type Runner struct {
	cfg     *config.Config
	posts   PostSource
	views   ViewCounter
	contrib ContributionSource
	repos   ProjectSource
	now     func() time.Time
}

// New 创建 Runner。
func New(cfg *config.Config, posts PostSource, views ViewCounter, contrib ContributionSource, repos ProjectSource) *Runner {
	return &Runner{cfg: cfg, posts: posts, views: views, contrib: contrib, repos: repos, now: time.Now}
}

// WithClock 替换年龄计算使用的时钟。
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Home 并发加载首页三部分数据。
func (r *Runner) Home(ctx context.Context) model.Home {
	start := time.Now()
	buf := NewBuffer()
	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					logx.Errorf("首页数据加载异常：%s %v", name, v)
				}
			}()
			fn()
		}()
	}
	run("articles", func() { buf.SetArticles(r.articles(ctx)) })
	run("github", func() { buf.SetContributions(r.contributions(ctx)) })
	run("projects", func() { buf.SetProjects(r.projects(ctx)) })
	wg.Wait()
	home := buf.Snapshot()
	home.Age = r.age()
	logx.Infof("首页数据加载完成：文章=%d 年份=%d 项目=%d 耗时=%s",
		len(home.Articles), len(home.Contributions), len(home.Projects), time.Since(start).Round(time.Millisecond))
	return home
}

func (r *Runner) articles(ctx context.Context) []model.Post {
	if r.posts == nil {
		return nil
	}
	posts := r.posts.Posts()
	if r.views == nil || len(posts) == 0 {
		return posts
	}
	slugs := make([]string, len(posts))
	for i, p := range posts {
		slugs[i] = p.Slug
	}
	counts := r.views.Batch(ctx, slugs)
	for i := range posts {
		posts[i].Views = counts[posts[i].Slug]
	}
	return posts
}

func (r *Runner) contributions(ctx context.Context) map[int]model.YearResult {
	if r.contrib == nil {
		return nil
	}
	years, err := r.contrib.Contributions(ctx)
	if err != nil {
		logx.Warnf("部分年份贡献加载失败：已加载=%d 错误=%v", len(years), err)
	}
	return years
}

func (r *Runner) projects(ctx context.Context) []model.RepositoryInfo {
	if r.repos == nil || r.cfg == nil || len(r.cfg.Projects) == 0 {
		return nil
	}
	return r.repos.Projects(ctx, r.cfg.Projects)
}

func (r *Runner) age() int {
	if r.cfg == nil || r.cfg.Site.BirthDate == "" {
		return 0
	}
	birth, err := calendar.ParseISO(r.cfg.Site.BirthDate)
	if err == nil {
		var age int
		if age, err = calendar.CalculateAge(birth, r.now()); err == nil {
			return age
		}
	}
	logx.Warnf("生日配置无效：%s %v", r.cfg.Site.BirthDate, err)
	return 0
}
