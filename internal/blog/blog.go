// 包 blog 从目录加载文章：解析 frontmatter、校验、补齐阅读时长，
// 并提供列表、单篇渲染、系列与标签查询。
package blog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"go-devfolio/internal/calendar"
	"go-devfolio/internal/config"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/mdx"
	"go-devfolio/internal/model"
)

var ErrNotFound = errors.New("post not found")

// 支持的文章扩展名。
var extensions = []string{".mdx", ".md"}

type entry struct {
	post      model.Post
	body      []byte
	published time.Time
}

// Repository 为只读的文章集合，加载后不再修改。
type Repository struct {
	posts  []entry
	bySlug map[string]int
}

// Load 读取 dir 下的文章；dev 为 true 时包含草稿。
func Load(dir string, dev bool) (*Repository, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("stat blog dir %s: %w", dir, err)
	}
	return LoadFS(os.DirFS(dir), dev)
}

// LoadFS 同 Load，只扫描根目录，不递归。
func LoadFS(fsys fs.FS, dev bool) (*Repository, error) {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read blog dir: %w", err)
	}
	r := &Repository{bySlug: map[string]int{}}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		slug, ok := slugOf(f.Name())
		if !ok {
			continue
		}
		if _, dup := r.bySlug[slug]; dup {
			logx.Warnf("文章 slug 重复，已跳过：%s", f.Name())
			continue
		}
		e, err := readPost(fsys, f.Name(), slug)
		if err != nil {
			logx.Errorf("加载文章失败：%s 错误=%v", f.Name(), err)
			continue
		}
		if e.post.Frontmatter.Draft && !dev {
			logx.Debugf("跳过草稿：%s", slug)
			continue
		}
		r.bySlug[slug] = len(r.posts)
		r.posts = append(r.posts, e)
	}
	sort.SliceStable(r.posts, func(i, j int) bool {
		a, b := r.posts[i], r.posts[j]
		if !a.published.Equal(b.published) {
			return a.published.After(b.published)
		}
		return a.post.Slug < b.post.Slug
	})
	for i, e := range r.posts {
		r.bySlug[e.post.Slug] = i
	}
	logx.Infof("已加载文章 %d 篇", len(r.posts))
	return r, nil
}

func slugOf(name string) (string, bool) {
	ext := path.Ext(name)
	for _, want := range extensions {
		if ext == want {
			slug := strings.TrimSuffix(name, ext)
			return slug, slug != ""
		}
	}
	return "", false
}

func readPost(fsys fs.FS, name, slug string) (entry, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return entry{}, fmt.Errorf("read %s: %w", name, err)
	}
	var fm model.Frontmatter
	body, err := frontmatter.Parse(bytes.NewReader(raw), &fm)
	if err != nil {
		return entry{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	published, err := validate(&fm)
	if err != nil {
		return entry{}, fmt.Errorf("validate frontmatter: %w", err)
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}
	if fm.ReadingTime == nil {
		rt := mdx.ReadingTime(string(body), mdx.DefaultWPM)
		fm.ReadingTime = &rt
	}
	return entry{
		post:      model.Post{Slug: slug, Frontmatter: fm},
		body:      body,
		published: published,
	}, nil
}

// validate 校验必填字段并返回解析后的发布时间。
func validate(fm *model.Frontmatter) (time.Time, error) {
	var published time.Time
	err := validation.ValidateStruct(fm,
		validation.Field(&fm.Title, validation.Required),
		validation.Field(&fm.PublishedAt, validation.Required, validation.By(func(v any) error {
			t, err := ParseDate(v.(string))
			if err != nil {
				return err
			}
			published = t
			return nil
		})),
		validation.Field(&fm.UpdatedAt, validation.By(func(v any) error {
			if s := v.(string); s != "" {
				_, err := ParseDate(s)
				return err
			}
			return nil
		})),
		validation.Field(&fm.Tags, validation.Each(validation.Required)),
		validation.Field(&fm.SeriesOrder, validation.When(fm.Series != "", validation.Required, validation.Min(1))),
	)
	return published, err
}

// ParseDate 解析 frontmatter 中的日期（YYYY-MM-DD[THH:MM:SS] 或 RFC3339）。
func ParseDate(s string) (time.Time, error) {
	if t, err := calendar.ParseISO(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, validation.NewError("validation_invalid_date", "must be an ISO date")
	}
	return t.UTC(), nil
}

// Posts 返回按发布时间倒序的文章列表（副本）。
func (r *Repository) Posts() []model.Post {
	out := make([]model.Post, len(r.posts))
	for i, e := range r.posts {
		out[i] = e.post
	}
	return out
}

func (r *Repository) Len() int { return len(r.posts) }

// Get 返回文章条目与正文（不含 frontmatter）。
func (r *Repository) Get(slug string) (model.Post, []byte, error) {
	i, ok := r.bySlug[slug]
	if !ok {
		return model.Post{}, nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	e := r.posts[i]
	return e.post, e.body, nil
}

// Render 渲染单篇文章；浏览量由调用方填充。
func (r *Repository) Render(p *mdx.Processor, slug string) (model.Article, error) {
	post, body, err := r.Get(slug)
	if err != nil {
		return model.Article{}, err
	}
	content, err := p.Process(body)
	if err != nil {
		return model.Article{}, fmt.Errorf("render %s: %w", slug, err)
	}
	return model.Article{Slug: slug, Frontmatter: post.Frontmatter, Content: content}, nil
}

// Series 按配置组装系列，系列内按 seriesOrder 升序；没有文章的系列不返回。
func (r *Repository) Series(configs []config.SeriesEntry) []model.Series {
	out := make([]model.Series, 0, len(configs))
	for _, c := range configs {
		var posts []model.Post
		for _, e := range r.posts {
			if e.post.Frontmatter.Series == c.Slug {
				posts = append(posts, e.post)
			}
		}
		if len(posts) == 0 {
			continue
		}
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].Frontmatter.SeriesOrder < posts[j].Frontmatter.SeriesOrder
		})
		out = append(out, model.Series{
			Slug:        c.Slug,
			Title:       c.Title,
			Description: c.Description,
			Image:       c.Image,
			Posts:       posts,
			TotalPosts:  len(posts),
		})
	}
	return out
}

// Tags 返回标签到文章数的映射。
func (r *Repository) Tags() map[string]int {
	out := map[string]int{}
	for _, e := range r.posts {
		for _, t := range e.post.Frontmatter.Tags {
			out[t]++
		}
	}
	return out
}
