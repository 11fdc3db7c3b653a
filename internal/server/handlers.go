package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-devfolio/internal/blog"
	"go-devfolio/internal/feeds"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.home.Home(r.Context()))
}

func (s *Server) postsWithViews(r *http.Request) []model.Post {
	posts := s.d.Blog.Posts()
	slugs := make([]string, len(posts))
	for i, p := range posts {
		slugs[i] = p.Slug
	}
	counts := s.d.Views.Batch(r.Context(), slugs)
	for i := range posts {
		posts[i].Views = counts[posts[i].Slug]
	}
	return posts
}

func (s *Server) handleBlogList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.postsWithViews(r))
}

// handleBlogPost 渲染文章并记录一次浏览；文章不存在或渲染失败均返回 404。
func (s *Server) handleBlogPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	article, err := s.d.Blog.Render(s.d.Processor, slug)
	if err != nil {
		if !errors.Is(err, blog.ErrNotFound) {
			logx.Errorf("文章渲染失败：%s 错误=%v", slug, err)
		}
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	article.Views = s.d.Views.Track(r.Context(), slug, r.UserAgent())
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleSeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Blog.Series(s.d.Config.Series))
}

func (s *Server) handleTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Blog.Tags())
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, _, err := s.d.Blog.Get(slug); err != nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	n := s.d.Views.Track(r.Context(), slug, r.UserAgent())
	writeJSON(w, http.StatusOK, map[string]any{"slug": slug, "views": n})
}

func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	out := map[int]model.YearResult{}
	if s.d.Contributions != nil {
		years, err := s.d.Contributions.Contributions(r.Context())
		if err != nil {
			logx.Warnf("部分年份贡献加载失败：%v", err)
		}
		for y, res := range years {
			out[y] = res
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	out := []model.RepositoryInfo{}
	if s.d.Projects != nil && len(s.d.Config.Projects) > 0 {
		out = append(out, s.d.Projects.Projects(r.Context(), s.d.Config.Projects)...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChangelog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Changelog.Changelog)
}

func (s *Server) handleChangelogLatest(w http.ResponseWriter, _ *http.Request) {
	v := s.d.Changelog.Latest()
	resp := map[string]any{"version": v}
	if e, ok := s.d.Changelog.Entry(v); ok {
		resp["entry"] = e
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChangelogEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.d.Changelog.Entry(chi.URLParam(r, "version"))
	if !ok {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRSS(w http.ResponseWriter, _ *http.Request) {
	body, err := feeds.RSS(s.d.Config.Site, s.d.Blog.Posts(), s.d.Now())
	if err != nil {
		logx.Errorf("生成 RSS 失败：%v", err)
		writeError(w, http.StatusInternalServerError, "rss unavailable")
		return
	}
	writeXML(w, body)
}

func (s *Server) handleSitemap(w http.ResponseWriter, _ *http.Request) {
	body, err := feeds.Sitemap(s.d.Config.Site, s.d.Config.Site.StaticPaths, s.d.Blog.Posts())
	if err != nil {
		logx.Errorf("生成 sitemap 失败：%v", err)
		writeError(w, http.StatusInternalServerError, "sitemap unavailable")
		return
	}
	writeXML(w, body)
}
