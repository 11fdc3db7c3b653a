// 包 server 提供站点后端的 HTTP 接口（chi 路由）。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"go-devfolio/internal/aggregate"
	"go-devfolio/internal/blog"
	"go-devfolio/internal/changelog"
	"go-devfolio/internal/config"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/mdx"
	"go-devfolio/internal/views"
)

// Deps 为路由依赖；Contributions/Projects 可为 nil，对应接口返回空数据。
type Deps struct {
	Config        *config.Config
	Blog          *blog.Repository
	Processor     *mdx.Processor
	Views         *views.Tracker
	Changelog     *changelog.Log
	Contributions aggregate.ContributionSource
	Projects      aggregate.ProjectSource
	// Now 为 RSS 构建时间与年龄计算的时钟，默认 time.Now。
	Now func() time.Time
}

type Server struct {
	d      Deps
	home   *aggregate.Runner
	router chi.Router
}

func New(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{d: d}
	// nil 指针不能直接转为接口，否则 Runner 无法识别缺失的来源
	var posts aggregate.PostSource
	if d.Blog != nil {
		posts = d.Blog
	}
	var counter aggregate.ViewCounter
	if d.Views != nil {
		counter = d.Views
	}
	s.home = aggregate.New(d.Config, posts, counter, d.Contributions, d.Projects).WithClock(d.Now)
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if t := s.d.Config.HTTP.Timeout; t > 0 {
		r.Use(middleware.Timeout(t))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/rss.xml", s.handleRSS)
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Route("/api", func(r chi.Router) {
		r.Get("/home", s.handleHome)
		r.Get("/blog", s.handleBlogList)
		r.Get("/blog/{slug}", s.handleBlogPost)
		r.Get("/series", s.handleSeries)
		r.Get("/tags", s.handleTags)
		r.Post("/views/{slug}", s.handleTrackView)
		r.Get("/github/contributions", s.handleContributions)
		r.Get("/github/projects", s.handleProjects)
		r.Get("/changelog", s.handleChangelog)
		r.Get("/changelog/latest", s.handleChangelogLatest)
		r.Get("/changelog/{version}", s.handleChangelogEntry)
	})
	return r
}

// Run 启动 HTTP 服务，ctx 取消后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	cfg := s.d.Config.HTTP
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout + 5*time.Second,
		IdleTimeout:  cfg.Timeout * 2,
	}
	errCh := make(chan error, 1)
	go func() {
		logx.Infof("HTTP 服务启动：%s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen %s: %w", cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logx.Infof("HTTP 服务关闭中")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logx.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warnf("写出响应失败：%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeXML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=3600, s-maxage=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
