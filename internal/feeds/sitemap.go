package feeds

import (
	"encoding/xml"
	"strings"

	"go-devfolio/internal/blog"
	"go-devfolio/internal/config"
	"go-devfolio/internal/model"
)

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Sitemap 生成 sitemap.xml：静态路径在前，文章按传入顺序在后。
// 文章 lastmod 取 updatedAt，缺失时取 publishedAt。
func Sitemap(site config.Site, staticPaths []string, posts []model.Post) ([]byte, error) {
	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range staticPaths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		set.URLs = append(set.URLs, sitemapURL{Loc: site.URL + p})
	}
	for _, p := range posts {
		u := sitemapURL{Loc: PostURL(site, p.Slug)}
		mod := p.Frontmatter.UpdatedAt
		if mod == "" {
			mod = p.Frontmatter.PublishedAt
		}
		if t, err := blog.ParseDate(mod); err == nil {
			u.LastMod = t.Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}
	return marshal(set)
}
