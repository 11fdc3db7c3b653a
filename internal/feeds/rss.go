// 包 feeds 生成站点订阅与站点地图：
// - RSS：RSS 2.0（含 atom self 链接），只保留最近 15 篇
// - Sitemap：静态页面 + 文章页，文章带 lastmod
// - Verify：用 gofeed 回读生成结果，确认可被阅读器解析
package feeds

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"go-devfolio/internal/blog"
	"go-devfolio/internal/config"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
)

// MaxItems 为 RSS 条目上限。
const MaxItems = 15

// PostPath 为文章页路径前缀。
const PostPath = "/blogs/"

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Content string     `xml:"xmlns:content,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	PubDate       string    `xml:"pubDate"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// rfc822 与浏览器 toUTCString 输出一致。
func rfc822(t time.Time) string { return t.UTC().Format(http.TimeFormat) }

// PostURL 返回文章的绝对地址。
func PostURL(site config.Site, slug string) string { return site.URL + PostPath + slug }

// RSS 生成订阅 XML；posts 需已按发布时间倒序。
func RSS(site config.Site, posts []model.Post, now time.Time) ([]byte, error) {
	if len(posts) > MaxItems {
		posts = posts[:MaxItems]
	}
	ch := rssChannel{
		Title:         site.Title,
		Link:          site.URL,
		Description:   site.Description,
		Language:      site.Language,
		PubDate:       rfc822(now),
		LastBuildDate: rfc822(now),
		Generator:     "go-devfolio",
		AtomLink:      atomLink{Href: site.URL + "/rss.xml", Rel: "self", Type: "application/rss+xml"},
		Items:         make([]rssItem, 0, len(posts)),
	}
	for _, p := range posts {
		published, err := blog.ParseDate(p.Frontmatter.PublishedAt)
		if err != nil {
			logx.Warnf("文章日期无效，已从订阅中跳过：%s 错误=%v", p.Slug, err)
			continue
		}
		link := PostURL(site, p.Slug)
		ch.Items = append(ch.Items, rssItem{
			Title:       p.Frontmatter.Title,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: "true", Value: link},
			Description: p.Frontmatter.Description,
			PubDate:     rfc822(published),
			Author:      site.Author,
			Categories:  p.Frontmatter.Tags,
		})
	}
	doc := rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Content: "http://purl.org/rss/1.0/modules/content/",
		Channel: ch,
	}
	return marshal(doc)
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
