package mdx

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/goliatone/go-slug"

	"go-devfolio/internal/model"
)

const headingSelector = "h1, h2, h3, h4, h5, h6"

var idStrip = regexp.MustCompile(`[^a-z0-9-]`)

// headingID 由标题文本生成 id：转小写、空格换成连字符、去掉 [a-z0-9-] 以外的字符。
func headingID(text string) string {
	id := strings.Join(strings.Split(strings.ToLower(text), " "), "-")
	return idStrip.ReplaceAllString(id, "")
}

// unicodeSlug 转小写，保留字母、数字与连字符，空白换成连字符。
func unicodeSlug(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// assignHeadingIDs 为每个标题写入 id 与 headerTag。
func assignHeadingIDs(doc *goquery.Document) {
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		setAttr(n, "id", headingID(s.Text()))
		setAttr(n, "headerTag", n.Data)
	})
}

// slugHeadings 只为 id 为空的标题补充 slug，重复时追加 -1、-2 ...
func slugHeadings(doc *goquery.Document) {
	seen := map[string]int{}
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id, _ := s.Attr("id"); id != "" {
			seen[id]++
		}
	})
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		if id, _ := s.Attr("id"); id != "" {
			return
		}
		text := strings.TrimSpace(s.Text())
		base, err := slug.Normalize(text)
		if err != nil || base == "" {
			// Normalize 会丢弃非拉丁字符，此时保留原文字母与数字
			base = unicodeSlug(text)
		}
		if base == "" {
			return
		}
		id := base
		for i := 1; seen[id] > 0; i++ {
			id = base + "-" + strconv.Itoa(i)
		}
		seen[id]++
		s.SetAttr("id", id)
	})
}

// linkHeadings 把带 id 的标题内容包进指向自身的锚点。
func linkHeadings(doc *goquery.Document) {
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if id == "" {
			return
		}
		h := s.Get(0)
		a := el("a", "class", "link-hover", "href", "#"+id)
		moveChildren(h, a)
		h.AppendChild(a)
	})
}

// collectHeadings 收集带 id 的 h2/h3，用于目录。
func collectHeadings(doc *goquery.Document) []model.Heading {
	out := []model.Heading{}
	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		id, _ := getAttr(n, "id")
		if id == "" {
			return
		}
		level := 2
		if n.Data == "h3" {
			level = 3
		}
		out = append(out, model.Heading{ID: id, Text: plainText(n), Level: level})
	})
	return out
}
