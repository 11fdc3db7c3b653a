package mdx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"go-devfolio/internal/model"
)

var (
	addMarkers = []string{"# ++add", "// ++add", "#++add", "//++add"}
	delMarkers = []string{"# --del", "// --del", "#--del", "//--del"}
)

// reconcileCaptions 把 figcaption 上的标题、语言、主题移到 pre 上并删除 figcaption，
// 同时把行号标记从 code 传递到 pre。
func reconcileCaptions(doc *goquery.Document) {
	doc.Find("figure[data-rehype-pretty-code-figure]").Each(func(_ int, s *goquery.Selection) {
		fig := s.Get(0)
		var caption, pre *html.Node
		for c := fig.FirstChild; c != nil; c = c.NextSibling {
			switch c.DataAtom {
			case atom.Figcaption:
				caption = c
			case atom.Pre:
				pre = c
			}
		}
		if pre == nil {
			return
		}
		if caption != nil {
			if t := firstText(caption); t != nil && t.Data != "" {
				setAttr(pre, "title", t.Data)
			}
			if lang, _ := getAttr(caption, "data-language"); lang != "" {
				setAttr(pre, "language", lang)
				setAttr(pre, "data-language", lang)
			}
			if theme, _ := getAttr(caption, "data-theme"); theme != "" {
				setAttr(pre, "data-theme", theme)
			}
		}
		if code := pre.FirstChild; code != nil && code.DataAtom == atom.Code {
			if hasAttr(code, "data-line-numbers") {
				setAttr(pre, "data-line-numbers", "")
				digits, _ := getAttr(code, "data-line-numbers-max-digits")
				setAttr(pre, "data-line-numbers-max-digits", digits)
			}
			if lang, _ := getAttr(pre, "language"); lang != "" {
				setAttr(code, "data-language", lang)
			}
			if theme, _ := getAttr(pre, "data-theme"); theme != "" {
				setAttr(code, "data-theme", theme)
			}
			if hasAttr(code, "data-line-numbers") {
				setAttr(code, "style", "display: grid;")
			}
		}
		if caption != nil {
			fig.RemoveChild(caption)
		}
	})
}

// removeCaptions 删除剩余的 figcaption。
func removeCaptions(doc *goquery.Document) {
	doc.Find("figcaption").Remove()
}

// markLines 识别行尾的 ++add / --del 标记：去掉标记文本并标记整行。
func markLines(code *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.DataAtom == atom.Span && hasAttr(c, "data-line") {
				markLine(c)
			}
			walk(c)
		}
	}
	walk(code)
}

func markLine(line *html.Node) {
	var add, del bool
	for c := line.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom != atom.Span {
			continue
		}
		t := firstText(c)
		if t == nil || t.Data == "" {
			continue
		}
		for _, m := range addMarkers {
			if strings.Contains(t.Data, m) {
				add = true
				t.Data = strings.TrimSpace(strings.Replace(t.Data, m, "", 1))
			}
		}
		for _, m := range delMarkers {
			if strings.Contains(t.Data, m) {
				del = true
				t.Data = strings.TrimSpace(strings.Replace(t.Data, m, "", 1))
			}
		}
	}
	switch {
	case add:
		setAttr(line, "data-highlighted-line-id", "add")
		setAttr(line, "data-highlighted-line", "")
	case del:
		setAttr(line, "data-highlighted-line-id", "remove")
		setAttr(line, "data-highlighted-line", "")
	}
}

var tabs = strings.NewReplacer("\t", "    ")

// renderCode 处理每个代码块：行标记、data-code 复制文本、code 序列化为原样输出节点；
// 同时按文档顺序收集代码块元数据。
func renderCode(pres []*html.Node) ([]model.CodeBlock, error) {
	blocks := make([]model.CodeBlock, 0, len(pres))
	for i, pre := range pres {
		code := firstElement(pre)
		plain := plainText(code)
		if lang, _ := getAttr(pre, "data-language"); lang != "md" {
			markLines(code)
		}

		var outer, inner bytes.Buffer
		if err := html.Render(&outer, code); err != nil {
			return nil, fmt.Errorf("render code block %d: %w", i, err)
		}
		for c := code.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&inner, c); err != nil {
				return nil, fmt.Errorf("render code block %d: %w", i, err)
			}
		}

		// data-code 存放纯文本，序列化时统一转义
		setAttr(pre, "data-code", plain)

		title, _ := getAttr(pre, "title")
		blocks = append(blocks, model.CodeBlock{
			Index:    i,
			Title:    title,
			Language: blockLanguage(pre, code),
			Code:     tabs.Replace(inner.String()),
		})

		raw := &html.Node{Type: html.RawNode, Data: tabs.Replace(outer.String())}
		pre.InsertBefore(raw, code)
		pre.RemoveChild(code)
	}
	return blocks, nil
}

// blockLanguage 依次取 pre 的 language、pre 的 data-language、code 的 data-language。
func blockLanguage(pre, code *html.Node) string {
	for _, v := range []struct {
		n   *html.Node
		key string
	}{{pre, "language"}, {pre, "data-language"}, {code, "data-language"}} {
		if lang, _ := getAttr(v.n, v.key); lang != "" {
			return lang
		}
	}
	return ""
}

// rawifyText 将去掉首尾空白后以 "<" 开头的文本节点改为原样输出；行内 code 中的文本除外。
func rawifyText(root *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if strings.HasPrefix(strings.TrimSpace(c.Data), "<") {
					c.Type = html.RawNode
				}
			case html.ElementNode:
				if c.DataAtom == atom.Code {
					continue
				}
				walk(c)
			}
		}
	}
	walk(root)
}
