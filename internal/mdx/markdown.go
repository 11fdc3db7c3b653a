package mdx

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(quoteTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(codeBlockRenderer{}, 100)),
		),
	)
}

// quoteTransformer 将正文中的弯引号替换为 ASCII 引号，行内代码不处理。
type quoteTransformer struct{}

func (quoteTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	var targets []*ast.Text
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() == ast.KindCodeSpan {
			return ast.WalkSkipChildren, nil
		}
		if t, ok := n.(*ast.Text); ok && bytes.ContainsAny(t.Segment.Value(source), "“”‘’") {
			targets = append(targets, t)
		}
		return ast.WalkContinue, nil
	})
	for _, t := range targets {
		replaceText(t, source)
	}
}

// replaceText 用 String 节点替换 Text，并以空段保留原有的换行标记。
func replaceText(t *ast.Text, source []byte) {
	parent := t.Parent()
	if parent == nil {
		return
	}
	s := ast.NewString([]byte(quoteReplacer.Replace(string(t.Segment.Value(source)))))
	if t.IsRaw() {
		s.SetRaw(true)
	}
	parent.ReplaceChild(parent, t, s)
	if t.SoftLineBreak() || t.HardLineBreak() {
		tail := ast.NewTextSegment(text.NewSegment(t.Segment.Stop, t.Segment.Stop))
		tail.SetSoftLineBreak(t.SoftLineBreak())
		tail.SetHardLineBreak(t.HardLineBreak())
		parent.InsertAfter(parent, s, tail)
	}
}

// collectWords 拼接文本节点与代码块内容，供阅读时长统计；节点之间以空格分隔。
func collectWords(doc ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.CodeSpan:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := v.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			b.WriteByte(' ')
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			b.WriteByte(' ')
		case *ast.String:
			b.Write(v.Value)
			b.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// codeBlockRenderer 输出围栏代码块，信息串中语言之后的部分写入 data-meta，
// 供高亮阶段读取标题、行号与高亮行。
type codeBlockRenderer struct{}

func (r codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	_, _ = w.WriteString("<pre><code")
	if lang := n.Language(source); lang != nil {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML(lang))
		_ = w.WriteByte('"')
	}
	if n.Info != nil {
		info := n.Info.Segment.Value(source)
		if i := bytes.IndexAny(info, " \t"); i > 0 {
			if meta := bytes.TrimSpace(info[i+1:]); len(meta) > 0 {
				_, _ = w.WriteString(` data-meta="`)
				_, _ = w.Write(util.EscapeHTML(meta))
				_ = w.WriteByte('"')
			}
		}
	}
	_ = w.WriteByte('>')
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	return ast.WalkContinue, nil
}
