// 包 mdx 将博客 Markdown 渲染为 HTML，并同时产出目录标题、代码块与阅读时长等元数据。
//
// 处理顺序固定：Markdown 解析、引号规整、转为 HTML 树、标题 id 与锚点、
// 图片改写、代码高亮、代码块标题整理、行标记与复制文本、文本修正、序列化。
// 任一阶段出错即整体失败，不返回部分结果。
package mdx

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"

	"go-devfolio/internal/model"
)

// ErrPipeline 包装处理过程中任何阶段的错误。
var ErrPipeline = errors.New("mdx pipeline failed")

// Options 为处理器参数。
type Options struct {
	// Images 为图片元数据索引，可为 nil
	Images *ImageIndex
	Theme  string
	WPM    int
}

// Processor 可被多个 goroutine 并发使用。
type Processor struct {
	md     goldmark.Markdown
	hl     *highlighter
	images *ImageIndex
	wpm    int
}

// New 创建处理器；主题不存在时返回错误。
func New(opts Options) (*Processor, error) {
	hl, err := newHighlighter(opts.Theme)
	if err != nil {
		return nil, err
	}
	if opts.WPM <= 0 {
		opts.WPM = DefaultWPM
	}
	return &Processor{md: newMarkdown(), hl: hl, images: opts.Images, wpm: opts.WPM}, nil
}

// Process 渲染 Markdown 正文（不含 frontmatter）。
func (p *Processor) Process(source []byte) (*model.ProcessedContent, error) {
	out, err := p.process(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	return out, nil
}

func (p *Processor) process(source []byte) (*model.ProcessedContent, error) {
	reader := text.NewReader(source)
	doc := p.md.Parser().Parse(reader)
	rt := ReadingTime(collectWords(doc, source), p.wpm)

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	body, err := parseBody(buf.Bytes())
	if err != nil {
		return nil, err
	}
	dom := goquery.NewDocumentFromNode(body)

	assignHeadingIDs(dom)
	slugHeadings(dom)
	linkHeadings(dom)
	optimizeImages(dom, p.images)
	if err := p.hl.highlightAll(codeBlocks(dom)); err != nil {
		return nil, fmt.Errorf("highlight: %w", err)
	}
	reconcileCaptions(dom)
	removeCaptions(dom)
	headings := collectHeadings(dom)
	blocks, err := renderCode(codeBlocks(dom))
	if err != nil {
		return nil, err
	}
	rawifyText(body)

	htmlOut, err := renderChildren(body)
	if err != nil {
		return nil, err
	}
	return &model.ProcessedContent{
		HTML:        htmlOut,
		Headings:    headings,
		CodeBlocks:  blocks,
		ReadingTime: rt,
	}, nil
}
