package mdx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"

	"go-devfolio/internal/logx"
)

// DefaultTheme 为代码高亮主题。
const DefaultTheme = "github-dark"

// registeredLanguages 为预先注册的语言（含别名）到 chroma 词法器名的映射；
// 未注册的语言按纯文本输出。
var registeredLanguages = map[string]string{
	"plaintext":  "plaintext",
	"text":       "plaintext",
	"txt":        "plaintext",
	"plain":      "plaintext",
	"svelte":     "svelte",
	"typescript": "typescript",
	"ts":         "typescript",
	"bash":       "bash",
	"sh":         "bash",
	"shell":      "bash",
	"zsh":        "bash",
	"yaml":       "yaml",
	"yml":        "yaml",
	"nix":        "nix",
	"dockerfile": "dockerfile",
	"docker":     "dockerfile",
	"nginx":      "nginx",
}

var (
	titleMeta     = regexp.MustCompile(`title=(?:"([^"]*)"|'([^']*)')`)
	rangeMeta     = regexp.MustCompile(`(?:^|\s)\{([\d,\s-]+)\}`)
	lineNumsMeta  = regexp.MustCompile(`(?:^|\s)showLineNumbers(?:\{\d+\})?(?:\s|$)`)
	notationMatch = regexp.MustCompile(`\s*(?://|#|<!--|/\*)\s*\[!code (?:highlight|hl)(?::(\d+))?\]\s*(?:-->|\*/)?\s*$`)
)

// codeMeta 为围栏信息串中语言之后的部分。
type codeMeta struct {
	title       string
	lineNumbers bool
	highlighted map[int]bool // 行号从 1 开始
}

func parseCodeMeta(meta string) codeMeta {
	m := codeMeta{highlighted: map[int]bool{}}
	if sm := titleMeta.FindStringSubmatch(meta); sm != nil {
		m.title = sm[1] + sm[2]
	}
	m.lineNumbers = lineNumsMeta.MatchString(meta)
	if sm := rangeMeta.FindStringSubmatch(meta); sm != nil {
		for _, part := range strings.Split(sm[1], ",") {
			part = strings.TrimSpace(part)
			lo, hi, isRange := strings.Cut(part, "-")
			from, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				continue
			}
			to := from
			if isRange {
				if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
					continue
				}
			}
			for i := from; i <= to; i++ {
				m.highlighted[i] = true
			}
		}
	}
	return m
}

// highlighter 用固定主题为代码块生成逐行的 span 结构。
type highlighter struct {
	theme string
	style *chroma.Style
}

func newHighlighter(theme string) (*highlighter, error) {
	if theme == "" {
		theme = DefaultTheme
	}
	st, ok := styles.Registry[theme]
	if !ok {
		return nil, fmt.Errorf("unknown highlight theme %q", theme)
	}
	return &highlighter{theme: theme, style: st}, nil
}

func (h *highlighter) lexer(lang string) chroma.Lexer {
	name, ok := registeredLanguages[strings.ToLower(lang)]
	if !ok {
		if lang != "" {
			logx.Debugf("未注册的代码语言，按纯文本处理：%s", lang)
		}
		name = "plaintext"
	}
	l := lexers.Get(name)
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

// figure 将 <pre><code class="language-x" data-meta="..."> 改写为
// figure > [figcaption] + pre > code > span[data-line]* 结构。
func (h *highlighter) figure(pre *html.Node) (*html.Node, error) {
	code := firstElement(pre)
	lang := languageOf(code)
	meta, _ := getAttr(code, "data-meta")
	cm := parseCodeMeta(meta)
	source := strings.TrimSuffix(plainText(code), "\n")

	lines := strings.Split(source, "\n")
	marked := map[int]bool{}
	for i := 0; i < len(lines); i++ {
		sm := notationMatch.FindStringSubmatchIndex(lines[i])
		if sm == nil {
			continue
		}
		n := 1
		if sm[2] >= 0 {
			n, _ = strconv.Atoi(lines[i][sm[2]:sm[3]])
		}
		lines[i] = lines[i][:sm[0]]
		for j := i; j < i+n && j < len(lines); j++ {
			marked[j] = true
		}
	}
	source = strings.Join(lines, "\n")

	it, err := h.lexer(lang).Tokenise(nil, source)
	if err != nil {
		return nil, fmt.Errorf("tokenise %s: %w", lang, err)
	}
	tokenLines := chroma.SplitTokensIntoLines(it.Tokens())
	if len(tokenLines) > len(lines) {
		tokenLines = tokenLines[:len(lines)]
	}

	figure := el("figure", "data-rehype-pretty-code-figure", "")
	if cm.title != "" {
		caption := el("figcaption",
			"data-rehype-pretty-code-title", "",
			"data-language", lang,
			"data-theme", h.theme)
		caption.AppendChild(textNode(cm.title))
		figure.AppendChild(caption)
	}
	newPre := el("pre", "tabindex", "0", "data-language", lang, "data-theme", h.theme)
	newCode := el("code", "data-language", lang, "data-theme", h.theme)
	if cm.lineNumbers {
		setAttr(newCode, "data-line-numbers", "")
		setAttr(newCode, "data-line-numbers-max-digits", strconv.Itoa(len(strconv.Itoa(len(lines)))))
	}
	if len(marked) > 0 {
		setAttr(newPre, "class", "has-highlighted")
	}

	for i := range lines {
		if i > 0 {
			newCode.AppendChild(textNode("\n"))
		}
		line := el("span", "data-line", "")
		if cm.highlighted[i+1] {
			setAttr(line, "data-highlighted-line", "")
		}
		if marked[i] {
			setAttr(line, "class", "highlighted")
		}
		if i < len(tokenLines) {
			for _, tok := range tokenLines[i] {
				v := strings.TrimSuffix(tok.Value, "\n")
				if v == "" {
					continue
				}
				span := el("span")
				if css := h.css(tok.Type); css != "" {
					setAttr(span, "style", css)
				}
				span.AppendChild(textNode(v))
				line.AppendChild(span)
			}
		}
		if line.FirstChild == nil {
			line.AppendChild(textNode(" "))
		}
		newCode.AppendChild(line)
	}
	newPre.AppendChild(newCode)
	figure.AppendChild(newPre)
	return figure, nil
}

func (h *highlighter) css(tt chroma.TokenType) string {
	e := h.style.Get(tt)
	var parts []string
	if e.Colour.IsSet() {
		parts = append(parts, "color:"+e.Colour.String())
	}
	if e.Italic == chroma.Yes {
		parts = append(parts, "font-style:italic")
	}
	if e.Bold == chroma.Yes {
		parts = append(parts, "font-weight:bold")
	}
	return strings.Join(parts, ";")
}

// languageOf 读取 class="language-x" 中的语言，缺省为 plaintext。
func languageOf(code *html.Node) string {
	class, _ := getAttr(code, "class")
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok && lang != "" {
			return lang
		}
	}
	return "plaintext"
}

// highlightAll 替换文档中全部代码块。
func (h *highlighter) highlightAll(pres []*html.Node) error {
	for _, pre := range pres {
		fig, err := h.figure(pre)
		if err != nil {
			return err
		}
		pre.Parent.InsertBefore(fig, pre)
		pre.Parent.RemoveChild(pre)
	}
	return nil
}
