package mdx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func newTestProcessor(t *testing.T, images *ImageIndex) *Processor {
	t.Helper()
	p, err := New(Options{Images: images})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p
}

func process(t *testing.T, p *Processor, src string) (*goquery.Document, string) {
	t.Helper()
	out, err := p.Process([]byte(src))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out.HTML))
	if err != nil {
		t.Fatalf("reparse output: %v", err)
	}
	return doc, out.HTML
}

func TestReadingTime(t *testing.T) {
	rt := ReadingTime(strings.Repeat("word ", 400), 200)
	if rt.Minutes != 2 || rt.Words != 400 || rt.Text != "2 min read" || rt.Time != 120000 {
		t.Fatalf("reading time = %+v", rt)
	}
	if rt := ReadingTime("  one\ttwo\n three ", 0); rt.Words != 3 || rt.Minutes != 1 {
		t.Fatalf("default wpm = %+v", rt)
	}
	if rt := ReadingTime("", 200); rt.Words != 0 || rt.Minutes != 0 {
		t.Fatalf("empty = %+v", rt)
	}
}

func TestProcess_Headings(t *testing.T) {
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte("# Title\n\n## Hello World\n\n### Sub *part* 2\n\n#### Deep\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(out.Headings) != 2 {
		t.Fatalf("headings = %+v, want h2 and h3 only", out.Headings)
	}
	h := out.Headings[0]
	if h.Level != 2 || h.ID != "hello-world" || h.Text != "Hello World" {
		t.Fatalf("heading = %+v", h)
	}
	if h := out.Headings[1]; h.Level != 3 || h.ID != "sub-part-2" || h.Text != "Sub part 2" {
		t.Fatalf("heading = %+v", h)
	}
	want := `<h2 id="hello-world" headerTag="h2"><a class="link-hover" href="#hello-world">Hello World</a></h2>`
	if !strings.Contains(out.HTML, want) {
		t.Fatalf("html missing %s:\n%s", want, out.HTML)
	}
}

func TestProcess_CodeBlockIndexes(t *testing.T) {
	src := "intro\n\n```ts\nconst a = 1\n```\n\ntext\n\n```yaml\nkey: value\n```\n\n```\nplain\n```\n"
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte(src))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(out.CodeBlocks) != 3 {
		t.Fatalf("code blocks = %d, want 3", len(out.CodeBlocks))
	}
	langs := []string{"ts", "yaml", "plaintext"}
	for i, b := range out.CodeBlocks {
		if b.Index != i {
			t.Fatalf("block %d index = %d", i, b.Index)
		}
		if b.Language != langs[i] {
			t.Fatalf("block %d language = %q, want %q", i, b.Language, langs[i])
		}
		if !strings.Contains(b.Code, `data-line=""`) {
			t.Fatalf("block %d code not highlighted: %s", i, b.Code)
		}
	}
}

func TestProcess_DiffMarkers(t *testing.T) {
	src := "```ts\nconst a = 1 // ++add\nconst b = 2 // --del\nconst c = 3\n```\n"
	p := newTestProcessor(t, nil)
	doc, html := process(t, p, src)

	lines := doc.Find("code span[data-line]")
	if lines.Length() != 3 {
		t.Fatalf("lines = %d, want 3\n%s", lines.Length(), html)
	}
	if v, _ := lines.Eq(0).Attr("data-highlighted-line-id"); v != "add" {
		t.Fatalf("line 1 id = %q", v)
	}
	if v, _ := lines.Eq(1).Attr("data-highlighted-line-id"); v != "remove" {
		t.Fatalf("line 2 id = %q", v)
	}
	if _, ok := lines.Eq(2).Attr("data-highlighted-line-id"); ok {
		t.Fatal("line 3 must not be marked")
	}
	if text := doc.Find("code").Text(); strings.Contains(text, "++add") || strings.Contains(text, "--del") {
		t.Fatalf("markers left in visible code: %q", text)
	}
	copyText, _ := doc.Find("pre").Attr("data-code")
	if !strings.Contains(copyText, "// ++add") || !strings.Contains(copyText, "// --del") {
		t.Fatalf("data-code should keep the original text, got %q", copyText)
	}
}

func TestProcess_MarkdownBlocksKeepMarkers(t *testing.T) {
	p := newTestProcessor(t, nil)
	doc, _ := process(t, p, "```md\nnote // ++add\n```\n")
	if doc.Find("[data-highlighted-line-id]").Length() != 0 {
		t.Fatal("md blocks must not be marked")
	}
	if !strings.Contains(doc.Find("code").Text(), "// ++add") {
		t.Fatal("md blocks must keep marker text")
	}
}

func TestProcess_CopyTextEscaped(t *testing.T) {
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte("```ts\nif (a < b && c) {}\n```\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(out.HTML, `data-code="if (a &lt; b &amp;&amp; c) {}"`) {
		t.Fatalf("data-code not escaped:\n%s", out.HTML)
	}
}

func TestProcess_TitleAndLineNumbers(t *testing.T) {
	src := "```ts title=\"main.ts\" showLineNumbers {2}\nconst a = 1\n\nconst b = 2\n```\n"
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte(src))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(out.CodeBlocks) != 1 {
		t.Fatalf("code blocks = %d", len(out.CodeBlocks))
	}
	b := out.CodeBlocks[0]
	if b.Title != "main.ts" || b.Language != "ts" {
		t.Fatalf("block = %+v", b)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out.HTML))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if doc.Find("figcaption").Length() != 0 {
		t.Fatal("figcaption must be removed")
	}
	pre := doc.Find("figure[data-rehype-pretty-code-figure] > pre")
	for attr, want := range map[string]string{
		"title":                        "main.ts",
		"language":                     "ts",
		"data-language":                "ts",
		"data-theme":                   DefaultTheme,
		"data-line-numbers":            "",
		"data-line-numbers-max-digits": "1",
	} {
		if v, ok := pre.Attr(attr); !ok || v != want {
			t.Fatalf("pre[%s] = %q (%v), want %q", attr, v, ok, want)
		}
	}
	if style, _ := doc.Find("pre > code").Attr("style"); style != "display: grid;" {
		t.Fatalf("code style = %q", style)
	}
	lines := doc.Find("span[data-line]")
	if lines.Length() != 3 || lines.Eq(1).Text() != " " {
		t.Fatalf("blank line should hold a single space, got %d lines", lines.Length())
	}
	if _, ok := lines.Eq(1).Attr("data-highlighted-line"); !ok {
		t.Fatal("meta range {2} should highlight line 2")
	}
}

func TestProcess_NotationHighlight(t *testing.T) {
	p := newTestProcessor(t, nil)
	doc, _ := process(t, p, "```bash\necho hi # [!code highlight]\necho bye\n```\n")
	lines := doc.Find("span[data-line]")
	if !lines.Eq(0).HasClass("highlighted") || lines.Eq(1).HasClass("highlighted") {
		t.Fatal("notation should highlight only the first line")
	}
	if strings.Contains(doc.Find("code").Text(), "[!code") {
		t.Fatal("notation comment should be removed")
	}
}

func TestProcess_UnknownLanguageFallsBack(t *testing.T) {
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte("```rust\nfn main() {}\n```\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.CodeBlocks[0].Language != "rust" || !strings.Contains(out.CodeBlocks[0].Code, "fn main() {}") {
		t.Fatalf("block = %+v", out.CodeBlocks[0])
	}
}

func TestProcess_Quotes(t *testing.T) {
	p := newTestProcessor(t, nil)
	doc, _ := process(t, p, "He said “hi” and ‘bye’\nwith `“code”`.\n")
	text := doc.Find("p").Text()
	if !strings.Contains(text, `He said "hi" and 'bye'`) {
		t.Fatalf("quotes not normalized: %q", text)
	}
	if !strings.Contains(text, "“code”") {
		t.Fatalf("inline code must keep its quotes: %q", text)
	}
	if !strings.Contains(text, "'bye'\nwith") {
		t.Fatalf("soft line break lost: %q", text)
	}
}

func TestProcess_RawHTMLPassesThrough(t *testing.T) {
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte("<div class=\"note\">hi</div>\n\nafter\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(out.HTML, `<div class="note">hi</div>`) {
		t.Fatalf("raw html lost:\n%s", out.HTML)
	}
}

func TestProcess_ReadingTime(t *testing.T) {
	p := newTestProcessor(t, nil)
	src := "# Title\n\n" + strings.Repeat("word ", 300) + "\n\n```ts\n" + strings.Repeat("x ", 100) + "\n```\n"
	out, err := p.Process([]byte(src))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.ReadingTime.Words != 401 || out.ReadingTime.Minutes != 3 {
		t.Fatalf("reading time = %+v", out.ReadingTime)
	}
}

func writeMeta(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
}

func TestProcess_Images(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "images-metadata.json")
	writeMeta(t, path, `{
  "/images/blog/cover": {"width": 800, "height": 600, "aspectRatio": 1.333, "formats": ["webp", "avif", "png"]},
  "/images/blog/plain": {"width": 10, "height": 20, "aspectRatio": 0.5, "formats": ["png"]}
}`)
	idx := NewImageIndex(path)
	p := newTestProcessor(t, idx)
	doc, html := process(t, p,
		"![cover](/images/blog/cover.png)\n\n![plain](/images/blog/plain.png)\n\n![none](/images/blog/none.jpg)\n\n![ext](https://example.com/a.png)\n")

	pics := doc.Find("picture.optimized-image")
	if pics.Length() != 1 {
		t.Fatalf("pictures = %d, want 1\n%s", pics.Length(), html)
	}
	sources := pics.Find("source")
	if sources.Length() != 2 {
		t.Fatalf("sources = %d", sources.Length())
	}
	if v, _ := sources.Eq(0).Attr("type"); v != "image/avif" {
		t.Fatalf("first source = %q, want avif", v)
	}
	if v, _ := sources.Eq(1).Attr("srcset"); v != "/images/blog/cover.webp" {
		t.Fatalf("second srcset = %q", v)
	}
	img := pics.Find("img")
	for attr, want := range map[string]string{
		"src":      "/images/blog/cover.png",
		"width":    "800",
		"height":   "600",
		"loading":  "lazy",
		"decoding": "async",
		"style":    "max-width: 100%; height: auto; aspect-ratio: 800 / 600;",
	} {
		if v, _ := img.Attr(attr); v != want {
			t.Fatalf("img[%s] = %q, want %q", attr, v, want)
		}
	}

	plain := doc.Find(`img[alt="plain"]`)
	if plain.Parent().Is("picture") {
		t.Fatal("image without modern formats must not be wrapped")
	}
	if v, _ := plain.Attr("width"); v != "10" {
		t.Fatalf("plain width = %q", v)
	}
	if v, _ := doc.Find(`img[alt="none"]`).Attr("style"); v != "max-width: 100%; height: auto;" {
		t.Fatalf("missing metadata style = %q", v)
	}
	if _, ok := doc.Find(`img[alt="ext"]`).Attr("loading"); ok {
		t.Fatal("external images must be untouched")
	}
}

func TestImageIndex_MissingFile(t *testing.T) {
	idx := NewImageIndex(filepath.Join(t.TempDir(), "nope.json"))
	if idx.Len() != 0 {
		t.Fatal("missing file should give an empty index")
	}
	if _, ok := idx.Lookup("/images/a"); ok {
		t.Fatal("unexpected hit")
	}
}

func TestImageIndex_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "images-metadata.json")
	writeMeta(t, path, `{}`)
	idx := NewImageIndex(path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		writeMeta(t, path, `{"/images/new": {"width": 1, "height": 1, "formats": []}}`)
		time.Sleep(200 * time.Millisecond)
		if _, ok := idx.Lookup("/images/new"); ok {
			return
		}
	}
	t.Fatal("index was not reloaded after write")
}

func TestNew_UnknownTheme(t *testing.T) {
	if _, err := New(Options{Theme: "no-such-theme"}); err == nil {
		t.Fatal("expected error for unknown theme")
	}
}

func TestProcess_NonLatinHeadingSlugs(t *testing.T) {
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte("## 你好\n\n## 你好\n\n## !!!\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(out.Headings) != 2 {
		t.Fatalf("headings = %+v, want two with ids", out.Headings)
	}
	if out.Headings[0].ID != "你好" || out.Headings[1].ID != "你好-1" {
		t.Fatalf("ids = %q, %q", out.Headings[0].ID, out.Headings[1].ID)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out.HTML))
	if err != nil {
		t.Fatalf("reparse output: %v", err)
	}
	if href, _ := doc.Find("h2").First().Find("a.link-hover").Attr("href"); href != "#你好" {
		t.Fatalf("anchor href = %q\n%s", href, out.HTML)
	}
}

func TestUnicodeSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"你好 世界", "你好-世界"},
		{"Über Go!", "über-go"},
		{"  -- ", ""},
	}
	for _, c := range cases {
		if got := unicodeSlug(c.in); got != c.want {
			t.Errorf("unicodeSlug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestProcess_InlineCodeStaysEscaped(t *testing.T) {
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte("Use `<div>` here\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(out.HTML, "<code>&lt;div&gt;</code>") {
		t.Fatalf("inline code rawified:\n%s", out.HTML)
	}
}

func TestProcess_CopyTextEscapedOnce(t *testing.T) {
	p := newTestProcessor(t, nil)
	out, err := p.Process([]byte("```html\n<b>x</b>\n```\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(out.HTML, `data-code="&lt;b&gt;x&lt;/b&gt;"`) || strings.Contains(out.HTML, "&amp;lt;") {
		t.Fatalf("data-code escaping:\n%s", out.HTML)
	}
}
