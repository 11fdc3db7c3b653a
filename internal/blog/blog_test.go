package blog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"go-devfolio/internal/config"
	"go-devfolio/internal/mdx"
)

func post(front, body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte("---\n" + front + "---\n" + body)}
}

func sampleFS() fstest.MapFS {
	return fstest.MapFS{
		"homelab-1.mdx": post("title: Homelab part 1\ndescription: one\npublishedAt: 2024-01-10\ntags: [homelab, nix]\nseries: homelab\nseriesOrder: 1\n", "## Intro\n\nword word word\n"),
		"homelab-2.mdx": post("title: Homelab part 2\ndescription: two\npublishedAt: \"2024-03-01\"\ntags: [homelab]\nseries: homelab\nseriesOrder: 2\n", "more words here\n"),
		"latest.md":     post("title: Latest\ndescription: newest\npublishedAt: 2024-06-01T08:00:00Z\ntags: [go]\nreadingTime:\n  text: 9 min read\n  minutes: 9\n  time: 540000\n  words: 1800\n", "short\n"),
		"draft.mdx":     post("title: Draft\ndescription: wip\npublishedAt: 2024-07-01\ndraft: true\n", "todo\n"),
		"broken.mdx":    post("description: no title\npublishedAt: 2024-02-01\n", "x\n"),
		"bad-date.mdx":  post("title: Bad\npublishedAt: yesterday\n", "x\n"),
		"no-order.mdx":  post("title: Orphan\npublishedAt: 2024-02-02\nseries: homelab\n", "x\n"),
		"notes.txt":     &fstest.MapFile{Data: []byte("ignored")},
	}
}

func TestLoad_FiltersValidatesAndSorts(t *testing.T) {
	r, err := LoadFS(sampleFS(), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var slugs []string
	for _, p := range r.Posts() {
		slugs = append(slugs, p.Slug)
	}
	if got, want := strings.Join(slugs, ","), "latest,homelab-2,homelab-1"; got != want {
		t.Fatalf("slugs = %s, want %s", got, want)
	}
	latest, _, err := r.Get("latest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if latest.Frontmatter.ReadingTime == nil || latest.Frontmatter.ReadingTime.Minutes != 9 {
		t.Fatalf("explicit reading time lost: %+v", latest.Frontmatter.ReadingTime)
	}
	first, body, _ := r.Get("homelab-1")
	if rt := first.Frontmatter.ReadingTime; rt == nil || rt.Words != 5 || rt.Minutes != 1 {
		t.Fatalf("computed reading time = %+v", rt)
	}
	if strings.Contains(string(body), "title:") {
		t.Fatalf("body still contains frontmatter: %q", body)
	}
}

func TestLoad_DevIncludesDrafts(t *testing.T) {
	r, err := LoadFS(sampleFS(), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Len() != 4 || r.Posts()[0].Slug != "draft" {
		t.Fatalf("dev posts = %+v", r.Posts())
	}
}

func TestGet_NotFound(t *testing.T) {
	r, _ := LoadFS(sampleFS(), false)
	if _, _, err := r.Get("draft"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("draft should be hidden, err = %v", err)
	}
	if _, _, err := r.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestSeriesAndTags(t *testing.T) {
	r, _ := LoadFS(sampleFS(), false)
	series := r.Series([]config.SeriesEntry{
		{Slug: "homelab", Title: "Homelab Adventures"},
		{Slug: "empty", Title: "Nothing"},
	})
	if len(series) != 1 {
		t.Fatalf("series = %+v", series)
	}
	s := series[0]
	if s.TotalPosts != 2 || s.Posts[0].Slug != "homelab-1" || s.Posts[1].Slug != "homelab-2" {
		t.Fatalf("series posts = %+v", s.Posts)
	}
	tags := r.Tags()
	if tags["homelab"] != 2 || tags["nix"] != 1 || tags["go"] != 1 {
		t.Fatalf("tags = %v", tags)
	}
}

func TestRender(t *testing.T) {
	r, _ := LoadFS(sampleFS(), false)
	p, err := mdx.New(mdx.Options{})
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	a, err := r.Render(p, "homelab-1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if a.Content == nil || len(a.Content.Headings) != 1 || a.Content.Headings[0].ID != "intro" {
		t.Fatalf("content = %+v", a.Content)
	}
	if _, err := r.Render(p, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing render err = %v", err)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	src := "---\ntitle: On disk\npublishedAt: 2024-05-05\n---\nbody\n"
	if err := os.WriteFile(filepath.Join(dir, "disk.mdx"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(dir, false)
	if err != nil || r.Len() != 1 {
		t.Fatalf("load = %v, %v", r, err)
	}
	if _, err := Load(filepath.Join(dir, "missing"), false); err == nil {
		t.Fatal("missing dir should fail")
	}
}
