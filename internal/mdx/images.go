package mdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fsnotify/fsnotify"

	"go-devfolio/internal/logx"
)

// ImageMeta 为构建期图片优化脚本生成的单张图片信息。
type ImageMeta struct {
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	AspectRatio float64  `json:"aspectRatio"`
	Formats     []string `json:"formats"`
}

// ImageIndex 为 images-metadata.json 的内存索引，键为去掉扩展名的网页路径。
type ImageIndex struct {
	path string
	mu   sync.RWMutex
	meta map[string]ImageMeta
}

// NewImageIndex 创建索引并立即加载一次；文件缺失或损坏时索引为空并记录警告。
func NewImageIndex(path string) *ImageIndex {
	idx := &ImageIndex{path: path, meta: map[string]ImageMeta{}}
	if path == "" {
		return idx
	}
	if err := idx.Load(); err != nil {
		logx.Warnf("图片元数据不可用，图片将不带尺寸：%v", err)
	}
	return idx
}

// Load 重新读取元数据文件，成功后整体替换索引。
func (x *ImageIndex) Load() error {
	raw, err := os.ReadFile(x.path)
	if err != nil {
		return fmt.Errorf("read image metadata: %w", err)
	}
	m := map[string]ImageMeta{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("decode image metadata %s: %w", x.path, err)
	}
	x.mu.Lock()
	x.meta = m
	x.mu.Unlock()
	return nil
}

// Lookup 查询去掉扩展名的路径。
func (x *ImageIndex) Lookup(basePath string) (ImageMeta, bool) {
	if x == nil {
		return ImageMeta{}, false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	m, ok := x.meta[basePath]
	return m, ok
}

// Len 返回索引条目数。
func (x *ImageIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.meta)
}

// Watch 监听元数据文件所在目录，文件被写入或重建后重新加载，直到 ctx 结束。
func (x *ImageIndex) Watch(ctx context.Context) error {
	if x.path == "" {
		return errors.New("watch image metadata: empty path")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new fsnotify watcher: %w", err)
	}
	defer w.Close()
	dir := filepath.Dir(x.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}
	name := filepath.Base(x.path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(100 * time.Millisecond)
		case <-debounce:
			debounce = nil
			if err := x.Load(); err != nil {
				logx.Warnf("重新加载图片元数据失败：%v", err)
				continue
			}
			logx.Infof("图片元数据已重新加载：%d 条", x.Len())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logx.Warnf("图片元数据监听出错：%v", err)
		}
	}
}

var extPattern = regexp.MustCompile(`\.[^/.]+$`)

type imageFormat struct{ ext, mime string }

// modernFormats 为 <source> 的输出顺序。
var modernFormats = []imageFormat{
	{"avif", "image/avif"},
	{"webp", "image/webp"},
}

// optimizeImages 将 /images/ 下的图片改写为带现代格式的 <picture>，
// 有尺寸信息时写入宽高与 aspect-ratio 以避免布局偏移。
func optimizeImages(doc *goquery.Document, idx *ImageIndex) {
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		img := s.Get(0)
		src, _ := getAttr(img, "src")
		if !strings.HasPrefix(src, "/images/") {
			return
		}
		base := extPattern.ReplaceAllString(src, "")
		meta, found := idx.Lookup(base)

		var sources []imageFormat
		if found {
			for _, f := range modernFormats {
				if slices.Contains(meta.Formats, f.ext) {
					sources = append(sources, f)
				}
			}
		}

		setAttr(img, "src", base+path.Ext(src))
		setAttr(img, "loading", "lazy")
		setAttr(img, "decoding", "async")
		if found {
			setAttr(img, "width", strconv.Itoa(meta.Width))
			setAttr(img, "height", strconv.Itoa(meta.Height))
			setAttr(img, "style", fmt.Sprintf("max-width: 100%%; height: auto; aspect-ratio: %d / %d;", meta.Width, meta.Height))
		} else {
			setAttr(img, "style", "max-width: 100%; height: auto;")
		}
		if len(sources) == 0 {
			return
		}

		picture := el("picture", "class", "optimized-image")
		img.Parent.InsertBefore(picture, img)
		img.Parent.RemoveChild(img)
		for _, f := range sources {
			picture.AppendChild(el("source", "srcset", base+"."+f.ext, "type", f.mime))
		}
		picture.AppendChild(img)
	})
}
