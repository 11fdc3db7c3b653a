package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
)

// JSONFile 为 views.json 平面文件存储：{slug: {views, lastUpdated}}。
// 每次自增都是整文件读-改-写且不加锁，并发请求可能丢失计数。
type JSONFile struct {
	path string
}

// OpenJSONFile 确保目录与文件存在（文件缺失时写入 {}）。
func OpenJSONFile(path string) (*JSONFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create views dir: %w", err)
	}
	s := &JSONFile{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.write(map[string]model.ViewsRecord{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONFile) Close() error { return nil }

// read 读取整个文件；文件缺失或内容损坏时重置为空对象。
func (s *JSONFile) read() (map[string]model.ViewsRecord, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		data := map[string]model.ViewsRecord{}
		return data, s.write(data)
	}
	if err != nil {
		return nil, fmt.Errorf("read views file: %w", err)
	}
	data := map[string]model.ViewsRecord{}
	if err := json.Unmarshal(raw, &data); err != nil {
		logx.Errorf("浏览量文件损坏，已重置：%s 错误=%v", s.path, err)
		data = map[string]model.ViewsRecord{}
		return data, s.write(data)
	}
	return data, nil
}

func (s *JSONFile) write(data map[string]model.ViewsRecord) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal views: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write views file: %w", err)
	}
	return nil
}

// Views 返回单个 slug 的计数，不存在为 0。
func (s *JSONFile) Views(_ context.Context, slug string) (int, error) {
	data, err := s.read()
	if err != nil {
		return 0, err
	}
	return data[slug].Views, nil
}

// Increment 计数加一并刷新 lastUpdated，返回新计数。
func (s *JSONFile) Increment(_ context.Context, slug string, at time.Time) (int, error) {
	data, err := s.read()
	if err != nil {
		return 0, err
	}
	rec := data[slug]
	rec.Views++
	rec.LastUpdated = at.UTC()
	data[slug] = rec
	if err := s.write(data); err != nil {
		return 0, err
	}
	return rec.Views, nil
}

// Batch 返回每个 slug 的计数，缺失的为 0。
func (s *JSONFile) Batch(_ context.Context, slugs []string) (map[string]int, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(slugs))
	for _, slug := range slugs {
		out[slug] = data[slug].Views
	}
	return out, nil
}

// All 返回全部计数。
func (s *JSONFile) All(_ context.Context) (map[string]int, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(data))
	for slug, rec := range data {
		out[slug] = rec.Views
	}
	return out, nil
}

// Records 返回完整记录，用于迁移到其他存储。
func (s *JSONFile) Records(_ context.Context) (map[string]model.ViewsRecord, error) {
	return s.read()
}
