// 包 store 提供浏览量存储：默认的 views.json 平面文件，以及可选的 SQLite（原子自增）。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go-devfolio/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
// 自增在单条 UPSERT 中完成，并发请求不会丢失计数。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空计数（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM views`); err != nil {
		return fmt.Errorf("delete views: %w", err)
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS views (
            slug TEXT PRIMARY KEY,
            views INTEGER NOT NULL DEFAULT 0,
            last_updated TIMESTAMP
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// Views 返回单个 slug 的计数，不存在为 0。
func (s *SQLite) Views(ctx context.Context, slug string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT views FROM views WHERE slug = ?`, slug).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query views %s: %w", slug, err)
	}
	return n, nil
}

// Increment 原子地加一并返回新计数。
func (s *SQLite) Increment(ctx context.Context, slug string, at time.Time) (int, error) {
	if slug == "" {
		return 0, errors.New("slug required")
	}
	var n int
	err := s.db.QueryRowContext(ctx, `INSERT INTO views(slug, views, last_updated) VALUES(?, 1, ?)
        ON CONFLICT(slug) DO UPDATE SET views = views + 1, last_updated = excluded.last_updated
        RETURNING views`, slug, at.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment views %s: %w", slug, err)
	}
	return n, nil
}

// Batch 返回每个 slug 的计数，缺失的为 0。
func (s *SQLite) Batch(ctx context.Context, slugs []string) (map[string]int, error) {
	out := make(map[string]int, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}
	args := make([]any, len(slugs))
	for i, slug := range slugs {
		out[slug] = 0
		args[i] = slug
	}
	q := `SELECT slug, views FROM views WHERE slug IN (?` + strings.Repeat(",?", len(slugs)-1) + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query batch views: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slug string
		var n int
		if err := rows.Scan(&slug, &n); err != nil {
			return nil, fmt.Errorf("scan views: %w", err)
		}
		out[slug] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	return out, nil
}

// All 返回全部计数。
func (s *SQLite) All(ctx context.Context) (map[string]int, error) {
	recs, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(recs))
	for slug, r := range recs {
		out[slug] = r.Views
	}
	return out, nil
}

// Records 返回全部记录；last_updated 为空时在代码层兜底为零值。
func (s *SQLite) Records(ctx context.Context) (map[string]model.ViewsRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug, views, last_updated FROM views ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	defer rows.Close()
	out := map[string]model.ViewsRecord{}
	for rows.Next() {
		var slug string
		var rec model.ViewsRecord
		var updated sql.NullTime
		if err := rows.Scan(&slug, &rec.Views, &updated); err != nil {
			return nil, fmt.Errorf("scan views: %w", err)
		}
		if updated.Valid {
			rec.LastUpdated = updated.Time
		}
		out[slug] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	return out, nil
}

// Import 写入记录（slug 唯一约束，已存在时覆盖），用于从 views.json 迁移。
func (s *SQLite) Import(ctx context.Context, recs map[string]model.ViewsRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()
	for slug, r := range recs {
		_, err := tx.ExecContext(ctx, `INSERT INTO views(slug, views, last_updated) VALUES(?,?,?)
            ON CONFLICT(slug) DO UPDATE SET views=excluded.views, last_updated=excluded.last_updated`,
			slug, r.Views, nowOr(r.LastUpdated))
		if err != nil {
			return fmt.Errorf("import views %s: %w", slug, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
