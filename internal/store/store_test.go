package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-devfolio/internal/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestJSONFile_CreatesAndIncrements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "views.json")
	s, err := OpenJSONFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil || string(raw) != "{}" {
		t.Fatalf("initial file = %q, %v", raw, err)
	}
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		n, err := s.Increment(ctx, "hello", t0)
		if err != nil || n != i {
			t.Fatalf("increment %d = %d, %v", i, n, err)
		}
	}
	if n, _ := s.Views(ctx, "hello"); n != 3 {
		t.Fatalf("views = %d", n)
	}
	if n, _ := s.Views(ctx, "other"); n != 0 {
		t.Fatalf("absent views = %d", n)
	}
	got, err := s.Batch(ctx, []string{"hello", "other"})
	if err != nil || got["hello"] != 3 || got["other"] != 0 || len(got) != 2 {
		t.Fatalf("batch = %v, %v", got, err)
	}
	recs, _ := s.Records(ctx)
	if !recs["hello"].LastUpdated.Equal(t0) {
		t.Fatalf("lastUpdated = %v", recs["hello"].LastUpdated)
	}
}

func TestJSONFile_CorruptFileIsReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := OpenJSONFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	all, err := s.All(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("all = %v, %v", all, err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "{}" {
		t.Fatalf("file not reset: %q", raw)
	}
}

func TestJSONFile_MissingFileRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.json")
	s, err := OpenJSONFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if n, err := s.Increment(context.Background(), "a", t0); err != nil || n != 1 {
		t.Fatalf("increment after delete = %d, %v", n, err)
	}
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "views.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_IncrementAndQueries(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	if n, err := s.Increment(ctx, "a", t0); err != nil || n != 1 {
		t.Fatalf("first increment = %d, %v", n, err)
	}
	if n, err := s.Increment(ctx, "a", t0.Add(time.Hour)); err != nil || n != 2 {
		t.Fatalf("second increment = %d, %v", n, err)
	}
	if n, _ := s.Views(ctx, "missing"); n != 0 {
		t.Fatalf("missing = %d", n)
	}
	got, err := s.Batch(ctx, []string{"a", "b"})
	if err != nil || got["a"] != 2 || got["b"] != 0 {
		t.Fatalf("batch = %v, %v", got, err)
	}
	recs, err := s.Records(ctx)
	if err != nil || !recs["a"].LastUpdated.Equal(t0.Add(time.Hour)) {
		t.Fatalf("records = %v, %v", recs, err)
	}
	if _, err := s.Increment(ctx, "", t0); err == nil {
		t.Fatal("empty slug must fail")
	}
}

func TestSQLite_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Increment(ctx, "hot", t0); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()
	if n, _ := s.Views(ctx, "hot"); n != 50 {
		t.Fatalf("views = %d, want 50", n)
	}
}

func TestSQLite_ImportAndReset(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	err := s.Import(ctx, map[string]model.ViewsRecord{
		"a": {Views: 10, LastUpdated: t0},
		"b": {Views: 3},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	all, err := s.All(ctx)
	if err != nil || all["a"] != 10 || all["b"] != 3 {
		t.Fatalf("all = %v, %v", all, err)
	}
	if n, _ := s.Increment(ctx, "a", t0); n != 11 {
		t.Fatalf("increment after import = %d", n)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if all, _ := s.All(ctx); len(all) != 0 {
		t.Fatalf("after reset = %v", all)
	}
}
