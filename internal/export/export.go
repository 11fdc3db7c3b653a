// 包 export 负责快照导出：将首页聚合数据写为 data.json。
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-devfolio/internal/model"
)

// StatsOf 统计文章、项目与全部年份的贡献总数。
func StatsOf(home model.Home, now time.Time) model.Stats {
	st := model.Stats{
		PostsTotal:    len(home.Articles),
		ProjectsTotal: len(home.Projects),
		UpdatedAt:     now,
	}
	for _, y := range home.Contributions {
		st.ContributionsTotal += y.Total
	}
	return st
}

// ToJSON 写入带统计信息的快照（带缩进格式），目录不存在时自动创建。
func ToJSON(ctx context.Context, home model.Home, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := model.Export{Stats: StatsOf(home, time.Now()), Home: home}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
