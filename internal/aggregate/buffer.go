package aggregate

import (
	"sync"

	"go-devfolio/internal/model"
)

// Buffer 收集并发加载的首页数据。
type Buffer struct {
	mu            sync.Mutex
	articles      []model.Post
	contributions map[int]model.YearResult
	projects      []model.RepositoryInfo
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) SetArticles(list []model.Post) {
	b.mu.Lock()
	b.articles = list
	b.mu.Unlock()
}

func (b *Buffer) SetContributions(m map[int]model.YearResult) {
	b.mu.Lock()
	b.contributions = m
	b.mu.Unlock()
}

func (b *Buffer) SetProjects(list []model.RepositoryInfo) {
	b.mu.Lock()
	b.projects = list
	b.mu.Unlock()
}

// Snapshot 返回副本，缺失部分为空值而非 nil，JSON 输出为 {} / []。
func (b *Buffer) Snapshot() model.Home {
	b.mu.Lock()
	defer b.mu.Unlock()
	home := model.Home{
		Contributions: make(map[int]model.YearResult, len(b.contributions)),
		Projects:      append([]model.RepositoryInfo{}, b.projects...),
		Articles:      append([]model.Post{}, b.articles...),
	}
	for y, r := range b.contributions {
		home.Contributions[y] = r
	}
	return home
}
