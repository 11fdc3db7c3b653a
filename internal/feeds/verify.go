package feeds

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// Summary 为回读订阅得到的概要。
type Summary struct {
	Title  string
	Type   string
	Items  int
	Latest time.Time
}

// Verify 用 gofeed 解析订阅内容，确认生成结果可读。
func Verify(data []byte) (Summary, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return Summary{}, fmt.Errorf("parse feed: %w", err)
	}
	s := Summary{Title: feed.Title, Type: feed.FeedType, Items: len(feed.Items)}
	for _, it := range feed.Items {
		if it.PublishedParsed != nil && it.PublishedParsed.After(s.Latest) {
			s.Latest = *it.PublishedParsed
		}
	}
	return s, nil
}
