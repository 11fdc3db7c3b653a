package mdx

import (
	"fmt"
	"math"
	"strings"

	"go-devfolio/internal/model"
)

// DefaultWPM 为默认阅读速度（词/分钟）。
const DefaultWPM = 200

// ReadingTime 按空白切词估算阅读时长；wpm<=0 时使用 DefaultWPM。
func ReadingTime(text string, wpm int) model.ReadingTime {
	if wpm <= 0 {
		wpm = DefaultWPM
	}
	words := len(strings.Fields(text))
	ms := float64(words) / float64(wpm) * 60 * 1000
	minutes := int(math.Ceil(ms / 60000))
	return model.ReadingTime{
		Text:    fmt.Sprintf("%d min read", minutes),
		Minutes: minutes,
		Time:    ms,
		Words:   words,
	}
}
