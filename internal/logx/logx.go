// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色配置
// - pretty 输出交给 charmbracelet/log，标签可选中文（[调试]/[信息]/[警告]/[错误]）
// - 通过 Debugf/Infof/Warnf/Errorf 暴露，业务代码不直接依赖底层实现
package logx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	charm "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// levelSilent 高于所有实际级别，用于关闭输出。
const levelSilent = 100

// Init 根据 level/format/locale/colorMode 初始化全局日志器，输出到标准输出。
func Init(level, format, locale, colorMode string) {
	InitWriter(os.Stdout, level, format, locale, colorMode)
}

// InitWriter 与 Init 相同，但允许指定输出目标（测试中使用）。
func InitWriter(w io.Writer, level, format, locale, colorMode string) {
	if w == nil {
		w = os.Stdout
	}
	lv := parseSlogLevel(level)
	opts := &slog.HandlerOptions{Level: lv, AddSource: false}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty", "":
		handler = NewPrettyHandler(w, lv, locale, colorMode)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// parseSlogLevel 将字符串级别解析为 slog.Level。
func parseSlogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		return levelSilent
	case "info", "":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// 便捷函数：格式化并按级别输出
func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// NewPrettyHandler 创建人读友好的 Handler（charmbracelet/log 实现 slog.Handler）。
func NewPrettyHandler(w io.Writer, lv slog.Level, locale string, colorMode string) slog.Handler {
	if locale == "" {
		locale = "zh-CN"
	}
	logger := charm.NewWithOptions(w, charm.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           charm.Level(lv),
	})
	if shouldColor(w, colorMode) {
		logger.SetColorProfile(termenv.ANSI)
	} else {
		logger.SetColorProfile(termenv.Ascii)
	}
	logger.SetStyles(levelStyles(locale))
	return logger
}

// levelStyles 根据语言替换等级标签，颜色沿用 ANSI 基础色。
func levelStyles(locale string) *charm.Styles {
	styles := charm.DefaultStyles()
	colors := map[charm.Level]string{
		charm.DebugLevel: "90",
		charm.InfoLevel:  "36",
		charm.WarnLevel:  "33",
		charm.ErrorLevel: "31",
	}
	for lvl, code := range colors {
		styles.Levels[lvl] = lipgloss.NewStyle().
			SetString(levelLabel(locale, slog.Level(lvl))).
			Foreground(lipgloss.Color(code))
	}
	return styles
}

// levelLabel 根据语言返回等级标签。
func levelLabel(locale string, l slog.Level) string {
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		switch l {
		case slog.LevelDebug:
			return "[调试]"
		case slog.LevelInfo:
			return "[信息]"
		case slog.LevelWarn:
			return "[警告]"
		case slog.LevelError:
			return "[错误]"
		default:
			return fmt.Sprintf("[L%d]", l)
		}
	}
	switch l {
	case slog.LevelDebug:
		return "[DEBUG]"
	case slog.LevelInfo:
		return "[INFO]"
	case slog.LevelWarn:
		return "[WARN]"
	case slog.LevelError:
		return "[ERROR]"
	default:
		return fmt.Sprintf("[L%d]", l)
	}
}

// shouldColor 判断是否启用颜色：遵循 LOG_COLOR 与 NO_COLOR。
func shouldColor(w io.Writer, mode string) bool {
	if v := os.Getenv("NO_COLOR"); v != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "never":
		return false
	case "auto", "":
		// 仅在字符设备上启用彩色输出
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				return (fi.Mode() & os.ModeCharDevice) != 0
			}
		}
		return false
	default:
		return false
	}
}
