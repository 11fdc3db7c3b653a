// 命令行入口：
// - 解析全局 flags 与 settings.yaml/rules.yaml
// - 初始化日志、HTTP 客户端与各服务
// - 子命令：serve/render/contributions/projects/changelog/views/rss/export
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"go-devfolio/internal/logx"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "devfolio",
		Usage:   "portfolio and blog backend: markdown pipeline, GitHub data, views, changelog",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "settings.yaml",
				Usage:   "path to settings.yaml",
			},
			&cli.StringFlag{
				Name:  "rules",
				Value: "rules.yaml",
				Usage: "path to rules.yaml (optional)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override LOG_LEVEL (debug|info|warn|error|none)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			renderCommand(),
			contributionsCommand(),
			projectsCommand(),
			changelogCommand(),
			viewsCommand(),
			rssCommand(),
			exportCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		logx.Errorf("运行失败：%v", err)
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}
