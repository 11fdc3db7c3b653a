package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"go-devfolio/internal/aggregate"
	"go-devfolio/internal/calendar"
	"go-devfolio/internal/export"
	"go-devfolio/internal/feeds"
	"go-devfolio/internal/logx"
	"go-devfolio/internal/model"
	"go-devfolio/internal/server"
	"go-devfolio/internal/store"
	"go-devfolio/internal/views"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the HTTP API",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			posts, err := e.blog()
			if err != nil {
				return err
			}
			images := e.images()
			go func() {
				if err := images.Watch(c.Context); err != nil {
					logx.Warnf("图片元数据监听未启动：%v", err)
				}
			}()
			proc, err := e.processor(images)
			if err != nil {
				return err
			}
			vs, err := e.viewStore()
			if err != nil {
				return err
			}
			defer vs.Close()
			cs, err := e.contributions()
			if err != nil {
				return err
			}
			defer cs.Close()
			rs, err := e.repositories()
			if err != nil {
				return err
			}
			defer rs.Close()

			srv := server.New(server.Deps{
				Config:        e.cfg,
				Blog:          posts,
				Processor:     proc,
				Views:         views.New(vs),
				Changelog:     e.changelog(),
				Contributions: cs,
				Projects:      rs,
			})
			return srv.Run(c.Context)
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "render a markdown/mdx file to HTML",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write HTML to file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("render: exactly one file argument required")
			}
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(c.Args().First())
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			var meta map[string]any
			body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
			if err != nil {
				return fmt.Errorf("parse frontmatter: %w", err)
			}
			images := e.images()
			proc, err := e.processor(images)
			if err != nil {
				return err
			}
			content, err := proc.Process(body)
			if err != nil {
				return err
			}
			var w io.Writer = os.Stdout
			if out := c.String("out"); out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if _, err := io.WriteString(w, content.HTML); err != nil {
				return fmt.Errorf("write html: %w", err)
			}
			color.New(color.FgGreen).Fprintf(os.Stderr, "✓ %s | 标题 %d | 代码块 %d | 图片元数据 %d\n",
				content.ReadingTime.Text, len(content.Headings), len(content.CodeBlocks), images.Len())
			for _, h := range content.Headings {
				color.New(color.FgCyan).Fprintf(os.Stderr, "%s- %s (#%s)\n", strings.Repeat("  ", h.Level-2), h.Text, h.ID)
			}
			return nil
		},
	}
}

func contributionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "contributions",
		Usage: "scrape the GitHub contribution calendar",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Usage: "only this year"},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			cs, err := e.contributions()
			if err != nil {
				return err
			}
			defer cs.Close()
			var years map[int]model.YearResult
			if y := c.Int("year"); y > 0 {
				res, err := cs.Year(c.Context, y)
				if err != nil {
					return err
				}
				years = map[int]model.YearResult{y: res}
			} else {
				years, err = cs.Contributions(c.Context)
				if err != nil {
					color.Yellow("⚠ 部分年份失败：%v", err)
				}
			}
			keys := make([]int, 0, len(years))
			for y := range years {
				keys = append(keys, y)
			}
			sort.Sort(sort.Reverse(sort.IntSlice(keys)))
			for _, y := range keys {
				res := years[y]
				weeks, err := calendar.GroupByWeeks(res.Days, time.Sunday)
				if err != nil {
					color.Red("✗ %d: %v", y, err)
					continue
				}
				labels, _ := calendar.MonthLabels(weeks, nil)
				w, h := calendar.Dimensions(weeks, 10, 2, 15)
				color.Green("%d  total=%d  weeks=%d  months=%d  svg=%dx%d", y, res.Total, len(weeks), len(labels), w, h)
			}
			return nil
		},
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "fetch configured GitHub projects",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			rs, err := e.repositories()
			if err != nil {
				return err
			}
			defer rs.Close()
			list := rs.Projects(c.Context, e.cfg.Projects)
			for _, p := range list {
				tag := ""
				if p.Contributor {
					tag = color.MagentaString(" [contributor]")
				}
				fmt.Printf("%s %s ★%d ⑂%d %s%s\n",
					color.CyanString("%s/%s", p.Owner, p.Name), color.WhiteString("%s", p.Language),
					p.Stars, p.Forks, p.LastUpdate, tag)
			}
			if missing := len(e.cfg.Projects) - len(list); missing > 0 {
				color.Yellow("⚠ %d 个项目获取失败", missing)
			}
			return nil
		},
	}
}

func changelogCommand() *cli.Command {
	return &cli.Command{
		Name:  "changelog",
		Usage: "print the parsed CHANGELOG.md",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "version", Usage: "only this version (\"latest\" for the newest)"},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			log := e.changelog()
			entries := log.Entries
			if v := c.String("version"); v != "" {
				if v == "latest" {
					v = log.Latest()
				}
				entry, ok := log.Entry(v)
				if !ok {
					return fmt.Errorf("version %s not found", v)
				}
				entries = []model.ChangelogEntry{entry}
			}
			color.Green("latest: %s", log.Latest())
			for _, en := range entries {
				color.Cyan("## %s (%s) %s", en.Version, en.Date, en.Title)
				if en.CommitHash != "" {
					fmt.Printf("   %s\n", log.CommitURL(en.CommitHash))
				}
				for _, ch := range en.Changes {
					comp := ""
					if ch.Component != "" {
						comp = color.WhiteString(" [%s]", ch.Component)
					}
					fmt.Printf("   %-8s %s%s\n", ch.Type, ch.Description, comp)
				}
			}
			return nil
		},
	}
}

func viewsCommand() *cli.Command {
	return &cli.Command{
		Name:  "views",
		Usage: "inspect or migrate view counters",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print all counters",
				Action: func(c *cli.Context) error {
					e, err := loadEnv(c)
					if err != nil {
						return err
					}
					vs, err := e.viewStore()
					if err != nil {
						return err
					}
					defer vs.Close()
					all := views.New(vs).All(c.Context)
					slugs := make([]string, 0, len(all))
					for s := range all {
						slugs = append(slugs, s)
					}
					sort.Slice(slugs, func(i, j int) bool {
						if all[slugs[i]] != all[slugs[j]] {
							return all[slugs[i]] > all[slugs[j]]
						}
						return slugs[i] < slugs[j]
					})
					for _, s := range slugs {
						fmt.Printf("%6d  %s\n", all[s], s)
					}
					return nil
				},
			},
			{
				Name:  "import",
				Usage: "copy a views.json file into the sqlite store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Value: "./data/views.json", Usage: "source views.json"},
				},
				Action: func(c *cli.Context) error {
					e, err := loadEnv(c)
					if err != nil {
						return err
					}
					if e.cfg.Views.Type != "sqlite" {
						return errors.New("views import requires VIEWS.type: sqlite")
					}
					src, err := store.OpenJSONFile(c.String("from"))
					if err != nil {
						return err
					}
					recs, err := src.Records(c.Context)
					if err != nil {
						return err
					}
					dst, err := store.OpenSQLite(e.cfg.Views.Path)
					if err != nil {
						return err
					}
					defer dst.Close()
					if err := dst.Import(c.Context, recs); err != nil {
						return err
					}
					color.Green("✓ 已导入 %d 条浏览量记录", len(recs))
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "delete all counters from the sqlite store",
				Action: func(c *cli.Context) error {
					e, err := loadEnv(c)
					if err != nil {
						return err
					}
					if e.cfg.Views.Type != "sqlite" {
						return errors.New("views reset requires VIEWS.type: sqlite")
					}
					s, err := store.OpenSQLite(e.cfg.Views.Path)
					if err != nil {
						return err
					}
					defer s.Close()
					if err := s.Reset(c.Context); err != nil {
						return err
					}
					color.Green("✓ 已清空浏览量")
					return nil
				},
			},
		},
	}
}

func rssCommand() *cli.Command {
	return &cli.Command{
		Name:  "rss",
		Usage: "write rss.xml and sitemap.xml",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "rss.xml", Usage: "rss output path"},
			&cli.StringFlag{Name: "sitemap", Value: "sitemap.xml", Usage: "sitemap output path (empty to skip)"},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			posts, err := e.blog()
			if err != nil {
				return err
			}
			body, err := feeds.RSS(e.cfg.Site, posts.Posts(), time.Now())
			if err != nil {
				return err
			}
			sum, err := feeds.Verify(body)
			if err != nil {
				return fmt.Errorf("generated rss is unreadable: %w", err)
			}
			if err := os.WriteFile(c.String("out"), body, 0o644); err != nil {
				return fmt.Errorf("write rss: %w", err)
			}
			color.Green("✓ %s: %s, %d 条，最新 %s", c.String("out"), sum.Type, sum.Items, sum.Latest.Format("2006-01-02"))
			if out := c.String("sitemap"); out != "" {
				sm, err := feeds.Sitemap(e.cfg.Site, e.cfg.Site.StaticPaths, posts.Posts())
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, sm, 0o644); err != nil {
					return fmt.Errorf("write sitemap: %w", err)
				}
				color.Green("✓ %s", out)
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the home page snapshot to data.json",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "data.json", Usage: "export path"},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			posts, err := e.blog()
			if err != nil {
				return err
			}
			vs, err := e.viewStore()
			if err != nil {
				return err
			}
			defer vs.Close()
			cs, err := e.contributions()
			if err != nil {
				return err
			}
			defer cs.Close()
			rs, err := e.repositories()
			if err != nil {
				return err
			}
			defer rs.Close()

			home := aggregate.New(e.cfg, posts, views.New(vs), cs, rs).Home(c.Context)
			out := c.String("out")
			if err := export.ToJSON(c.Context, home, out); err != nil {
				return err
			}
			st := export.StatsOf(home, time.Now())
			color.Green("✓ 已导出 %s：文章=%d 项目=%d 贡献=%d", out, st.PostsTotal, st.ProjectsTotal, st.ContributionsTotal)
			return nil
		},
	}
}
