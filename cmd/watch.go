package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tabd/annotate/internal/annotation"
	"github.com/tabd/annotate/internal/htmlpage"
	"github.com/tabd/annotate/internal/scanner"
)

// WatchCommand returns the command that keeps scanning a saved page as it
// changes on disk.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Annotate a saved page file and re-scan whenever it changes",
		ArgsUsage: "PAGE_URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "page",
				Aliases:  []string{"f"},
				Usage:    "Page HTML `FILE` to watch",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write the annotated HTML to `FILE` after each pass that changed it",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Scan interval (default from config)",
			},
		},
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	pageURL := c.Args().First()
	if pageURL == "" {
		return fmt.Errorf("page URL is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	page, err := htmlpage.OpenFile(c.String("page"), pageURL)
	if err != nil {
		return err
	}

	interval := cfg.Scanner.Interval
	if c.IsSet("interval") {
		interval = c.Duration("interval")
	}

	client := annotation.NewGitHubClient(cfg)
	svcCfg := annotation.ConfigFrom(cfg)
	sc := scanner.New(page, annotation.ResolverFactory(client),
		scanner.WithLabeler(svcCfg.Labeler),
		scanner.WithInterval(interval),
		scanner.WithWaitSchedule(svcCfg.WaitAttempts, svcCfg.WaitSchedule),
		scanner.WithEnabled(func() bool { return cfg.Settings.GithubIntegration }),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	out := c.String("out")
	log.Info().Str("page", c.String("page")).Dur("interval", interval).Msg("Watching page")

	err = sc.Run(ctx, func(report scanner.PassReport) {
		log.Info().
			Str("pass_id", report.PassID).
			Bool("halted", report.Halted).
			Int("regions", report.Regions).
			Int("annotated", report.Annotated).
			Int("failed", report.Failed).
			Int("cells", report.Cells).
			Msg("Pass complete")

		if out == "" || report.Cells == 0 {
			return
		}
		if err := withOutput(out, func(w io.Writer) error { return page.Render(w) }); err != nil {
			log.Error().Err(err).Str("out", out).Msg("Failed to write annotated page")
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
