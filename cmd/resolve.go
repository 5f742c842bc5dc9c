package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tabd/annotate/internal/annotation"
	"github.com/tabd/annotate/internal/config"
	"github.com/tabd/annotate/internal/provenance"
)

// ResolveCommand returns the command that fetches one file's change log.
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Fetch the change log recorded for one file of a diff",
		ArgsUsage: "HASH|--path PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Usage: "Repository owner", Required: true},
			&cli.StringFlag{Name: "repo", Usage: "Repository name", Required: true},
			&cli.StringFlag{Name: "base", Usage: "Base branch or commit"},
			&cli.StringFlag{Name: "head", Usage: "Head branch", Required: true},
			&cli.StringFlag{Name: "path", Usage: "File path; hashed to find the log"},
		},
		Action: func(c *cli.Context) error {
			hash := c.Args().First()
			if p := c.String("path"); p != "" {
				hash = provenance.Hash(p)
			}
			if hash == "" {
				return fmt.Errorf("a content hash or --path is required")
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			id := provenance.DiffIdentity{
				Owner: c.String("owner"),
				Repo:  c.String("repo"),
				Base:  c.String("base"),
				Head:  c.String("head"),
			}
			res, err := annotation.NewResolver(annotation.NewGitHubClient(cfg), id).Lookup(c.Context, hash)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", hash, err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

// HashCommand prints the content hash GitHub uses to anchor each path.
func HashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the diff anchor hash of file paths",
		ArgsUsage: "PATH...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one path is required")
			}
			for _, p := range c.Args().Slice() {
				fmt.Printf("%s  %s\n", provenance.Hash(p), p)
			}
			return nil
		},
	}
}

// TrackingCommand reports whether clipboard tracking applies to URLs.
func TrackingCommand() *cli.Command {
	return &cli.Command{
		Name:      "tracking",
		Usage:     "Check whether clipboard copies from a URL are tracked",
		ArgsUsage: "URL...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one URL is required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			fmt.Printf("mode: %s\n", cfg.Settings.ClipboardTracking)
			if cfg.Settings.ClipboardTracking == config.TrackingCustom {
				fmt.Printf("domains: %v\n", cfg.Settings.Domains())
			}
			for _, u := range c.Args().Slice() {
				state := "not tracked"
				if cfg.Settings.TrackingEnabled(u) {
					state = "tracked"
				}
				fmt.Printf("%-12s %s\n", state, u)
			}
			return nil
		},
	}
}
