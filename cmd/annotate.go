package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tabd/annotate/internal/annotation"
	"github.com/tabd/annotate/internal/termview"
)

// Output formats shared by annotate and watch.
const (
	formatTerminal = "terminal"
	formatHTML     = "html"
	formatJSON     = "json"
)

// AnnotateCommand returns the annotate command
func AnnotateCommand() *cli.Command {
	return &cli.Command{
		Name:      "annotate",
		Usage:     "Annotate a pull request files or compare page with change provenance",
		ArgsUsage: "PAGE_URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "page",
				Aliases: []string{"f"},
				Usage:   "Read the page HTML from `FILE` instead of downloading it",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: terminal, html or json",
				Value: formatTerminal,
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write output to `FILE` instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "labels",
				Usage: "Print provenance labels under annotated lines (terminal format)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print lines without provenance too (terminal format)",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Poll for diff content before scanning",
			},
		},
		Action: runAnnotate,
	}
}

func runAnnotate(c *cli.Context) error {
	pageURL := c.Args().First()
	if pageURL == "" {
		return fmt.Errorf("page URL is required")
	}
	format := c.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	req := annotation.Request{PageURL: pageURL, Wait: c.Bool("wait")}
	if path := c.String("page"); path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read page: %w", err)
		}
		req.HTML = body
	}

	client := annotation.NewGitHubClient(cfg)
	svc := annotation.NewService(client, annotation.ResolverFactory(client), annotation.ConfigFrom(cfg))

	result, err := svc.ProcessPage(c.Context, req)
	if err != nil {
		return fmt.Errorf("annotation failed: %w", err)
	}

	return withOutput(c.String("out"), func(w io.Writer) error {
		return writeResult(w, format, result, termview.Options{Labels: c.Bool("labels"), Plain: c.Bool("all")})
	})
}

func checkFormat(format string) error {
	switch format {
	case formatTerminal, formatHTML, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q (want terminal, html or json)", format)
}

func writeResult(w io.Writer, format string, result *annotation.Result, opts termview.Options) error {
	switch format {
	case formatHTML:
		return result.Render(w)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return termview.New(w, opts).Render(w, result)
	}
}

// withOutput runs write against path, or stdout when path is empty.
func withOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
