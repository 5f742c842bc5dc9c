// Package annotation runs a scan over a single diff page: it loads the page,
// drives one scanner pass and collects the segments written to each line.
package annotation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tabd/annotate/internal/config"
	"github.com/tabd/annotate/internal/htmlpage"
	"github.com/tabd/annotate/internal/overlay"
	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/retry"
	"github.com/tabd/annotate/internal/scanner"
)

// PageFetcher downloads a diff page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// Config holds the annotation service configuration
type Config struct {
	Timeout      time.Duration
	Settings     config.Settings
	Labeler      overlay.Labeler
	WaitAttempts int
	WaitSchedule retry.LinearCapped
	PageRetry    retry.RetryConfig
}

// ConfigFrom derives the service configuration from loaded settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Timeout:      2 * time.Minute,
		Settings:     cfg.Settings,
		WaitAttempts: cfg.Scanner.WaitAttempts,
		WaitSchedule: retry.LinearCapped{Step: cfg.Scanner.WaitStep, Cap: cfg.Scanner.WaitCap},
		PageRetry:    retry.PageFetchRetryConfig(),
	}
}

// Service annotates diff pages.
type Service struct {
	pages    PageFetcher
	resolver scanner.ResolverFactory
	config   Config
}

// NewService creates a new annotation service
func NewService(pages PageFetcher, factory scanner.ResolverFactory, config Config) *Service {
	return &Service{
		pages:    pages,
		resolver: factory,
		config:   config,
	}
}

// Request describes one page to annotate. When HTML is nil the page is
// downloaded from PageURL.
type Request struct {
	PageURL string
	HTML    []byte
	// Wait polls for diff regions before the pass.
	Wait bool
}

// Line is the rendering of one annotated line cell.
type Line struct {
	Hash     string            `json:"hash"`
	Line     int               `json:"line"`
	Segments []overlay.Segment `json:"segments"`
}

// Result contains the outcome of annotating one page.
type Result struct {
	PageURL  string                   `json:"page_url"`
	Identity *provenance.DiffIdentity `json:"identity,omitempty"`
	Report   scanner.PassReport       `json:"report"`
	Lines    []Line                   `json:"lines"`
	Duration time.Duration            `json:"duration"`

	page *htmlpage.Page
}

// Render writes the annotated document.
func (r *Result) Render(w io.Writer) error {
	if r.page == nil {
		return errors.New("no page to render")
	}
	return r.page.Render(w)
}

// ProcessPage loads, scans and annotates one page.
func (s *Service) ProcessPage(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	logger := log.With().Str("page", req.PageURL).Logger()

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	if !htmlpage.IsDiffPage(req.PageURL) {
		logger.Warn().Msg("URL does not look like a pull request files or compare page")
	}

	html := req.HTML
	if html == nil {
		body, err := s.download(ctx, req.PageURL)
		if err != nil {
			return nil, err
		}
		html = body
	}

	page, err := htmlpage.Parse(bytes.NewReader(html), req.PageURL)
	if err != nil {
		return nil, err
	}

	doc := newCollector(page)
	sc := scanner.New(doc, s.resolver,
		scanner.WithLabeler(s.config.Labeler),
		scanner.WithWaitSchedule(s.config.WaitAttempts, s.config.WaitSchedule),
		scanner.WithEnabled(func() bool { return s.config.Settings.GithubIntegration }),
	)

	if req.Wait {
		if err := sc.WaitForContent(ctx); err != nil {
			return nil, fmt.Errorf("wait for content: %w", err)
		}
	}

	report, err := sc.Pass(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		PageURL:  req.PageURL,
		Identity: report.Identity,
		Report:   report,
		Lines:    doc.lines,
		Duration: time.Since(start),
		page:     page,
	}
	if result.Lines == nil {
		result.Lines = []Line{}
	}

	logger.Info().
		Str("pass_id", report.PassID).
		Bool("halted", report.Halted).
		Int("regions", report.Regions).
		Int("annotated", report.Annotated).
		Int("cells", report.Cells).
		Dur("duration", result.Duration).
		Msg("Annotation pass complete")
	return result, nil
}

func (s *Service) download(ctx context.Context, pageURL string) ([]byte, error) {
	if s.pages == nil {
		return nil, errors.New("no page source configured")
	}

	var body []byte
	res := retry.RetryWithBackoff(ctx, s.config.PageRetry, func() error {
		b, err := s.pages.FetchPage(ctx, pageURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, &log.Logger)
	if !res.Success {
		return nil, fmt.Errorf("download %s after %d attempts: %w", pageURL, res.Attempts, res.LastError)
	}
	return body, nil
}
