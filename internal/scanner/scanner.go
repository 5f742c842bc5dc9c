// Package scanner drives annotation of a diff page: it finds unprocessed
// diff regions, resolves their change logs and writes highlighted segments
// back into each line cell.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tabd/annotate/internal/logging"
	"github.com/tabd/annotate/internal/overlay"
	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/retry"
)

var (
	// ErrPassInFlight is returned by Pass while another pass is running.
	ErrPassInFlight = errors.New("scan pass already in flight")
	// ErrContentTimeout is returned by WaitForContent when no region appears.
	ErrContentTimeout = errors.New("timed out waiting for diff content")
)

// RegionState tracks a region through a scan.
type RegionState int

const (
	Unseen RegionState = iota
	Processing
	Done
)

func (s RegionState) String() string {
	switch s {
	case Unseen:
		return "unseen"
	case Processing:
		return "processing"
	case Done:
		return "done"
	}
	return "unknown"
}

// Document is the host page being annotated.
type Document interface {
	// Identity extracts the diff identity, failing with
	// provenance.ErrInvalidPage when the page is not a diff page.
	Identity() (provenance.DiffIdentity, error)
	// Regions returns every diff region in document order.
	Regions() []Region
	// URL is the page address, used for logging.
	URL() string
}

// Navigator is implemented by documents whose content can be replaced in
// place. A change of Generation counts as navigation: the resolver and its
// caches are rebuilt even when the identity is unchanged.
type Navigator interface {
	Generation() int
}

// Region is the diff of one file on the page.
type Region interface {
	// Hash is the content hash from the region anchor, empty if the anchor
	// carries none.
	Hash() string
	State() RegionState
	SetState(RegionState)
	// Cells returns the line cells of the region in document order.
	Cells() []LineCell
}

// LineCell is one rendered diff line.
type LineCell interface {
	// Hash is the content hash from the line anchor.
	Hash() string
	// Line is the 0-based line number on the new side of the diff.
	Line() int
	// Text returns the line text; ok is false when the cell has no text element.
	Text() (text string, ok bool)
	// Apply replaces the cell's text content with segments.
	Apply(segments []overlay.Segment)
}

// ChangeLogSource resolves change logs for one diff.
type ChangeLogSource interface {
	Resolve(ctx context.Context, contentHash string) (*provenance.ChangeLog, error)
}

// ResolverFactory builds the ChangeLogSource for an identity.
type ResolverFactory func(id provenance.DiffIdentity) ChangeLogSource

// PassReport summarizes one scan pass.
type PassReport struct {
	PassID string `json:"pass_id"`
	// Halted is set when the pass stopped before looking at regions.
	Halted   bool                     `json:"halted"`
	Reason   string                   `json:"reason,omitempty"`
	Identity *provenance.DiffIdentity `json:"identity,omitempty"`

	Regions   int           `json:"regions"`
	Skipped   int           `json:"skipped"`
	Annotated int           `json:"annotated"`
	NotFound  int           `json:"not_found"`
	Failed    int           `json:"failed"`
	Cells     int           `json:"cells"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLabeler sets the labeler used for segment titles.
func WithLabeler(l overlay.Labeler) Option {
	return func(s *Scanner) { s.labeler = l }
}

// WithInterval sets the Run tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithWaitSchedule sets the WaitForContent attempt count and schedule.
func WithWaitSchedule(attempts int, schedule retry.LinearCapped) Option {
	return func(s *Scanner) {
		if attempts > 0 {
			s.waitAttempts = attempts
		}
		s.waitSchedule = schedule
	}
}

// WithEnabled installs a gate consulted at the start of every pass. A pass
// halts when it reports false.
func WithEnabled(enabled func() bool) Option {
	return func(s *Scanner) { s.enabled = enabled }
}

// Scanner annotates one document. Create a new Scanner after navigation.
type Scanner struct {
	doc     Document
	factory ResolverFactory
	labeler overlay.Labeler
	enabled func() bool

	interval     time.Duration
	waitAttempts int
	waitSchedule retry.LinearCapped

	inFlight atomic.Bool

	mu       sync.Mutex
	idKey    string
	resolver ChangeLogSource
}

// New creates a Scanner over doc.
func New(doc Document, factory ResolverFactory, opts ...Option) *Scanner {
	s := &Scanner{
		doc:          doc,
		factory:      factory,
		interval:     500 * time.Millisecond,
		waitAttempts: 10,
		waitSchedule: retry.LinearCapped{Step: 100 * time.Millisecond, Cap: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// source returns the resolver for id, reusing it while the identity and the
// document generation hold.
func (s *Scanner) source(id provenance.DiffIdentity) ChangeLogSource {
	key := id.Key()
	if nav, ok := s.doc.(Navigator); ok {
		key = fmt.Sprintf("%s#%d", key, nav.Generation())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolver == nil || s.idKey != key {
		s.resolver = s.factory(id)
		s.idKey = key
	}
	return s.resolver
}

// Pass makes one sweep over the unprocessed regions of the document.
func (s *Scanner) Pass(ctx context.Context) (report PassReport, err error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return PassReport{Halted: true, Reason: "in flight"}, ErrPassInFlight
	}
	defer s.inFlight.Store(false)

	pl := logging.StartPass(s.doc.URL())
	report.PassID = pl.ID()
	defer func() { report.Elapsed = pl.Elapsed() }()

	if s.enabled != nil && !s.enabled() {
		report.Halted = true
		report.Reason = "github integration disabled"
		return report, nil
	}

	id, idErr := s.doc.Identity()
	if idErr != nil {
		pl.Logger().Debug().Err(idErr).Msg("Page has no diff identity")
		report.Halted = true
		report.Reason = "no diff identity"
		return report, nil
	}
	if id.Repo == "" {
		report.Halted = true
		report.Reason = "no repository"
		return report, nil
	}
	report.Identity = &id

	src := s.source(id)
	for _, region := range s.doc.Regions() {
		if ctx.Err() != nil {
			break
		}
		if region.State() != Unseen {
			continue
		}
		report.Regions++

		cells := region.Cells()
		if len(cells) == 0 {
			report.Skipped++
			continue
		}

		region.SetState(Processing)
		hash := region.Hash()
		if hash == "" {
			region.SetState(Done)
			continue
		}

		cl, resolveErr := src.Resolve(ctx, hash)
		switch {
		case resolveErr == nil:
			report.Cells += s.annotate(cells, hash, cl)
			report.Annotated++
			region.SetState(Done)
		case errors.Is(resolveErr, provenance.ErrNotFound):
			pl.Logger().Debug().Str("hash", hash).Msg("No change log for region")
			report.NotFound++
			region.SetState(Done)
		default:
			pl.Logger().Debug().Err(resolveErr).Str("hash", hash).Msg("Resolving region failed, will retry")
			report.Failed++
			region.SetState(Unseen)
		}
	}

	pl.Log("Pass finished: %d regions, %d annotated, %d not found, %d failed",
		report.Regions, report.Annotated, report.NotFound, report.Failed)
	return report, nil
}

// annotate writes segments into every cell of the region's file that has
// at least one projected range, returning the number of cells changed.
func (s *Scanner) annotate(cells []LineCell, hash string, cl *provenance.ChangeLog) int {
	changed := 0
	for _, cell := range cells {
		if cell.Hash() != hash {
			continue
		}
		text, ok := cell.Text()
		if !ok {
			continue
		}
		ranges := overlay.Project(cl, cell.Line(), overlay.Length(text))
		if len(ranges) == 0 {
			continue
		}
		cell.Apply(overlay.Render(text, ranges, s.labeler))
		changed++
	}
	return changed
}

// Pending reports whether the document has regions not yet processed.
func (s *Scanner) Pending() bool {
	for _, region := range s.doc.Regions() {
		if region.State() == Unseen {
			return true
		}
	}
	return false
}

// Run calls Pass on every tick until ctx is done. onPass, when set, sees
// each completed report.
func (s *Scanner) Run(ctx context.Context, onPass func(PassReport)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.Pending() {
				continue
			}
			report, err := s.Pass(ctx)
			if err != nil {
				continue
			}
			if onPass != nil {
				onPass(report)
			}
		}
	}
}

// WaitForContent blocks until the document has an unprocessed region.
func (s *Scanner) WaitForContent(ctx context.Context) error {
	err := retry.Poll(ctx, s.waitAttempts, s.waitSchedule, s.Pending)
	if errors.Is(err, retry.ErrPollExhausted) {
		return ErrContentTimeout
	}
	return err
}
