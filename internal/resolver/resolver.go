// Package resolver assembles the change log of one file of a diff from the
// remote hosting API.
//
// Two storage layouts are supported. The editor integration can push a git
// note under refs/notes/tabd__<head>__<hash>, which is read directly. When
// that ref is missing the resolver compares base and head, finds the file
// whose path hashes to <hash> and merges every .tabd/log/<path>/tabd-*
// fragment touched by the diff.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tabd/annotate/internal/provenance"
)

// Fetcher retrieves a JSON document from the remote hosting API.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string) (json.RawMessage, error)
}

// Source names the storage layout a change log was read from.
type Source string

const (
	SourceNotes    Source = "notes"
	SourceLogFiles Source = "log-files"
)

// LogDir is the repository directory holding per-file change log fragments.
const LogDir = ".tabd/log/"

// Resolution is a resolved change log together with where it came from.
type Resolution struct {
	Hash string                `json:"hash"`
	Path string                `json:"path,omitempty"`
	From Source                `json:"source"`
	Log  *provenance.ChangeLog `json:"log"`
	// Fragments lists the log files merged into Log (log-files source only).
	Fragments []string `json:"fragments,omitempty"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAPIURL sets the API root used to build request URLs.
func WithAPIURL(apiURL string) Option {
	return func(r *Resolver) {
		r.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithMaxComparePages bounds compare pagination.
func WithMaxComparePages(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxComparePages = n
		}
	}
}

// Resolver resolves change logs for the files of one DiffIdentity. Its caches
// live as long as the Resolver; create a new one when the page navigates.
type Resolver struct {
	fetcher         Fetcher
	id              provenance.DiffIdentity
	apiURL          string
	maxComparePages int

	compareMu sync.Mutex
	compare   []compareFile

	mu       sync.Mutex
	resolved map[string]*Resolution
}

// New creates a Resolver for id.
func New(fetcher Fetcher, id provenance.DiffIdentity, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:         fetcher,
		id:              id,
		apiURL:          "https://api.github.com",
		maxComparePages: defaultMaxComparePages,
		resolved:        make(map[string]*Resolution),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Identity returns the diff this resolver serves.
func (r *Resolver) Identity() provenance.DiffIdentity {
	return r.id
}

// Resolve returns the change log for the file whose path hashes to
// contentHash. It fails with provenance.ErrNotFound when no log exists.
func (r *Resolver) Resolve(ctx context.Context, contentHash string) (*provenance.ChangeLog, error) {
	res, err := r.Lookup(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	return res.Log, nil
}

// Lookup is Resolve with provenance details.
func (r *Resolver) Lookup(ctx context.Context, contentHash string) (*Resolution, error) {
	contentHash = strings.ToLower(contentHash)

	r.mu.Lock()
	cached, ok := r.resolved[contentHash]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	res, err := r.lookup(ctx, contentHash)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.resolved[contentHash] = res
	r.mu.Unlock()
	return res, nil
}

func (r *Resolver) lookup(ctx context.Context, hash string) (*Resolution, error) {
	logger := log.With().Str("repo", r.id.Owner+"/"+r.id.Repo).Str("hash", hash).Logger()

	if r.id.HasHead() {
		cl, err := r.fromNotes(ctx, hash)
		if err == nil && cl.Len() > 0 {
			logger.Debug().Int("changes", cl.Len()).Msg("Resolved change log from notes")
			return &Resolution{Hash: hash, From: SourceNotes, Log: cl}, nil
		}
		if err == nil {
			err = errors.New("note holds no changes")
		}
		logger.Debug().Err(err).Msg("Notes lookup failed, falling back to compare")
	}

	if !r.id.HasBase() || !r.id.HasHead() {
		return nil, fmt.Errorf("%w: %s needs base and head for compare fallback", provenance.ErrNotFound, hash)
	}

	path, err := r.findPath(ctx, hash)
	if err != nil {
		return nil, err
	}
	if hidden(path) {
		return nil, fmt.Errorf("%w: %s is a hidden path", provenance.ErrNotFound, path)
	}

	cl, fragments, err := r.fromLogFiles(ctx, path)
	if err != nil {
		return nil, err
	}
	if cl.Len() == 0 {
		return nil, fmt.Errorf("%w: no changes recorded for %s", provenance.ErrNotFound, path)
	}

	logger.Debug().Str("path", path).Int("fragments", len(fragments)).Int("changes", cl.Len()).
		Msg("Resolved change log from log files")
	return &Resolution{Hash: hash, Path: path, From: SourceLogFiles, Log: cl, Fragments: fragments}, nil
}

// hidden reports whether any segment of path starts with a dot.
func hidden(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (r *Resolver) repoURL() string {
	return fmt.Sprintf("%s/repos/%s/%s", r.apiURL, r.id.Owner, r.id.Repo)
}

// fetchInto fetches url and decodes it into v.
func (r *Resolver) fetchInto(ctx context.Context, url string, v interface{}) error {
	body, err := r.fetcher.FetchJSON(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", provenance.ErrMalformedData, url, err)
	}
	return nil
}
