package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tabd/annotate/internal/merge"
	"github.com/tabd/annotate/internal/provenance"
)

const (
	comparePerPage = 100
	// The compare endpoint lists at most 300 files.
	defaultMaxComparePages = 3
)

type compareFile struct {
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	ContentsURL string `json:"contents_url"`
}

type compareResponse struct {
	Files []compareFile `json:"files"`
}

type contentsEntry struct {
	URL      string `json:"url"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (r *Resolver) compareURL(page int) string {
	return fmt.Sprintf("%s/compare/%s...%s?per_page=%d&page=%d",
		r.repoURL(), r.id.Base, r.id.Head, comparePerPage, page)
}

// compareFiles returns the changed files between base and head sorted by
// filename. A successful result is fetched once per Resolver.
func (r *Resolver) compareFiles(ctx context.Context) ([]compareFile, error) {
	r.compareMu.Lock()
	defer r.compareMu.Unlock()

	if r.compare != nil {
		return r.compare, nil
	}

	seen := make(map[string]bool)
	files := make([]compareFile, 0)
	for page := 1; page <= r.maxComparePages; page++ {
		var resp compareResponse
		if err := r.fetchInto(ctx, r.compareURL(page), &resp); err != nil {
			return nil, fmt.Errorf("compare %s...%s: %w", r.id.Base, r.id.Head, err)
		}
		for _, f := range resp.Files {
			if seen[f.Filename] {
				continue
			}
			seen[f.Filename] = true
			files = append(files, f)
		}
		if len(resp.Files) < comparePerPage {
			break
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Filename < files[j].Filename
	})

	log.Debug().
		Str("repo", r.id.Owner+"/"+r.id.Repo).
		Str("base", r.id.Base).
		Str("head", r.id.Head).
		Int("files", len(files)).
		Msg("Fetched compare file list")

	r.compare = files
	return files, nil
}

// findPath returns the first changed file whose path hashes to hash.
func (r *Resolver) findPath(ctx context.Context, hash string) (string, error) {
	files, err := r.compareFiles(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if provenance.HashMatches(f.Filename, hash) {
			return f.Filename, nil
		}
	}
	return "", fmt.Errorf("%w: no file in %s...%s hashes to %s", provenance.ErrNotFound, r.id.Base, r.id.Head, hash)
}

// FragmentPrefix is the filename prefix of every log fragment for path.
func FragmentPrefix(path string) string {
	return LogDir + path + "/tabd-"
}

// fromLogFiles merges every live log fragment of path in filename order.
func (r *Resolver) fromLogFiles(ctx context.Context, path string) (*provenance.ChangeLog, []string, error) {
	files, err := r.compareFiles(ctx)
	if err != nil {
		return nil, nil, err
	}

	prefix := FragmentPrefix(path)
	acc := map[string]any{}
	var fragments []string
	for _, f := range files {
		if !strings.HasPrefix(f.Filename, prefix) || f.Status == "removed" {
			continue
		}
		doc, err := r.fetchFragment(ctx, f)
		if err != nil {
			return nil, nil, fmt.Errorf("log fragment %s: %w", f.Filename, err)
		}
		acc = merge.Merge(acc, doc)
		fragments = append(fragments, f.Filename)
	}

	cl, err := provenance.DecodeChangeLog(acc)
	if err != nil {
		return nil, nil, err
	}
	return cl, fragments, nil
}

// fetchFragment reads one fragment through its contents entry.
func (r *Resolver) fetchFragment(ctx context.Context, f compareFile) (map[string]any, error) {
	if f.ContentsURL == "" {
		return nil, fmt.Errorf("%w: missing contents_url", provenance.ErrMalformedData)
	}

	var entry contentsEntry
	if err := r.fetchInto(ctx, f.ContentsURL, &entry); err != nil {
		return nil, err
	}
	if entry.URL == "" {
		return nil, fmt.Errorf("%w: contents entry has no url", provenance.ErrMalformedData)
	}

	var file contentsEntry
	if err := r.fetchInto(ctx, entry.URL, &file); err != nil {
		return nil, err
	}

	data, err := decodeContent(file.Content, file.Encoding)
	if err != nil {
		return nil, err
	}
	return parseObject(data)
}
