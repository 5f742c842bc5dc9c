package htmlpage

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/scanner"
)

// FilePage is a page backed by a file on disk that is parsed again whenever
// the file changes. A reload stands in for navigation: region states and the
// identity come from the new content.
type FilePage struct {
	path string
	url  string

	mu      sync.Mutex
	page    *Page
	modTime time.Time
	size    int64
	reloads int
}

var (
	_ scanner.Document  = (*FilePage)(nil)
	_ scanner.Navigator = (*FilePage)(nil)
)

// OpenFile parses the page at path, served at pageURL.
func OpenFile(path, pageURL string) (*FilePage, error) {
	fp := &FilePage{path: path, url: pageURL}
	if err := fp.reload(); err != nil {
		return nil, err
	}
	return fp, nil
}

// reload parses the file when its size or modification time changed.
func (fp *FilePage) reload() error {
	info, err := os.Stat(fp.path)
	if err != nil {
		return fmt.Errorf("stat page: %w", err)
	}
	if fp.page != nil && info.ModTime().Equal(fp.modTime) && info.Size() == fp.size {
		return nil
	}

	f, err := os.Open(fp.path)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	page, err := Parse(f, fp.url)
	if err != nil {
		return err
	}

	if fp.page != nil {
		fp.reloads++
		log.Debug().Str("path", fp.path).Int("reloads", fp.reloads).Msg("Page changed on disk, reloaded")
	}
	fp.page = page
	fp.modTime = info.ModTime()
	fp.size = info.Size()
	return nil
}

// current returns the latest parse, keeping the previous one when the file
// cannot be read.
func (fp *FilePage) current() *Page {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if err := fp.reload(); err != nil {
		log.Warn().Err(err).Str("path", fp.path).Msg("Keeping previous page")
	}
	return fp.page
}

// URL returns the page address.
func (fp *FilePage) URL() string {
	return fp.url
}

// Regions returns the regions of the current content.
func (fp *FilePage) Regions() []scanner.Region {
	return fp.current().Regions()
}

// Identity returns the identity of the current content.
func (fp *FilePage) Identity() (provenance.DiffIdentity, error) {
	return fp.current().Identity()
}

// Render writes the current, annotated content.
func (fp *FilePage) Render(w io.Writer) error {
	fp.mu.Lock()
	page := fp.page
	fp.mu.Unlock()
	return page.Render(w)
}

// Reloads reports how many times the file was parsed again.
func (fp *FilePage) Reloads() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.reloads
}

// Generation changes on every reload, so a scanner rebuilds its resolver.
func (fp *FilePage) Generation() int {
	return fp.Reloads()
}
