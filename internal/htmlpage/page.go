// Package htmlpage adapts a saved or downloaded GitHub pull request files
// page (or compare page) to the scanner's document model using
// golang.org/x/net/html.
package htmlpage

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/scanner"
)

const (
	attrDiffAnchor = "data-diff-anchor"
	attrLineAnchor = "data-line-anchor"
	attrProcessed  = "data-tabd-processed"
)

var (
	regionAnchorRe = regexp.MustCompile(`diff-([a-f0-9]+)`)
	lineAnchorRe   = regexp.MustCompile(`diff-([a-f0-9]+)R(\d+)`)
)

// Page is a parsed diff page.
type Page struct {
	url  string
	root *html.Node

	regions []scanner.Region

	idOnce sync.Once
	id     provenance.DiffIdentity
	idErr  error
}

var _ scanner.Document = (*Page)(nil)

// Parse reads an HTML document served at pageURL.
func Parse(r io.Reader, pageURL string) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	p := &Page{url: pageURL, root: root}
	for _, table := range findAll(root, func(n *html.Node) bool {
		if !isElement(n, atom.Table) {
			return false
		}
		_, ok := attr(n, attrDiffAnchor)
		return ok
	}) {
		p.regions = append(p.regions, newRegion(table))
	}
	return p, nil
}

// URL returns the page address.
func (p *Page) URL() string {
	return p.url
}

// Regions returns the diff regions in document order.
func (p *Page) Regions() []scanner.Region {
	return p.regions
}

// Identity extracts the diff identity once per page.
func (p *Page) Identity() (provenance.DiffIdentity, error) {
	p.idOnce.Do(func() {
		p.id, p.idErr = extractIdentity(p.root, p.url)
	})
	return p.id, p.idErr
}

// Render writes the (possibly annotated) document.
func (p *Page) Render(w io.Writer) error {
	return html.Render(w, p.root)
}

// region is a table[data-diff-anchor].
type region struct {
	node  *html.Node
	hash  string
	state scanner.RegionState
	cells []scanner.LineCell
}

func newRegion(table *html.Node) *region {
	r := &region{node: table}

	anchor, _ := attr(table, attrDiffAnchor)
	if m := regionAnchorRe.FindStringSubmatch(anchor); m != nil {
		r.hash = m[1]
	}
	if _, ok := attr(table, attrProcessed); ok {
		r.state = scanner.Done
	}

	for _, td := range findAll(table, func(n *html.Node) bool {
		return isElement(n, atom.Td) && (hasClass(n, "diff-text-cell") || hasClass(n, "blob-num"))
	}) {
		r.cells = append(r.cells, newCell(td))
	}
	return r
}

func (r *region) Hash() string               { return r.hash }
func (r *region) State() scanner.RegionState { return r.state }
func (r *region) Cells() []scanner.LineCell  { return r.cells }

// SetState mirrors the state into the idempotency attribute: present while
// processing or done, absent when the region must be retried.
func (r *region) SetState(s scanner.RegionState) {
	r.state = s
	if s == scanner.Unseen {
		removeAttr(r.node, attrProcessed)
		return
	}
	setAttr(r.node, attrProcessed, "true")
}

// cell is one line of a region. For the classic layout the anchor lives on
// the line number cell and the text in the row's last code cell.
type cell struct {
	hash string
	line int
	// text is the element holding the line text, nil when absent.
	text *html.Node
}

func newCell(td *html.Node) *cell {
	c := &cell{line: -1}

	var anchor string
	var codeCell *html.Node
	if hasClass(td, "diff-text-cell") {
		anchor, _ = attr(td, attrLineAnchor)
		codeCell = td
	} else {
		anchor, _ = attr(td, "id")
		if row := td.Parent; row != nil {
			if last := lastElementOfType(row, atom.Td); last != nil && hasClass(last, "blob-code") {
				codeCell = last
			}
		}
	}

	if m := lineAnchorRe.FindStringSubmatch(anchor); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			c.hash = m[1]
			c.line = n - 1
		}
	}
	if codeCell != nil && c.hash != "" {
		c.text = findFirst(codeCell, func(n *html.Node) bool {
			return hasClass(n, "diff-text-inner") || hasClass(n, "blob-code-inner")
		})
	}
	return c
}

func (c *cell) Hash() string { return c.hash }
func (c *cell) Line() int    { return c.line }

func (c *cell) Text() (string, bool) {
	if c.text == nil {
		return "", false
	}
	return textContent(c.text), true
}
