package htmlpage

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tabd/annotate/internal/overlay"
	"github.com/tabd/annotate/internal/provenance"
)

const attrKind = "data-tabd-kind"

// Apply replaces the line text with one span per segment.
func (c *cell) Apply(segments []overlay.Segment) {
	if c.text == nil {
		return
	}
	removeChildren(c.text)
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		c.text.AppendChild(segmentNode(seg))
	}
}

func segmentNode(seg overlay.Segment) *html.Node {
	span := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: seg.Text})

	if !seg.Tagged() || !seg.Record.Kind.Known() {
		return span
	}

	kind := seg.Record.Kind
	if seg.Label != "" {
		setAttr(span, "title", seg.Label)
	}
	setAttr(span, "class", KindClass(kind))
	setAttr(span, attrKind, string(kind))
	setAttr(span, "style", highlightStyle(kind))
	return span
}

// KindClass is the CSS class applied to spans of the given kind.
func KindClass(kind provenance.Kind) string {
	return "tabd-" + strings.ReplaceAll(strings.ToLower(string(kind)), "_", "-")
}

func highlightStyle(kind provenance.Kind) string {
	return fmt.Sprintf("background-color: %s; mix-blend-mode: var(--color-diff-blob-x-selected-line-highlight-mix-blend-mode); display: inline-block;",
		kind.HighlightColor())
}
