// Package termview renders annotated diff lines for a terminal.
package termview

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tabd/annotate/internal/annotation"
	"github.com/tabd/annotate/internal/provenance"
)

var (
	colorTextSub = lipgloss.Color("#64748B")
	colorHeader  = lipgloss.Color("#874BFD")
	colorUnknown = lipgloss.Color("#F59E0B")
)

// Options controls terminal rendering.
type Options struct {
	// Labels prints each tagged segment's label beneath its line.
	Labels bool
	// Plain lists lines that carry no tagged segment too.
	Plain bool
}

// View renders annotation results with one lipgloss renderer.
type View struct {
	r    *lipgloss.Renderer
	opts Options

	header lipgloss.Style
	gutter lipgloss.Style
	subtle lipgloss.Style
}

// New creates a View writing styles suited to w.
func New(w io.Writer, opts Options) *View {
	r := lipgloss.NewRenderer(w)
	return &View{
		r:      r,
		opts:   opts,
		header: r.NewStyle().Foreground(colorHeader).Bold(true),
		gutter: r.NewStyle().Foreground(colorTextSub).Width(14),
		subtle: r.NewStyle().Foreground(colorTextSub),
	}
}

// KindColor is the opaque terminal color for kind: its highlight color
// without the alpha channel.
func KindColor(kind provenance.Kind) lipgloss.Color {
	c := kind.HighlightColor()
	if len(c) == 9 {
		return lipgloss.Color(c[:7])
	}
	return colorUnknown
}

func (v *View) segmentStyle(kind provenance.Kind) lipgloss.Style {
	return v.r.NewStyle().Foreground(KindColor(kind)).Bold(kind == provenance.KindAIGenerated)
}

// Render writes res to w.
func (v *View) Render(w io.Writer, res *annotation.Result) error {
	var b strings.Builder

	b.WriteString(v.header.Render(res.PageURL))
	b.WriteByte('\n')
	if res.Identity != nil {
		b.WriteString(v.subtle.Render(res.Identity.String()))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	used := make(map[provenance.Kind]bool)
	for _, line := range res.Lines {
		tagged := false
		for _, seg := range line.Segments {
			if seg.Tagged() {
				tagged = true
				used[seg.Record.Kind] = true
			}
		}
		if !tagged && !v.opts.Plain {
			continue
		}
		v.writeLine(&b, line)
	}

	if len(used) > 0 {
		b.WriteByte('\n')
		b.WriteString(v.legend(used))
		b.WriteByte('\n')
	}
	b.WriteString(v.summary(res))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

func (v *View) writeLine(b *strings.Builder, line annotation.Line) {
	short := line.Hash
	if len(short) > 8 {
		short = short[:8]
	}
	b.WriteString(v.gutter.Render(fmt.Sprintf("%s:%d", short, line.Line+1)))
	b.WriteString(v.subtle.Render("│ "))

	var labels []string
	for _, seg := range line.Segments {
		if !seg.Tagged() {
			b.WriteString(seg.Text)
			continue
		}
		b.WriteString(v.segmentStyle(seg.Record.Kind).Render(seg.Text))
		if seg.Label != "" {
			labels = append(labels, seg.Label)
		}
	}
	b.WriteByte('\n')

	if v.opts.Labels {
		for _, l := range labels {
			b.WriteString(v.subtle.Render(strings.Repeat(" ", 14) + "└ " + l))
			b.WriteByte('\n')
		}
	}
}

func (v *View) legend(used map[provenance.Kind]bool) string {
	var parts []string
	for _, k := range provenance.Kinds {
		if used[k] {
			parts = append(parts, v.segmentStyle(k).Render(string(k)))
		}
	}
	var unknown []string
	for k := range used {
		if !k.Known() {
			unknown = append(unknown, string(k))
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		parts = append(parts, v.segmentStyle(provenance.Kind(k)).Render(k))
	}
	return strings.Join(parts, "  ")
}

func (v *View) summary(res *annotation.Result) string {
	rep := res.Report
	if rep.Halted {
		return v.subtle.Render("halted: " + rep.Reason)
	}
	return v.subtle.Render(fmt.Sprintf("%d regions, %d annotated, %d without logs, %d failed, %d lines in %s",
		rep.Regions, rep.Annotated, rep.NotFound, rep.Failed, rep.Cells, res.Duration.Round(time.Millisecond)))
}
