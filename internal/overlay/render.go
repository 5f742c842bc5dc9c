package overlay

import "github.com/tabd/annotate/internal/provenance"

// Segment is one piece of a rendered line. Record is nil for plain text.
type Segment struct {
	Text   string                   `json:"text"`
	Record *provenance.ChangeRecord `json:"record,omitempty"`
	Label  string                   `json:"label,omitempty"`
}

// Tagged reports whether the segment carries a change record.
func (s Segment) Tagged() bool { return s.Record != nil }

// Render splits text into contiguous segments using ranges ordered by
// StartChar (as returned by Project). A range that starts inside an already
// emitted range is dropped whole: the earliest-starting range wins, not the
// longest or the newest.
//
// The result always covers text exactly and holds at least one segment.
func Render(text string, ranges []ProjectedRange, labeler Labeler) []Segment {
	line := newLineText(text)
	n := line.Len()

	var segments []Segment
	pos := 0
	for _, r := range ranges {
		start := clamp(r.StartChar, 0, n)
		end := clamp(r.EndChar, start, n)
		if start < pos || end <= start || line.bytes[start] == line.bytes[end] {
			continue
		}
		if pos < start {
			segments = append(segments, Segment{Text: line.slice(pos, start)})
		}
		segments = append(segments, Segment{
			Text:   line.slice(start, end),
			Record: r.Record,
			Label:  labeler.Label(r.Record),
		})
		pos = end
	}

	if pos < n || len(segments) == 0 {
		segments = append(segments, Segment{Text: line.slice(pos, n)})
	}

	return segments
}

// Annotate projects log onto line and renders text in one step.
func Annotate(log *provenance.ChangeLog, line int, text string, labeler Labeler) []Segment {
	return Render(text, Project(log, line, Length(text)), labeler)
}

// HasHighlights reports whether any segment is tagged.
func HasHighlights(segments []Segment) bool {
	for _, s := range segments {
		if s.Tagged() {
			return true
		}
	}
	return false
}
