// Package overlay projects change records onto single diff lines and splits
// line text into highlighted segments.
package overlay

import (
	"sort"

	"github.com/tabd/annotate/internal/provenance"
)

// ProjectedRange is the part of one line covered by one change record.
// Offsets are in the editor's character space (UTF-16 code units).
type ProjectedRange struct {
	StartChar int
	EndChar   int
	Record    *provenance.ChangeRecord
}

// Project returns the character ranges of line (zero-based) covered by the
// records of log, ordered by StartChar. Records that start at the same
// character keep their order in the log.
func Project(log *provenance.ChangeLog, line, lineLength int) []ProjectedRange {
	if log == nil {
		return nil
	}

	var ranges []ProjectedRange
	for i := range log.Changes {
		c := &log.Changes[i]
		if c.Empty() || !c.Touches(line) {
			continue
		}

		start, end := 0, lineLength
		switch {
		case c.Start.Line == c.End.Line:
			start, end = c.Start.Character, c.End.Character
		case line == c.Start.Line:
			start = c.Start.Character
		case line == c.End.Line:
			end = c.End.Character
		}

		start = clamp(start, 0, lineLength)
		end = clamp(end, start, lineLength)
		if end <= start {
			continue
		}

		ranges = append(ranges, ProjectedRange{StartChar: start, EndChar: end, Record: c})
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].StartChar < ranges[j].StartChar
	})

	return ranges
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
