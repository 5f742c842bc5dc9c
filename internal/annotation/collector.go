package annotation

import (
	"github.com/tabd/annotate/internal/overlay"
	"github.com/tabd/annotate/internal/scanner"
)

// collector wraps a document and records every segment list written to a
// cell, in write order.
type collector struct {
	scanner.Document
	lines []Line
}

func newCollector(doc scanner.Document) *collector {
	return &collector{Document: doc}
}

func (c *collector) Regions() []scanner.Region {
	inner := c.Document.Regions()
	out := make([]scanner.Region, len(inner))
	for i, r := range inner {
		out[i] = &collectedRegion{Region: r, c: c}
	}
	return out
}

type collectedRegion struct {
	scanner.Region
	c *collector
}

func (r *collectedRegion) Cells() []scanner.LineCell {
	inner := r.Region.Cells()
	out := make([]scanner.LineCell, len(inner))
	for i, cell := range inner {
		out[i] = &collectedCell{LineCell: cell, c: r.c}
	}
	return out
}

type collectedCell struct {
	scanner.LineCell
	c *collector
}

func (cell *collectedCell) Apply(segments []overlay.Segment) {
	cell.LineCell.Apply(segments)
	cell.c.lines = append(cell.c.lines, Line{
		Hash:     cell.Hash(),
		Line:     cell.Line(),
		Segments: segments,
	})
}
