package overlay

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabd/annotate/internal/provenance"
)

var utc = Labeler{Location: time.UTC}

func record(kind provenance.Kind, sl, sc, el, ec int) provenance.ChangeRecord {
	return provenance.ChangeRecord{
		Kind: kind,
		Range: provenance.Range{
			Start: provenance.Position{Line: sl, Character: sc},
			End:   provenance.Position{Line: el, Character: ec},
		},
		CreatedAt: 1712345678901,
	}
}

func changeLog(records ...provenance.ChangeRecord) *provenance.ChangeLog {
	return &provenance.ChangeLog{Version: 1, Changes: records}
}

// shape strips labels and replaces records with their kind.
type shapeSeg struct {
	Text string
	Kind provenance.Kind
}

func shape(segs []Segment) []shapeSeg {
	out := make([]shapeSeg, len(segs))
	for i, s := range segs {
		out[i].Text = s.Text
		if s.Record != nil {
			out[i].Kind = s.Record.Kind
		}
	}
	return out
}

func assertCovers(t *testing.T, text string, segs []Segment) {
	t.Helper()
	require.NotEmpty(t, segs)
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	assert.Equal(t, text, b.String())
}

func TestProject_LineOutsideRecordYieldsNothing(t *testing.T) {
	log := changeLog(
		record(provenance.KindPaste, 3, 2, 3, 8),
		record(provenance.KindAIGenerated, 5, 0, 9, 4),
	)

	for _, line := range []int{0, 2, 4, 10, 100} {
		assert.Empty(t, Project(log, line, 20), "line %d", line)
	}
}

func TestProject_SingleLine(t *testing.T) {
	log := changeLog(record(provenance.KindUserEdit, 5, 2, 5, 7))

	got := Project(log, 5, 20)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].StartChar)
	assert.Equal(t, 7, got[0].EndChar)
	assert.Same(t, &log.Changes[0], got[0].Record)
}

func TestProject_MultiLine(t *testing.T) {
	log := changeLog(record(provenance.KindAIGenerated, 2, 4, 5, 3))

	cases := []struct {
		line       int
		start, end int
	}{
		{2, 4, 10},
		{3, 0, 10},
		{4, 0, 10},
		{5, 0, 3},
	}
	for _, tc := range cases {
		got := Project(log, tc.line, 10)
		require.Len(t, got, 1, "line %d", tc.line)
		assert.Equal(t, tc.start, got[0].StartChar, "line %d", tc.line)
		assert.Equal(t, tc.end, got[0].EndChar, "line %d", tc.line)
	}
}

func TestProject_ClipsAndDropsEmpty(t *testing.T) {
	log := changeLog(
		record(provenance.KindPaste, 1, 3, 1, 50),    // clipped to line length
		record(provenance.KindPaste, 1, 12, 1, 15),   // starts past end of line
		record(provenance.KindPaste, 1, 4, 1, 4),     // empty record
		record(provenance.KindPaste, 0, 2, 1, 0),     // ends at column 0 of this line
		record(provenance.KindUndoRedo, 1, 10, 2, 5), // starts at end of line
		record(provenance.KindUserEdit, 1, -3, 1, 2), // negative start
	)

	got := Project(log, 1, 10)
	require.Len(t, got, 2)
	assert.Equal(t, ProjectedRange{StartChar: 0, EndChar: 2, Record: &log.Changes[5]}, got[0])
	assert.Equal(t, ProjectedRange{StartChar: 3, EndChar: 10, Record: &log.Changes[0]}, got[1])
}

func TestProject_StableOnTies(t *testing.T) {
	log := changeLog(
		record(provenance.KindAIGenerated, 0, 4, 0, 6),
		record(provenance.KindPaste, 0, 1, 0, 3),
		record(provenance.KindUserEdit, 0, 1, 0, 9),
	)

	got := Project(log, 0, 10)
	require.Len(t, got, 3)
	assert.Equal(t, provenance.KindPaste, got[0].Record.Kind)
	assert.Equal(t, provenance.KindUserEdit, got[1].Record.Kind)
	assert.Equal(t, provenance.KindAIGenerated, got[2].Record.Kind)
}

func TestProject_NilLog(t *testing.T) {
	assert.Nil(t, Project(nil, 0, 10))
}

func TestAnnotate_SingleRecordPrefix(t *testing.T) {
	log := changeLog(record(provenance.KindUserEdit, 5, 0, 5, 5))

	got := Annotate(log, 5, "hello world", utc)

	want := []shapeSeg{
		{"hello", provenance.KindUserEdit},
		{" world", ""},
	}
	if diff := cmp.Diff(want, shape(got)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got[1].Record)
}

func TestAnnotate_TwoDisjointRecords(t *testing.T) {
	log := changeLog(
		record(provenance.KindPaste, 3, 0, 3, 3),
		record(provenance.KindAIGenerated, 3, 5, 3, 8),
	)

	got := Annotate(log, 3, "0123456789", utc)

	want := []shapeSeg{
		{"012", provenance.KindPaste},
		{"34", ""},
		{"567", provenance.KindAIGenerated},
		{"89", ""},
	}
	if diff := cmp.Diff(want, shape(got)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnotate_FirstStartingRangeWins(t *testing.T) {
	log := changeLog(
		record(provenance.KindPaste, 0, 0, 0, 6),
		record(provenance.KindAIGenerated, 0, 2, 0, 4),
	)

	got := Annotate(log, 0, "abcdef", utc)

	require.Len(t, got, 1)
	assert.Equal(t, "abcdef", got[0].Text)
	assert.Same(t, &log.Changes[0], got[0].Record)
}

func TestRender_LaterRangeStartingInsideIsDiscardedEvenIfLonger(t *testing.T) {
	log := changeLog(
		record(provenance.KindPaste, 0, 0, 0, 3),
		record(provenance.KindAIGenerated, 0, 2, 0, 9),
		record(provenance.KindUserEdit, 0, 3, 0, 5),
	)

	got := Annotate(log, 0, "abcdefghij", utc)

	want := []shapeSeg{
		{"abc", provenance.KindPaste},
		{"de", provenance.KindUserEdit},
		{"fghij", ""},
	}
	if diff := cmp.Diff(want, shape(got)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_NoRangesIsOnePlainSegment(t *testing.T) {
	for _, text := range []string{"", "x", "func main() {}"} {
		got := Render(text, nil, utc)
		require.Len(t, got, 1)
		assert.Equal(t, text, got[0].Text)
		assert.False(t, got[0].Tagged())
	}
}

func TestRender_AlwaysCoversText(t *testing.T) {
	text := "\tconst answer = 42 // ok"
	log := changeLog(
		record(provenance.KindPaste, 0, 1, 0, 6),
		record(provenance.KindAIGenerated, 0, 3, 0, 12),
		record(provenance.KindUndoRedo, 0, 7, 0, 30),
		record(provenance.KindUserEdit, 0, 20, 1, 0),
		record(provenance.KindIDEPaste, 0, 0, 0, 1),
	)

	got := Annotate(log, 0, text, utc)
	assertCovers(t, text, got)
	for i := 1; i < len(got); i++ {
		assert.False(t, !got[i-1].Tagged() && !got[i].Tagged(), "adjacent plain segments at %d", i)
	}
}

func TestRender_CountsUTF16Units(t *testing.T) {
	// "😀" is two UTF-16 units; "é" is one.
	text := "é😀ab"
	log := changeLog(record(provenance.KindPaste, 0, 1, 0, 3))

	got := Annotate(log, 0, text, utc)

	want := []shapeSeg{
		{"é", ""},
		{"😀", provenance.KindPaste},
		{"ab", ""},
	}
	if diff := cmp.Diff(want, shape(got)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, Length(text))
}

func TestRender_OffsetInsideSurrogatePairStillCovers(t *testing.T) {
	text := "a😀b"
	log := changeLog(record(provenance.KindPaste, 0, 2, 0, 4))

	got := Annotate(log, 0, text, utc)
	assertCovers(t, text, got)
}

func TestHasHighlights(t *testing.T) {
	assert.False(t, HasHighlights(Render("abc", nil, utc)))

	log := changeLog(record(provenance.KindPaste, 0, 0, 0, 1))
	assert.True(t, HasHighlights(Annotate(log, 0, "abc", utc)))
}
