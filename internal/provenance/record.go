package provenance

// Kind identifies the cause of a provenance event.
type Kind string

const (
	KindAIGenerated Kind = "AI_GENERATED"
	KindPaste       Kind = "PASTE"
	KindIDEPaste    Kind = "IDE_PASTE"
	KindUndoRedo    Kind = "UNDO_REDO"
	KindUserEdit    Kind = "USER_EDIT"
)

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindAIGenerated, KindPaste, KindIDEPaste, KindUndoRedo, KindUserEdit}

// Known reports whether k is one of the defined kinds.
func (k Kind) Known() bool {
	switch k {
	case KindAIGenerated, KindPaste, KindIDEPaste, KindUndoRedo, KindUserEdit:
		return true
	}
	return false
}

// Position is a zero-based line/character coordinate.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p sorts strictly before o (line, then character).
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// Range spans from Start to End. End is exclusive in characters but
// inclusive in the lines it touches.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range covers nothing.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// Valid reports whether Start is not after End.
func (r Range) Valid() bool {
	return !r.End.Before(r.Start)
}

// Touches reports whether line lies within [Start.Line, End.Line].
func (r Range) Touches(line int) bool {
	return r.Start.Line <= line && line <= r.End.Line
}

// ChangeRecord is one provenance event as written by the editor integration.
type ChangeRecord struct {
	Kind Kind `json:"type"`
	Range
	CreatedAt int64  `json:"creationTimestamp"`
	Author    string `json:"author,omitempty"`

	AIName  string `json:"aiName,omitempty"`
	AIModel string `json:"aiModel,omitempty"`
	AIType  string `json:"aiType,omitempty"`

	// PasteURL and PasteTitle hold the source webpage for PASTE records and
	// the source repository and path for IDE_PASTE records.
	PasteURL   string `json:"pasteUrl,omitempty"`
	PasteTitle string `json:"pasteTitle,omitempty"`
}

// AIMeta describes the tool behind an AI_GENERATED record.
type AIMeta struct {
	Name  string
	Model string
	Type  string
}

// PasteMeta describes the webpage a PASTE record was copied from.
type PasteMeta struct {
	URL   string
	Title string
}

// IDEPasteMeta describes the repository location an IDE_PASTE record was copied from.
type IDEPasteMeta struct {
	Repository string
	Path       string
}

func (c ChangeRecord) AI() AIMeta {
	return AIMeta{Name: c.AIName, Model: c.AIModel, Type: c.AIType}
}

func (c ChangeRecord) Paste() PasteMeta {
	return PasteMeta{URL: c.PasteURL, Title: c.PasteTitle}
}

func (c ChangeRecord) IDEPaste() IDEPasteMeta {
	return IDEPasteMeta{Repository: c.PasteURL, Path: c.PasteTitle}
}

// ByCurrentUser reports whether the record has no recorded author.
func (c ChangeRecord) ByCurrentUser() bool {
	return c.Author == ""
}

var highlightColors = map[Kind]string{
	KindAIGenerated: "#00ffff26",
	KindPaste:       "#ff880026",
	KindIDEPaste:    "#a4f54226",
	KindUndoRedo:    "#80008026",
	KindUserEdit:    "#88888811",
}

// HighlightColor returns the RGBA background used to highlight text of this
// kind, or "" for unknown kinds.
func (k Kind) HighlightColor() string {
	return highlightColors[k]
}
