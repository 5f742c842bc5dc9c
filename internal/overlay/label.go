package overlay

import (
	"fmt"
	"time"

	"github.com/tabd/annotate/internal/provenance"
)

// TimestampLayout renders creation times the way browsers format
// Date.toLocaleString for en-US.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

var aiTypeSuffix = map[string]string{
	"inlineCompletion": " • Using inline completion",
	"applyPatch":       " • Using the apply patch tool",
	"createFile":       " • Using the create file tool",
	"insertEdit":       " • Using the insert edit tool",
	"replaceString":    " • Using the replace string tool",
	"applyEdit":        " • Using an internal command",
}

// Labeler builds hover tooltips for tagged segments.
type Labeler struct {
	// Location for creation timestamps. Nil means time.Local.
	Location *time.Location
}

func (l Labeler) timestamp(ms int64) string {
	loc := l.Location
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(TimestampLayout)
}

// Label returns the tooltip for c. It depends only on the record and the
// labeler's location.
func (l Labeler) Label(c *provenance.ChangeRecord) string {
	if c == nil {
		return ""
	}

	by := c.Author
	if c.ByCurrentUser() {
		by = "you"
	}
	created := " • Created at: " + l.timestamp(c.CreatedAt)

	switch c.Kind {
	case provenance.KindAIGenerated:
		ai := c.AI()
		owner := "your"
		if !c.ByCurrentUser() {
			owner = c.Author + "'s"
		}
		s := fmt.Sprintf("AI Generated under %s control", owner)
		if ai.Name != "" {
			s += " • " + ai.Name
		}
		if ai.Model != "" {
			s += " (" + ai.Model + ")"
		}
		return s + aiTypeSuffix[ai.Type] + created
	case provenance.KindPaste:
		s := "Clipboard Paste by " + by
		if p := c.Paste(); p.URL != "" {
			s += fmt.Sprintf(" • From the webpage \"%s\" (%s)", p.Title, p.URL)
		}
		return s + created
	case provenance.KindIDEPaste:
		s := "Clipboard Paste by " + by
		if p := c.IDEPaste(); p.Repository != "" {
			s += fmt.Sprintf(" • From the %s repository at %s", p.Repository, p.Path)
		}
		return s + created
	case provenance.KindUndoRedo:
		return "Undo/Redo by " + by + created
	case provenance.KindUserEdit:
		return "Edit by " + by + created
	default:
		return ""
	}
}
