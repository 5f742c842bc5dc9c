package overlay

import "unicode/utf8"

// lineText maps editor character offsets (UTF-16 code units, as counted by
// the editor and the browser) onto byte offsets of a Go string.
type lineText struct {
	s string
	// bytes[i] is the byte offset of UTF-16 unit i; bytes[len] == len(s).
	// Offsets that fall on the second half of a surrogate pair map to the
	// start of the following rune.
	bytes []int
}

func newLineText(s string) lineText {
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		offsets = append(offsets, i)
		if r >= 0x10000 {
			offsets = append(offsets, i+utf8.RuneLen(r))
		}
	}
	offsets = append(offsets, len(s))
	return lineText{s: s, bytes: offsets}
}

// Len returns the line length in UTF-16 code units.
func (t lineText) Len() int {
	return len(t.bytes) - 1
}

func (t lineText) slice(start, end int) string {
	return t.s[t.bytes[start]:t.bytes[end]]
}

// Length returns the length of s in editor character units.
func Length(s string) int {
	return newLineText(s).Len()
}
