package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DiffIdentity names the diff shown on a page. It is resolved once per page
// load and never changes for the lifetime of that page.
type DiffIdentity struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	PR    *int   `json:"pr,omitempty"`
	Base  string `json:"base,omitempty"`
	Head  string `json:"head,omitempty"`
}

func (d DiffIdentity) HasBase() bool { return d.Base != "" }
func (d DiffIdentity) HasHead() bool { return d.Head != "" }

// Key returns a stable cache key for the identity.
func (d DiffIdentity) Key() string {
	return fmt.Sprintf("%s/%s@%s...%s", d.Owner, d.Repo, d.Base, d.Head)
}

// String implements fmt.Stringer.
func (d DiffIdentity) String() string {
	if d.PR != nil {
		return fmt.Sprintf("%s/%s#%d (%s...%s)", d.Owner, d.Repo, *d.PR, d.Base, d.Head)
	}
	return fmt.Sprintf("%s/%s (%s...%s)", d.Owner, d.Repo, d.Base, d.Head)
}

// Hash returns the lowercase hex SHA-256 digest of text. File paths are
// hashed with it to produce the anonymized identifiers used by the host page
// and by the change log storage layout.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// HashMatches reports whether path hashes to the given hex digest.
func HashMatches(path, digest string) bool {
	return Hash(path) == strings.ToLower(digest)
}
