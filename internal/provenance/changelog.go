package provenance

import (
	"encoding/json"
	"fmt"
)

// CurrentVersion is the change log format version written by the editor integration.
const CurrentVersion = 1

// ChangeLog is the merged collection of provenance events for one file version.
type ChangeLog struct {
	Version int            `json:"version"`
	Changes []ChangeRecord `json:"changes"`
}

// Len returns the number of change records.
func (l *ChangeLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Changes)
}

// ParseChangeLog decodes a single JSON change log document.
func ParseChangeLog(data []byte) (*ChangeLog, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: change log: %v", ErrMalformedData, err)
	}
	return DecodeChangeLog(doc)
}

// DecodeChangeLog converts a generic (possibly merged) document into a typed
// ChangeLog. A missing version defaults to CurrentVersion.
func DecodeChangeLog(doc map[string]any) (*ChangeLog, error) {
	if doc == nil {
		return &ChangeLog{Version: CurrentVersion}, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: change log: %v", ErrMalformedData, err)
	}

	var cl ChangeLog
	if err := json.Unmarshal(raw, &cl); err != nil {
		return nil, fmt.Errorf("%w: change log: %v", ErrMalformedData, err)
	}
	if cl.Version == 0 {
		cl.Version = CurrentVersion
	}

	return &cl, nil
}
