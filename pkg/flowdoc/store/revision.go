package store

import (
	"encoding/json"
	"time"
)

// FormatVersion is the current revision envelope version.
// Increment when making breaking changes to the envelope.
const FormatVersion = 1

// Revision is the envelope a FileStore writes for each saved revision.
type Revision struct {
	Version   int             `json:"version"`
	DocID     string          `json:"doc_id"`
	Revision  int             `json:"revision"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewRevision wraps data, which must already be JSON.
func NewRevision(docID string, rev int, data []byte) *Revision {
	return &Revision{
		Version:   FormatVersion,
		DocID:     docID,
		Revision:  rev,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Marshal serializes a revision to JSON.
func (r *Revision) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Info returns the revision's metadata.
func (r *Revision) Info() Info {
	return Info{DocID: r.DocID, Revision: r.Revision, Timestamp: r.Timestamp, Size: int64(len(r.Data))}
}

// UnmarshalRevision deserializes a revision from JSON.
func UnmarshalRevision(data []byte) (*Revision, error) {
	var r Revision
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
