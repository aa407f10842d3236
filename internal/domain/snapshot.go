package domain

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the on-disk hand-off between extraction and ingestion:
//
//	{"file_name": "p1.pdf", "Sections": {"FullText": {"text": "...", "entities": {}}}}
type Snapshot struct {
	FileName string             `json:"file_name"`
	Sections map[string]Section `json:"Sections"`
}

// Section is one named block of snapshot text. Entities is reserved.
type Section struct {
	Text     string         `json:"text"`
	Entities map[string]any `json:"entities"`
}

// FullTextKey is the only section key the pipeline reads.
const FullTextKey = "FullText"

// NewSnapshot wraps text as the FullText section of fileName.
func NewSnapshot(fileName, text string) Snapshot {
	return Snapshot{
		FileName: fileName,
		Sections: map[string]Section{
			FullTextKey: {Text: text, Entities: map[string]any{}},
		},
	}
}

// FullText returns the FullText section text, or "" if absent.
func (s Snapshot) FullText() string {
	return s.Sections[FullTextKey].Text
}

// Record converts the snapshot to a record keyed by id (the snapshot file
// name). It does not validate; the ingestion boundary does.
func (s Snapshot) Record(id string) Record {
	meta := map[string]string{"source": id}
	if s.FileName != "" {
		meta["file_name"] = s.FileName
	}
	return Record{ID: id, Text: s.FullText(), Metadata: meta}
}

// DecodeSnapshot parses snapshot JSON.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode snapshot: %v", ErrValidation, err)
	}
	return s, nil
}
