// Package domain holds the types shared by ingestion and retrieval: the
// document record, passages and bundles, the corpus snapshot shape, and the
// error taxonomy.
package domain

import (
	"fmt"
	"strings"
)

// SectionSuffix names the single section every document is stored under.
const SectionSuffix = "_FullText"

// Record is one normalized document. ID is the join key between the vector
// and graph indexes.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// NewRecord builds a record with the source metadata set to id.
func NewRecord(id, text string, metadata map[string]string) Record {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta["source"]; !ok {
		meta["source"] = id
	}
	return Record{ID: id, Text: text, Metadata: meta}
}

// Validate checks the required fields. It returns an error wrapping
// ErrValidation so callers can count the record as skipped.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: record id is empty", ErrValidation)
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: record %s has empty text", ErrValidation, r.ID)
	}
	return nil
}

// SectionName returns the graph section key for a document id.
func SectionName(id string) string {
	return id + SectionSuffix
}
