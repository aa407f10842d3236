// Package extract converts source documents into corpus snapshots.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/corpus"
	"github.com/efebarandurmaz/hybridrag/internal/domain"
)

// Extractor turns PDF and plain-text files into records.
type Extractor struct {
	runner CommandRunner
	logger *zap.Logger
}

// New returns an extractor that shells out to pdftotext.
func New(logger *zap.Logger) *Extractor {
	return NewWithRunner(ExecRunner{}, logger)
}

// NewWithRunner returns an extractor using runner for PDF conversion.
func NewWithRunner(runner CommandRunner, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{runner: runner, logger: logger}
}

// Supported reports whether filename has an extension the extractor
// handles.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Extract converts one file's bytes into a record keyed by its snapshot id.
// The record is not validated; empty text is rejected later at ingestion.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (domain.Record, error) {
	base := filepath.Base(filename)
	var text string
	switch strings.ToLower(filepath.Ext(base)) {
	case ".pdf":
		out, err := e.runner.Run(ctx, data, "pdftotext", "-layout", "-", "-")
		if err != nil {
			return domain.Record{}, fmt.Errorf("pdftotext failed for %s: %w", base, err)
		}
		text = string(out)
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return domain.Record{}, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrValidation, base)
		}
		text = string(data)
	default:
		return domain.Record{}, fmt.Errorf("%w: unsupported file type %s", domain.ErrValidation, base)
	}

	id := corpus.IDFor(base)
	return domain.NewRecord(id, text, map[string]string{"source": id, "file_name": base}), nil
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Source string
	ID     string
	Err    error
}

// Dir extracts every supported file directly under dir and saves one
// snapshot per file into store. A failing file is reported in its result
// and does not stop the batch. The returned error covers only an
// unreadable directory or cancellation.
func (e *Extractor) Dir(ctx context.Context, dir string, store *corpus.Store) ([]FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", dir, err)
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() || strings.HasPrefix(ent.Name(), ".") || !Supported(ent.Name()) {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)

	results := make([]FileResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := FileResult{Source: name, ID: corpus.IDFor(name)}
		res.Err = e.file(ctx, filepath.Join(dir, name), store)
		if res.Err != nil {
			e.logger.Warn("extraction failed", zap.String("file", name), zap.Error(res.Err))
		} else {
			e.logger.Info("extracted", zap.String("file", name), zap.String("snapshot", res.ID))
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Extractor) file(ctx context.Context, path string, store *corpus.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	rec, err := e.Extract(ctx, path, data)
	if err != nil {
		return err
	}
	return store.Save(rec.ID, domain.NewSnapshot(rec.Metadata["file_name"], rec.Text))
}
