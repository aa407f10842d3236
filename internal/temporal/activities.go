package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/hybridrag/internal/corpus"
	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/ingest"
)

// RecordIngester is the coordinator surface the activities use.
type RecordIngester interface {
	Ingest(ctx context.Context, rec domain.Record) ingest.Result
	Skip(ctx context.Context, id string, err error) ingest.Result
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Corpus      *corpus.Store
	Coordinator RecordIngester
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// RecordResult is the serializable outcome of one record.
type RecordResult struct {
	RecordID    string
	Status      string
	VectorError string `json:",omitempty"`
	GraphError  string `json:",omitempty"`
	Error       string `json:",omitempty"`
}

func toRecordResult(res ingest.Result) RecordResult {
	return RecordResult{
		RecordID:    res.RecordID,
		Status:      string(res.Status),
		VectorError: errString(res.VectorErr),
		GraphError:  errString(res.GraphErr),
		Error:       errString(res.Err),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func requireDeps() error {
	if deps == nil || deps.Corpus == nil || deps.Coordinator == nil {
		return temporal.NewNonRetryableApplicationError("worker dependencies not set", "config", nil)
	}
	return nil
}

// ListCorpusActivity returns the snapshot ids currently in the corpus.
func ListCorpusActivity(ctx context.Context) ([]string, error) {
	if err := requireDeps(); err != nil {
		return nil, err
	}
	return deps.Corpus.List()
}

// IngestRecordActivity loads one snapshot and writes it to both indexes.
// A snapshot that cannot be loaded or fails validation is reported as
// skipped. Any store failure, partial or total, is returned as an
// application error carrying the RecordResult as details so Temporal
// retries the record; upserts make the retry safe.
func IngestRecordActivity(ctx context.Context, id string) (RecordResult, error) {
	if err := requireDeps(); err != nil {
		return RecordResult{}, err
	}

	snap, err := deps.Corpus.Load(id)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, corpus.ErrNotFound) {
			return toRecordResult(deps.Coordinator.Skip(ctx, id, err)), nil
		}
		return RecordResult{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	res := deps.Coordinator.Ingest(ctx, snap.Record(id))
	out := toRecordResult(res)
	switch res.Status {
	case ingest.StatusAdded, ingest.StatusSkipped:
		return out, nil
	default:
		activity.GetLogger(ctx).Warn("record not fully indexed", "record", id, "status", out.Status)
		return out, temporal.NewApplicationError(
			fmt.Sprintf("record %s %s: %v", id, res.Status, res.Error()),
			"record_"+out.Status, out)
	}
}
