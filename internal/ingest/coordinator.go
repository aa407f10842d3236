// Package ingest writes document records into the vector and graph indexes.
package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/ledger"
	"github.com/efebarandurmaz/hybridrag/internal/metrics"
	"github.com/efebarandurmaz/hybridrag/internal/observability"
)

// Status is the outcome of ingesting one record.
type Status string

const (
	StatusAdded   Status = "added"   // both stores written
	StatusPartial Status = "partial" // exactly one store written
	StatusFailed  Status = "failed"  // neither store written
	StatusSkipped Status = "skipped" // invalid record, no store touched
)

// Writer is one index the coordinator writes to. vector.Index and
// graph.Index both satisfy it.
type Writer interface {
	Upsert(ctx context.Context, id, text string, meta map[string]string) error
}

// Result describes what happened to a single record.
type Result struct {
	RecordID  string
	Status    Status
	VectorErr error
	GraphErr  error
	// Err is the validation error for skipped records.
	Err error
}

// Skipped builds the result for a record that could not be validated or
// decoded.
func Skipped(id string, err error) Result {
	return Result{RecordID: id, Status: StatusSkipped, Err: err}
}

// Error joins every error carried by the result.
func (r Result) Error() error {
	return errors.Join(r.Err, r.VectorErr, r.GraphErr)
}

// Coordinator writes each record to both indexes independently. A failure
// in one store never blocks or rolls back the other.
type Coordinator struct {
	vector       Writer
	graph        Writer
	recorder     ledger.Recorder
	logger       *zap.Logger
	writeTimeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithRecorder sends every result to r.
func WithRecorder(r ledger.Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithWriteTimeout bounds each store write. Zero means no extra bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.writeTimeout = d }
}

// New creates a coordinator writing to vec and graph.
func New(vec, graph Writer, opts ...Option) *Coordinator {
	c := &Coordinator{vector: vec, graph: graph, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ingest validates rec and writes it to both indexes.
func (c *Coordinator) Ingest(ctx context.Context, rec domain.Record) Result {
	ctx, span := observability.StartIngestSpan(ctx, rec.ID)
	defer span.End()

	res := c.ingest(ctx, rec)

	observability.RecordIngestResult(span, string(res.Status))
	metrics.IngestRecordsTotal.WithLabelValues(string(res.Status)).Inc()
	c.record(ctx, res)
	return res
}

func (c *Coordinator) ingest(ctx context.Context, rec domain.Record) Result {
	if err := rec.Validate(); err != nil {
		c.logger.Warn("skipping invalid record", zap.String("record", rec.ID), zap.Error(err))
		return Skipped(rec.ID, err)
	}

	id := strings.TrimSpace(rec.ID)
	text := strings.TrimSpace(rec.Text)
	res := Result{RecordID: id}

	var g errgroup.Group
	g.Go(func() error {
		res.VectorErr = c.write(ctx, c.vector, domain.StoreVector, id, text, rec.Metadata)
		return nil
	})
	g.Go(func() error {
		res.GraphErr = c.write(ctx, c.graph, domain.StoreGraph, id, text, rec.Metadata)
		return nil
	})
	_ = g.Wait()

	switch {
	case res.VectorErr == nil && res.GraphErr == nil:
		res.Status = StatusAdded
	case res.VectorErr != nil && res.GraphErr != nil:
		res.Status = StatusFailed
	default:
		res.Status = StatusPartial
	}
	return res
}

func (c *Coordinator) write(ctx context.Context, w Writer, store, id, text string, meta map[string]string) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	if err := w.Upsert(ctx, id, text, meta); err != nil {
		err = domain.NewIndexError(store, "upsert", err)
		c.logger.Error("store write failed",
			zap.String("record", id),
			zap.String("store", store),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (c *Coordinator) record(ctx context.Context, res Result) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, res.LedgerEntry()); err != nil {
		c.logger.Warn("ledger write failed", zap.String("record", res.RecordID), zap.Error(err))
	}
}

// LedgerEntry converts the result for the ingestion ledger.
func (r Result) LedgerEntry() ledger.Entry {
	return ledger.Entry{
		RecordID:    r.RecordID,
		Status:      string(r.Status),
		VectorError: errString(r.VectorErr),
		GraphError:  errString(r.GraphErr),
		Error:       errString(r.Err),
	}
}

// IngestAll ingests records one after another. A cancelled context stops the
// batch; the report then covers only the records already processed.
func (c *Coordinator) IngestAll(ctx context.Context, recs []domain.Record) Report {
	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		if ctx.Err() != nil {
			rep := Summarize(results)
			rep.Interrupted = true
			return rep
		}
		results = append(results, c.Ingest(ctx, rec))
	}
	return Summarize(results)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Skip accounts for a record rejected before it reached the coordinator,
// such as an unreadable snapshot file.
func (c *Coordinator) Skip(ctx context.Context, id string, err error) Result {
	res := Skipped(id, err)
	c.logger.Warn("skipping record", zap.String("record", id), zap.Error(err))
	metrics.IngestRecordsTotal.WithLabelValues(string(res.Status)).Inc()
	c.record(ctx, res)
	return res
}
