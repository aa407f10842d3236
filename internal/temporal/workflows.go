package temporal

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/hybridrag/internal/ingest"
)

const defaultMaxAttempts = 3

// IngestCorpusInput holds the workflow parameters.
type IngestCorpusInput struct {
	// IDs limits the run to these snapshots. Empty means the whole corpus.
	IDs []string
	// MaxAttempts bounds retries per record (default 3).
	MaxAttempts int32
}

// IngestCorpusOutput holds the workflow result. Partial and Failed count
// records whose last attempt wrote one index or none; VectorFailures and
// GraphFailures count the store that failed on that attempt.
type IngestCorpusOutput struct {
	Total          int
	Added          int
	Partial        int
	Skipped        int
	Failed         int
	VectorFailures int
	GraphFailures  int
	Problems       []RecordResult
}

func (o *IngestCorpusOutput) add(res RecordResult) {
	switch ingest.Status(res.Status) {
	case ingest.StatusAdded:
		o.Added++
		return
	case ingest.StatusSkipped:
		o.Skipped++
	case ingest.StatusPartial:
		o.Partial++
	default:
		o.Failed++
	}
	if res.VectorError != "" {
		o.VectorFailures++
	}
	if res.GraphError != "" {
		o.GraphFailures++
	}
	o.Problems = append(o.Problems, res)
}

// lastAttempt recovers the RecordResult of the final attempt from an
// activity error. Errors without details count as a plain failure.
func lastAttempt(id string, err error) RecordResult {
	res := RecordResult{RecordID: id, Status: string(ingest.StatusFailed)}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.HasDetails() {
		var last RecordResult
		if appErr.Details(&last) == nil && last.Status != "" {
			res = last
		}
	}
	if res.Error == "" {
		res.Error = err.Error()
	}
	return res
}

// IngestCorpusWorkflow ingests snapshots one activity per record, in
// order. A record that still fails after its retries is counted and the
// batch continues.
func IngestCorpusWorkflow(ctx workflow.Context, input IngestCorpusInput) (*IngestCorpusOutput, error) {
	attempts := input.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    attempts,
		},
	})
	logger := workflow.GetLogger(ctx)

	ids := input.IDs
	if len(ids) == 0 {
		if err := workflow.ExecuteActivity(ctx, ListCorpusActivity).Get(ctx, &ids); err != nil {
			return nil, fmt.Errorf("list corpus: %w", err)
		}
	}

	out := &IngestCorpusOutput{}
	for _, id := range ids {
		out.Total++

		var res RecordResult
		if err := workflow.ExecuteActivity(ctx, IngestRecordActivity, id).Get(ctx, &res); err != nil {
			res = lastAttempt(id, err)
			logger.Warn("record not indexed after retries", "record", id, "status", res.Status, "error", err)
		}
		out.add(res)
	}
	return out, nil
}
