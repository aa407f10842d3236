package ingest

import (
	"encoding/json"
	"fmt"
	"io"
)

// Report summarizes a batch. It is a pure fold over the results.
type Report struct {
	Total          int  `json:"total"`
	Added          int  `json:"added"`
	Partial        int  `json:"partial"`
	Skipped        int  `json:"skipped"`
	Failed         int  `json:"failed"`
	VectorLoaded   int  `json:"vector_loaded"`
	GraphLoaded    int  `json:"graph_loaded"`
	VectorFailures int  `json:"vector_failures"`
	GraphFailures  int  `json:"graph_failures"`
	Interrupted    bool `json:"interrupted,omitempty"`

	Problems []Problem `json:"problems,omitempty"`
}

// Problem describes a record that was not fully added.
type Problem struct {
	RecordID string   `json:"record_id"`
	Status   Status   `json:"status"`
	Errors   []string `json:"errors"`
}

// Summarize folds results into a Report.
func Summarize(results []Result) Report {
	var r Report
	for _, res := range results {
		r.Total++
		switch res.Status {
		case StatusAdded:
			r.Added++
		case StatusPartial:
			r.Partial++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}

		if res.Status != StatusSkipped {
			if res.VectorErr != nil {
				r.VectorFailures++
			} else {
				r.VectorLoaded++
			}
			if res.GraphErr != nil {
				r.GraphFailures++
			} else {
				r.GraphLoaded++
			}
		}

		if res.Status != StatusAdded {
			p := Problem{RecordID: res.RecordID, Status: res.Status}
			for _, err := range []error{res.Err, res.VectorErr, res.GraphErr} {
				if err != nil {
					p.Errors = append(p.Errors, err.Error())
				}
			}
			r.Problems = append(r.Problems, p)
		}
	}
	return r
}

// Counts returns the added/skipped/failed triple. Records with any store
// failure, partial or total, count as failed.
func (r Report) Counts() (added, skipped, failed int) {
	return r.Added, r.Skipped, r.Partial + r.Failed
}

// Merge adds the counts of other to r.
func (r Report) Merge(other Report) Report {
	r.Total += other.Total
	r.Added += other.Added
	r.Partial += other.Partial
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.VectorLoaded += other.VectorLoaded
	r.GraphLoaded += other.GraphLoaded
	r.VectorFailures += other.VectorFailures
	r.GraphFailures += other.GraphFailures
	r.Interrupted = r.Interrupted || other.Interrupted
	r.Problems = append(r.Problems, other.Problems...)
	return r
}

// PrintSummary writes a human-readable summary.
func (r Report) PrintSummary(w io.Writer) {
	added, skipped, failed := r.Counts()
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║          INGESTION REPORT            ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Records:     %-24d║\n", r.Total)
	fmt.Fprintf(w, "║ Added:       %-24d║\n", added)
	fmt.Fprintf(w, "║ Skipped:     %-24d║\n", skipped)
	fmt.Fprintf(w, "║ Failed:      %-24d║\n", failed)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Vector: loaded %d, failed %d\n", r.VectorLoaded, r.VectorFailures)
	fmt.Fprintf(w, "║ Graph:  loaded %d, failed %d\n", r.GraphLoaded, r.GraphFailures)
	if len(r.Problems) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ PROBLEMS\n")
		for _, p := range r.Problems {
			fmt.Fprintf(w, "║   • %s [%s]\n", p.RecordID, p.Status)
			for _, e := range p.Errors {
				fmt.Fprintf(w, "║       %s\n", e)
			}
		}
	}
	if r.Interrupted {
		fmt.Fprintf(w, "║ (interrupted before the batch finished)\n")
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the report as formatted JSON.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
