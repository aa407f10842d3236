package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/app"
	"github.com/efebarandurmaz/hybridrag/internal/corpus"
	"github.com/efebarandurmaz/hybridrag/internal/extract"
	"github.com/efebarandurmaz/hybridrag/internal/ingest"
	temporalmod "github.com/efebarandurmaz/hybridrag/internal/temporal"
	"github.com/efebarandurmaz/hybridrag/internal/tui"
)

func newExtractCmd(o *rootOptions) *cobra.Command {
	var inputDir, corpusDir string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Convert papers (PDF, text, markdown) into JSON snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := o.load(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if inputDir == "" {
				inputDir = cfg.Ingest.PapersDir
			}
			if corpusDir == "" {
				corpusDir = cfg.Ingest.CorpusDir
			}
			store, err := corpus.Open(corpusDir)
			if err != nil {
				return err
			}

			results, err := extract.New(log).Dir(cmd.Context(), inputDir, store)
			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "  failed  %s: %v\n", r.Source, r.Err)
					continue
				}
				fmt.Fprintf(out, "  saved   %s -> %s\n", r.Source, r.ID)
			}
			fmt.Fprintf(out, "Extracted %d of %d files into %s\n", len(results)-failed, len(results), store.Dir())
			return err
		},
	}
	cmd.Flags().StringVar(&inputDir, "input", "", "Directory of papers (default ingest.papers_dir)")
	cmd.Flags().StringVar(&corpusDir, "corpus", "", "Snapshot directory (default ingest.corpus_dir)")
	return cmd
}

func newIngestCmd(o *rootOptions) *cobra.Command {
	var (
		jsonOut     bool
		plain       bool
		watch       bool
		useTemporal bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load corpus snapshots into the vector and graph stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if useTemporal {
				return runTemporalIngest(ctx, o, out)
			}

			rc, err := o.open(ctx, app.Options{WithLedger: true, SkipModel: true, RequireStores: true})
			if err != nil {
				return err
			}
			defer closeApp(rc)

			report, err := rc.IngestCorpus(ctx)
			if err != nil {
				return err
			}
			if err := printReport(out, report, jsonOut, plain); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchCorpus(ctx, rc, out)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print the report without colors")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and ingest snapshots as they change")
	cmd.Flags().BoolVar(&useTemporal, "temporal", false, "Run ingestion as a Temporal workflow and wait for it")
	return cmd
}

func printReport(w io.Writer, report ingest.Report, jsonOut, plain bool) error {
	switch {
	case jsonOut:
		data, err := report.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case plain:
		report.PrintSummary(w)
	default:
		fmt.Fprint(w, tui.RenderReport(report))
	}
	return nil
}

// watchCorpus ingests every snapshot written after the initial pass until
// ctx is cancelled.
func watchCorpus(ctx context.Context, rc *app.RetrievalContext, w io.Writer) error {
	changes, err := rc.Corpus.Watch(ctx, rc.Logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Watching %s for changes (Ctrl+C to stop)\n", rc.Corpus.Dir())

	for ch := range changes {
		var res ingest.Result
		if ch.Err != nil {
			res = rc.Coordinator.Skip(ctx, ch.ID, ch.Err)
		} else {
			res = rc.Coordinator.Ingest(ctx, ch.Record)
		}
		line := fmt.Sprintf("  %-8s %s", res.Status, res.RecordID)
		if err := res.Error(); err != nil {
			line += ": " + err.Error()
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func runTemporalIngest(ctx context.Context, o *rootOptions, w io.Writer) error {
	cfg, log, err := o.load(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		TaskQueue: cfg.Temporal.TaskQueue,
	}, temporalmod.IngestCorpusWorkflow, temporalmod.IngestCorpusInput{})
	if err != nil {
		return fmt.Errorf("starting ingest workflow: %w", err)
	}
	log.Info("ingest workflow started", zap.String("workflow_id", run.GetID()), zap.String("run_id", run.GetRunID()))

	var result temporalmod.IngestCorpusOutput
	if err := run.Get(ctx, &result); err != nil {
		return fmt.Errorf("ingest workflow: %w", err)
	}

	fmt.Fprintf(w, "Records: %d  Added: %d  Skipped: %d  Partial: %d  Failed: %d\n",
		result.Total, result.Added, result.Skipped, result.Partial, result.Failed)
	fmt.Fprintf(w, "Store failures: vector %d, graph %d\n", result.VectorFailures, result.GraphFailures)
	for _, p := range result.Problems {
		fmt.Fprintf(w, "  %-8s %s %s\n", p.Status, p.RecordID, p.Error)
	}
	return nil
}
