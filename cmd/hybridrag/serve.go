package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/app"
	"github.com/efebarandurmaz/hybridrag/internal/observability"
	"github.com/efebarandurmaz/hybridrag/internal/server"
	"github.com/efebarandurmaz/hybridrag/internal/tui"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question and ingestion HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := o.open(ctx, app.Options{WithLedger: true})
			if err != nil {
				return err
			}
			log := rc.Logger
			defer func() { _ = log.Sync() }()
			if addr == "" {
				addr = rc.Config.Server.Addr
			}

			tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
				ServiceName:    "hybridrag",
				ServiceVersion: version,
				Environment:    rc.Config.Log.Env,
				OTLPEndpoint:   rc.Config.Tracing.Endpoint,
				SampleRate:     rc.Config.Tracing.SampleRate,
			})
			if err != nil {
				_ = rc.Close(context.Background())
				return fmt.Errorf("init tracing: %w", err)
			}

			health := server.NewHealthServer(version)
			health.RegisterChecks(rc.Checks())
			api := server.NewAPI(rc, rc.Coordinator, health, log)

			srv := server.NewGracefulServer(health, &server.ShutdownConfig{Logger: log})
			srv.RegisterHook(server.TracingShutdownHook(tp.Shutdown))
			srv.RegisterHook(server.ResourcesShutdownHook(rc.Close))

			errCh := srv.Start(addr, api.Router())
			log.Info("serving", zap.String("addr", addr), zap.String("model", rc.Model))

			select {
			case err := <-errCh:
				srv.Wait()
				return err
			case <-ctx.Done():
				srv.Shutdown.Shutdown()
				srv.Wait()
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

func newStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health and the ingestion ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := o.open(ctx, app.Options{WithLedger: true})
			if err != nil {
				return err
			}
			defer closeApp(rc)
			out := cmd.OutOrStdout()

			health := server.NewHealthServer(version)
			health.RegisterChecks(rc.Checks())
			checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			resp := health.Run(checkCtx)
			cancel()

			fmt.Fprintf(out, "Backends: %s\n", resp.Status)
			for _, c := range resp.Checks {
				line := fmt.Sprintf("  %-8s %s", c.Name, c.Status)
				if c.Message != "" {
					line += ": " + c.Message
				}
				fmt.Fprintln(out, line)
			}
			if rc.ModelErr != nil {
				fmt.Fprintf(out, "Answer model: %v\n", rc.ModelErr)
			} else {
				fmt.Fprintf(out, "Answer model: %s\n", rc.Model)
			}
			fmt.Fprintln(out)

			if rc.Ledger == nil {
				fmt.Fprintln(out, "Ingestion ledger disabled (ingest.ledger_path is empty)")
				return nil
			}
			summary, err := rc.Ledger.Summary(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(out, tui.RenderLedger(summary))
			return nil
		},
	}
}
