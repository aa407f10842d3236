package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/app"
	"github.com/efebarandurmaz/hybridrag/internal/config"
	"github.com/efebarandurmaz/hybridrag/internal/logger"
	"github.com/efebarandurmaz/hybridrag/internal/secrets"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	// logLevel overrides log.level, e.g. to keep the chat screen clean.
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "hybridrag",
		Short:        "Hybrid vector and graph retrieval over research papers",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/hybridrag.yaml", "Config file path")

	rootCmd.AddCommand(
		newExtractCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newModelsCmd(opts),
		newServeCmd(opts),
		newStatusCmd(opts),
	)
	return rootCmd
}

// resolveSecrets fills credentials missing from the config file.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	m, err := secrets.NewManager(cfg.Secrets)
	if err != nil {
		return err
	}
	return secrets.Apply(ctx, m, cfg)
}

// load reads the configuration and builds the logger. Validation warnings
// are logged, never fatal.
func (o *rootOptions) load(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := resolveSecrets(ctx, cfg); err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	log, err := logger.New(cfg.Log.Env, level)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	for _, w := range cfg.Validate() {
		log.Warn("config warning", zap.String("warning", w))
	}
	return cfg, log, nil
}

// open builds the RetrievalContext. The caller owns Close.
func (o *rootOptions) open(ctx context.Context, appOpts app.Options) (*app.RetrievalContext, error) {
	cfg, log, err := o.load(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := app.New(ctx, cfg, log, appOpts)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return rc, nil
}

func closeApp(rc *app.RetrievalContext) {
	if err := rc.Close(context.Background()); err != nil {
		rc.Logger.Warn("closing clients", zap.Error(err))
	}
	_ = rc.Logger.Sync()
}
