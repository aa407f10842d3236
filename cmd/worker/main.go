package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/app"
	"github.com/efebarandurmaz/hybridrag/internal/config"
	"github.com/efebarandurmaz/hybridrag/internal/logger"
	"github.com/efebarandurmaz/hybridrag/internal/secrets"
	temporalmod "github.com/efebarandurmaz/hybridrag/internal/temporal"
)

func main() {
	_ = godotenv.Load()

	configPath := "configs/hybridrag.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sm, err := secrets.NewManager(cfg.Secrets)
	if err != nil {
		zl.Fatal("secrets", zap.Error(err))
	}
	if err := secrets.Apply(ctx, sm, cfg); err != nil {
		zl.Fatal("resolving credentials", zap.Error(err))
	}

	// The worker only ingests; answer model resolution is skipped.
	rc, err := app.New(ctx, cfg, zl, app.Options{WithLedger: true, SkipModel: true, RequireStores: true})
	if err != nil {
		zl.Fatal("building retrieval context", zap.Error(err))
	}
	defer func() {
		if err := rc.Close(context.Background()); err != nil {
			zl.Warn("closing clients", zap.Error(err))
		}
	}()
	if rc.Corpus == nil {
		zl.Fatal("ingest.corpus_dir must be set for the worker")
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Corpus:      rc.Corpus,
		Coordinator: rc.Coordinator,
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		zl.Fatal("temporal client", zap.Error(err))
	}
	defer c.Close()

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		zl.Fatal("worker", zap.Error(err))
	}

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)
	<-ctx.Done()

	w.Stop()
	fmt.Println("Worker stopped")
}
