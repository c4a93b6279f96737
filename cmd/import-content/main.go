// Package main loads the YAML ball catalog into PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/ballbattle/internal/config"
	"github.com/cory-johannsen/ballbattle/internal/game/ball"
	"github.com/cory-johannsen/ballbattle/internal/observability"
	"github.com/cory-johannsen/ballbattle/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sourceDir := flag.String("source", "", "catalog directory (defaults to content.balls_dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	dir := *sourceDir
	if dir == "" {
		dir = cfg.Content.BallsDir
	}

	start := time.Now()
	cat, err := ball.LoadCatalog(dir)
	if err != nil {
		logger.Fatal("loading catalog", zap.String("dir", dir), zap.Error(err))
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Health(ctx, 5*time.Second); err != nil {
		logger.Fatal("database health check failed", zap.Error(err))
	}

	nBalls, nInstances, err := postgres.NewBallRepository(pool.DB()).ImportCatalog(ctx, cat)
	if err != nil {
		logger.Fatal("importing catalog", zap.Error(err))
	}
	logger.Info("catalog imported",
		zap.String("dir", dir),
		zap.Int("balls", nBalls),
		zap.Int("instances", nInstances),
	)
	fmt.Printf("import complete in %s\n", time.Since(start).Round(time.Millisecond))
}
