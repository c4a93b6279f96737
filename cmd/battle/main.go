// Package main runs countryball team battles from the command line.
//
// With instance ids as arguments it runs one quick battle (2, 4 or 6 ids,
// split into two teams) and prints the transcript. With -console it reads
// session commands from stdin until EOF or a signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/ballbattle/internal/config"
	"github.com/cory-johannsen/ballbattle/internal/game/ball"
	"github.com/cory-johannsen/ballbattle/internal/game/battle"
	"github.com/cory-johannsen/ballbattle/internal/game/session"
	"github.com/cory-johannsen/ballbattle/internal/gameserver"
	"github.com/cory-johannsen/ballbattle/internal/observability"
	"github.com/cory-johannsen/ballbattle/internal/server"
	"github.com/cory-johannsen/ballbattle/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	console := flag.Bool("console", false, "read session commands from stdin")
	outDir := flag.String("out", "", "directory to save battle transcripts (battle_<id>.txt)")
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

	ctx := context.Background()
	source, closeSource, err := newInstanceSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("building instance source", zap.Error(err))
	}
	defer closeSource()

	limits := battle.Limits{TeamSize: cfg.Battle.MaxTeamSize, TurnLimit: cfg.Battle.TurnLimit}
	handler := gameserver.NewBattleHandler(session.NewManager(), source, limits, cfg.Battle.SessionTTL, logger)

	logger.Info("battle tool initialized",
		zap.String("backend", cfg.Storage.Backend),
		zap.Int("max_team_size", limits.TeamSize),
		zap.Int("turn_limit", limits.TurnLimit),
		zap.Duration("startup", time.Since(start)),
	)

	if *console {
		if err := runConsole(ctx, handler, cfg, *outDir, logger); err != nil {
			logger.Fatal("console error", zap.Error(err))
		}
		return
	}

	if err := runQuick(ctx, handler, flag.Args(), *outDir, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newInstanceSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (gameserver.InstanceSource, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		dbStart := time.Now()
		pool, err := postgres.NewPoolWithRetry(ctx, cfg.Database, 3, time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := pool.Health(ctx, 5*time.Second); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database health check: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		return postgres.NewBallRepository(pool.DB()), pool.Close, nil
	default:
		cat, err := ball.LoadCatalog(cfg.Content.BallsDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("ball catalog loaded",
			zap.String("dir", cfg.Content.BallsDir),
			zap.Int("balls", cat.BallCount()),
			zap.Int("instances", cat.InstanceCount()),
		)
		return cat, func() {}, nil
	}
}

func runQuick(ctx context.Context, handler *gameserver.BattleHandler, args []string, outDir string, logger *zap.Logger) error {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid instance id %q", a)
		}
		ids = append(ids, id)
	}
	out, err := handler.QuickBattle(ctx, ids)
	if err != nil {
		return err
	}
	fmt.Println(gameserver.FormatOutcome(out))
	if outDir != "" {
		path, err := gameserver.SaveTranscript(outDir, out)
		if err != nil {
			return err
		}
		logger.Info("transcript saved", zap.String("path", path))
	}
	return nil
}

func runConsole(ctx context.Context, handler *gameserver.BattleHandler, cfg config.Config, outDir string, logger *zap.Logger) error {
	c := gameserver.NewConsole(handler, os.Stdout, outDir, logger)
	lifecycle := server.NewLifecycle(logger)

	if cfg.Battle.SessionTTL > 0 {
		interval := cfg.Battle.SessionTTL / 4
		if interval < time.Second {
			interval = time.Second
		}
		lifecycle.Add("session-expiry", &server.TickerService{
			Interval: interval,
			Fn:       func(now time.Time) { handler.ExpireSessions(now) },
		})
	}
	lifecycle.Add("console", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			fmt.Fprintln(os.Stdout, "type 'help' for commands")
			return c.Run(ctx, os.Stdin)
		},
	})
	return lifecycle.Run(ctx)
}
