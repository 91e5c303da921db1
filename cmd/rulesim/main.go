// Command rulesim plays a scripted scenario through the rules engine and
// prints the events and the final state.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/magefree/mage-rules-go/internal/config"
	"github.com/magefree/mage-rules-go/internal/game"
	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/repository"
)

var (
	configPath   = flag.String("config", "config/config.yaml", "path to configuration file")
	scenarioPath = flag.String("scenario", "", "scenario file to play")
	replayID     = flag.String("replay", "", "replay a saved recording by game id instead of playing a scenario")
	record       = flag.Bool("record", false, "save the game recording to replay.dir")
	persist      = flag.Bool("persist", false, "store a checkpoint of the final state in the database")
	dbCards      = flag.Bool("db-cards", false, "add the cards stored in the database to the catalog")
	version      = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting rulesim",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Error("rulesim failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	var db *repository.DB
	if cfg.Database.Enabled() && (*persist || *dbCards) {
		var err error
		db, err = repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
	}

	cards, err := loadCatalog(ctx, cfg.Catalog, db, logger)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", zap.Int("cards", cards.Len()))

	if *replayID != "" {
		return replay(cfg, cards, *replayID, out, logger)
	}
	if *scenarioPath == "" {
		return fmt.Errorf("either -scenario or -replay is required")
	}

	sc, err := LoadScenario(*scenarioPath)
	if err != nil {
		return err
	}
	if sc.Seed == 0 {
		sc.Seed = cfg.Game.Seed
	}

	var opts []game.ManagerOption
	var recorder *game.Recorder
	if *record {
		if cfg.Replay.Dir == "" {
			return fmt.Errorf("-record needs replay.dir to be configured")
		}
		recorder = game.NewRecorder(logger, cfg.Replay.Dir)
		opts = append(opts, game.WithRecorder(recorder))
	}
	if *persist {
		if db == nil {
			return fmt.Errorf("-persist needs database.url to be configured")
		}
		opts = append(opts, game.WithCheckpointStore(repository.NewCheckpointRepository(db, logger)))
	}

	m := game.NewManager(cards, cfg.Game.Rules(), logger, opts...)
	if err := m.Create(sc.Setup); err != nil {
		return err
	}

	fmt.Fprintf(out, "game %s (seed %d)\n", sc.GameID, sc.Seed)
	playErr := NewRunner(m, sc.GameID, out, logger).Run(sc.Steps)

	err = m.With(sc.GameID, func(g *game.Game) error {
		s, err := Summarize(g)
		if err != nil {
			return err
		}
		return WriteSummary(out, s)
	})
	if err != nil {
		return err
	}
	if playErr != nil {
		return playErr
	}

	if recorder != nil {
		if err := recorder.Save(sc.GameID); err != nil {
			return err
		}
	}
	if *persist {
		if err := m.Persist(ctx, sc.GameID); err != nil {
			return err
		}
	}
	return nil
}

func replay(cfg *config.Config, cards *catalog.Registry, gameID string, out io.Writer, logger *zap.Logger) error {
	if cfg.Replay.Dir == "" {
		return fmt.Errorf("-replay needs replay.dir to be configured")
	}
	rec, err := game.LoadRecordingFromFile(cfg.Replay.Dir, gameID)
	if err != nil {
		return err
	}
	g, err := game.Replay(rec, cards, -1, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "replayed %d actions of game %s\n", rec.Len(), gameID)
	s, err := Summarize(g)
	if err != nil {
		return err
	}
	return WriteSummary(out, s)
}

// loadCatalog starts from the core set and adds the configured card
// directories and, when asked, the cards stored in the database.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, db *repository.DB, logger *zap.Logger) (*catalog.Registry, error) {
	core, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("load core set: %w", err)
	}
	registries := []*catalog.Registry{core}
	for _, dir := range cfg.Paths {
		reg, err := catalog.LoadDir(ctx, dir, logger)
		if err != nil {
			return nil, fmt.Errorf("load cards from %s: %w", dir, err)
		}
		registries = append(registries, reg)
	}
	if db != nil && *dbCards {
		reg, err := repository.NewCardRepository(db, logger).Registry(ctx)
		if err != nil {
			return nil, err
		}
		registries = append(registries, reg)
	}
	if len(registries) == 1 {
		return core, nil
	}
	return catalog.Merge(registries...)
}

func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
