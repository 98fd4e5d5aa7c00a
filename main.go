package main

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/pthm-cable/slimekeep/config"
	"github.com/pthm-cable/slimekeep/game"
	"github.com/pthm-cable/slimekeep/storage"
	"github.com/pthm-cable/slimekeep/telemetry"
	"github.com/pthm-cable/slimekeep/upgrades"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	catalogPath := flag.String("catalog", "", "Path to upgrade catalog YAML (empty = use config, then embedded)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and snapshot")
	dbPath := flag.String("db", "", "SQLite profile database (empty = use config, then in-memory)")
	profileName := flag.String("profile", "", "Profile name (empty = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = use config, then scenario length)")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if err := run(cfg, runFlags{
		catalog:  firstNonEmpty(*catalogPath, cfg.Catalog.Path),
		output:   firstNonEmpty(*outputDir, cfg.Telemetry.OutputDir),
		db:       firstNonEmpty(*dbPath, cfg.Storage.Path),
		profile:  firstNonEmpty(*profileName, cfg.Storage.Profile),
		maxTicks: *maxTicks,
		logStats: *logStats,
	}, logger); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type runFlags struct {
	catalog  string
	output   string
	db       string
	profile  string
	maxTicks int
	logStats bool
}

func run(cfg *config.Config, f runFlags, logger *slog.Logger) error {
	catalog, err := upgrades.LoadCatalog(f.catalog)
	if err != nil {
		return err
	}

	profile, err := storage.Open(storage.Options{
		Path:            f.db,
		Profile:         f.profile,
		StartingCoins:   cfg.Economy.StartingCoins,
		StartingEssence: cfg.Economy.StartingEssence,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer closeLogged(logger, "profile", profile)

	output, err := telemetry.NewOutputManager(f.output)
	if err != nil {
		return err
	}
	if err := output.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config", "error", err)
	}

	g, err := game.New(game.Options{
		Config:   cfg,
		Catalog:  catalog,
		Profile:  profile,
		Output:   output,
		Logger:   logger,
		LogStats: f.logStats,
	})
	if err != nil {
		closeLogged(logger, "output", output)
		return err
	}
	defer closeLogged(logger, "game", g)

	if err := g.LoadScenario(&cfg.Scenario); err != nil {
		return err
	}

	ticks := f.maxTicks
	if ticks <= 0 {
		ticks = cfg.Physics.MaxTicks
	}
	if ticks <= 0 {
		// Run ten seconds past the last scripted event.
		ticks = cfg.Derived.LastEventTick + int(10/cfg.Physics.DT) + 1
	}

	slog.Info("starting simulation",
		"max_ticks", ticks,
		"upgrades", catalog.Len(),
		"profile", profile.Name(),
		"output_dir", output.Dir(),
	)
	g.Run(ticks)
	slog.Info("max ticks reached", "tick", g.Tick())
	return nil
}

// closeLogged closes c and logs any error under name.
func closeLogged(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close "+name, "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
