// Package game runs the headless slimekeep simulation: units in an ark
// world, aura emitters, per-unit upgrade engines and run telemetry.
package game

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
	"github.com/pthm-cable/slimekeep/config"
	"github.com/pthm-cable/slimekeep/storage"
	"github.com/pthm-cable/slimekeep/systems"
	"github.com/pthm-cable/slimekeep/telemetry"
	"github.com/pthm-cable/slimekeep/upgrades"
)

// Options are the collaborators a Game is built from.
type Options struct {
	Config  *config.Config
	Catalog *upgrades.Catalog
	Profile *storage.Profile
	Output  *telemetry.OutputManager // nil disables CSV output
	Logger  *slog.Logger
	// LogStats logs every flushed telemetry window.
	LogStats bool
}

// Game holds the complete simulation state.
type Game struct {
	cfg     *config.Config
	catalog *upgrades.Catalog
	profile *storage.Profile
	logger  *slog.Logger

	world      *ecs.World
	unitMapper *ecs.Map5[
		components.Position,
		components.Unit,
		components.Health,
		components.Combat,
		components.BuffRegistry,
	]
	unitFilter *ecs.Filter5[
		components.Position,
		components.Unit,
		components.Health,
		components.Combat,
		components.BuffRegistry,
	]
	// Individual component mappers for lookups
	posMap    *ecs.Map[components.Position]
	unitMap   *ecs.Map[components.Unit]
	healthMap *ecs.Map[components.Health]
	combatMap *ecs.Map[components.Combat]
	buffMap   *ecs.Map[components.BuffRegistry]

	grid   *systems.SpatialGrid
	allies *systems.WorldAllies
	auras  *systems.AuraSystem

	// Per-unit state kept outside the world. Aura configs are mutated by
	// upgrades and re-attached after each purchase.
	auraConfigs map[ecs.Entity]*components.AuraConfig
	engines     map[ecs.Entity]*upgrades.Engine

	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	lifetimeTracker  *telemetry.LifetimeTracker
	output           *telemetry.OutputManager
	logStats         bool
	statsCallback    func(telemetry.WindowStats)
	bookmarks        []telemetry.Bookmark

	scenario      *config.ScenarioConfig
	scenarioUnits []ecs.Entity

	tick         int32
	nextID       uint32
	incomeAccum  float64
	numAllies    int
	numEnemies   int
	totalDeaths  int
	totalBought  int
	totalRefused int
}

// New creates a game with an empty world.
func New(opts Options) (*Game, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("game: nil config")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("game: nil catalog")
	}
	if opts.Profile == nil {
		return nil, fmt.Errorf("game: nil profile")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	world := ecs.NewWorld()

	g := &Game{
		cfg:     cfg,
		catalog: opts.Catalog,
		profile: opts.Profile,
		logger:  logger,
		world:   world,
		unitMapper: ecs.NewMap5[
			components.Position,
			components.Unit,
			components.Health,
			components.Combat,
			components.BuffRegistry,
		](world),
		unitFilter: ecs.NewFilter5[
			components.Position,
			components.Unit,
			components.Health,
			components.Combat,
			components.BuffRegistry,
		](world),
		posMap:        ecs.NewMap[components.Position](world),
		unitMap:       ecs.NewMap[components.Unit](world),
		healthMap:     ecs.NewMap[components.Health](world),
		combatMap:     ecs.NewMap[components.Combat](world),
		buffMap:       ecs.NewMap[components.BuffRegistry](world),
		auraConfigs:   make(map[ecs.Entity]*components.AuraConfig),
		engines:       make(map[ecs.Entity]*upgrades.Engine),
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.DT32),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		output:        opts.Output,
		logStats:      opts.LogStats,
	}
	g.bookmarkDetector = telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistory)
	g.lifetimeTracker = telemetry.NewLifetimeTracker()

	g.grid = systems.NewSpatialGrid(cfg.Derived.WorldW32, cfg.Derived.WorldH32, float32(cfg.Physics.GridCellSize))
	g.allies = systems.NewWorldAllies(world)
	g.auras = systems.NewAuraSystem(g.grid, g.allies, g.isAlive, logger)

	return g, nil
}

// SetStatsCallback registers a callback for each flushed telemetry window.
func (g *Game) SetStatsCallback(cb func(telemetry.WindowStats)) {
	g.statsCallback = cb
}

// Step runs a single tick of the simulation.
func (g *Game) Step() {
	dt := g.cfg.Physics.DT
	g.perfCollector.StartTick()

	// 1. Scripted scenario events for this tick
	g.perfCollector.StartPhase(telemetry.PhaseEvents)
	g.applyEvents()

	// 2. Rebuild spatial index
	g.perfCollector.StartPhase(telemetry.PhaseSpatialGrid)
	g.updateSpatialGrid()

	// 3. Aura reconciliation and heals
	g.perfCollector.StartPhase(telemetry.PhaseAura)
	st := g.auras.Update(dt)
	g.collector.RecordAuraPass(st.Passes, st.Entered, st.Left, st.Healed)
	g.perfCollector.RecordAuraRecipients(st.Recipients)

	// 4. Passive income
	g.perfCollector.StartPhase(telemetry.PhaseEconomy)
	g.updateIncome(dt)

	// 5. Remove dead units
	g.perfCollector.StartPhase(telemetry.PhaseCleanup)
	g.cleanupDead()

	g.tick++

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()
	g.perfCollector.EndTick()
}

// updateSpatialGrid rebuilds the spatial index from live units.
func (g *Game) updateSpatialGrid() {
	g.grid.Clear()

	query := g.unitFilter.Query()
	for query.Next() {
		pos, unit, health, _, _ := query.Get()
		if health.Alive() {
			g.grid.Insert(query.Entity(), *pos, unit.Layer)
		}
	}
}

// cleanupDead removes units whose health reached zero.
func (g *Game) cleanupDead() {
	// Collect first: the world is locked while a query is open.
	var dead []ecs.Entity
	query := g.unitFilter.Query()
	for query.Next() {
		_, _, health, _, _ := query.Get()
		if !health.Alive() {
			dead = append(dead, query.Entity())
		}
	}

	for _, e := range dead {
		g.collector.RecordDeath()
		g.totalDeaths++
		g.remove(e, telemetry.FateDied)
	}
}

func (g *Game) isAlive(e ecs.Entity) bool {
	if !g.world.Alive(e) || !g.healthMap.Has(e) {
		return false
	}
	return g.healthMap.Get(e).Alive()
}

// Tick returns the number of completed steps.
func (g *Game) Tick() int32 {
	return g.tick
}

// Auras returns the aura system.
func (g *Game) Auras() *systems.AuraSystem {
	return g.auras
}

// Profile returns the currency and unlock store.
func (g *Game) Profile() *storage.Profile {
	return g.profile
}

// Totals returns run-wide deaths, purchases and refused purchases.
func (g *Game) Totals() (deaths, bought, refused int) {
	return g.totalDeaths, g.totalBought, g.totalRefused
}
