package game

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
	"github.com/pthm-cable/slimekeep/config"
	"github.com/pthm-cable/slimekeep/storage"
	"github.com/pthm-cable/slimekeep/telemetry"
	"github.com/pthm-cable/slimekeep/upgrades"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGame builds a game on the default config with no scenario and no
// passive income.
func newTestGame(t *testing.T, mutate func(*config.Config)) *Game {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Economy.CoinsPerSecond = 0
	if mutate != nil {
		mutate(cfg)
	}

	catalog, err := upgrades.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	profile, err := storage.Open(storage.Options{
		StartingCoins:   cfg.Economy.StartingCoins,
		StartingEssence: cfg.Economy.StartingEssence,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { profile.Close() })

	g, err := New(Options{Config: cfg, Catalog: catalog, Profile: profile, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func mustSpawn(t *testing.T, g *Game, archetype string, x, y float32) ecs.Entity {
	t.Helper()
	e, err := g.Spawn(archetype, x, y)
	if err != nil {
		t.Fatalf("Spawn(%s): %v", archetype, err)
	}
	return e
}

func sources(t *testing.T, g *Game, e ecs.Entity) int {
	t.Helper()
	v, ok := g.View(e)
	if !ok {
		t.Fatalf("unit %v not alive", e)
	}
	return v.Sources
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for empty options")
	}
}

func TestSpawnUnknownArchetype(t *testing.T) {
	g := newTestGame(t, nil)
	if _, err := g.Spawn("dragon", 0, 0); err == nil {
		t.Error("expected error for unknown archetype")
	}
}

func TestLookupsOnRemovedUnit(t *testing.T) {
	g := newTestGame(t, nil)
	e := mustSpawn(t, g, "spitter_slime", 100, 100)

	if _, ok := g.View(e); !ok {
		t.Fatal("live unit has no view")
	}
	if !g.Move(e, 120, 100) {
		t.Error("Move failed on a live unit")
	}
	if dealt := g.Damage(e, 5, components.DamagePhysical); dealt <= 0 {
		t.Errorf("Damage on a live unit dealt %f", dealt)
	}

	if !g.Despawn(e) {
		t.Fatal("Despawn failed")
	}
	if _, ok := g.View(e); ok {
		t.Error("removed unit still has a view")
	}
	if g.Move(e, 0, 0) {
		t.Error("Move succeeded on a removed unit")
	}
	if dealt := g.Damage(e, 5, components.DamagePhysical); dealt != 0 {
		t.Errorf("Damage on a removed unit dealt %f", dealt)
	}
	if got := g.Buy(e, "spitter_acid_2"); got != telemetry.OutcomeNoEngine {
		t.Errorf("Buy on a removed unit = %s, want %s", got, telemetry.OutcomeNoEngine)
	}
}

func TestAuraReachesNearbyAllies(t *testing.T) {
	g := newTestGame(t, nil)
	healer := mustSpawn(t, g, "healer_slime", 100, 100)
	spitter := mustSpawn(t, g, "spitter_slime", 120, 100)
	raider := mustSpawn(t, g, "raider", 110, 100)
	guard := mustSpawn(t, g, "guard_slime", 500, 400)

	// Owner benefits from the moment of spawn.
	if sources(t, g, healer) != 1 {
		t.Fatal("healer should carry its own aura")
	}

	g.Step()

	if sources(t, g, spitter) != 1 {
		t.Error("spitter in range should receive the aura")
	}
	if sources(t, g, raider) != 0 {
		t.Error("enemies never receive ally auras")
	}
	if sources(t, g, guard) != 0 {
		t.Error("guard out of range should not receive the aura")
	}

	v, _ := g.View(spitter)
	if math.Abs(v.MaxHP-66) > 1e-9 {
		t.Errorf("spitter max hp = %v, want 66", v.MaxHP)
	}
	if v.Buffs.Resistance.Of(components.DamagePoison) != 5 {
		t.Errorf("spitter poison resistance = %v, want 5", v.Buffs.Resistance.Of(components.DamagePoison))
	}
}

func TestLeavingRangeRemovesBuff(t *testing.T) {
	g := newTestGame(t, nil)
	mustSpawn(t, g, "healer_slime", 100, 100)
	spitter := mustSpawn(t, g, "spitter_slime", 120, 100)

	g.Step()
	if sources(t, g, spitter) != 1 {
		t.Fatal("spitter should be buffed")
	}

	g.Move(spitter, 600, 100)
	// One full scan interval at dt 0.05 is 10 ticks.
	g.Run(12)
	if sources(t, g, spitter) != 0 {
		t.Error("buff should drop after leaving the radius")
	}

	g.Move(spitter, 110, 110)
	g.Run(12)
	if sources(t, g, spitter) != 1 {
		t.Error("buff should return after re-entering")
	}
}

func TestDespawnAndDeathClearBuffs(t *testing.T) {
	tests := []struct {
		name string
		kill func(g *Game, healer ecs.Entity)
	}{
		{"despawn", func(g *Game, healer ecs.Entity) { g.Despawn(healer) }},
		{"death", func(g *Game, healer ecs.Entity) {
			g.Damage(healer, 10000, components.DamagePhysical)
			g.Step()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, nil)
			healer := mustSpawn(t, g, "healer_slime", 100, 100)
			spitter := mustSpawn(t, g, "spitter_slime", 120, 100)
			g.Step()
			if sources(t, g, spitter) != 1 {
				t.Fatal("spitter should be buffed")
			}

			tt.kill(g, healer)

			if sources(t, g, spitter) != 0 {
				t.Error("buff survived its source")
			}
			if g.Auras().Len() != 0 {
				t.Errorf("auras = %d, want 0", g.Auras().Len())
			}
			if _, ok := g.View(healer); ok {
				t.Error("healer still in the world")
			}
		})
	}
}

func TestStackingFromTwoHealers(t *testing.T) {
	g := newTestGame(t, nil)
	mustSpawn(t, g, "healer_slime", 100, 100)
	mustSpawn(t, g, "healer_slime", 140, 100)
	spitter := mustSpawn(t, g, "spitter_slime", 120, 100)

	g.Step()

	v, _ := g.View(spitter)
	if v.Sources != 2 {
		t.Fatalf("sources = %d, want 2", v.Sources)
	}
	if math.Abs(v.Buffs.Percent-20) > 1e-9 {
		t.Errorf("percent = %v, want 20", v.Buffs.Percent)
	}
}

func TestDamageUsesResistance(t *testing.T) {
	g := newTestGame(t, nil)
	mustSpawn(t, g, "healer_slime", 100, 100)
	spitter := mustSpawn(t, g, "spitter_slime", 120, 100)
	g.Step()

	dealt := g.Damage(spitter, 20, components.DamagePoison)
	if math.Abs(dealt-19) > 1e-9 {
		t.Errorf("poison dealt = %v, want 19", dealt)
	}
	dealt = g.Damage(spitter, 20, components.DamagePhysical)
	if dealt != 20 {
		t.Errorf("physical dealt = %v, want 20", dealt)
	}
}

func TestBuyOutcomes(t *testing.T) {
	g := newTestGame(t, nil)
	healer := mustSpawn(t, g, "healer_slime", 100, 100)
	spitter := mustSpawn(t, g, "spitter_slime", 120, 100)
	raider := mustSpawn(t, g, "raider", 300, 300)

	steps := []struct {
		unit  ecs.Entity
		id    string
		want  telemetry.PurchaseOutcome
		coins int
	}{
		{raider, "healer_bloom_1", telemetry.OutcomeNoEngine, 400},
		{healer, "no_such_upgrade", telemetry.OutcomeUnknown, 400},
		{spitter, "healer_bloom_1", telemetry.OutcomeRefused, 400},
		{healer, "healer_bloom_2", telemetry.OutcomeRefused, 400}, // missing prerequisite
		{healer, "healer_bloom_1", telemetry.OutcomeBought, 320},
		{healer, "healer_bloom_1", telemetry.OutcomeRefused, 320}, // already owned
		{healer, "healer_bloom_2", telemetry.OutcomeBought, 140},
		{healer, "healer_ward_1", telemetry.OutcomeBought, 70}, // tier 1 is never blocked
		{healer, "healer_ward_2", telemetry.OutcomeRefused, 70},
	}
	for i, s := range steps {
		if got := g.Buy(s.unit, s.id); got != s.want {
			t.Errorf("step %d: Buy(%s) = %s, want %s", i, s.id, got, s.want)
		}
		if c := g.Profile().CoinBalance(); c != s.coins {
			t.Errorf("step %d: coins = %d, want %d", i, c, s.coins)
		}
	}

	aura, ok := g.AuraConfig(healer)
	if !ok {
		t.Fatal("healer lost its aura")
	}
	if math.Abs(aura.HealPerSecond-6) > 1e-9 {
		t.Errorf("heal/s = %v, want 6", aura.HealPerSecond)
	}
	if math.Abs(float64(aura.Radius)-117) > 1e-3 {
		t.Errorf("radius = %v, want 117", aura.Radius)
	}

	// The bound source picked up the new config.
	src, _ := g.Auras().Source(healer)
	if math.Abs(float64(src.Config().Radius)-117) > 1e-3 {
		t.Errorf("bound radius = %v, want 117", src.Config().Radius)
	}

	eng, _ := g.Engine(healer)
	if path, ok := eng.State().CommittedPath(); !ok || path != 0 {
		t.Errorf("committed path = %d, %v", path, ok)
	}

	v, _ := g.View(healer)
	if v.Health.BonusMax != 25 {
		t.Errorf("bonus max hp = %v, want 25", v.Health.BonusMax)
	}

	deaths, bought, refused := g.Totals()
	if deaths != 0 || bought != 3 || refused != 6 {
		t.Errorf("totals = %d, %d, %d", deaths, bought, refused)
	}
}

func TestEssenceUnlockPersists(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) {
		c.Economy.StartingCoins = 2000
	})
	healer := mustSpawn(t, g, "healer_slime", 100, 100)
	mustSpawn(t, g, "healer_slime", 150, 100)

	for _, id := range []string{"healer_bloom_1", "healer_bloom_2", "healer_bloom_3"} {
		if got := g.Buy(healer, id); got != telemetry.OutcomeBought {
			t.Fatalf("Buy(%s) = %s", id, got)
		}
	}
	p := g.Profile()
	if p.EssenceBalance() != 0 {
		t.Errorf("essence = %d, want 0", p.EssenceBalance())
	}
	if !p.IsEssenceUnlocked("healer_bloom_3") {
		t.Error("bloom_3 not unlocked")
	}
	if p.Checkpoints() < 3 {
		t.Errorf("checkpoints = %d, want at least 3", p.Checkpoints())
	}
}

func TestSlimeCount(t *testing.T) {
	g := newTestGame(t, nil)
	mustSpawn(t, g, "spitter_slime", 10, 10)
	doomed := mustSpawn(t, g, "spitter_slime", 20, 10)
	mustSpawn(t, g, "raider", 30, 10)

	if n := g.SlimeCount("spitter_slime"); n != 2 {
		t.Errorf("spitters = %d, want 2", n)
	}
	g.Damage(doomed, 1000, components.DamageFire)
	if n := g.SlimeCount("spitter_slime"); n != 1 {
		t.Errorf("spitters after death = %d, want 1", n)
	}
	if n := g.SlimeCount("raider"); n != 0 {
		t.Errorf("raiders counted as slimes: %d", n)
	}
}

func TestPassiveIncome(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) {
		c.Economy.CoinsPerSecond = 5
	})
	// 20 ticks at dt 0.05 is one second.
	g.Run(20)
	if c := g.Profile().CoinBalance(); c != 405 {
		t.Errorf("coins = %d, want 405", c)
	}
}

func TestDefaultScenarioRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	catalog, err := upgrades.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	profile, err := storage.Open(storage.Options{
		StartingCoins:   cfg.Economy.StartingCoins,
		StartingEssence: cfg.Economy.StartingEssence,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer profile.Close()
	output, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	g, err := New(Options{Config: cfg, Catalog: catalog, Profile: profile, Output: output, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	var windows int
	g.SetStatsCallback(func(telemetry.WindowStats) { windows++ })

	if err := g.LoadScenario(&cfg.Scenario); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	g.Run(cfg.Derived.LastEventTick + 20)

	if windows == 0 {
		t.Error("no telemetry windows flushed")
	}
	_, bought, refused := g.Totals()
	if bought == 0 || refused == 0 {
		t.Errorf("bought %d refused %d, want both non-zero", bought, refused)
	}
	if _, ok := g.View(g.scenarioUnits[4]); ok {
		t.Error("despawned scenario unit still alive")
	}

	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "units.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var units []telemetry.LifetimeStats
	if err := gocsv.UnmarshalFile(f, &units); err != nil {
		t.Fatalf("reading units.csv: %v", err)
	}
	if len(units) != len(cfg.Scenario.Units) {
		t.Errorf("units.csv rows = %d, want %d", len(units), len(cfg.Scenario.Units))
	}
	fates := map[string]int{}
	for _, u := range units {
		fates[u.Fate]++
	}
	if fates[telemetry.FateDespawned] != 1 {
		t.Errorf("fates = %v, want one despawn", fates)
	}

	snap, err := telemetry.LoadSnapshot(filepath.Join(dir, "snapshot.json"))
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Tick != g.Tick() || len(snap.Units) == 0 {
		t.Errorf("snapshot tick %d units %d", snap.Tick, len(snap.Units))
	}
}
