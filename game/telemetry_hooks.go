package game

import (
	"sort"

	"github.com/pthm-cable/slimekeep/components"
	"github.com/pthm-cable/slimekeep/telemetry"
)

// flushTelemetry flushes the stats window when it is due and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.samplePopulation())
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := g.output.WriteWindow(stats); err != nil {
		g.logger.Error("failed to write telemetry", "error", err)
	}
	if err := g.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		g.logger.Error("failed to write perf", "error", err)
	}

	// Check for bookmarks
	for _, bm := range g.bookmarkDetector.Check(stats) {
		g.bookmarks = append(g.bookmarks, bm)
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.output.WriteBookmark(bm); err != nil {
			g.logger.Error("failed to write bookmark", "error", err)
		}
		if g.cfg.Telemetry.BookmarkSnapshots {
			if err := g.output.WriteBookmarkSnapshot(g.Snapshot(), bm); err != nil {
				g.logger.Error("failed to write bookmark snapshot", "error", err)
			}
		}
	}
}

// Bookmarks returns every bookmark fired so far.
func (g *Game) Bookmarks() []telemetry.Bookmark {
	return g.bookmarks
}

// samplePopulation collects per-ally health and buff counts.
func (g *Game) samplePopulation() telemetry.Population {
	pop := telemetry.Population{
		Allies:  g.numAllies,
		Enemies: g.numEnemies,
		Auras:   g.auras.Len(),
		Coins:   g.profile.CoinBalance(),
		Essence: g.profile.EssenceBalance(),
	}

	query := g.unitFilter.Query()
	for query.Next() {
		_, unit, health, _, buffs := query.Get()
		if unit.Layer != components.LayerAlly || !health.Alive() {
			continue
		}
		frac := 0.0
		if m := health.Max(buffs.Aggregate().Percent); m > 0 {
			frac = health.Current / m
		}
		pop.HealthFraction = append(pop.HealthFraction, frac)
		pop.BuffSources = append(pop.BuffSources, buffs.Len())
	}
	return pop
}

// Snapshot captures the current state of every live unit and the profile.
func (g *Game) Snapshot() *telemetry.Snapshot {
	s := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		Tick:        g.tick,
		WorldWidth:  g.cfg.Derived.WorldW32,
		WorldHeight: g.cfg.Derived.WorldH32,
		Coins:       g.profile.CoinBalance(),
		Essence:     g.profile.EssenceBalance(),
		Unlocked:    g.profile.Unlocked(),
	}

	query := g.unitFilter.Query()
	for query.Next() {
		pos, unit, health, combat, buffs := query.Get()
		e := query.Entity()
		agg := buffs.Aggregate()

		us := telemetry.UnitState{
			ID:             unit.ID,
			Type:           unit.Type,
			Layer:          layerName(unit.Layer),
			X:              pos.X,
			Y:              pos.Y,
			HP:             health.Current,
			MaxHP:          health.Max(agg.Percent),
			Damage:         combat.Damage(),
			FireRate:       combat.EffectiveFireRate(),
			Range:          combat.EffectiveRange(),
			BuffSources:    buffs.Len(),
			HPBonusPercent: agg.Percent,
		}
		for name, on := range combat.Features {
			if on {
				us.Features = append(us.Features, name)
			}
		}
		sort.Strings(us.Features)

		if !agg.Resistance.IsZero() {
			us.Resistance = make(map[string]float64)
			for i, v := range agg.Resistance {
				if v != 0 {
					us.Resistance[components.DamageType(i).String()] = v
				}
			}
		}

		if eng, ok := g.engines[e]; ok {
			us.Purchased = eng.State().Purchased()
			if path, ok := eng.State().CommittedPath(); ok {
				us.CommittedPath = &path
			}
		}

		if src, ok := g.auras.Source(e); ok && src.Bound() {
			cfg := src.Config()
			us.Aura = &telemetry.AuraState{
				SourceID:      src.ID().String(),
				Radius:        cfg.Radius,
				HealPerSecond: cfg.HealPerSecond,
				Recipients:    src.Recipients(),
			}
		}

		s.Units = append(s.Units, us)
	}

	sort.Slice(s.Units, func(i, j int) bool {
		return s.Units[i].ID < s.Units[j].ID
	})
	return s
}

func layerName(l components.Layer) string {
	switch l {
	case components.LayerAlly:
		return "ally"
	case components.LayerEnemy:
		return "enemy"
	case components.LayerNeutral:
		return "neutral"
	}
	return "unknown"
}

// Close writes a final checkpoint, records survivors and closes run outputs.
func (g *Game) Close() error {
	g.profile.Checkpoint()
	for _, id := range g.lifetimeTracker.IDs() {
		g.finishLifetime(id, telemetry.FateSurvived)
	}
	stats := g.perfCollector.Stats()
	if err := g.output.WritePerf(stats, g.tick); err != nil {
		g.logger.Error("failed to write perf", "error", err)
	}
	if err := g.output.WriteSnapshot(g.Snapshot()); err != nil {
		g.logger.Error("failed to write snapshot", "error", err)
	}
	g.logger.Info("run_finished",
		"tick", g.tick,
		"allies", g.numAllies,
		"enemies", g.numEnemies,
		"deaths", g.totalDeaths,
		"bought", g.totalBought,
		"refused", g.totalRefused,
		"coins", g.profile.CoinBalance(),
	)
	return g.output.Close()
}
