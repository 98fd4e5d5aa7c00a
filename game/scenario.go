package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
	"github.com/pthm-cable/slimekeep/config"
)

// LoadScenario spawns the scenario's units and arms its scripted events.
// Event unit indexes refer to the order of scenario.Units.
func (g *Game) LoadScenario(sc *config.ScenarioConfig) error {
	if sc == nil {
		return nil
	}
	for i, u := range sc.Units {
		e, err := g.Spawn(u.Archetype, float32(u.X), float32(u.Y))
		if err != nil {
			return fmt.Errorf("scenario unit %d: %w", i, err)
		}
		g.scenarioUnits = append(g.scenarioUnits, e)
	}
	g.scenario = sc
	g.logger.Info("scenario_loaded",
		"units", len(sc.Units),
		"moves", len(sc.Moves),
		"damage", len(sc.Damage),
		"purchases", len(sc.Purchases),
		"despawns", len(sc.Despawns),
	)
	return nil
}

// ScenarioUnit returns the entity spawned for scenario unit index i.
func (g *Game) ScenarioUnit(i int) (ecs.Entity, bool) {
	if i < 0 || i >= len(g.scenarioUnits) {
		return ecs.Entity{}, false
	}
	return g.scenarioUnits[i], true
}

// applyEvents fires every scenario event scheduled for the current tick.
// Within a tick the order is moves, damage, purchases, despawns.
func (g *Game) applyEvents() {
	sc := g.scenario
	if sc == nil {
		return
	}
	tick := int(g.tick)

	for _, ev := range sc.Moves {
		if ev.Tick != tick {
			continue
		}
		if e, ok := g.ScenarioUnit(ev.Unit); ok {
			g.Move(e, float32(ev.X), float32(ev.Y))
		}
	}

	for _, ev := range sc.Damage {
		if ev.Tick != tick {
			continue
		}
		t, _ := components.ParseDamageType(ev.Type)
		if e, ok := g.ScenarioUnit(ev.Unit); ok {
			dealt := g.Damage(e, ev.Amount, t)
			g.logger.Debug("scenario_damage", "unit", ev.Unit, "amount", ev.Amount, "type", t.String(), "dealt", dealt)
		}
	}

	for _, ev := range sc.Purchases {
		if ev.Tick != tick {
			continue
		}
		if e, ok := g.ScenarioUnit(ev.Unit); ok {
			g.Buy(e, ev.Upgrade)
		}
	}

	for _, ev := range sc.Despawns {
		if ev.Tick != tick {
			continue
		}
		if e, ok := g.ScenarioUnit(ev.Unit); ok && g.Despawn(e) {
			g.logger.Debug("scenario_despawn", "unit", ev.Unit)
		}
	}
}

// Run steps the simulation n times.
func (g *Game) Run(n int) {
	for range n {
		g.Step()
	}
}
