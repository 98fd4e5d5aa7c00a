package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
	"github.com/pthm-cable/slimekeep/config"
	"github.com/pthm-cable/slimekeep/systems"
	"github.com/pthm-cable/slimekeep/telemetry"
	"github.com/pthm-cable/slimekeep/upgrades"
)

// Spawn creates a unit from a configured archetype.
func (g *Game) Spawn(archetype string, x, y float32) (ecs.Entity, error) {
	arch, ok := g.cfg.Archetype(archetype)
	if !ok {
		return ecs.Entity{}, fmt.Errorf("unknown archetype %q", archetype)
	}
	layer, ok := config.ParseLayer(arch.Layer)
	if !ok {
		return ecs.Entity{}, fmt.Errorf("archetype %q: unknown layer %q", archetype, arch.Layer)
	}

	id := g.nextID
	g.nextID++

	pos := g.clamp(components.Position{X: x, Y: y})
	unit := components.Unit{ID: id, Type: arch.Name, Layer: layer}
	health := components.Health{Current: arch.MaxHP, BaseMax: arch.MaxHP}
	combat := components.NewCombat(arch.Damage, arch.FireRate, arch.Range)
	buffs := components.NewBuffRegistry()

	e := g.unitMapper.NewEntity(&pos, &unit, &health, &combat, &buffs)
	g.lifetimeTracker.Register(id, arch.Name, g.tick)

	if layer == components.LayerAlly {
		g.numAllies++
		g.engines[e] = upgrades.NewEngine(unitTarget{g: g, e: e, unitType: arch.Name}, upgrades.Dependencies{
			Ledger:      g.profile,
			Persistence: g.profile,
			Logger:      g.logger.With("unit", id),
		})
	} else {
		g.numEnemies++
	}

	if arch.Aura != nil {
		cfg := *arch.Aura
		g.auraConfigs[e] = &cfg
		g.auras.Attach(e, cfg)
		// Owner must be in the grid before its first pass.
		g.grid.Insert(e, pos, layer)
	}

	g.logger.Debug("unit_spawned", "unit", id, "type", arch.Name, "x", pos.X, "y", pos.Y)
	return e, nil
}

// Despawn unbinds the unit's aura and removes it from the world.
func (g *Game) Despawn(e ecs.Entity) bool {
	return g.remove(e, telemetry.FateDespawned)
}

func (g *Game) remove(e ecs.Entity, fate string) bool {
	if !g.world.Alive(e) {
		return false
	}
	g.auras.Detach(e)
	delete(g.auraConfigs, e)
	delete(g.engines, e)

	if g.unitMap.Has(e) {
		unit := g.unitMap.Get(e)
		if unit.Layer == components.LayerAlly {
			g.numAllies--
		} else {
			g.numEnemies--
		}
		g.finishLifetime(unit.ID, fate)
	}
	g.world.RemoveEntity(e)
	return true
}

func (g *Game) finishLifetime(unitID uint32, fate string) {
	stats := g.lifetimeTracker.Finish(unitID, g.tick, fate, g.cfg.Derived.DT32)
	if err := g.output.WriteUnit(stats); err != nil {
		g.logger.Error("failed to write unit", "error", err)
	}
}

// Move teleports a unit, clamped to the field.
func (g *Game) Move(e ecs.Entity, x, y float32) bool {
	if !g.world.Alive(e) || !g.posMap.Has(e) {
		return false
	}
	*g.posMap.Get(e) = g.clamp(components.Position{X: x, Y: y})
	return true
}

// Damage applies typed damage after the unit's buffed resistances and
// returns the amount dealt.
func (g *Game) Damage(e ecs.Entity, amount int, t components.DamageType) float64 {
	if !g.world.Alive(e) || !g.healthMap.Has(e) {
		return 0
	}
	dealt := systems.ApplyDamage(g.healthMap.Get(e), g.buffMap.Get(e), amount, t)
	g.collector.RecordDamage(dealt)
	g.lifetimeTracker.RecordDamage(g.unitMap.Get(e).ID, dealt)
	return dealt
}

// SlimeCount returns the number of live allied units of a type.
func (g *Game) SlimeCount(unitType string) int {
	n := 0
	query := g.unitFilter.Query()
	for query.Next() {
		_, unit, health, _, _ := query.Get()
		if unit.Type == unitType && unit.Layer == components.LayerAlly && health.Alive() {
			n++
		}
	}
	return n
}

// UnitView is a read-only copy of a unit's state.
type UnitView struct {
	Position components.Position
	Unit     components.Unit
	Health   components.Health
	MaxHP    float64 // including aura percent bonus
	Combat   components.Combat
	Buffs    components.Contribution // aggregate of live sources
	Sources  int
}

// View returns a copy of the unit's state.
func (g *Game) View(e ecs.Entity) (UnitView, bool) {
	if !g.world.Alive(e) || !g.unitMap.Has(e) {
		return UnitView{}, false
	}
	buffs := g.buffMap.Get(e)
	agg := buffs.Aggregate()
	health := *g.healthMap.Get(e)
	return UnitView{
		Position: *g.posMap.Get(e),
		Unit:     *g.unitMap.Get(e),
		Health:   health,
		MaxHP:    health.Max(agg.Percent),
		Combat:   *g.combatMap.Get(e),
		Buffs:    agg,
		Sources:  buffs.Len(),
	}, true
}

// Engine returns the upgrade engine for an allied unit.
func (g *Game) Engine(e ecs.Entity) (*upgrades.Engine, bool) {
	eng, ok := g.engines[e]
	return eng, ok
}

// AuraConfig returns the unit's current aura configuration.
func (g *Game) AuraConfig(e ecs.Entity) (components.AuraConfig, bool) {
	cfg, ok := g.auraConfigs[e]
	if !ok {
		return components.AuraConfig{}, false
	}
	return *cfg, true
}

func (g *Game) clamp(p components.Position) components.Position {
	p.X = min(max(p.X, 0), g.cfg.Derived.WorldW32)
	p.Y = min(max(p.Y, 0), g.cfg.Derived.WorldH32)
	return p
}

// unitTarget exposes a unit to upgrade effects. Components are looked up on
// every call since ark may move them between purchases.
type unitTarget struct {
	g        *Game
	e        ecs.Entity
	unitType string
}

func (u unitTarget) UnitType() string { return u.unitType }

func (u unitTarget) Combat() *components.Combat {
	if !u.g.world.Alive(u.e) || !u.g.combatMap.Has(u.e) {
		return nil
	}
	return u.g.combatMap.Get(u.e)
}

func (u unitTarget) Health() *components.Health {
	if !u.g.world.Alive(u.e) || !u.g.healthMap.Has(u.e) {
		return nil
	}
	return u.g.healthMap.Get(u.e)
}

func (u unitTarget) Aura() *components.AuraConfig {
	return u.g.auraConfigs[u.e]
}
