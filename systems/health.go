package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
)

// DamageReceiver is anything that can be healed or hurt.
type DamageReceiver interface {
	ReceiveHeal(amount float64)
	TakeDamage(amount int, t components.DamageType)
}

// Allies resolves entity handles to the parts an aura touches.
// Destroyed entities resolve to nil or false.
type Allies interface {
	Position(e ecs.Entity) (components.Position, bool)
	Buffs(e ecs.Entity) *components.BuffRegistry
	Receiver(e ecs.Entity) DamageReceiver
}

// ApplyHeal raises current HP by amount, capped at the buffed maximum.
func ApplyHeal(h *components.Health, buffs *components.BuffRegistry, amount float64) {
	if h == nil || amount <= 0 || !h.Alive() {
		return
	}
	var pct float64
	if buffs != nil {
		pct = buffs.Aggregate().Percent
	}
	h.Current = min(h.Current+amount, h.Max(pct))
}

// ApplyDamage reduces current HP by amount after resistances and returns the
// damage actually dealt. Resistance is capped at 100 percent.
func ApplyDamage(h *components.Health, buffs *components.BuffRegistry, amount int, t components.DamageType) float64 {
	if h == nil || amount <= 0 {
		return 0
	}
	var resist float64
	if buffs != nil {
		resist = buffs.Aggregate().Resistance.Of(t)
	}
	resist = min(max(resist, 0), 100)

	dealt := float64(amount) * (1 - resist/100)
	dealt = min(dealt, h.Current)
	h.Current -= dealt
	return dealt
}

// healthReceiver adapts a health component and its registry to DamageReceiver.
type healthReceiver struct {
	health *components.Health
	buffs  *components.BuffRegistry
}

func (r healthReceiver) ReceiveHeal(amount float64) {
	ApplyHeal(r.health, r.buffs, amount)
}

func (r healthReceiver) TakeDamage(amount int, t components.DamageType) {
	ApplyDamage(r.health, r.buffs, amount, t)
}

// WorldAllies implements Allies over an ark world.
type WorldAllies struct {
	world     *ecs.World
	posMap    *ecs.Map[components.Position]
	buffMap   *ecs.Map[components.BuffRegistry]
	healthMap *ecs.Map[components.Health]
}

// NewWorldAllies creates component mappers for the given world.
func NewWorldAllies(world *ecs.World) *WorldAllies {
	return &WorldAllies{
		world:     world,
		posMap:    ecs.NewMap[components.Position](world),
		buffMap:   ecs.NewMap[components.BuffRegistry](world),
		healthMap: ecs.NewMap[components.Health](world),
	}
}

// Position returns the entity's position if it is alive and has one.
func (a *WorldAllies) Position(e ecs.Entity) (components.Position, bool) {
	if !a.world.Alive(e) || !a.posMap.Has(e) {
		return components.Position{}, false
	}
	return *a.posMap.Get(e), true
}

// Buffs returns the entity's registry, or nil.
func (a *WorldAllies) Buffs(e ecs.Entity) *components.BuffRegistry {
	if !a.world.Alive(e) || !a.buffMap.Has(e) {
		return nil
	}
	return a.buffMap.Get(e)
}

// Receiver returns a heal/damage adapter for the entity, or nil.
func (a *WorldAllies) Receiver(e ecs.Entity) DamageReceiver {
	if !a.world.Alive(e) || !a.healthMap.Has(e) {
		return nil
	}
	return healthReceiver{health: a.healthMap.Get(e), buffs: a.Buffs(e)}
}
