package systems

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
)

// scanEpsilon absorbs float drift when the scan countdown lands near zero.
const scanEpsilon = 1e-9

// pulseFraction scales heal pulses: each pass heals half of what a full
// scan interval at HealPerSecond would.
const pulseFraction = 0.5

// PassStats describes what a single Tick did.
type PassStats struct {
	Ran        bool    // a reconciliation pass ran this tick
	Passes     int     // reconciliation passes run, summed across sources
	Recipients int     // recipients after the pass
	Entered    int     // newly registered recipients
	Left       int     // unregistered recipients
	Healed     float64 // total heal issued this tick, pulses plus self heal
}

// AuraSource projects an AuraConfig from an owner entity onto nearby allies.
// It never owns the owner; the surrounding loop must call Unbind when the
// owner goes inactive or is destroyed.
type AuraSource struct {
	space  SpatialQuery
	allies Allies
	log    *slog.Logger

	owner      ecs.Entity
	cfg        components.AuraConfig
	id         components.SourceID
	bound      bool
	timer      float64
	recipients map[ecs.Entity]struct{}

	// Reusable scratch set for reconciliation.
	next map[ecs.Entity]struct{}
}

// NewAuraSource creates an unbound aura source.
func NewAuraSource(space SpatialQuery, allies Allies, logger *slog.Logger) *AuraSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuraSource{
		space:      space,
		allies:     allies,
		log:        logger,
		recipients: make(map[ecs.Entity]struct{}),
		next:       make(map[ecs.Entity]struct{}),
	}
}

// ID returns the stable source id. It is zero until the first Bind.
func (a *AuraSource) ID() components.SourceID {
	return a.id
}

// Owner returns the bound owner entity.
func (a *AuraSource) Owner() ecs.Entity {
	return a.owner
}

// Config returns the active (sanitized) configuration.
func (a *AuraSource) Config() components.AuraConfig {
	return a.cfg
}

// Bound reports whether Bind has been called since the last Unbind.
func (a *AuraSource) Bound() bool {
	return a.bound
}

// Recipients returns the number of currently registered recipients.
func (a *AuraSource) Recipients() int {
	return len(a.recipients)
}

// HasRecipient reports whether e is in the registered set.
func (a *AuraSource) HasRecipient(e ecs.Entity) bool {
	_, ok := a.recipients[e]
	return ok
}

// Bind stores cfg and attaches the aura to owner. A rebind first clears all
// prior recipients, then the owner immediately benefits from its own bonus.
// The first Bind scans on the next Tick; a rebind keeps the running
// countdown, capped at the new scan interval.
func (a *AuraSource) Bind(owner ecs.Entity, cfg components.AuraConfig) {
	if a.id.IsZero() {
		a.id = components.NewSourceID()
	}
	a.unregisterAll()

	rebind := a.bound
	a.owner = owner
	a.cfg = cfg.Sanitized()
	a.bound = true
	if rebind {
		a.timer = min(a.timer, a.cfg.ScanInterval)
	} else {
		a.timer = 0
	}

	if a.allies == nil {
		return
	}
	if a.allies.Buffs(owner) == nil {
		a.log.Debug("aura owner has no buff registry", "source", a.id.String())
		return
	}
	a.register(owner)
	a.recipients[owner] = struct{}{}
}

// Unbind unregisters from every recipient, the owner included, and clears
// the binding. The source id survives so a later Bind keeps it.
func (a *AuraSource) Unbind() {
	a.unregisterAll()
	a.bound = false
	a.owner = ecs.Entity{}
	a.timer = 0
}

// Tick advances the aura by dt seconds.
func (a *AuraSource) Tick(dt float64) PassStats {
	var stats PassStats
	if !a.bound || a.cfg.Inert() {
		return stats
	}

	if a.cfg.SelfHealPerSecond > 0 && dt > 0 {
		if r := a.receiver(a.owner); r != nil {
			amount := a.cfg.SelfHealPerSecond * dt
			r.ReceiveHeal(amount)
			stats.Healed += amount
		}
	}

	a.timer -= dt
	if a.timer > scanEpsilon {
		stats.Recipients = len(a.recipients)
		return stats
	}
	a.timer = a.cfg.ScanInterval
	a.reconcile(&stats)
	return stats
}

// reconcile diffs the spatial query result against the registered set. A
// radius 0 aura skips the query and pulses its owner alone.
func (a *AuraSource) reconcile(stats *PassStats) {
	stats.Ran = true
	stats.Passes = 1
	if a.allies == nil || (a.space == nil && a.cfg.Radius > 0) {
		stats.Recipients = len(a.recipients)
		return
	}
	center, ok := a.allies.Position(a.owner)
	if !ok {
		a.log.Debug("aura owner missing, skipping pass", "source", a.id.String())
		stats.Recipients = len(a.recipients)
		return
	}

	clear(a.next)
	if a.cfg.Radius > 0 {
		for _, e := range a.space.Overlap(center, a.cfg.Radius, components.LayerAlly) {
			if a.allies.Buffs(e) == nil {
				continue
			}
			a.next[e] = struct{}{}
		}
	}
	if a.allies.Buffs(a.owner) != nil {
		a.next[a.owner] = struct{}{}
	}

	pulse := a.cfg.HealPerSecond * a.cfg.ScanInterval * pulseFraction
	for e := range a.next {
		if _, known := a.recipients[e]; !known {
			a.register(e)
			stats.Entered++
		}
		if pulse > 0 {
			if r := a.receiver(e); r != nil {
				r.ReceiveHeal(pulse)
				stats.Healed += pulse
			}
		}
	}

	for e := range a.recipients {
		if _, still := a.next[e]; !still {
			a.unregister(e)
			stats.Left++
		}
	}

	a.recipients, a.next = a.next, a.recipients
	stats.Recipients = len(a.recipients)
}

func (a *AuraSource) register(e ecs.Entity) {
	c := a.cfg.Contribution()
	if c.IsZero() {
		return
	}
	if buffs := a.allies.Buffs(e); buffs != nil {
		buffs.Register(a.id, c)
	}
}

func (a *AuraSource) unregister(e ecs.Entity) {
	if a.allies == nil {
		return
	}
	if buffs := a.allies.Buffs(e); buffs != nil {
		buffs.Unregister(a.id)
	}
}

func (a *AuraSource) unregisterAll() {
	for e := range a.recipients {
		a.unregister(e)
	}
	clear(a.recipients)
}

func (a *AuraSource) receiver(e ecs.Entity) DamageReceiver {
	if a.allies == nil {
		return nil
	}
	return a.allies.Receiver(e)
}
