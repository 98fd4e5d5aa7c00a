// Package components defines ECS components for the simulation.
package components

// Layer is a bitmask classifying entities for spatial queries.
type Layer uint8

const (
	LayerAlly Layer = 1 << iota
	LayerEnemy
	LayerNeutral

	LayerAll = LayerAlly | LayerEnemy | LayerNeutral
)

// Matches reports whether l shares any bit with mask.
func (l Layer) Matches(mask Layer) bool {
	return l&mask != 0
}

// Position represents an entity's world position.
type Position struct {
	X, Y float32
}

// DistSq returns the squared distance between two positions.
func (p Position) DistSq(o Position) float32 {
	dx := o.X - p.X
	dy := o.Y - p.Y
	return dx*dx + dy*dy
}

// Unit identifies what an entity is. Type is the archetype tag that upgrade
// definitions target (e.g. "healer_slime").
type Unit struct {
	ID    uint32
	Type  string
	Layer Layer
}

// Health holds hit points. BonusMax is flat max HP added by upgrades;
// percent bonuses come from the entity's BuffRegistry.
type Health struct {
	Current  float64
	BaseMax  float64
	BonusMax float64
}

// Max returns the effective maximum for the given aggregate percent bonus.
func (h *Health) Max(percentBonus float64) float64 {
	return (h.BaseMax + h.BonusMax) * (1 + percentBonus/100)
}

// Alive reports whether the entity still has hit points.
func (h *Health) Alive() bool {
	return h.Current > 0
}

// Combat is a unit's mutable combat configuration. Upgrades multiply or add
// to these fields; damage formulas that consume them live elsewhere.
type Combat struct {
	BaseDamage         float64
	FlatDamage         float64
	DamageMultiplier   float64
	FireRate           float64 // shots per second before multipliers
	FireRateMultiplier float64
	Range              float64
	RangeMultiplier    float64
	Features           map[string]bool
}

// NewCombat returns a Combat with neutral multipliers.
func NewCombat(damage, fireRate, rng float64) Combat {
	return Combat{
		BaseDamage:         damage,
		DamageMultiplier:   1,
		FireRate:           fireRate,
		FireRateMultiplier: 1,
		Range:              rng,
		RangeMultiplier:    1,
		Features:           make(map[string]bool),
	}
}

// Damage returns the effective damage per shot.
func (c *Combat) Damage() float64 {
	return (c.BaseDamage + c.FlatDamage) * c.DamageMultiplier
}

// EffectiveFireRate returns shots per second after multipliers.
func (c *Combat) EffectiveFireRate() float64 {
	return c.FireRate * c.FireRateMultiplier
}

// EffectiveRange returns range after multipliers.
func (c *Combat) EffectiveRange() float64 {
	return c.Range * c.RangeMultiplier
}

// HasFeature reports whether a feature toggle is on.
func (c *Combat) HasFeature(name string) bool {
	return c.Features[name]
}

// DefaultScanInterval is used when an aura is configured without a scan interval.
const DefaultScanInterval = 0.5

// AuraConfig describes what an aura emitter projects.
type AuraConfig struct {
	Radius            float32     `yaml:"radius"`
	HealPerSecond     float64     `yaml:"heal_per_second"`
	SelfHealPerSecond float64     `yaml:"self_heal_per_second"` // continuous, applied every tick
	MaxHPBonusPercent float64     `yaml:"max_hp_bonus_percent"`
	Resistance        Resistances `yaml:"resistance"`
	ScanInterval      float64     `yaml:"scan_interval"` // seconds between reconciliation passes
}

// Sanitized returns a copy with negative values clamped to zero and a
// positive scan interval.
func (c AuraConfig) Sanitized() AuraConfig {
	if c.Radius < 0 {
		c.Radius = 0
	}
	c.HealPerSecond = max(c.HealPerSecond, 0)
	c.SelfHealPerSecond = max(c.SelfHealPerSecond, 0)
	c.MaxHPBonusPercent = max(c.MaxHPBonusPercent, 0)
	c.Resistance = c.Resistance.Clamped()
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	return c
}

// Contribution returns the per-recipient bonus this aura registers.
func (c AuraConfig) Contribution() Contribution {
	return Contribution{Percent: c.MaxHPBonusPercent, Resistance: c.Resistance}
}

// Inert reports whether the aura has nothing to project or heal.
func (c AuraConfig) Inert() bool {
	return c.HealPerSecond <= 0 && c.SelfHealPerSecond <= 0 && c.Contribution().IsZero()
}
