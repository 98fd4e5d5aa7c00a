package upgrades

import (
	"fmt"

	"github.com/pthm-cable/slimekeep/components"
)

// EffectKind tags an Effect payload.
type EffectKind string

const (
	EffectDamageMultiplier     EffectKind = "damage_multiplier"
	EffectFireRateMultiplier   EffectKind = "fire_rate_multiplier"
	EffectRangeMultiplier      EffectKind = "range_multiplier"
	EffectFlatDamage           EffectKind = "flat_damage"
	EffectMaxHPFlat            EffectKind = "max_hp_flat"
	EffectFeature              EffectKind = "feature"
	EffectAuraRadiusMultiplier EffectKind = "aura_radius_multiplier"
	EffectAuraHealMultiplier   EffectKind = "aura_heal_multiplier"
	EffectAuraResistanceFlat   EffectKind = "aura_resistance_flat"
)

// Effect is a tagged-variant upgrade payload. Which fields matter depends
// on Kind: Value for numeric kinds, Flag for features, DamageType for
// resistance kinds.
type Effect struct {
	Kind       EffectKind `yaml:"kind"`
	Value      float64    `yaml:"value,omitempty"`
	Flag       string     `yaml:"flag,omitempty"`
	DamageType string     `yaml:"damage_type,omitempty"`
}

// Target is the unit an effect mutates.
type Target interface {
	UnitType() string
	Combat() *components.Combat // nil when the unit has no combat config
}

// HealthTarget is implemented by targets whose health upgrades can change.
type HealthTarget interface {
	Health() *components.Health
}

// AuraTarget is implemented by targets that may carry an aura.
type AuraTarget interface {
	Aura() *components.AuraConfig // nil when the unit has no aura
}

// Handler interprets one EffectKind. Apply and Remove return false when the
// target lacks the capability the effect needs.
type Handler struct {
	Apply    func(t Target, e Effect) bool
	Remove   func(t Target, e Effect) bool
	Validate func(e Effect) error
}

var handlers = map[EffectKind]Handler{
	EffectDamageMultiplier: multiplier(func(c *components.Combat) *float64 { return &c.DamageMultiplier }),
	EffectFireRateMultiplier: multiplier(func(c *components.Combat) *float64 {
		return &c.FireRateMultiplier
	}),
	EffectRangeMultiplier: multiplier(func(c *components.Combat) *float64 { return &c.RangeMultiplier }),
	EffectFlatDamage: {
		Apply: func(t Target, e Effect) bool {
			c := combatOf(t)
			if c == nil {
				return false
			}
			c.FlatDamage += e.Value
			return true
		},
		Remove: func(t Target, e Effect) bool {
			c := combatOf(t)
			if c == nil {
				return false
			}
			c.FlatDamage -= e.Value
			return true
		},
	},
	EffectMaxHPFlat: {
		Apply: func(t Target, e Effect) bool {
			h := healthOf(t)
			if h == nil {
				return false
			}
			h.BonusMax += e.Value
			if e.Value > 0 && h.Alive() {
				h.Current += e.Value
			}
			return true
		},
		Remove: func(t Target, e Effect) bool {
			h := healthOf(t)
			if h == nil {
				return false
			}
			h.BonusMax -= e.Value
			return true
		},
	},
	EffectFeature: {
		Apply: func(t Target, e Effect) bool {
			c := combatOf(t)
			if c == nil {
				return false
			}
			if c.Features == nil {
				c.Features = make(map[string]bool)
			}
			c.Features[e.Flag] = true
			return true
		},
		Remove: func(t Target, e Effect) bool {
			c := combatOf(t)
			if c == nil {
				return false
			}
			delete(c.Features, e.Flag)
			return true
		},
		Validate: func(e Effect) error {
			if e.Flag == "" {
				return fmt.Errorf("feature effect needs a flag")
			}
			return nil
		},
	},
	EffectAuraRadiusMultiplier: {
		Apply: func(t Target, e Effect) bool {
			a := auraOf(t)
			if a == nil {
				return false
			}
			a.Radius *= float32(e.Value)
			return true
		},
		Remove: func(t Target, e Effect) bool {
			a := auraOf(t)
			if a == nil {
				return false
			}
			a.Radius /= float32(e.Value)
			return true
		},
		Validate: positiveValue,
	},
	EffectAuraHealMultiplier: {
		Apply: func(t Target, e Effect) bool {
			a := auraOf(t)
			if a == nil {
				return false
			}
			a.HealPerSecond *= e.Value
			return true
		},
		Remove: func(t Target, e Effect) bool {
			a := auraOf(t)
			if a == nil {
				return false
			}
			a.HealPerSecond /= e.Value
			return true
		},
		Validate: positiveValue,
	},
	EffectAuraResistanceFlat: {
		Apply: func(t Target, e Effect) bool {
			a := auraOf(t)
			dt, ok := components.ParseDamageType(e.DamageType)
			if a == nil || !ok {
				return false
			}
			a.Resistance[dt] += e.Value
			return true
		},
		Remove: func(t Target, e Effect) bool {
			a := auraOf(t)
			dt, ok := components.ParseDamageType(e.DamageType)
			if a == nil || !ok {
				return false
			}
			a.Resistance[dt] -= e.Value
			return true
		},
		Validate: func(e Effect) error {
			if _, ok := components.ParseDamageType(e.DamageType); !ok {
				return fmt.Errorf("unknown damage type %q", e.DamageType)
			}
			return nil
		},
	},
}

// RegisterKind installs or replaces the handler for kind. Call it before
// loading catalogs that use the kind.
func RegisterKind(kind EffectKind, h Handler) {
	handlers[kind] = h
}

// KnownKind reports whether kind has a handler.
func KnownKind(kind EffectKind) bool {
	_, ok := handlers[kind]
	return ok
}

// Apply mutates t. It returns false when the effect did nothing.
func (e Effect) Apply(t Target) bool {
	h, ok := handlers[e.Kind]
	if !ok || h.Apply == nil || t == nil {
		return false
	}
	return h.Apply(t, e)
}

// Remove undoes Apply. It returns false when the effect did nothing.
func (e Effect) Remove(t Target) bool {
	h, ok := handlers[e.Kind]
	if !ok || h.Remove == nil || t == nil {
		return false
	}
	return h.Remove(t, e)
}

// Validate checks the payload against its kind.
func (e Effect) Validate() error {
	h, ok := handlers[e.Kind]
	if !ok {
		return fmt.Errorf("unknown effect kind %q", e.Kind)
	}
	if h.Validate == nil {
		return nil
	}
	return h.Validate(e)
}

func (e Effect) String() string {
	switch {
	case e.Flag != "":
		return fmt.Sprintf("%s:%s", e.Kind, e.Flag)
	case e.DamageType != "":
		return fmt.Sprintf("%s:%g:%s", e.Kind, e.Value, e.DamageType)
	default:
		return fmt.Sprintf("%s:%g", e.Kind, e.Value)
	}
}

// multiplier builds a handler scaling one Combat field.
func multiplier(field func(*components.Combat) *float64) Handler {
	return Handler{
		Apply: func(t Target, e Effect) bool {
			c := combatOf(t)
			if c == nil {
				return false
			}
			*field(c) *= e.Value
			return true
		},
		Remove: func(t Target, e Effect) bool {
			c := combatOf(t)
			if c == nil {
				return false
			}
			*field(c) /= e.Value
			return true
		},
		Validate: positiveValue,
	}
}

func positiveValue(e Effect) error {
	if e.Value <= 0 {
		return fmt.Errorf("%s needs a positive value, got %g", e.Kind, e.Value)
	}
	return nil
}

func combatOf(t Target) *components.Combat {
	return t.Combat()
}

func healthOf(t Target) *components.Health {
	if ht, ok := t.(HealthTarget); ok {
		return ht.Health()
	}
	return nil
}

func auraOf(t Target) *components.AuraConfig {
	if at, ok := t.(AuraTarget); ok {
		return at.Aura()
	}
	return nil
}
