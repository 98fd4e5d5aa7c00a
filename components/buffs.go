package components

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// DamageType indexes a Resistances vector.
type DamageType uint8

const (
	DamagePhysical DamageType = iota
	DamageMagic
	DamagePoison
	DamageFire

	NumDamageTypes = 4
)

var damageTypeNames = [NumDamageTypes]string{"physical", "magic", "poison", "fire"}

func (t DamageType) String() string {
	if int(t) < NumDamageTypes {
		return damageTypeNames[t]
	}
	return "unknown"
}

// ParseDamageType maps a lowercase name to its DamageType.
func ParseDamageType(s string) (DamageType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range damageTypeNames {
		if name == s {
			return DamageType(i), true
		}
	}
	return 0, false
}

// Resistances holds percent points of damage reduction per damage type.
type Resistances [NumDamageTypes]float64

// Of returns the resistance for a damage type, 0 for unknown types.
func (r Resistances) Of(t DamageType) float64 {
	if int(t) >= NumDamageTypes {
		return 0
	}
	return r[t]
}

// Clamped returns a copy with negative entries set to zero.
func (r Resistances) Clamped() Resistances {
	for i := range r {
		if r[i] < 0 {
			r[i] = 0
		}
	}
	return r
}

// IsZero reports whether every entry is zero.
func (r Resistances) IsZero() bool {
	return r == Resistances{}
}

// UnmarshalYAML reads resistances as a map keyed by damage type name.
func (r *Resistances) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]float64
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("decoding resistances: %w", err)
	}
	*r = Resistances{}
	for name, v := range m {
		t, ok := ParseDamageType(name)
		if !ok {
			return fmt.Errorf("unknown damage type %q", name)
		}
		r[t] = v
	}
	return nil
}

// MarshalYAML writes non-zero resistances as a map keyed by damage type name.
func (r Resistances) MarshalYAML() (interface{}, error) {
	m := make(map[string]float64)
	for i, v := range r {
		if v != 0 {
			m[damageTypeNames[i]] = v
		}
	}
	return m, nil
}

// SourceID identifies an aura emitter for its whole lifetime.
type SourceID uuid.UUID

// NewSourceID returns a fresh random source id.
func NewSourceID() SourceID {
	return SourceID(uuid.New())
}

// IsZero reports whether the id was never assigned.
func (id SourceID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id SourceID) String() string {
	return uuid.UUID(id).String()
}

// Contribution is one source's bonus to a recipient.
type Contribution struct {
	Percent    float64     // max HP bonus, percent points
	Resistance Resistances // percent points per damage type
}

// IsZero reports whether the contribution adds nothing.
func (c Contribution) IsZero() bool {
	return c.Percent == 0 && c.Resistance.IsZero()
}

// Scaled returns the contribution multiplied by k.
func (c Contribution) Scaled(k float64) Contribution {
	c.Percent *= k
	floats.Scale(k, c.Resistance[:])
	return c
}

// BuffRegistry maps source ids to their contribution on one recipient.
// Stacking is purely additive; entries only leave through Unregister.
type BuffRegistry struct {
	entries map[SourceID]Contribution
}

// NewBuffRegistry returns an empty registry.
func NewBuffRegistry() BuffRegistry {
	return BuffRegistry{entries: make(map[SourceID]Contribution)}
}

// Register inserts or overwrites the entry for id.
func (b *BuffRegistry) Register(id SourceID, c Contribution) {
	if b.entries == nil {
		b.entries = make(map[SourceID]Contribution)
	}
	b.entries[id] = c
}

// Unregister removes the entry for id. Unknown ids are ignored.
func (b *BuffRegistry) Unregister(id SourceID) {
	delete(b.entries, id)
}

// Get returns the entry for id.
func (b *BuffRegistry) Get(id SourceID) (Contribution, bool) {
	c, ok := b.entries[id]
	return c, ok
}

// Has reports whether id has an entry.
func (b *BuffRegistry) Has(id SourceID) bool {
	_, ok := b.entries[id]
	return ok
}

// Len returns the number of live sources.
func (b *BuffRegistry) Len() int {
	return len(b.entries)
}

// Aggregate returns the elementwise sum of all entries.
func (b *BuffRegistry) Aggregate() Contribution {
	var sum Contribution
	for _, c := range b.entries {
		sum.Percent += c.Percent
		floats.Add(sum.Resistance[:], c.Resistance[:])
	}
	return sum
}
