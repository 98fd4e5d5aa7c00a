package components

import (
	"math"
	"testing"

	"gopkg.in/yaml.v3"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestBuffRegistryAdditiveStacking verifies aggregate equals the sum of live sources.
func TestBuffRegistryAdditiveStacking(t *testing.T) {
	reg := NewBuffRegistry()
	ids := []SourceID{NewSourceID(), NewSourceID(), NewSourceID()}
	for _, id := range ids {
		reg.Register(id, Contribution{Percent: 10})
	}

	if got := reg.Aggregate().Percent; !approx(got, 30) {
		t.Fatalf("aggregate with 3 sources = %f, want 30", got)
	}

	for i, id := range ids {
		r := NewBuffRegistry()
		for _, other := range ids {
			r.Register(other, Contribution{Percent: 10})
		}
		r.Unregister(id)
		if got := r.Aggregate().Percent; !approx(got, 20) {
			t.Errorf("removing source %d: aggregate = %f, want 20", i, got)
		}
	}
}

// TestBuffRegistryIdempotentRegister verifies re-registering replaces the entry.
func TestBuffRegistryIdempotentRegister(t *testing.T) {
	reg := NewBuffRegistry()
	id := NewSourceID()

	reg.Register(id, Contribution{Percent: 10})
	reg.Register(id, Contribution{Percent: 25})

	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
	c, ok := reg.Get(id)
	if !ok || !approx(c.Percent, 25) {
		t.Errorf("entry = %+v (ok=%v), want Percent 25", c, ok)
	}
	if got := reg.Aggregate().Percent; !approx(got, 25) {
		t.Errorf("aggregate = %f, want 25", got)
	}
}

// TestBuffRegistryUnregisterUnknown verifies removing a missing id is a no-op.
func TestBuffRegistryUnregisterUnknown(t *testing.T) {
	var reg BuffRegistry // zero value must be usable
	reg.Unregister(NewSourceID())

	id := NewSourceID()
	reg.Register(id, Contribution{Percent: 5})
	reg.Unregister(NewSourceID())

	if !reg.Has(id) || reg.Len() != 1 {
		t.Errorf("unrelated unregister removed an entry: len=%d", reg.Len())
	}
}

// TestBuffRegistryResistanceSum verifies resistances sum elementwise.
func TestBuffRegistryResistanceSum(t *testing.T) {
	reg := NewBuffRegistry()
	a := Contribution{Resistance: Resistances{DamagePhysical: 10, DamageFire: 5}}
	b := Contribution{Percent: 3, Resistance: Resistances{DamagePhysical: 2.5, DamageMagic: 7}}
	reg.Register(NewSourceID(), a)
	reg.Register(NewSourceID(), b)

	agg := reg.Aggregate()
	want := Resistances{DamagePhysical: 12.5, DamageMagic: 7, DamageFire: 5}
	for i := range want {
		if !approx(agg.Resistance[i], want[i]) {
			t.Errorf("resistance[%s] = %f, want %f", DamageType(i), agg.Resistance[i], want[i])
		}
	}
	if !approx(agg.Percent, 3) {
		t.Errorf("percent = %f, want 3", agg.Percent)
	}

	// Aggregate must not alias stored entries.
	agg.Resistance[DamagePhysical] = 999
	if got := reg.Aggregate().Resistance[DamagePhysical]; !approx(got, 12.5) {
		t.Errorf("aggregate aliased entries: physical = %f", got)
	}
}

func TestResistancesYAML(t *testing.T) {
	var cfg AuraConfig
	src := "radius: 40\nresistance:\n  physical: 10\n  Fire: 2.5\n"
	if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Resistance.Of(DamagePhysical) != 10 || cfg.Resistance.Of(DamageFire) != 2.5 {
		t.Errorf("resistance = %v", cfg.Resistance)
	}

	if err := yaml.Unmarshal([]byte("resistance:\n  holy: 1\n"), &cfg); err == nil {
		t.Error("expected error for unknown damage type")
	}
}

func TestAuraConfigSanitized(t *testing.T) {
	cfg := AuraConfig{
		Radius:        -3,
		HealPerSecond: -1,
		Resistance:    Resistances{DamageMagic: -4, DamagePoison: 6},
	}.Sanitized()

	if cfg.Radius != 0 || cfg.HealPerSecond != 0 {
		t.Errorf("negative values not clamped: %+v", cfg)
	}
	if cfg.Resistance.Of(DamageMagic) != 0 || cfg.Resistance.Of(DamagePoison) != 6 {
		t.Errorf("resistance = %v", cfg.Resistance)
	}
	if cfg.ScanInterval != DefaultScanInterval {
		t.Errorf("ScanInterval = %f, want default %f", cfg.ScanInterval, DefaultScanInterval)
	}
	if cfg.Inert() {
		t.Error("aura with poison resistance should not be inert")
	}
	if !(AuraConfig{Radius: 50}).Inert() {
		t.Error("aura with only a radius should be inert")
	}
}

func TestHealthMax(t *testing.T) {
	h := Health{Current: 50, BaseMax: 100, BonusMax: 20}
	if got := h.Max(0); !approx(got, 120) {
		t.Errorf("Max(0) = %f, want 120", got)
	}
	if got := h.Max(25); !approx(got, 150) {
		t.Errorf("Max(25) = %f, want 150", got)
	}
}
