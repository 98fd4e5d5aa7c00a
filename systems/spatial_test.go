package systems

import (
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
)

func TestSpatialGridOverlap(t *testing.T) {
	w := newTestWorld()
	a := w.spawn(10, 10, 100)
	b := w.spawn(40, 10, 100)
	c := w.spawn(200, 200, 100)
	enemy := w.spawn(15, 10, 100)

	grid := NewSpatialGrid(256, 256, 32)
	grid.Insert(a, components.Position{X: 10, Y: 10}, components.LayerAlly)
	grid.Insert(b, components.Position{X: 40, Y: 10}, components.LayerAlly)
	grid.Insert(c, components.Position{X: 200, Y: 200}, components.LayerAlly)
	grid.Insert(enemy, components.Position{X: 15, Y: 10}, components.LayerEnemy)

	tests := []struct {
		name   string
		center components.Position
		radius float32
		mask   components.Layer
		want   []ecs.Entity
	}{
		{"allies near origin", components.Position{X: 10, Y: 10}, 35, components.LayerAlly, []ecs.Entity{a, b}},
		{"tight radius", components.Position{X: 10, Y: 10}, 1, components.LayerAlly, []ecs.Entity{a}},
		{"enemy mask", components.Position{X: 10, Y: 10}, 35, components.LayerEnemy, []ecs.Entity{enemy}},
		{"all layers", components.Position{X: 10, Y: 10}, 35, components.LayerAll, []ecs.Entity{a, b, enemy}},
		{"far corner", components.Position{X: 210, Y: 210}, 20, components.LayerAlly, []ecs.Entity{c}},
		{"empty", components.Position{X: 120, Y: 120}, 10, components.LayerAll, nil},
		{"center outside field", components.Position{X: -20, Y: 10}, 31, components.LayerAlly, []ecs.Entity{a}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := grid.Overlap(tc.center, tc.radius, tc.mask)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d entities, want %d", len(got), len(tc.want))
			}
			set := make(map[ecs.Entity]bool, len(got))
			for _, e := range got {
				set[e] = true
			}
			for _, e := range tc.want {
				if !set[e] {
					t.Errorf("missing entity %d", e.ID())
				}
			}
		})
	}
}

func TestSpatialGridClear(t *testing.T) {
	w := newTestWorld()
	e := w.spawn(5, 5, 100)

	grid := NewSpatialGrid(64, 64, 16)
	grid.Insert(e, components.Position{X: 5, Y: 5}, components.LayerAlly)
	grid.Clear()

	if got := grid.Overlap(components.Position{X: 5, Y: 5}, 10, components.LayerAll); len(got) != 0 {
		t.Errorf("grid not empty after Clear: %d", len(got))
	}
}

func TestSpatialGridOverlapLimit(t *testing.T) {
	w := newTestWorld()
	grid := NewSpatialGrid(64, 64, 16)
	for i := 0; i < 200; i++ {
		x := float32(i % 20)
		y := float32(i / 20)
		grid.Insert(w.spawn(x, y, 100), components.Position{X: x, Y: y}, components.LayerAlly)
	}

	center := components.Position{X: 10, Y: 5}
	if got := grid.Overlap(center, 30, components.LayerAlly); len(got) != 200 {
		t.Errorf("Overlap returned %d entities, want 200", len(got))
	}
	if got := grid.OverlapInto(nil, center, 30, components.LayerAlly, 50); len(got) != 50 {
		t.Errorf("OverlapInto with limit returned %d entities, want 50", len(got))
	}
	if got := grid.OverlapInto(nil, center, 30, components.LayerAlly, 0); len(got) != 200 {
		t.Errorf("OverlapInto without limit returned %d entities, want 200", len(got))
	}
}

func TestApplyDamageResistance(t *testing.T) {
	reg := components.NewBuffRegistry()
	reg.Register(components.NewSourceID(), components.Contribution{
		Resistance: components.Resistances{components.DamageFire: 25},
	})
	reg.Register(components.NewSourceID(), components.Contribution{
		Resistance: components.Resistances{components.DamageFire: 100},
	})

	h := components.Health{Current: 100, BaseMax: 100}
	if dealt := ApplyDamage(&h, &reg, 40, components.DamageFire); dealt != 0 {
		t.Errorf("fire damage through 125%% resistance = %f, want 0", dealt)
	}
	if dealt := ApplyDamage(&h, &reg, 40, components.DamagePhysical); dealt != 40 {
		t.Errorf("physical damage = %f, want 40", dealt)
	}
	if dealt := ApplyDamage(&h, nil, 500, components.DamageMagic); dealt != 60 {
		t.Errorf("overkill dealt %f, want remaining 60", dealt)
	}
	if h.Alive() {
		t.Error("entity alive at 0 hp")
	}

	ApplyHeal(&h, &reg, 50)
	if h.Current != 0 {
		t.Errorf("dead entity healed to %f", h.Current)
	}
}
