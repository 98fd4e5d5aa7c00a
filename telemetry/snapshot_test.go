package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "snapshot.json")
	committed := 1

	snapshot := &Snapshot{
		Version:     SnapshotVersion,
		Tick:        400,
		WorldWidth:  640,
		WorldHeight: 480,
		Coins:       120,
		Essence:     1,
		Unlocked:    []string{"healer_bloom_3"},
		Units: []UnitState{
			{
				ID: 1, Type: "healer_slime", Layer: "ally", X: 200, Y: 200,
				HP: 80, MaxHP: 96,
				Purchased:      []string{"healer_bloom_1", "healer_bloom_2"},
				CommittedPath:  &committed,
				BuffSources:    2,
				HPBonusPercent: 20,
				Resistance:     map[string]float64{"poison": 10},
				Aura:           &AuraState{SourceID: "abc", Radius: 117, HealPerSecond: 6, Recipients: 3},
			},
			{ID: 2, Type: "raider", Layer: "enemy", HP: 50, MaxHP: 50},
		},
	}

	if err := snapshot.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Tick != 400 || loaded.Coins != 120 || len(loaded.Units) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}

	u := loaded.Units[0]
	if u.CommittedPath == nil || *u.CommittedPath != 1 {
		t.Error("committed path lost")
	}
	if u.Aura == nil || u.Aura.Recipients != 3 || u.Aura.Radius != 117 {
		t.Errorf("aura = %+v", u.Aura)
	}
	if u.Resistance["poison"] != 10 {
		t.Errorf("resistance = %v", u.Resistance)
	}
	if loaded.Units[1].Aura != nil || loaded.Units[1].CommittedPath != nil {
		t.Error("optional fields appeared on the enemy")
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadSnapshot(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "old.json")
	if err := os.WriteFile(bad, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(bad); err == nil {
		t.Error("expected version mismatch error")
	}
}
