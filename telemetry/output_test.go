package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v", om, err)
	}
	// Every method is safe on a nil manager.
	if err := om.WriteWindow(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WritePurchase(PurchaseRecord{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("nil manager has a dir")
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	c := NewCollector(1.0, 0.5)
	c.RecordAuraPass(2, 3, 1, 12.5)
	c.RecordPurchase(true)
	for tick := int32(2); tick <= 6; tick += 2 {
		if err := om.WriteWindow(c.Flush(tick, Population{Allies: 3})); err != nil {
			t.Fatalf("WriteWindow: %v", err)
		}
	}

	rec := NewPurchaseRecord(10, 4, "healer_slime", "healer_bloom_1", OutcomeBought)
	rec.Tier = 1
	if err := om.WritePurchase(rec); err != nil {
		t.Fatalf("WritePurchase: %v", err)
	}
	if err := om.WritePurchase(NewPurchaseRecord(11, 4, "healer_slime", "ghost", OutcomeUnknown)); err != nil {
		t.Fatalf("WritePurchase: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "windows.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("windows.csv has %d lines, want header + 3", len(lines))
	}
	if strings.Count(string(data), "window_end") != 1 {
		t.Error("header written more than once")
	}

	f, err := os.Open(filepath.Join(dir, "purchases.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var purchases []PurchaseRecord
	if err := gocsv.UnmarshalFile(f, &purchases); err != nil {
		t.Fatalf("reading purchases.csv: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("purchases = %d, want 2", len(purchases))
	}
	if purchases[0].Outcome != OutcomeBought || purchases[0].CommittedPath != -1 {
		t.Errorf("first purchase = %+v", purchases[0])
	}
	if purchases[1].Outcome != OutcomeUnknown {
		t.Errorf("second outcome = %q", purchases[1].Outcome)
	}
}

func TestCollectorFlushResets(t *testing.T) {
	c := NewCollector(2.0, 0.5)
	if c.WindowDurationTicks() != 4 {
		t.Fatalf("ticks per window = %d, want 4", c.WindowDurationTicks())
	}
	if c.ShouldFlush(3) || !c.ShouldFlush(4) {
		t.Error("ShouldFlush boundary wrong")
	}

	c.RecordAuraPass(1, 2, 0, 5)
	c.RecordAuraPass(1, 0, 1, 5)
	c.RecordDamage(30)
	c.RecordDeath()
	c.RecordPurchase(false)

	s := c.Flush(4, Population{
		Allies:         2,
		HealthFraction: []float64{0.5, 1.0},
		BuffSources:    []int{1, 2},
	})
	if s.AuraPasses != 2 || s.Entered != 2 || s.Left != 1 || s.Healed != 10 {
		t.Errorf("aura counters = %+v", s)
	}
	if s.DamageTaken != 30 || s.Deaths != 1 || s.PurchasesRefused != 1 {
		t.Errorf("event counters = %+v", s)
	}
	if s.HealthMean != 0.75 || s.BuffSourcesMean != 1.5 {
		t.Errorf("health mean %v buff mean %v", s.HealthMean, s.BuffSourcesMean)
	}
	if s.SimTimeSec != 2.0 {
		t.Errorf("sim time = %v", s.SimTimeSec)
	}

	next := c.Flush(8, Population{})
	if next.AuraPasses != 0 || next.WindowStartTick != 4 || next.Deaths != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestOutputManagerBookmarks(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	bm := Bookmark{Type: BookmarkAllyCrash, Tick: 300, Description: "Allies fell 50% from peak 4 to 2"}
	if err := om.WriteBookmark(bm); err != nil {
		t.Fatalf("WriteBookmark: %v", err)
	}
	snap := &Snapshot{Version: SnapshotVersion, Tick: 300}
	if err := om.WriteBookmarkSnapshot(snap, bm); err != nil {
		t.Fatalf("WriteBookmarkSnapshot: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "bookmarks.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var got []Bookmark
	if err := gocsv.UnmarshalFile(f, &got); err != nil {
		t.Fatalf("reading bookmarks.csv: %v", err)
	}
	if len(got) != 1 || got[0] != bm {
		t.Errorf("bookmarks = %+v", got)
	}

	loaded, err := LoadSnapshot(filepath.Join(dir, "snapshots", "ally_crash_000300.json"))
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Tick != 300 {
		t.Errorf("tick = %d", loaded.Tick)
	}
}
