package telemetry

import "slices"

// LifetimeStats tracks per-unit statistics over its lifetime.
type LifetimeStats struct {
	UnitID    uint32 `csv:"unit_id"`
	UnitType  string `csv:"unit_type"`
	SpawnTick int32  `csv:"spawn_tick"`
	EndTick   int32  `csv:"end_tick"`
	// Fate is "died", "despawned" or "survived".
	Fate            string  `csv:"fate"`
	SurvivalTimeSec float32 `csv:"survival_sec"`

	DamageTaken float64 `csv:"damage_taken"`
	Hits        int     `csv:"hits"`

	Purchases        int `csv:"purchases"`
	PurchasesRefused int `csv:"purchases_refused"`
	CoinsSpent       int `csv:"coins_spent"`
	EssenceSpent     int `csv:"essence_spent"`
}

// Unit fates.
const (
	FateDied      = "died"
	FateDespawned = "despawned"
	FateSurvived  = "survived"
)

// LifetimeTracker manages per-unit lifetime statistics.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register creates lifetime stats for a new unit.
func (lt *LifetimeTracker) Register(unitID uint32, unitType string, spawnTick int32) {
	lt.stats[unitID] = &LifetimeStats{
		UnitID:    unitID,
		UnitType:  unitType,
		SpawnTick: spawnTick,
	}
}

// Get returns the lifetime stats for a unit, or nil if not found.
func (lt *LifetimeTracker) Get(unitID uint32) *LifetimeStats {
	return lt.stats[unitID]
}

// Finish removes a unit's stats, stamps its end tick and fate and returns
// them for logging. Unknown units return nil.
func (lt *LifetimeTracker) Finish(unitID uint32, endTick int32, fate string, dt float32) *LifetimeStats {
	s := lt.stats[unitID]
	if s == nil {
		return nil
	}
	delete(lt.stats, unitID)
	s.EndTick = endTick
	s.Fate = fate
	s.SurvivalTimeSec = float32(endTick-s.SpawnTick) * dt
	return s
}

// RecordDamage adds damage taken by a unit.
func (lt *LifetimeTracker) RecordDamage(unitID uint32, amount float64) {
	if s := lt.stats[unitID]; s != nil {
		s.DamageTaken += amount
		s.Hits++
	}
}

// RecordPurchase records a purchase attempt and what it cost.
func (lt *LifetimeTracker) RecordPurchase(unitID uint32, ok bool, coins, essence int) {
	s := lt.stats[unitID]
	if s == nil {
		return
	}
	if !ok {
		s.PurchasesRefused++
		return
	}
	s.Purchases++
	s.CoinsSpent += coins
	s.EssenceSpent += essence
}

// IDs returns the tracked unit ids in ascending order.
func (lt *LifetimeTracker) IDs() []uint32 {
	ids := make([]uint32, 0, len(lt.stats))
	for id := range lt.stats {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of tracked units.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
