package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the end-of-run state of every live unit and the profile.
type Snapshot struct {
	Version int   `json:"version"`
	Tick    int32 `json:"tick"`

	WorldWidth  float32 `json:"world_width"`
	WorldHeight float32 `json:"world_height"`

	Coins    int      `json:"coins"`
	Essence  int      `json:"essence"`
	Unlocked []string `json:"unlocked"`

	Units []UnitState `json:"units"`
}

// UnitState holds one unit's observable state.
type UnitState struct {
	ID    uint32  `json:"id"`
	Type  string  `json:"type"`
	Layer string  `json:"layer"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`

	HP    float64 `json:"hp"`
	MaxHP float64 `json:"max_hp"` // including aura percent bonus

	Damage   float64  `json:"damage,omitempty"`
	FireRate float64  `json:"fire_rate,omitempty"`
	Range    float64  `json:"range,omitempty"`
	Features []string `json:"features,omitempty"`

	Purchased     []string `json:"purchased,omitempty"`
	CommittedPath *int     `json:"committed_path,omitempty"`

	BuffSources    int                `json:"buff_sources"`
	HPBonusPercent float64            `json:"hp_bonus_percent"`
	Resistance     map[string]float64 `json:"resistance,omitempty"`

	Aura *AuraState `json:"aura,omitempty"`
}

// AuraState describes a unit's bound aura.
type AuraState struct {
	SourceID      string  `json:"source_id"`
	Radius        float32 `json:"radius"`
	HealPerSecond float64 `json:"heal_per_second"`
	Recipients    int     `json:"recipients"`
}

// Save writes the snapshot as indented JSON.
func (s *Snapshot) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
