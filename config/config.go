// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/slimekeep/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig       `yaml:"world"`
	Physics    PhysicsConfig     `yaml:"physics"`
	Aura       AuraDefaults      `yaml:"aura"`
	Economy    EconomyConfig     `yaml:"economy"`
	Storage    StorageConfig     `yaml:"storage"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	Catalog    CatalogConfig     `yaml:"catalog"`
	Archetypes []ArchetypeConfig `yaml:"archetypes"`
	Scenario   ScenarioConfig    `yaml:"scenario"`

	Derived DerivedConfig `yaml:"-"`
}

type WorldConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type PhysicsConfig struct {
	DT           float64 `yaml:"dt"`
	GridCellSize float64 `yaml:"grid_cell_size"`
	MaxTicks     int     `yaml:"max_ticks"` // 0 = run until the scenario ends
}

// AuraDefaults fill fields an archetype's aura leaves unset.
type AuraDefaults struct {
	ScanInterval float64 `yaml:"scan_interval"`
}

type EconomyConfig struct {
	StartingCoins   int     `yaml:"starting_coins"`
	StartingEssence int     `yaml:"starting_essence"`
	CoinsPerSecond  float64 `yaml:"coins_per_second"` // passive income
}

type StorageConfig struct {
	Path    string `yaml:"path"`    // sqlite file; empty = in-memory
	Profile string `yaml:"profile"` // profile row name
}

type TelemetryConfig struct {
	OutputDir           string  `yaml:"output_dir"` // empty = no CSV output
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	BookmarkHistory     int     `yaml:"bookmark_history"`   // windows of rolling history for bookmarks
	BookmarkSnapshots   bool    `yaml:"bookmark_snapshots"` // save a snapshot when a bookmark fires
}

type CatalogConfig struct {
	Path string `yaml:"path"` // empty = embedded catalog
}

// ArchetypeConfig describes one spawnable unit type.
type ArchetypeConfig struct {
	Name     string                 `yaml:"name"`  // unit type, matched against catalog unit_type
	Layer    string                 `yaml:"layer"` // ally, enemy or neutral
	MaxHP    float64                `yaml:"max_hp"`
	Damage   float64                `yaml:"damage"`
	FireRate float64                `yaml:"fire_rate"`
	Range    float64                `yaml:"range"`
	Aura     *components.AuraConfig `yaml:"aura,omitempty"`
}

// ScenarioConfig scripts a headless run. Unit indexes refer to Units.
type ScenarioConfig struct {
	Units     []SpawnConfig   `yaml:"units"`
	Moves     []MoveEvent     `yaml:"moves"`
	Damage    []DamageEvent   `yaml:"damage"`
	Purchases []PurchaseEvent `yaml:"purchases"`
	Despawns  []DespawnEvent  `yaml:"despawns"`
}

type SpawnConfig struct {
	Archetype string  `yaml:"archetype"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
}

type MoveEvent struct {
	Tick int     `yaml:"tick"`
	Unit int     `yaml:"unit"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

type DamageEvent struct {
	Tick   int    `yaml:"tick"`
	Unit   int    `yaml:"unit"`
	Amount int    `yaml:"amount"`
	Type   string `yaml:"type"`
}

type PurchaseEvent struct {
	Tick    int    `yaml:"tick"`
	Unit    int    `yaml:"unit"`
	Upgrade string `yaml:"upgrade"`
}

type DespawnEvent struct {
	Tick int `yaml:"tick"`
	Unit int `yaml:"unit"`
}

// DerivedConfig holds values computed after loading.
type DerivedConfig struct {
	DT32           float32
	WorldW32       float32
	WorldH32       float32
	LastEventTick  int            // highest tick any scenario event fires on
	ArchetypeIndex map[string]int // name -> index into Archetypes
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file. Lists replace wholesale.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Archetype returns the archetype with the given name.
func (c *Config) Archetype(name string) (*ArchetypeConfig, bool) {
	i, ok := c.Derived.ArchetypeIndex[name]
	if !ok {
		return nil, false
	}
	return &c.Archetypes[i], true
}

// ParseLayer maps an archetype layer name to a bitmask. Empty means ally.
func ParseLayer(name string) (components.Layer, bool) {
	switch name {
	case "", "ally":
		return components.LayerAlly, true
	case "enemy":
		return components.LayerEnemy, true
	case "neutral":
		return components.LayerNeutral, true
	}
	return 0, false
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Physics.DT)
	c.Derived.WorldW32 = float32(c.World.Width)
	c.Derived.WorldH32 = float32(c.World.Height)

	for i := range c.Archetypes {
		arch := &c.Archetypes[i]
		if arch.FireRate == 0 {
			arch.FireRate = 1.0
		}
		if arch.Aura != nil && arch.Aura.ScanInterval == 0 {
			arch.Aura.ScanInterval = c.Aura.ScanInterval
		}
	}

	c.Derived.ArchetypeIndex = make(map[string]int, len(c.Archetypes))
	for i, arch := range c.Archetypes {
		c.Derived.ArchetypeIndex[arch.Name] = i
	}

	last := 0
	s := &c.Scenario
	for _, e := range s.Moves {
		last = max(last, e.Tick)
	}
	for _, e := range s.Damage {
		last = max(last, e.Tick)
	}
	for _, e := range s.Purchases {
		last = max(last, e.Tick)
	}
	for _, e := range s.Despawns {
		last = max(last, e.Tick)
	}
	c.Derived.LastEventTick = last
}

func (c *Config) validate() error {
	if c.Physics.DT <= 0 {
		return fmt.Errorf("config: physics.dt must be positive, got %g", c.Physics.DT)
	}
	if c.Physics.GridCellSize <= 0 {
		return fmt.Errorf("config: physics.grid_cell_size must be positive, got %g", c.Physics.GridCellSize)
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("config: world size %dx%d must be positive", c.World.Width, c.World.Height)
	}
	seen := make(map[string]bool, len(c.Archetypes))
	for _, arch := range c.Archetypes {
		if arch.Name == "" {
			return fmt.Errorf("config: archetype without a name")
		}
		if seen[arch.Name] {
			return fmt.Errorf("config: duplicate archetype %q", arch.Name)
		}
		seen[arch.Name] = true
		if _, ok := ParseLayer(arch.Layer); !ok {
			return fmt.Errorf("config: archetype %q: unknown layer %q", arch.Name, arch.Layer)
		}
		if arch.MaxHP <= 0 {
			return fmt.Errorf("config: archetype %q: max_hp must be positive", arch.Name)
		}
	}

	units := len(c.Scenario.Units)
	for i, u := range c.Scenario.Units {
		if !seen[u.Archetype] {
			return fmt.Errorf("config: scenario unit %d: unknown archetype %q", i, u.Archetype)
		}
	}
	check := func(kind string, tick, unit int) error {
		if tick < 0 || unit < 0 || unit >= units {
			return fmt.Errorf("config: scenario %s at tick %d targets unit %d of %d", kind, tick, unit, units)
		}
		return nil
	}
	for _, e := range c.Scenario.Moves {
		if err := check("move", e.Tick, e.Unit); err != nil {
			return err
		}
	}
	for _, e := range c.Scenario.Damage {
		if err := check("damage", e.Tick, e.Unit); err != nil {
			return err
		}
		if _, ok := components.ParseDamageType(e.Type); !ok {
			return fmt.Errorf("config: scenario damage at tick %d: unknown type %q", e.Tick, e.Type)
		}
	}
	for _, e := range c.Scenario.Purchases {
		if err := check("purchase", e.Tick, e.Unit); err != nil {
			return err
		}
	}
	for _, e := range c.Scenario.Despawns {
		if err := check("despawn", e.Tick, e.Unit); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
