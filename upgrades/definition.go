// Package upgrades implements the upgrade catalog, purchase state and the
// engine that validates and applies purchases to a unit.
package upgrades

// MinTier and MaxTier bound Definition.Tier.
const (
	MinTier = 1
	MaxTier = 3
)

// Definition is one purchasable upgrade. Definitions are owned by a Catalog
// and must not be mutated after loading.
type Definition struct {
	ID                string         `yaml:"id"`
	Name              string         `yaml:"name"`
	UnitType          string         `yaml:"unit_type"`
	Tier              int            `yaml:"tier"`
	Path              int            `yaml:"path"`
	CoinCost          int            `yaml:"coin_cost"`
	EssenceCost       int            `yaml:"essence_cost"`
	Prerequisites     []string       `yaml:"prerequisites,omitempty"`
	SlimeRequirements map[string]int `yaml:"slime_requirements,omitempty"` // slime type -> minimum live count
	Effects           []Effect       `yaml:"effects"`
}

// Commits reports whether buying this definition locks an uncommitted unit
// into its path.
func (d *Definition) Commits() bool {
	return d.Tier == 2
}
