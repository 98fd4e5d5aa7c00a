package upgrades

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ValidationError reports one problem with a catalog entry.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return "catalog: " + e.Reason
	}
	return fmt.Sprintf("catalog: upgrade %q: %s", e.ID, e.Reason)
}

// Catalog is an immutable table of upgrade definitions. Definitions handed
// out by Get, Options and All are shared and must be treated as read-only.
type Catalog struct {
	defs   []*Definition
	byID   map[string]*Definition
	byUnit map[string][]*Definition
}

type catalogFile struct {
	Upgrades []Definition `yaml:"upgrades"`
}

// LoadCatalog reads a catalog from a YAML file, or the embedded default
// catalog if path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalogYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return NewCatalog(file.Upgrades)
}

// NewCatalog validates defs and builds the lookup tables. All problems are
// returned together.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]*Definition, 0, len(defs)),
		byID:   make(map[string]*Definition, len(defs)),
		byUnit: make(map[string][]*Definition),
	}

	var errs []error
	for i := range defs {
		d := defs[i]
		if d.ID == "" {
			errs = append(errs, &ValidationError{Reason: fmt.Sprintf("entry %d has no id", i)})
			continue
		}
		if _, dup := c.byID[d.ID]; dup {
			errs = append(errs, &ValidationError{ID: d.ID, Reason: "duplicate id"})
			continue
		}
		errs = append(errs, validateDefinition(&d)...)
		c.byID[d.ID] = &d
		c.defs = append(c.defs, &d)
	}

	for _, d := range c.defs {
		for _, pre := range d.Prerequisites {
			p, ok := c.byID[pre]
			switch {
			case !ok:
				errs = append(errs, &ValidationError{ID: d.ID, Reason: fmt.Sprintf("unknown prerequisite %q", pre)})
			case p.UnitType != d.UnitType:
				errs = append(errs, &ValidationError{ID: d.ID, Reason: fmt.Sprintf("prerequisite %q targets %q", pre, p.UnitType)})
			case p.ID == d.ID:
				errs = append(errs, &ValidationError{ID: d.ID, Reason: "requires itself"})
			}
		}
	}
	if len(errs) == 0 {
		if id, ok := c.findCycle(); ok {
			errs = append(errs, &ValidationError{ID: id, Reason: "prerequisite cycle"})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	sort.Slice(c.defs, func(i, j int) bool { return less(c.defs[i], c.defs[j]) })
	for _, d := range c.defs {
		c.byUnit[d.UnitType] = append(c.byUnit[d.UnitType], d)
	}
	return c, nil
}

func validateDefinition(d *Definition) []error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, &ValidationError{ID: d.ID, Reason: fmt.Sprintf(format, args...)})
	}
	if d.UnitType == "" {
		bad("missing unit_type")
	}
	if d.Tier < MinTier || d.Tier > MaxTier {
		bad("tier %d outside %d..%d", d.Tier, MinTier, MaxTier)
	}
	if d.Path < 0 {
		bad("negative path %d", d.Path)
	}
	if d.CoinCost < 0 || d.EssenceCost < 0 {
		bad("negative cost")
	}
	for kind, n := range d.SlimeRequirements {
		if kind == "" || n < 0 {
			bad("invalid slime requirement %q=%d", kind, n)
		}
	}
	for i, e := range d.Effects {
		if err := e.Validate(); err != nil {
			bad("effect %d: %v", i, err)
		}
	}
	return errs
}

// findCycle runs a DFS over prerequisite edges.
func (c *Catalog) findCycle() (string, bool) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.defs))
	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		for _, pre := range c.byID[id].Prerequisites {
			if visit(pre) {
				return true
			}
		}
		state[id] = done
		return false
	}
	for _, d := range c.defs {
		if state[d.ID] == unvisited && visit(d.ID) {
			return d.ID, true
		}
	}
	return "", false
}

func less(a, b *Definition) bool {
	if a.UnitType != b.UnitType {
		return a.UnitType < b.UnitType
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	return a.ID < b.ID
}

// Get returns the definition with id.
func (c *Catalog) Get(id string) (*Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Options returns the definitions for a unit type sorted by path, tier, id.
func (c *Catalog) Options(unitType string) []*Definition {
	return slices.Clone(c.byUnit[unitType])
}

// UnitTypes returns every unit type with at least one upgrade, sorted.
func (c *Catalog) UnitTypes() []string {
	types := make([]string, 0, len(c.byUnit))
	for t := range c.byUnit {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// All returns every definition in catalog order.
func (c *Catalog) All() []*Definition {
	return slices.Clone(c.defs)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// CatalogRow is the flat CSV form of a Definition.
type CatalogRow struct {
	ID                string `csv:"id"`
	Name              string `csv:"name"`
	UnitType          string `csv:"unit_type"`
	Tier              int    `csv:"tier"`
	Path              int    `csv:"path"`
	CoinCost          int    `csv:"coin_cost"`
	EssenceCost       int    `csv:"essence_cost"`
	Prerequisites     string `csv:"prerequisites"`
	SlimeRequirements string `csv:"slime_requirements"`
	Effects           string `csv:"effects"`
}

// Rows flattens the catalog for spreadsheet export.
func (c *Catalog) Rows() []CatalogRow {
	rows := make([]CatalogRow, 0, len(c.defs))
	for _, d := range c.defs {
		reqKinds := make([]string, 0, len(d.SlimeRequirements))
		for kind := range d.SlimeRequirements {
			reqKinds = append(reqKinds, kind)
		}
		sort.Strings(reqKinds)
		reqs := make([]string, len(reqKinds))
		for i, kind := range reqKinds {
			reqs[i] = kind + "=" + strconv.Itoa(d.SlimeRequirements[kind])
		}

		effects := make([]string, len(d.Effects))
		for i, e := range d.Effects {
			effects[i] = e.String()
		}

		rows = append(rows, CatalogRow{
			ID:                d.ID,
			Name:              d.Name,
			UnitType:          d.UnitType,
			Tier:              d.Tier,
			Path:              d.Path,
			CoinCost:          d.CoinCost,
			EssenceCost:       d.EssenceCost,
			Prerequisites:     strings.Join(d.Prerequisites, ";"),
			SlimeRequirements: strings.Join(reqs, ";"),
			Effects:           strings.Join(effects, ";"),
		})
	}
	return rows
}

// WriteCSV writes the catalog as CSV with a header row.
func (c *Catalog) WriteCSV(w io.Writer) error {
	rows := c.Rows()
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing catalog csv: %w", err)
	}
	return nil
}
