package upgrades

// tierPath identifies one slot in a unit's upgrade tree.
type tierPath struct {
	tier, path int
}

// PurchaseState is the per-unit record of what has been bought. It only
// grows: there is no respec.
type PurchaseState struct {
	purchased map[string]bool
	order     []string
	owned     map[tierPath]bool

	hasCommittedPath bool
	committedPath    int
}

// NewPurchaseState returns an uncommitted, empty state.
func NewPurchaseState() *PurchaseState {
	return &PurchaseState{
		purchased: make(map[string]bool),
		owned:     make(map[tierPath]bool),
	}
}

// Has reports whether the upgrade id has been bought.
func (s *PurchaseState) Has(id string) bool {
	return s.purchased[id]
}

// Purchased returns ids in the order they were bought.
func (s *PurchaseState) Purchased() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of purchased upgrades.
func (s *PurchaseState) Len() int {
	return len(s.order)
}

// HasCommittedPath reports whether a tier 2 purchase has locked the unit.
func (s *PurchaseState) HasCommittedPath() bool {
	return s.hasCommittedPath
}

// CommittedPath returns the locked path, if any.
func (s *PurchaseState) CommittedPath() (int, bool) {
	return s.committedPath, s.hasCommittedPath
}

// HasTierInPath reports whether an upgrade at (tier, path) is owned.
func (s *PurchaseState) HasTierInPath(tier, path int) bool {
	return s.owned[tierPath{tier, path}]
}

// PathBlocked applies the path-lock rule. Tier 1 is never blocked. Higher
// tiers are blocked on a path other than the committed one, and on any
// (tier, path) slot that is already filled.
func (s *PurchaseState) PathBlocked(tier, path int) bool {
	if tier <= 1 {
		return false
	}
	if s.hasCommittedPath && s.committedPath != path {
		return true
	}
	return s.HasTierInPath(tier, path)
}

// record marks def as bought and returns true if it committed the path.
func (s *PurchaseState) record(def *Definition) bool {
	s.purchased[def.ID] = true
	s.order = append(s.order, def.ID)
	s.owned[tierPath{def.Tier, def.Path}] = true

	if def.Commits() && !s.hasCommittedPath {
		s.hasCommittedPath = true
		s.committedPath = def.Path
		return true
	}
	return false
}
