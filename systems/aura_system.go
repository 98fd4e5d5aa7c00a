package systems

import (
	"log/slog"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
)

// AuraSystem owns one AuraSource per emitting entity and ticks them in a
// stable order.
type AuraSystem struct {
	space  SpatialQuery
	allies Allies
	alive  func(ecs.Entity) bool
	log    *slog.Logger

	sources map[ecs.Entity]*AuraSource
	order   []ecs.Entity // sorted by entity id for deterministic ticks
	dirty   bool
}

// NewAuraSystem creates an aura system. alive reports whether an owner still
// exists; a nil alive treats every owner as alive.
func NewAuraSystem(space SpatialQuery, allies Allies, alive func(ecs.Entity) bool, logger *slog.Logger) *AuraSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuraSystem{
		space:   space,
		allies:  allies,
		alive:   alive,
		log:     logger,
		sources: make(map[ecs.Entity]*AuraSource),
	}
}

// Attach binds cfg to owner, creating the source on first use. Calling it
// again reconfigures the aura and keeps its source id.
func (s *AuraSystem) Attach(owner ecs.Entity, cfg components.AuraConfig) *AuraSource {
	src, ok := s.sources[owner]
	if !ok {
		src = NewAuraSource(s.space, s.allies, s.log)
		s.sources[owner] = src
		s.dirty = true
	}
	src.Bind(owner, cfg)
	return src
}

// Detach unbinds and forgets the owner's aura. Unknown owners are ignored.
func (s *AuraSystem) Detach(owner ecs.Entity) {
	src, ok := s.sources[owner]
	if !ok {
		return
	}
	src.Unbind()
	delete(s.sources, owner)
	s.dirty = true
}

// Source returns the aura bound to owner, if any.
func (s *AuraSystem) Source(owner ecs.Entity) (*AuraSource, bool) {
	src, ok := s.sources[owner]
	return src, ok
}

// Len returns the number of attached auras.
func (s *AuraSystem) Len() int {
	return len(s.sources)
}

// Update unbinds auras whose owner died, then ticks the rest.
func (s *AuraSystem) Update(dt float64) PassStats {
	if s.alive != nil {
		for owner := range s.sources {
			if !s.alive(owner) {
				s.log.Debug("detaching aura of dead owner", "source", s.sources[owner].ID().String())
				s.Detach(owner)
			}
		}
	}

	if s.dirty {
		s.order = s.order[:0]
		for owner := range s.sources {
			s.order = append(s.order, owner)
		}
		sort.Slice(s.order, func(i, j int) bool {
			return s.order[i].ID() < s.order[j].ID()
		})
		s.dirty = false
	}

	var total PassStats
	for _, owner := range s.order {
		st := s.sources[owner].Tick(dt)
		if st.Ran {
			total.Ran = true
		}
		total.Passes += st.Passes
		total.Recipients += st.Recipients
		total.Entered += st.Entered
		total.Left += st.Left
		total.Healed += st.Healed
	}
	return total
}
