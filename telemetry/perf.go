package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// Phase identifies one timed part of Game.Step.
type Phase uint8

const (
	PhaseEvents Phase = iota
	PhaseSpatialGrid
	PhaseAura
	PhaseEconomy
	PhaseCleanup
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{
	PhaseEvents:      "events",
	PhaseSpatialGrid: "spatial_grid",
	PhaseAura:        "aura",
	PhaseEconomy:     "economy",
	PhaseCleanup:     "cleanup",
	PhaseTelemetry:   "telemetry",
}

func (p Phase) String() string {
	if p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// tickSample is the timing of one step. Phases index by Phase.
type tickSample struct {
	total      time.Duration
	phases     [numPhases]time.Duration
	recipients int // aura recipients held after the step
}

// PerfCollector times step phases over a rolling window of ticks.
type PerfCollector struct {
	samples []tickSample
	next    int
	count   int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	running    bool
}

// NewPerfCollector keeps the last windowSize ticks (60 when windowSize < 1).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{samples: make([]tickSample, windowSize)}
}

// StartTick begins timing a new step.
func (p *PerfCollector) StartTick() {
	p.cur = tickSample{}
	p.running = false
	p.tickStart = time.Now()
}

// StartPhase switches the clock to phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phase = phase
	p.phaseStart = now
	p.running = true
}

// RecordAuraRecipients notes how many recipients the aura phase served.
func (p *PerfCollector) RecordAuraRecipients(n int) {
	p.cur.recipients += n
}

// EndTick closes the step and stores it in the window.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.cur.total = now.Sub(p.tickStart)

	p.samples[p.next] = p.cur
	p.next = (p.next + 1) % len(p.samples)
	if p.count < len(p.samples) {
		p.count++
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.running && p.phase < numPhases {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
	p.running = false
}

// PerfStats aggregates the current window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // share of the average tick

	TicksPerSecond float64

	// AuraPerRecipient is aura phase time divided by recipients served,
	// zero when no aura had recipients.
	AuraPerRecipient time.Duration
}

// Stats computes statistics over the stored ticks.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.count == 0 {
		return s
	}

	var total time.Duration
	var phaseSum [numPhases]time.Duration
	recipients := 0
	for i, sample := range p.samples[:p.count] {
		total += sample.total
		if i == 0 || sample.total < s.MinTickDuration {
			s.MinTickDuration = sample.total
		}
		s.MaxTickDuration = max(s.MaxTickDuration, sample.total)
		for ph, d := range sample.phases {
			phaseSum[ph] += d
		}
		recipients += sample.recipients
	}

	n := time.Duration(p.count)
	s.AvgTickDuration = total / n
	for ph, sum := range phaseSum {
		s.PhaseAvg[ph] = sum / n
		if s.AvgTickDuration > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgTickDuration) * 100
		}
	}
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}
	if recipients > 0 {
		s.AuraPerRecipient = phaseSum[PhaseAura] / time.Duration(recipients)
	}
	return s
}

func (s PerfStats) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
		slog.Int64("aura_ns_per_recipient", s.AuraPerRecipient.Nanoseconds()),
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return attrs
}

// LogStats logs the window at info level.
func (s PerfStats) LogStats() {
	slog.LogAttrs(context.Background(), slog.LevelInfo, "perf", s.attrs()...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	return slog.GroupValue(s.attrs()...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd          int32   `csv:"window_end"`
	AvgTickUS          int64   `csv:"avg_tick_us"`
	MinTickUS          int64   `csv:"min_tick_us"`
	MaxTickUS          int64   `csv:"max_tick_us"`
	TicksPerSec        float64 `csv:"ticks_per_sec"`
	AuraNSPerRecipient int64   `csv:"aura_ns_per_recipient"`
	EventsPct          float64 `csv:"events_pct"`
	SpatialGridPct     float64 `csv:"spatial_grid_pct"`
	AuraPct            float64 `csv:"aura_pct"`
	EconomyPct         float64 `csv:"economy_pct"`
	CleanupPct         float64 `csv:"cleanup_pct"`
	TelemetryPct       float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:          windowEnd,
		AvgTickUS:          s.AvgTickDuration.Microseconds(),
		MinTickUS:          s.MinTickDuration.Microseconds(),
		MaxTickUS:          s.MaxTickDuration.Microseconds(),
		TicksPerSec:        s.TicksPerSecond,
		AuraNSPerRecipient: s.AuraPerRecipient.Nanoseconds(),
		EventsPct:          s.PhasePct[PhaseEvents],
		SpatialGridPct:     s.PhasePct[PhaseSpatialGrid],
		AuraPct:            s.PhasePct[PhaseAura],
		EconomyPct:         s.PhasePct[PhaseEconomy],
		CleanupPct:         s.PhasePct[PhaseCleanup],
		TelemetryPct:       s.PhasePct[PhaseTelemetry],
	}
}
