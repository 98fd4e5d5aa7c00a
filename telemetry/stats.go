package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Allies  int `csv:"allies"`
	Enemies int `csv:"enemies"`
	Auras   int `csv:"auras"`

	// Aura activity during window
	AuraPasses int     `csv:"aura_passes"`
	Entered    int     `csv:"entered"`
	Left       int     `csv:"left"`
	Healed     float64 `csv:"healed"`

	// Combat during window
	DamageTaken float64 `csv:"damage_taken"`
	Deaths      int     `csv:"deaths"`

	// Economy during window
	Purchases        int `csv:"purchases"`
	PurchasesRefused int `csv:"purchases_refused"`
	Coins            int `csv:"coins"`   // balance at window end
	Essence          int `csv:"essence"` // balance at window end

	// Ally health fraction (current / buffed max) at window end
	HealthMean float64 `csv:"health_mean"`
	HealthStd  float64 `csv:"health_std"`
	HealthP10  float64 `csv:"health_p10"`
	HealthP50  float64 `csv:"health_p50"`
	HealthP90  float64 `csv:"health_p90"`

	// Mean live buff sources per ally
	BuffSourcesMean float64 `csv:"buff_sources_mean"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeHealthStats calculates mean, std and percentiles. Std is the
// sample standard deviation and is 0 for fewer than two values.
func ComputeHealthStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}
	if n == 1 {
		mean = values[0]
	} else {
		mean, std = stat.MeanStdDev(values, nil)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("allies", s.Allies),
		slog.Int("enemies", s.Enemies),
		slog.Int("auras", s.Auras),
		slog.Int("aura_passes", s.AuraPasses),
		slog.Int("entered", s.Entered),
		slog.Int("left", s.Left),
		slog.Float64("healed", s.Healed),
		slog.Float64("damage_taken", s.DamageTaken),
		slog.Int("deaths", s.Deaths),
		slog.Int("purchases", s.Purchases),
		slog.Int("purchases_refused", s.PurchasesRefused),
		slog.Int("coins", s.Coins),
		slog.Int("essence", s.Essence),
		slog.Float64("health_mean", s.HealthMean),
		slog.Float64("health_p10", s.HealthP10),
		slog.Float64("health_p50", s.HealthP50),
		slog.Float64("buff_sources_mean", s.BuffSourcesMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"allies", s.Allies,
		"auras", s.Auras,
		"aura_passes", s.AuraPasses,
		"entered", s.Entered,
		"left", s.Left,
		"healed", s.Healed,
		"damage_taken", s.DamageTaken,
		"deaths", s.Deaths,
		"purchases", s.Purchases,
		"purchases_refused", s.PurchasesRefused,
		"coins", s.Coins,
		"health_p50", s.HealthP50,
	)
}
