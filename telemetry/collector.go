package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float32

	windowStartTick int32

	// Event counters for current window
	auraPasses       int
	entered          int
	left             int
	healed           float64
	damageTaken      float64
	deaths           int
	purchases        int
	purchasesRefused int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	ticksPerWindow := int32(windowDurationSec / float64(dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordAuraPass adds the result of one aura update.
func (c *Collector) RecordAuraPass(passes, entered, left int, healed float64) {
	c.auraPasses += passes
	c.entered += entered
	c.left += left
	c.healed += healed
}

// RecordDamage records damage dealt to an ally.
func (c *Collector) RecordDamage(amount float64) {
	c.damageTaken += amount
}

// RecordDeath records a unit dying.
func (c *Collector) RecordDeath() {
	c.deaths++
}

// RecordPurchase records a purchase attempt.
func (c *Collector) RecordPurchase(ok bool) {
	if ok {
		c.purchases++
	} else {
		c.purchasesRefused++
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Population is the world state sampled at the end of a window.
type Population struct {
	Allies         int
	Enemies        int
	Auras          int
	Coins          int
	Essence        int
	HealthFraction []float64 // per ally, current / buffed max
	BuffSources    []int     // per ally, live registry entries
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, pop Population) WindowStats {
	mean, std, p10, p50, p90 := ComputeHealthStats(pop.HealthFraction)

	var buffMean float64
	if len(pop.BuffSources) > 0 {
		total := 0
		for _, n := range pop.BuffSources {
			total += n
		}
		buffMean = float64(total) / float64(len(pop.BuffSources))
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.dt),

		Allies:  pop.Allies,
		Enemies: pop.Enemies,
		Auras:   pop.Auras,

		AuraPasses: c.auraPasses,
		Entered:    c.entered,
		Left:       c.left,
		Healed:     c.healed,

		DamageTaken: c.damageTaken,
		Deaths:      c.deaths,

		Purchases:        c.purchases,
		PurchasesRefused: c.purchasesRefused,
		Coins:            pop.Coins,
		Essence:          pop.Essence,

		HealthMean: mean,
		HealthStd:  std,
		HealthP10:  p10,
		HealthP50:  p50,
		HealthP90:  p90,

		BuffSourcesMean: buffMean,
	}

	c.windowStartTick = currentTick
	c.auraPasses = 0
	c.entered = 0
	c.left = 0
	c.healed = 0
	c.damageTaken = 0
	c.deaths = 0
	c.purchases = 0
	c.purchasesRefused = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
