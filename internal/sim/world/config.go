package world

import "gathersim/internal/sim/tuning"

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Defaults applied to newly joined gatherers.
	GatherRange    int
	GatherStrength int

	// Cycle length, in ticks, for nodes whose definition does not set one.
	DefaultCycleTicks int

	SpatialCellSize int

	SpawnPos Vec3i
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.GatherRange <= 0 {
		c.GatherRange = 16
	}
	if c.GatherStrength <= 0 {
		c.GatherStrength = 1
	}
	if c.DefaultCycleTicks <= 0 {
		c.DefaultCycleTicks = 10
	}
	if c.SpatialCellSize <= 0 {
		c.SpatialCellSize = 16
	}
}

// ConfigFromTuning maps the yaml tuning knobs onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	cfg := WorldConfig{
		ID:                id,
		TickRateHz:        t.TickRateHz,
		GatherRange:       t.GatherRange,
		GatherStrength:    t.GatherStrength,
		DefaultCycleTicks: CycleTicks(t.DefaultCycleMS, t.TickRateHz),
		SpatialCellSize:   t.SpatialCellSize,
	}
	cfg.applyDefaults()
	return cfg
}

// CycleTicks converts a cycle duration in milliseconds to whole ticks at the
// given tick rate, never less than one tick.
func CycleTicks(cycleMS, tickRateHz int) int {
	if cycleMS <= 0 || tickRateHz <= 0 {
		return 1
	}
	ticks := (cycleMS*tickRateHz + 999) / 1000
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}
