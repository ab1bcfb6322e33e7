package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	// Gatherer defaults applied to newly joined agents.
	GatherRange    int `yaml:"gather_range"`
	GatherStrength int `yaml:"gather_strength"`

	// Fallback cycle duration for nodes that do not set their own.
	DefaultCycleMS int `yaml:"default_cycle_ms"`

	SpatialCellSize int `yaml:"spatial_cell_size"`

	Journal JournalTuning `yaml:"journal"`
	Index   IndexTuning   `yaml:"index"`
}

type JournalTuning struct {
	Enabled bool `yaml:"enabled"`
}

type IndexTuning struct {
	Enabled bool `yaml:"enabled"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 5
	}
	if t.GatherRange <= 0 {
		t.GatherRange = 16
	}
	if t.GatherStrength <= 0 {
		t.GatherStrength = 1
	}
	if t.DefaultCycleMS <= 0 {
		t.DefaultCycleMS = 2000
	}
	if t.SpatialCellSize <= 0 {
		t.SpatialCellSize = 16
	}
}
