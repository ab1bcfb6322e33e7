package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte(`
protocol_version: "1.0"
tick_rate_hz: 10
gather_range: 8
default_cycle_ms: 1500
journal:
  enabled: true
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tune, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.TickRateHz != 10 || tune.GatherRange != 8 || tune.DefaultCycleMS != 1500 {
		t.Fatalf("tuning = %+v", tune)
	}
	// Omitted fields fall back to defaults.
	if tune.GatherStrength != 1 || tune.SpatialCellSize != 16 {
		t.Fatalf("defaults not applied: %+v", tune)
	}
	if !tune.Journal.Enabled || tune.Index.Enabled {
		t.Fatalf("toggles = %+v %+v", tune.Journal, tune.Index)
	}
}

func TestDefaults(t *testing.T) {
	tune := Defaults()
	if tune.TickRateHz != 5 || tune.GatherRange != 16 || tune.GatherStrength != 1 {
		t.Fatalf("defaults = %+v", tune)
	}
	if tune.DefaultCycleMS != 2000 || tune.SpatialCellSize != 16 {
		t.Fatalf("defaults = %+v", tune)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v", err)
	}
}
