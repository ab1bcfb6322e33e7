package world

import (
	"testing"

	"gathersim/internal/sim/catalogs"
)

func testCatalogs(nodes ...catalogs.NodeDef) *catalogs.Catalogs {
	return &catalogs.Catalogs{
		Resources: catalogs.ResourceCatalog{
			Palette: []string{"STONE", "WOOD"},
			Defs: map[string]catalogs.ResourceDef{
				"WOOD":  {ID: "WOOD", Name: "Wood"},
				"STONE": {ID: "STONE", Name: "Stone"},
			},
			Digest: "test",
		},
		Nodes: catalogs.NodeCatalog{Defs: nodes, Digest: "test"},
	}
}

func newTestWorld(t *testing.T, nodes ...catalogs.NodeDef) *World {
	t.Helper()
	w, err := New(WorldConfig{
		ID:         "test",
		TickRateHz: 5,
	}, testCatalogs(nodes...))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func joinTestAgent(t *testing.T, w *World, name string) *Gatherer {
	t.Helper()
	resp := w.joinAgent(name, nil)
	a := w.gatherers[resp.Welcome.AgentID]
	if a == nil {
		t.Fatalf("missing agent after join")
	}
	return a
}

// lastEventOfType scans an agent's pending events newest-first.
func lastEventOfType(a *Gatherer, typ string) map[string]interface{} {
	for i := len(a.Events) - 1; i >= 0; i-- {
		if a.Events[i]["type"] == typ {
			return a.Events[i]
		}
	}
	return nil
}

func countEventsOfType(a *Gatherer, typ string) int {
	n := 0
	for _, e := range a.Events {
		if e["type"] == typ {
			n++
		}
	}
	return n
}
