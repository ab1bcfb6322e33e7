package world

import (
	"testing"

	"gathersim/internal/protocol"
	"gathersim/internal/sim/catalogs"
)

func startCmd(agentID, cmdID, nodeID string) []ActionEnvelope {
	return []ActionEnvelope{{
		AgentID: agentID,
		Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Commands:        []protocol.CommandReq{{ID: cmdID, Type: protocol.CmdGatherStart, NodeID: nodeID}},
		},
	}}
}

func stopCmd(agentID, cmdID string) []ActionEnvelope {
	return []ActionEnvelope{{
		AgentID: agentID,
		Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Commands:        []protocol.CommandReq{{ID: cmdID, Type: protocol.CmdGatherStop}},
		},
	}}
}

func TestGather_NoCycleCompletesBeforeCycleDuration(t *testing.T) {
	// 2000ms at 5Hz is 10 ticks per cycle.
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{2, 0, 0},
		Remaining: 100, CapacityPerAction: 4, CycleMS: 2000,
	})
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))
	if a.State() != StateGathering {
		t.Fatalf("state=%s want GATHERING", a.State())
	}

	for i := 0; i < 9; i++ {
		w.Step(nil, nil, nil)
		if got := a.Inventory.QuantityOf("WOOD"); got != 0 {
			t.Fatalf("tick %d: WOOD=%d before the cycle elapsed", i+1, got)
		}
	}

	// The tenth tick after the start completes the cycle.
	w.Step(nil, nil, nil)
	if got := a.Inventory.QuantityOf("WOOD"); got != 4 {
		t.Fatalf("WOOD=%d want 4 after first cycle", got)
	}
	if w.Node("N1").Remaining != 96 {
		t.Fatalf("node remaining=%d want 96", w.Node("N1").Remaining)
	}
}

func TestGather_StartPicksNearestEligibleNode(t *testing.T) {
	w := newTestWorld(t,
		catalogs.NodeDef{ID: "N_FAR", Resource: "STONE", Pos: [3]int{8, 0, 0}, Remaining: 10, CapacityPerAction: 1, CycleMS: 1000},
		catalogs.NodeDef{ID: "N_NEAR", Resource: "WOOD", Pos: [3]int{0, 0, 3}, Remaining: 10, CapacityPerAction: 1, CycleMS: 1000},
		catalogs.NodeDef{ID: "N_DRY", Resource: "WOOD", Pos: [3]int{1, 0, 0}, Remaining: 0, CapacityPerAction: 1, CycleMS: 1000},
	)
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))
	target := a.Target()
	if target == nil || target.ID != "N_NEAR" {
		t.Fatalf("target=%v want N_NEAR", target)
	}
}

func TestGather_StartWithNoEligibleTarget(t *testing.T) {
	// The only node sits outside the default range.
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{100, 0, 0},
		Remaining: 10, CapacityPerAction: 1, CycleMS: 1000,
	})
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))

	if a.State() != StateIdle {
		t.Fatalf("state=%s want IDLE", a.State())
	}
	e := lastEventOfType(a, "GATHER_FAIL")
	if e == nil || e["code"] != protocol.ErrNoTarget {
		t.Fatalf("GATHER_FAIL event = %v", e)
	}
}

func TestGather_ExplicitUnknownTargetFails(t *testing.T) {
	w := newTestWorld(t)
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", "N_MISSING"))

	if a.State() != StateIdle {
		t.Fatalf("state=%s want IDLE", a.State())
	}
	e := lastEventOfType(a, "GATHER_FAIL")
	if e == nil || e["code"] != protocol.ErrInvalidTarget {
		t.Fatalf("GATHER_FAIL event = %v", e)
	}
}

func TestGather_RetargetDropsOldSubscriptionAndYield(t *testing.T) {
	w := newTestWorld(t,
		catalogs.NodeDef{ID: "N_X", Resource: "WOOD", Pos: [3]int{2, 0, 0}, Remaining: 100, CapacityPerAction: 4, CycleMS: 2000},
		catalogs.NodeDef{ID: "N_Y", Resource: "STONE", Pos: [3]int{5, 0, 0}, Remaining: 100, CapacityPerAction: 3, CycleMS: 2000},
	)
	a := joinTestAgent(t, w, "g1")
	x, y := w.Node("N_X"), w.Node("N_Y")
	baseSubs := len(x.depletedSubs) // the world's own watcher

	w.Step(nil, nil, startCmd(a.ID, "C1", "")) // tick 0, nearest is N_X
	if a.Target() != x {
		t.Fatalf("target=%v want N_X", a.Target())
	}
	if len(x.depletedSubs) != baseSubs+1 {
		t.Fatalf("session did not subscribe to N_X")
	}

	// Part-way through X's cycle, switch to Y.
	for i := 0; i < 3; i++ {
		w.Step(nil, nil, nil)
	}
	a.Events = nil
	w.Step(nil, nil, startCmd(a.ID, "C2", "N_Y")) // tick 4

	if a.Target() != y {
		t.Fatalf("target=%v want N_Y", a.Target())
	}
	if len(x.depletedSubs) != baseSubs {
		t.Fatalf("N_X subscription leaked: %d", len(x.depletedSubs))
	}
	e := lastEventOfType(a, "GATHER_STOP")
	if e == nil || e["reason"] != StopRetarget {
		t.Fatalf("GATHER_STOP event = %v", e)
	}

	// X's interrupted cycle must never pay out; Y pays on its own schedule,
	// ten ticks after the retarget.
	for i := 0; i < 9; i++ {
		w.Step(nil, nil, nil)
	}
	if got := a.Inventory.QuantityOf("WOOD"); got != 0 {
		t.Fatalf("WOOD=%d, X yielded after retarget", got)
	}
	w.Step(nil, nil, nil)
	if got := a.Inventory.QuantityOf("STONE"); got != 3 {
		t.Fatalf("STONE=%d want 3", got)
	}
	if x.Remaining != 100 {
		t.Fatalf("N_X remaining=%d want 100", x.Remaining)
	}
}

func TestGather_DepletionEndsSessionWithoutExtraCycle(t *testing.T) {
	// remaining=6, capacity=4: cycles yield 4 then 2, then the node is dry.
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{1, 0, 0},
		Remaining: 6, CapacityPerAction: 4, CycleMS: 1000,
	})
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))
	for i := 0; i < 5; i++ {
		w.Step(nil, nil, nil)
	}
	if got := a.Inventory.QuantityOf("WOOD"); got != 4 {
		t.Fatalf("WOOD=%d want 4 after first cycle", got)
	}

	for i := 0; i < 5; i++ {
		w.Step(nil, nil, nil)
	}
	if got := a.Inventory.QuantityOf("WOOD"); got != 6 {
		t.Fatalf("WOOD=%d want 6 after capped final cycle", got)
	}
	if a.State() != StateIdle {
		t.Fatalf("state=%s want IDLE after depletion", a.State())
	}
	e := lastEventOfType(a, "GATHER_STOP")
	if e == nil || e["reason"] != StopDepleted {
		t.Fatalf("GATHER_STOP event = %v", e)
	}
	if w.grid.NearestEligible(a.Pos, a.Range) != nil {
		t.Fatalf("depleted node still eligible")
	}
}

func TestGather_ExternalDepletionCancelsWait(t *testing.T) {
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{1, 0, 0},
		Remaining: 20, CapacityPerAction: 4, CycleMS: 2000,
	})
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))
	w.Step(nil, nil, nil) // mid-wait

	// Something else empties the node between ticks.
	if got := w.Node("N1").Gather(5); got.Count != 20 {
		t.Fatalf("drain gather=%d", got.Count)
	}

	w.Step(nil, nil, nil)
	if a.State() != StateIdle {
		t.Fatalf("state=%s want IDLE right after depletion", a.State())
	}
	if got := a.Inventory.QuantityOf("WOOD"); got != 0 {
		t.Fatalf("WOOD=%d, interrupted cycle paid out", got)
	}
	e := lastEventOfType(a, "GATHER_STOP")
	if e == nil || e["reason"] != StopDepleted {
		t.Fatalf("GATHER_STOP event = %v", e)
	}
}

func TestGather_StopIsIdempotent(t *testing.T) {
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{1, 0, 0},
		Remaining: 10, CapacityPerAction: 1, CycleMS: 1000,
	})
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))
	w.Step(nil, nil, stopCmd(a.ID, "C2"))
	if a.State() != StateIdle {
		t.Fatalf("state=%s want IDLE", a.State())
	}
	if got := countEventsOfType(a, "GATHER_STOP"); got != 1 {
		t.Fatalf("GATHER_STOP count=%d want 1", got)
	}

	// Stopping an idle gatherer, twice, changes nothing and emits nothing.
	a.Events = nil
	w.Step(nil, nil, stopCmd(a.ID, "C3"))
	w.Step(nil, nil, stopCmd(a.ID, "C4"))
	if a.State() != StateIdle {
		t.Fatalf("state=%s want IDLE", a.State())
	}
	if len(a.Events) != 0 {
		t.Fatalf("idle stop produced events: %v", a.Events)
	}
}

func TestGather_LeaveRunsStopSequence(t *testing.T) {
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{1, 0, 0},
		Remaining: 10, CapacityPerAction: 1, CycleMS: 1000,
	})
	a := joinTestAgent(t, w, "g1")
	n := w.Node("N1")
	baseSubs := len(n.depletedSubs)

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))
	if len(n.depletedSubs) != baseSubs+1 {
		t.Fatalf("session did not subscribe")
	}

	w.Step(nil, []string{a.ID}, nil)
	if w.Gatherer(a.ID) != nil {
		t.Fatalf("agent still present after leave")
	}
	if len(n.depletedSubs) != baseSubs {
		t.Fatalf("teardown leaked the depletion subscription")
	}
}

func TestGather_TwoGatherersShareOneNode(t *testing.T) {
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{1, 0, 0},
		Remaining: 6, CapacityPerAction: 4, CycleMS: 1000,
	})
	a1 := joinTestAgent(t, w, "g1")
	a2 := joinTestAgent(t, w, "g2")

	acts := append(startCmd(a1.ID, "C1", ""), startCmd(a2.ID, "C2", "")...)
	w.Step(nil, nil, acts)
	// Both cycles land on the same tick; the first gatherer in ID order
	// drains 4 and learns of the depletion one tick later, the second gets
	// the capped 2 and stops at once.
	for i := 0; i < 6; i++ {
		w.Step(nil, nil, nil)
	}
	if got := a1.Inventory.QuantityOf("WOOD"); got != 4 {
		t.Fatalf("g1 WOOD=%d want 4", got)
	}
	if got := a2.Inventory.QuantityOf("WOOD"); got != 2 {
		t.Fatalf("g2 WOOD=%d want 2", got)
	}
	if a1.State() != StateIdle || a2.State() != StateIdle {
		t.Fatalf("states = %s/%s want IDLE/IDLE", a1.State(), a2.State())
	}
	if w.Node("N1").Remaining != 0 {
		t.Fatalf("remaining=%d want 0", w.Node("N1").Remaining)
	}
}

type captureLogger struct {
	entries []TickLogEntry
}

func (c *captureLogger) WriteTick(e TickLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureLogger) eventsOfType(typ string) []RecordedEvent {
	var out []RecordedEvent
	for _, entry := range c.entries {
		for _, re := range entry.Events {
			if re.Event["type"] == typ {
				out = append(out, re)
			}
		}
	}
	return out
}

func TestGather_JournalSeesDepletionExactlyOnce(t *testing.T) {
	w := newTestWorld(t, catalogs.NodeDef{
		ID: "N1", Resource: "WOOD", Pos: [3]int{1, 0, 0},
		Remaining: 2, CapacityPerAction: 2, CycleMS: 1000,
	})
	logger := &captureLogger{}
	w.SetTickLogger(logger)
	a := joinTestAgent(t, w, "g1")

	w.Step(nil, nil, startCmd(a.ID, "C1", ""))
	for i := 0; i < 10; i++ {
		w.Step(nil, nil, nil)
	}

	dep := logger.eventsOfType("NODE_DEPLETED")
	if len(dep) != 1 {
		t.Fatalf("NODE_DEPLETED recorded %d times want 1", len(dep))
	}
	if dep[0].Event["node_id"] != "N1" {
		t.Fatalf("depletion event = %v", dep[0].Event)
	}
	if got := len(logger.eventsOfType("GATHER_CYCLE")); got != 1 {
		t.Fatalf("GATHER_CYCLE recorded %d times want 1", got)
	}
	if got := len(logger.eventsOfType("RESOURCE_CHANGED")); got != 1 {
		t.Fatalf("RESOURCE_CHANGED recorded %d times want 1", got)
	}
}
