package world

import "gathersim/internal/protocol"

// startGather moves a gatherer into Gathering(target). With an explicit
// nodeID the target must be known, gatherable, and in range. Without one the
// nearest eligible node wins. No candidate is a reported outcome, not a
// fault, and changes nothing.
func (w *World) startGather(a *Gatherer, cmdID, nodeID string, nowTick uint64) {
	var target *Node
	if nodeID != "" {
		n := w.nodes[nodeID]
		if n == nil || !n.CanGather() || Manhattan(a.Pos, n.Pos) > a.Range {
			a.AddEvent(protocol.Event{
				"t":       nowTick,
				"type":    "GATHER_FAIL",
				"cmd_id":  cmdID,
				"code":    protocol.ErrInvalidTarget,
				"message": "node not gatherable in range",
			})
			return
		}
		target = n
	} else {
		target = w.grid.NearestEligible(a.Pos, a.Range)
		if target == nil {
			a.AddEvent(protocol.Event{
				"t":       nowTick,
				"type":    "GATHER_FAIL",
				"cmd_id":  cmdID,
				"code":    protocol.ErrNoTarget,
				"message": "no eligible node in range",
			})
			return
		}
	}

	// Last writer wins: an active session ends before the new one starts.
	w.stopGather(a, StopRetarget, nowTick)

	s := &gatherSession{node: target, startedTick: nowTick}
	s.sub = target.SubscribeDepleted(func(string) {
		// Cancels the wait immediately instead of waiting out the cycle.
		s.depleted = true
	})
	a.session = s

	a.AddEvent(protocol.Event{
		"t":           nowTick,
		"type":        "GATHER_START",
		"cmd_id":      cmdID,
		"node_id":     target.ID,
		"resource":    target.Resource,
		"cycle_ticks": target.CycleTicks,
	})
	w.recordEvent(a.ID, protocol.Event{
		"t":       nowTick,
		"type":    "GATHER_START",
		"node_id": target.ID,
	})
}

// stopGather ends the active session, unsubscribing from the target's
// depletion notification. Idempotent: stopping an idle gatherer does nothing
// and reports false.
func (w *World) stopGather(a *Gatherer, reason string, nowTick uint64) bool {
	s := a.session
	if s == nil {
		return false
	}
	s.node.UnsubscribeDepleted(s.sub)
	a.session = nil

	e := protocol.Event{
		"t":       nowTick,
		"type":    "GATHER_STOP",
		"node_id": s.node.ID,
		"reason":  reason,
	}
	a.AddEvent(e)
	w.recordEvent(a.ID, e)
	return true
}

// systemGather advances every active session by one tick: wait out the
// node's cycle, gather, deposit, and keep going until the target depletes or
// is lost.
func (w *World) systemGather(nowTick uint64) {
	for _, id := range w.sortedGathererIDs() {
		a := w.gatherers[id]
		s := a.session
		if s == nil {
			continue
		}
		if s.depleted {
			// Depleted by someone else since the last tick.
			w.stopGather(a, StopDepleted, nowTick)
			continue
		}
		if !s.node.CanGather() {
			w.stopGather(a, StopTargetLost, nowTick)
			continue
		}
		if s.startedTick == nowTick {
			// The first full cycle is waited out starting next tick.
			continue
		}

		s.elapsed++
		if s.elapsed < s.node.CycleTicks {
			continue
		}

		got := s.node.Gather(a.Strength)
		if !got.IsZero() {
			if err := a.Inventory.Add(got.Resource, got.Count); err != nil {
				a.AddEvent(protocol.Event{
					"t":       nowTick,
					"type":    "GATHER_FAIL",
					"node_id": s.node.ID,
					"code":    protocol.ErrInternal,
					"message": err.Error(),
				})
			} else {
				e := protocol.Event{
					"t":        nowTick,
					"type":     "GATHER_CYCLE",
					"node_id":  s.node.ID,
					"resource": got.Resource,
					"count":    got.Count,
				}
				a.AddEvent(e)
				w.recordEvent(a.ID, e)
			}
		}

		if s.depleted {
			w.stopGather(a, StopDepleted, nowTick)
			continue
		}
		s.elapsed = 0
	}
}
