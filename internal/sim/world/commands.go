package world

import "gathersim/internal/protocol"

// applyAct runs the commands of one ACT message in order.
func (w *World) applyAct(a *Gatherer, act protocol.ActMsg, nowTick uint64) {
	for _, cmd := range act.Commands {
		switch cmd.Type {
		case protocol.CmdGatherStart:
			w.startGather(a, cmd.ID, cmd.NodeID, nowTick)
		case protocol.CmdGatherStop:
			// Stopping while idle is a no-op by contract; no event either way
			// beyond the GATHER_STOP the stop sequence itself emits.
			w.stopGather(a, StopRequested, nowTick)
		default:
			a.AddEvent(protocol.Event{
				"t":       nowTick,
				"type":    "GATHER_FAIL",
				"cmd_id":  cmd.ID,
				"code":    protocol.ErrBadRequest,
				"message": "unknown command type",
			})
		}
	}
}
