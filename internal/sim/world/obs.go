package world

import "gathersim/internal/protocol"

func (w *World) buildObs(a *Gatherer, nowTick uint64) protocol.ObsMsg {
	self := protocol.SelfObs{
		Pos:      a.Pos.ToArray(),
		Range:    a.Range,
		Strength: a.Strength,
		State:    a.State(),
	}
	if s := a.session; s != nil {
		self.TargetID = s.node.ID
		self.CycleTicks = s.node.CycleTicks
		if s.node.CycleTicks > 0 {
			self.Progress = float64(s.elapsed) / float64(s.node.CycleTicks)
		}
	}

	nearby := w.grid.WithinRange(a.Pos, a.Range)
	nodes := make([]protocol.NodeObs, 0, len(nearby))
	for _, n := range nearby {
		nodes = append(nodes, protocol.NodeObs{
			ID:        n.ID,
			Resource:  n.Resource,
			Pos:       n.Pos.ToArray(),
			Remaining: n.Remaining,
			Distance:  Manhattan(a.Pos, n.Pos),
		})
	}

	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		AgentID:         a.ID,
		Self:            self,
		Inventory:       a.Inventory.List(),
		Nodes:           nodes,
		Events:          a.TakeEvents(),
	}
}
