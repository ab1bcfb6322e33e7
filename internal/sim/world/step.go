package world

import "encoding/json"

func (w *World) stepInternal(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	nowTick := w.tick.Load()

	w.eventsThisTick = w.eventsThisTick[:0]

	// Apply leaves and joins deterministically at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.gatherers[id]; ok {
			w.handleLeave(id, nowTick)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinAgent(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{AgentID: resp.Welcome.AgentID, Name: req.Name})
	}

	// Apply actions in server_receive_order (the inbox order).
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		a := w.gatherers[env.AgentID]
		if a == nil {
			continue
		}
		env.Act.AgentID = env.AgentID // trust session identity
		recorded = append(recorded, RecordedAction{AgentID: env.AgentID, Act: env.Act})
		w.applyAct(a, env.Act, nowTick)
	}

	w.systemGather(nowTick)

	// Build + send OBS for each connected agent.
	for _, id := range w.sortedGathererIDs() {
		cl := w.clients[id]
		if cl == nil {
			continue
		}
		obs := w.buildObs(w.gatherers[id], nowTick)
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}

	if w.tickLogger != nil && (len(recordedJoins) > 0 || len(recordedLeaves) > 0 || len(recorded) > 0 || len(w.eventsThisTick) > 0) {
		entry := TickLogEntry{
			Tick:    nowTick,
			Joins:   recordedJoins,
			Leaves:  recordedLeaves,
			Actions: recorded,
			Events:  append([]RecordedEvent(nil), w.eventsThisTick...),
		}
		_ = w.tickLogger.WriteTick(entry)
	}

	w.tick.Add(1)
}
