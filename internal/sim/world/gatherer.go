package world

import "gathersim/internal/protocol"

// Gatherer states reported in OBS.
const (
	StateIdle      = "IDLE"
	StateGathering = "GATHERING"
)

// Stop reasons recorded in GATHER_STOP events.
const (
	StopRequested  = "REQUESTED"
	StopDepleted   = "DEPLETED"
	StopTargetLost = "TARGET_LOST"
	StopRetarget   = "RETARGET"
	StopLeave      = "LEAVE"
)

// Gatherer is an agent that runs at most one timed gathering session at a
// time and deposits its yield into its own inventory.
type Gatherer struct {
	ID   string
	Name string

	Pos      Vec3i
	Range    int
	Strength int

	Inventory *Inventory

	session *gatherSession

	Events []protocol.Event
}

// gatherSession is the running state of one gathering loop. The target
// reference is non-owning: the session ends when the node depletes or is
// otherwise lost, and always unsubscribes on the way out.
type gatherSession struct {
	node        *Node
	sub         int    // depleted subscription id
	startedTick uint64 // the wait begins on the following tick
	elapsed     int    // ticks waited in the current cycle
	depleted    bool   // set by the depletion subscription; cancels the wait
}

func (a *Gatherer) State() string {
	if a.session != nil {
		return StateGathering
	}
	return StateIdle
}

// Target returns the node of the active session, or nil when idle.
func (a *Gatherer) Target() *Node {
	if a.session == nil {
		return nil
	}
	return a.session.node
}

func (a *Gatherer) AddEvent(e protocol.Event) {
	a.Events = append(a.Events, e)
}

func (a *Gatherer) TakeEvents() []protocol.Event {
	ev := a.Events
	a.Events = nil
	return ev
}
