package world

// Node is a depletable in-world source of one resource type. Remaining only
// ever decreases; once it reaches zero the node is terminal and stays inert.
type Node struct {
	ID                string
	Resource          string
	Pos               Vec3i
	Remaining         int
	CapacityPerAction int
	CycleTicks        int

	nextSub       int
	depletedSubs  []depletedSub
	depletedFired bool
}

type depletedSub struct {
	id int
	fn func(nodeID string)
}

func (n *Node) CanGather() bool { return n.Remaining > 0 }

// Gather extracts up to CapacityPerAction*strength units, capped by what is
// left. Calling it on a depleted node is a defined no-op that returns the
// zero ResourceAmount. When the draw empties the node, the depleted
// notification fires before Gather returns.
func (n *Node) Gather(strength int) ResourceAmount {
	if strength < 1 {
		strength = 1
	}
	if !n.CanGather() {
		return ResourceAmount{}
	}
	take := n.CapacityPerAction * strength
	if take > n.Remaining {
		take = n.Remaining
	}
	n.Remaining -= take
	if n.Remaining == 0 {
		n.fireDepleted()
	}
	return ResourceAmount{Resource: n.Resource, Count: take}
}

// SubscribeDepleted registers fn to run synchronously, exactly once, when
// Remaining transitions from positive to zero.
func (n *Node) SubscribeDepleted(fn func(nodeID string)) int {
	n.nextSub++
	n.depletedSubs = append(n.depletedSubs, depletedSub{id: n.nextSub, fn: fn})
	return n.nextSub
}

func (n *Node) UnsubscribeDepleted(id int) {
	for i, s := range n.depletedSubs {
		if s.id == id {
			n.depletedSubs = append(n.depletedSubs[:i], n.depletedSubs[i+1:]...)
			return
		}
	}
}

func (n *Node) fireDepleted() {
	if n.depletedFired {
		return
	}
	n.depletedFired = true
	// Listeners may unsubscribe during dispatch; iterate a copy.
	for _, s := range append([]depletedSub(nil), n.depletedSubs...) {
		s.fn(n.ID)
	}
}
