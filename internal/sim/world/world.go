package world

import (
	"fmt"
	"sort"
	"sync/atomic"

	"gathersim/internal/protocol"
	"gathersim/internal/sim/catalogs"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type RecordedAction struct {
	AgentID string          `json:"agent_id"`
	Act     protocol.ActMsg `json:"act"`
}

// RecordedEvent is one notification emitted during a tick, as written to the
// journal and the index. AgentID is empty for world-level events.
type RecordedEvent struct {
	AgentID string         `json:"agent_id,omitempty"`
	Event   protocol.Event `json:"event"`
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Events  []RecordedEvent  `json:"events,omitempty"`
}

// TickLogger receives the per-tick journal entry. Implemented by the JSONL
// journal and the sqlite index; may be nil.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	gatherers map[string]*Gatherer
	clients   map[string]*clientState

	nodes map[string]*Node
	grid  *nodeGrid

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	nextAgentNum atomic.Uint64

	eventsThisTick []RecordedEvent

	// Optional journal sink (may be nil). Implemented in internal/persistence/*.
	tickLogger TickLogger
}

type clientState struct {
	Out chan []byte
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}

	w := &World{
		cfg:       cfg,
		catalogs:  cats,
		gatherers: map[string]*Gatherer{},
		clients:   map[string]*clientState{},
		nodes:     map[string]*Node{},
		grid:      newNodeGrid(cfg.SpatialCellSize),
		inbox:     make(chan ActionEnvelope, 256),
		join:      make(chan JoinRequest, 16),
		leave:     make(chan string, 16),
		stop:      make(chan struct{}),
	}

	for _, def := range cats.Nodes.Defs {
		cycle := cfg.DefaultCycleTicks
		if def.CycleMS > 0 {
			cycle = CycleTicks(def.CycleMS, cfg.TickRateHz)
		}
		n := &Node{
			ID:                def.ID,
			Resource:          def.Resource,
			Pos:               Vec3i{X: def.Pos[0], Y: def.Pos[1], Z: def.Pos[2]},
			Remaining:         def.Remaining,
			CapacityPerAction: def.CapacityPerAction,
			CycleTicks:        cycle,
		}
		w.nodes[n.ID] = n
		if n.CanGather() {
			w.grid.Insert(n)
			w.watchNode(n)
		}
	}

	return w, nil
}

// watchNode wires the world-level depletion handling: drop the node from the
// spatial grid and record the NODE_DEPLETED event.
func (w *World) watchNode(n *Node) {
	n.SubscribeDepleted(func(nodeID string) {
		w.grid.Remove(n)
		w.recordEvent("", protocol.Event{
			"t":        w.tick.Load(),
			"type":     "NODE_DEPLETED",
			"node_id":  nodeID,
			"resource": n.Resource,
		})
	})
}

func (w *World) recordEvent(agentID string, e protocol.Event) {
	w.eventsThisTick = append(w.eventsThisTick, RecordedEvent{AgentID: agentID, Event: e})
}

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

// SetTickLogger must be called before Run.
func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

// Node returns a node by id, for tests and read-model queries on the world
// goroutine.
func (w *World) Node(id string) *Node { return w.nodes[id] }

// Gatherer returns an agent by id, world-goroutine only.
func (w *World) Gatherer(id string) *Gatherer { return w.gatherers[id] }

func (w *World) joinAgent(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "gatherer"
	}
	id := fmt.Sprintf("A%04d", w.nextAgentNum.Add(1))

	inv := NewInventory(w.catalogs.Resources.Known)
	a := &Gatherer{
		ID:        id,
		Name:      name,
		Pos:       w.cfg.SpawnPos,
		Range:     w.cfg.GatherRange,
		Strength:  w.cfg.GatherStrength,
		Inventory: inv,
	}

	// Inventory notifications become per-agent events, in the order the
	// inventory dispatches them: resource-changed first, then the generic
	// inventory-changed.
	inv.SubscribeResourceChanged(func(resource string, count int) {
		e := protocol.Event{
			"t":        w.tick.Load(),
			"type":     "RESOURCE_CHANGED",
			"resource": resource,
			"count":    count,
		}
		a.AddEvent(e)
		w.recordEvent(a.ID, e)
	})
	inv.SubscribeChanged(func() {
		a.AddEvent(protocol.Event{
			"t":    w.tick.Load(),
			"type": "INVENTORY_CHANGED",
		})
	})

	w.gatherers[id] = a
	if out != nil {
		w.clients[id] = &clientState{Out: out}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         id,
		WorldParams: protocol.WorldParams{
			TickRateHz:      w.cfg.TickRateHz,
			GatherRange:     a.Range,
			GatherStrength:  a.Strength,
			DefaultCycleMS:  w.cfg.DefaultCycleTicks * 1000 / w.cfg.TickRateHz,
			SpatialCellSize: w.cfg.SpatialCellSize,
		},
		Catalogs: protocol.CatalogDigests{
			Resources: protocol.DigestRef{Digest: w.catalogs.Resources.Digest, Count: len(w.catalogs.Resources.Palette)},
			Nodes:     protocol.DigestRef{Digest: w.catalogs.Nodes.Digest, Count: len(w.catalogs.Nodes.Defs)},
		},
	}

	resources := make([]catalogs.ResourceDef, 0, len(w.catalogs.Resources.Palette))
	for _, rid := range w.catalogs.Resources.Palette {
		resources = append(resources, w.catalogs.Resources.Defs[rid])
	}
	cats := []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "resources",
			Digest:          w.catalogs.Resources.Digest,
			Data:            resources,
		},
	}

	return JoinResponse{Welcome: welcome, Catalogs: cats}
}

func (w *World) handleLeave(id string, nowTick uint64) {
	a := w.gatherers[id]
	if a == nil {
		return
	}
	// Teardown runs the stop sequence so no depletion subscription leaks.
	w.stopGather(a, StopLeave, nowTick)
	delete(w.gatherers, id)
	delete(w.clients, id)
}

func (w *World) sortedGathererIDs() []string {
	ids := make([]string, 0, len(w.gatherers))
	for id := range w.gatherers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
