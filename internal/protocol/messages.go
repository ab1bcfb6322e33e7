package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	AgentName       string            `json:"agent_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	AgentID         string         `json:"agent_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz      int `json:"tick_rate_hz"`
	GatherRange     int `json:"gather_range"`
	GatherStrength  int `json:"gather_strength"`
	DefaultCycleMS  int `json:"default_cycle_ms"`
	SpatialCellSize int `json:"spatial_cell_size"`
}

type CatalogDigests struct {
	Resources DigestRef `json:"resources"`
	Nodes     DigestRef `json:"nodes"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): one catalog sent as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // "resources" or "nodes"
	Digest          string      `json:"digest"` // sha256 hex
	Data            interface{} `json:"data"`
}

// ACT (client -> server): commands for this agent's gatherer.
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Commands        []CommandReq `json:"commands,omitempty"`
}

// Command types accepted in ActMsg.Commands.
const (
	CmdGatherStart = "GATHER_START"
	CmdGatherStop  = "GATHER_STOP"
)

type CommandReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// GATHER_START: optional explicit node; when empty the server picks the
	// nearest eligible node within the gatherer's range.
	NodeID string `json:"node_id,omitempty"`
}

// OBS (server -> client), one per tick.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Self      SelfObs         `json:"self"`
	Inventory []ResourceStack `json:"inventory"`
	Nodes     []NodeObs       `json:"nodes"`
	Events    []Event         `json:"events"`
}

type SelfObs struct {
	Pos      [3]int `json:"pos"`
	Range    int    `json:"range"`
	Strength int    `json:"strength"`
	State    string `json:"state"` // "IDLE" or "GATHERING"

	// Set only while gathering.
	TargetID   string  `json:"target_id,omitempty"`
	Progress   float64 `json:"progress,omitempty"` // elapsed/cycle, 0..1
	CycleTicks int     `json:"cycle_ticks,omitempty"`
}

type ResourceStack struct {
	Resource string `json:"resource"`
	Count    int    `json:"count"`
}

// NodeObs describes a gatherable node within the agent's range.
type NodeObs struct {
	ID        string `json:"id"`
	Resource  string `json:"resource"`
	Pos       [3]int `json:"pos"`
	Remaining int    `json:"remaining"`
	Distance  int    `json:"distance"`
}

type Event map[string]interface{}
