package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// MaxNodes caps how many node states a single TICK message carries.
	MaxNodes int `json:"max_nodes"`
	// Region, when set, restricts node states to anchors inside [Min, Max].
	Region *Region `json:"region,omitempty"`
	// Belts requests per-item belt progress in node states.
	Belts bool `json:"belts,omitempty"`
}

type Region struct {
	Min [2]int `json:"min"`
	Max [2]int `json:"max"`
}

func (r *Region) Contains(pos [2]int) bool {
	if r == nil {
		return true
	}
	return pos[0] >= r.Min[0] && pos[0] <= r.Max[0] && pos[1] >= r.Min[1] && pos[1] <= r.Max[1]
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	NodeTypes       []string    `json:"node_types"`
	ItemPalette     []string    `json:"item_palette"`
}

type WorldParams struct {
	TickRateHz int `json:"tick_rate_hz"`
}

// Server -> Client. Sent every observed tick. The first TICK after SUBSCRIBE is Full and lists
// every node; later ones only carry nodes whose contents changed.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Full            bool   `json:"full,omitempty"`

	Transfers int `json:"transfers"`
	Stalled   int `json:"stalled"`
	InFlight  int `json:"in_flight"`

	Nodes   []NodeState  `json:"nodes"`
	Removed []string     `json:"removed,omitempty"`
	Audits  []AuditEntry `json:"audits,omitempty"`
}

type NodeState struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Policy      string      `json:"policy"`
	Pos         [2]int      `json:"pos"`
	Size        int         `json:"size"`
	Team        uint16      `json:"team"`
	Orientation string      `json:"orientation,omitempty"`
	Link        string      `json:"link,omitempty"`
	Contents    []ItemCount `json:"contents"`
	Belt        *BeltState  `json:"belt,omitempty"`
}

type ItemCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// BeltState lists belt items from entry to exit. Progress uses encoding "U16LE_FIXED":
// base64 of little-endian uint16 values scaled so 65535 is the exit edge.
type BeltState struct {
	Kinds    []string `json:"kinds"`
	Encoding string   `json:"encoding"`
	Progress string   `json:"progress"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Node   string `json:"node,omitempty"`
	Pos    [2]int `json:"pos"`
	Reason string `json:"reason,omitempty"`
}
