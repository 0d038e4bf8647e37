package model

import "sort"

// ItemKind identifies a transportable payload type. It carries no behavior beyond equality.
type ItemKind string

// TeamTag is the ownership tag of a node. Transfers never cross teams.
type TeamTag uint16

// Capacity bounds how many items a node may hold. Unbounded means no limit.
type Capacity int

const Unbounded Capacity = -1

// Allows reports whether a node currently holding n items may take one more.
func (c Capacity) Allows(n int) bool {
	if c == Unbounded {
		return true
	}
	return n < int(c)
}

// NodeHandle addresses a node in the world arena. A handle whose generation no longer
// matches the slot is stale and resolves to no node. The zero value is never valid.
type NodeHandle struct {
	Index uint32 `json:"index"`
	Gen   uint32 `json:"gen"`
}

func (h NodeHandle) IsZero() bool { return h.Gen == 0 }

// TransitItem is one item in motion. It is owned by exactly one queue or belt and moves by value.
type TransitItem struct {
	Kind ItemKind `json:"kind"`
	// From is the side of the holding node the item entered through.
	From Direction `json:"from"`
	// ReadyAt is the sim time (seconds) at which a queued item may leave.
	ReadyAt float64 `json:"ready_at,omitempty"`
	// Progress is the belt position in [0,1]; Lateral is the side-merge offset decaying to 0.
	Progress float64 `json:"progress,omitempty"`
	Lateral  float64 `json:"lateral,omitempty"`
}

type PolicyKind uint8

const (
	PolicyRouter PolicyKind = iota + 1
	PolicyDistributor
	PolicyOverflow
	PolicySorter
	PolicyJunction
	PolicyBridge
	PolicyConveyor
	PolicyStorage
	PolicySource
	PolicySink
)

var policyNames = map[PolicyKind]string{
	PolicyRouter:      "router",
	PolicyDistributor: "distributor",
	PolicyOverflow:    "overflow",
	PolicySorter:      "sorter",
	PolicyJunction:    "junction",
	PolicyBridge:      "bridge",
	PolicyConveyor:    "conveyor",
	PolicyStorage:     "storage",
	PolicySource:      "source",
	PolicySink:        "sink",
}

func (k PolicyKind) String() string {
	if s, ok := policyNames[k]; ok {
		return s
	}
	return "unknown"
}

func ParsePolicyKind(s string) (PolicyKind, bool) {
	for k, name := range policyNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Policy is the forwarding variant of a node. Only the fields of the active Kind are meaningful.
type Policy struct {
	Kind PolicyKind

	// Sorter: selected kind; Sorter and Overflow: inverted flag.
	Selected ItemKind
	Inverted bool

	// Bridge: linked partner and maximum link distance. Incoming is the lowest-index live bridge
	// linking into this one; it is derived from the links and refreshed whenever they change.
	Link     NodeHandle
	Incoming NodeHandle
	Range    int

	// Source: kind emitted.
	Emit ItemKind
}

// Lane is a FIFO with a single waiting slot for its popped head.
type Lane struct {
	Queue      []TransitItem
	Waiting    TransitItem
	HasWaiting bool
}

func (l *Lane) Len() int {
	n := len(l.Queue)
	if l.HasWaiting {
		n++
	}
	return n
}

// Inventory holds counts per kind rather than discrete transit items.
type Inventory struct {
	Counts map[ItemKind]int
	// Allow restricts output kinds. Empty means whatever is present.
	Allow []ItemKind
	// LastIndex is the receiver index after the last successful output.
	LastIndex int
}

func (inv *Inventory) Total() int {
	n := 0
	for _, c := range inv.Counts {
		if c > 0 {
			n += c
		}
	}
	return n
}

type ItemCount struct {
	Kind  ItemKind `json:"kind"`
	Count int      `json:"count"`
}

// Node is one transport block instance. Shared state lives here; policy-specific behavior is
// dispatched on Policy.Kind by the owning world.
type Node struct {
	Handle NodeHandle
	Type   string
	Pos    Vec2i
	Size   int
	Team   TeamTag

	Orientation Direction
	Oriented    bool

	Capacity Capacity
	// TravelTime is the per-item delay of queue nodes, 1/throughput seconds.
	TravelTime float64
	// Speed is belt progress per second.
	Speed float64

	// Accept, when non-empty, is the node-local allow-list for incoming kinds.
	Accept []ItemKind

	Neighbors [NumDirections]NodeHandle
	Policy    Policy

	Lane     Lane
	Lanes    [NumDirections]Lane
	NextSide bool

	Belt []TransitItem

	Inventory  Inventory
	NextEmitAt float64

	Dirty bool
}

// Count returns how many items the node holds across all of its queues and slots.
func (n *Node) Count() int {
	switch n.Policy.Kind {
	case PolicyJunction:
		c := 0
		for i := range n.Lanes {
			c += n.Lanes[i].Len()
		}
		return c
	case PolicyConveyor:
		return len(n.Belt)
	case PolicyStorage, PolicySink:
		return n.Inventory.Total()
	case PolicySource:
		return 0
	default:
		return n.Lane.Len()
	}
}

func (n *Node) AcceptsKind(kind ItemKind) bool {
	if len(n.Accept) == 0 {
		return true
	}
	for _, k := range n.Accept {
		if k == kind {
			return true
		}
	}
	return false
}

// Forward is the node's own facing. Non-oriented nodes have no fixed forward.
func (n *Node) Forward() (Direction, bool) {
	return n.Orientation, n.Oriented
}

// Contents lists held items per kind, sorted by kind.
func (n *Node) Contents() []ItemCount {
	m := map[ItemKind]int{}
	addLane := func(l *Lane) {
		for _, it := range l.Queue {
			m[it.Kind]++
		}
		if l.HasWaiting {
			m[l.Waiting.Kind]++
		}
	}
	switch n.Policy.Kind {
	case PolicyJunction:
		for i := range n.Lanes {
			addLane(&n.Lanes[i])
		}
	case PolicyConveyor:
		for _, it := range n.Belt {
			m[it.Kind]++
		}
	case PolicyStorage, PolicySink:
		for k, c := range n.Inventory.Counts {
			if c > 0 {
				m[k] += c
			}
		}
	case PolicySource:
	default:
		addLane(&n.Lane)
	}
	return SortedCounts(m)
}

func SortedCounts(m map[ItemKind]int) []ItemCount {
	if len(m) == 0 {
		return nil
	}
	out := make([]ItemCount, 0, len(m))
	for k, c := range m {
		if c <= 0 {
			continue
		}
		out = append(out, ItemCount{Kind: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
