package world

import (
	"encoding/json"

	"beltway.ai/internal/observerproto"
	"beltway.ai/internal/sim/world/io/obscodec"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

// ObserverJoinRequest registers a read-only observer session that receives one TICK message per
// observed tick on TickOut. All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte

	MaxNodes int
	Region   *observerproto.Region
	Belts    bool
}

// ObserverSubscribeRequest updates an existing observer session subscription settings.
type ObserverSubscribeRequest struct {
	SessionID string

	MaxNodes int
	Region   *observerproto.Region
	Belts    bool
}

type observerClient struct {
	id      string
	tickOut chan []byte

	maxNodes int
	region   *observerproto.Region
	belts    bool

	// needsFull forces the next message to list every node, e.g. after join or a dropped TICK.
	needsFull bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	w.observers[req.SessionID] = &observerClient{
		id:        req.SessionID,
		tickOut:   req.TickOut,
		maxNodes:  req.MaxNodes,
		region:    req.Region,
		belts:     req.Belts,
		needsFull: true,
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.maxNodes = req.MaxNodes
	c.region = req.Region
	c.belts = req.Belts
	c.needsFull = true
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

// drainSessions applies queued observer changes so callers driving Step directly see them too.
func (w *World) drainSessions() {
	for {
		select {
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		default:
			return
		}
	}
}

func (w *World) stepObservers(nowTick uint64, dirty []NodeHandle, removed []string, inFlight int) {
	if len(w.observers) == 0 {
		return
	}
	every := uint64(w.cfg.ObserverEveryTicks)
	if every > 1 && nowTick%every != 0 {
		// Skipped ticks lose dirty info, so the next sent message is full.
		for _, c := range w.observers {
			c.needsFull = true
		}
		return
	}

	audits := make([]observerproto.AuditEntry, 0, len(w.auditsThisTick))
	for _, a := range w.auditsThisTick {
		audits = append(audits, observerproto.AuditEntry{
			Tick:   a.Tick,
			Actor:  a.Actor,
			Action: a.Action,
			Node:   a.Node,
			Pos:    a.Pos,
			Reason: a.Reason,
		})
	}

	for _, c := range w.observers {
		var nodes []*modelpkg.Node
		if c.needsFull {
			nodes = w.live()
		} else {
			for _, h := range dirty {
				if n := w.get(h); n != nil {
					nodes = append(nodes, n)
				}
			}
		}
		msg := observerproto.TickMsg{
			Type:            "TICK",
			ProtocolVersion: observerproto.Version,
			Tick:            nowTick,
			Full:            c.needsFull,
			Transfers:       w.transfers,
			Stalled:         w.stalled,
			InFlight:        inFlight,
			Nodes:           make([]observerproto.NodeState, 0, len(nodes)),
			Audits:          audits,
		}
		if !c.needsFull {
			msg.Removed = removed
		}
		for _, n := range nodes {
			if c.maxNodes > 0 && len(msg.Nodes) >= c.maxNodes {
				break
			}
			if !c.region.Contains(n.Pos.ToArray()) {
				continue
			}
			msg.Nodes = append(msg.Nodes, w.nodeState(n, c.belts))
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		c.needsFull = !sendLatest(c.tickOut, b)
	}
}

// nodeState is the inspection view of one node.
func (w *World) nodeState(n *modelpkg.Node, belts bool) observerproto.NodeState {
	st := observerproto.NodeState{
		ID:       w.nodeID(n),
		Type:     n.Type,
		Policy:   n.Policy.Kind.String(),
		Pos:      n.Pos.ToArray(),
		Size:     n.Size,
		Team:     uint16(n.Team),
		Contents: []observerproto.ItemCount{},
	}
	if n.Oriented {
		st.Orientation = n.Orientation.String()
	}
	if p := w.get(n.Policy.Link); p != nil {
		st.Link = w.nodeID(p)
	}
	for _, c := range n.Contents() {
		st.Contents = append(st.Contents, observerproto.ItemCount{Kind: string(c.Kind), Count: c.Count})
	}
	if belts && n.Policy.Kind == modelpkg.PolicyConveyor {
		kinds := make([]string, len(n.Belt))
		progress := make([]float64, len(n.Belt))
		for i, it := range n.Belt {
			kinds[i] = string(it.Kind)
			progress[i] = it.Progress
		}
		st.Belt = &observerproto.BeltState{
			Kinds:    kinds,
			Encoding: "U16LE_FIXED",
			Progress: obscodec.EncodeProgressU16LE(progress),
		}
	}
	return st
}

// sendLatest delivers b without blocking, evicting one stale message if the channel is full.
// It reports whether b was queued.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
		// The evicted message may have carried changes; the client can't rely on deltas now.
		return false
	default:
		return false
	}
}
