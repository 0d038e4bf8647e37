package world

import "beltway.ai/internal/observerproto"

// InspectRequest asks the world loop for node states. With Pos set only the node covering that
// cell is returned.
type InspectRequest struct {
	Pos   *Vec2i
	Belts bool
	Resp  chan []observerproto.NodeState
}

func (w *World) handleInspect(req InspectRequest) {
	if req.Resp == nil {
		return
	}
	req.Resp <- w.InspectNodes(req.Pos, req.Belts)
}

// InspectNodes must be called from the goroutine that owns the world.
func (w *World) InspectNodes(pos *Vec2i, belts bool) []observerproto.NodeState {
	if pos != nil {
		h, ok := w.NodeAt(*pos)
		if !ok {
			return []observerproto.NodeState{}
		}
		return []observerproto.NodeState{w.nodeState(w.get(h), belts)}
	}
	nodes := w.live()
	out := make([]observerproto.NodeState, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, w.nodeState(n, belts))
	}
	return out
}
