package world

import (
	"fmt"

	"beltway.ai/internal/sim/catalogs"
	distrt "beltway.ai/internal/sim/world/feature/distribution/runtime"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
	"beltway.ai/internal/sim/world/logic/adjacency"
	"beltway.ai/internal/sim/world/logic/ids"
)

// PlaceSpec describes a node to create. Fields that do not apply to the type's policy are ignored.
type PlaceSpec struct {
	Type        string    `json:"type"`
	Pos         Vec2i     `json:"pos"`
	Orientation Direction `json:"orientation"`
	Team        TeamTag   `json:"team"`

	Selected ItemKind   `json:"selected,omitempty"`
	Inverted bool       `json:"inverted,omitempty"`
	Accept   []ItemKind `json:"accept,omitempty"`
	Allow    []ItemKind `json:"allow,omitempty"`
	Emit     ItemKind   `json:"emit,omitempty"`
}

func (w *World) nodeDef(typ string) (catalogs.NodeDef, bool) {
	d, ok := w.catalogs.Nodes.Defs[typ]
	return d, ok
}

func (w *World) checkItem(k ItemKind) error {
	if k == "" {
		return nil
	}
	if _, ok := w.catalogs.Items.Index[string(k)]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, k)
	}
	return nil
}

func footprint(anchor Vec2i, size int) []Vec2i {
	out := make([]Vec2i, 0, size*size)
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			out = append(out, Vec2i{X: anchor.X + dx, Y: anchor.Y + dy})
		}
	}
	return out
}

// Place creates a node, claims its footprint and rebuilds the receiver tables of the node and of
// everything touching it.
func (w *World) Place(actor string, spec PlaceSpec) (NodeHandle, error) {
	def, ok := w.nodeDef(spec.Type)
	if !ok {
		return NodeHandle{}, fmt.Errorf("place %q: %w", spec.Type, ErrUnknownType)
	}
	if !spec.Orientation.Valid() {
		return NodeHandle{}, fmt.Errorf("place %s: invalid orientation %d", spec.Type, spec.Orientation)
	}
	for _, k := range append(append([]ItemKind{spec.Selected, spec.Emit}, spec.Accept...), spec.Allow...) {
		if err := w.checkItem(k); err != nil {
			return NodeHandle{}, fmt.Errorf("place %s: %w", spec.Type, err)
		}
	}
	cells := footprint(spec.Pos, def.Size)
	for _, c := range cells {
		if _, taken := w.NodeAt(c); taken {
			return NodeHandle{}, fmt.Errorf("place %s at %s: %w", spec.Type, c, ErrOccupied)
		}
	}

	kind := def.PolicyKind()
	n := &modelpkg.Node{
		Type:       def.ID,
		Pos:        spec.Pos,
		Size:       def.Size,
		Team:       spec.Team,
		Oriented:   def.Oriented,
		Capacity:   modelpkg.Capacity(def.Capacity),
		TravelTime: def.TravelTime(),
		Speed:      def.Speed,
		Accept:     append([]ItemKind(nil), spec.Accept...),
		Policy:     modelpkg.Policy{Kind: kind, Range: def.Range},
		NextSide:   true,
		NextEmitAt: w.Now(),
		Dirty:      true,
	}
	if def.Oriented {
		n.Orientation = spec.Orientation
	}
	switch kind {
	case modelpkg.PolicySorter:
		n.Policy.Selected = spec.Selected
		n.Policy.Inverted = spec.Inverted
	case modelpkg.PolicyOverflow:
		n.Policy.Inverted = spec.Inverted
	case modelpkg.PolicySource:
		n.Policy.Emit = spec.Emit
	case modelpkg.PolicyStorage, modelpkg.PolicySink:
		n.Inventory.Counts = map[ItemKind]int{}
		n.Inventory.Allow = append([]ItemKind(nil), spec.Allow...)
	}

	h := w.alloc(n)
	for _, c := range cells {
		w.grid[c] = h
	}
	w.rebuildAround(h, n.Pos, n.Size)

	w.log.Debug().Str("node", w.nodeID(n)).Str("policy", kind.String()).Msg("node placed")
	w.audit(actor, "NODE_PLACE", n, "", nil)
	return h, nil
}

// Remove destroys a node. Items it still holds are dropped and recorded; links pointing at it are
// cleared and neighbours rebuild their tables.
func (w *World) Remove(actor string, h NodeHandle) error {
	n := w.get(h)
	if n == nil {
		return fmt.Errorf("remove: %w", ErrStaleNode)
	}
	if n.Policy.Kind != modelpkg.PolicySink {
		if held := n.Contents(); len(held) > 0 {
			details := map[string]any{}
			total := 0
			for _, c := range held {
				details[string(c.Kind)] = c.Count
				total += c.Count
			}
			w.totals.Dropped += uint64(total)
			w.audit(actor, "ITEMS_DROPPED", n, "node removed", details)
		}
	}
	for _, c := range footprint(n.Pos, n.Size) {
		if w.grid[c] == h {
			delete(w.grid, c)
		}
	}
	id := w.nodeID(n)
	w.release(h)
	w.removedIDs = append(w.removedIDs, id)

	var broken []NodeHandle
	for _, o := range w.live() {
		if o.Policy.Kind == modelpkg.PolicyBridge && o.Policy.Link == h {
			o.Policy.Link = NodeHandle{}
			o.Dirty = true
			broken = append(broken, o.Handle)
			w.audit(actor, "LINK_BROKEN", o, "partner removed", map[string]any{"partner": id})
		}
	}
	w.rebuildAround(NodeHandle{}, n.Pos, n.Size)
	if n.Policy.Kind == modelpkg.PolicyBridge {
		w.bridgesChanged(append(broken, n.Policy.Link)...)
	}

	w.log.Debug().Str("node", id).Msg("node removed")
	w.audit(actor, "NODE_REMOVE", n, "", nil)
	return nil
}

// rebuildAround refreshes the receiver table of self (when set) and of every node touching the
// footprint.
func (w *World) rebuildAround(self NodeHandle, anchor Vec2i, size int) {
	env := worldEnv{w}
	if n := w.get(self); n != nil {
		n.Neighbors = adjacency.Resolve(env, self, n.Pos, n.Size)
	}
	for _, h := range adjacency.Touching(env, self, anchor, size) {
		if o := w.get(h); o != nil {
			o.Neighbors = adjacency.Resolve(env, h, o.Pos, o.Size)
		}
	}
}

func span(n *modelpkg.Node) distrt.Span {
	return distrt.Span{
		Handle: n.Handle,
		Pos:    n.Pos,
		Team:   n.Team,
		Range:  n.Policy.Range,
		Bridge: n.Policy.Kind == modelpkg.PolicyBridge,
	}
}

// Link points the bridge at from to the bridge at to. An existing link on from is replaced.
// Two bridges may not link to each other.
func (w *World) Link(actor string, from, to NodeHandle) error {
	a, b := w.get(from), w.get(to)
	if a == nil || b == nil {
		return fmt.Errorf("link: %w", ErrStaleNode)
	}
	if err := distrt.ValidateLink(span(a), span(b)); err != nil {
		return fmt.Errorf("link %s -> %s: %w: %v", w.nodeID(a), w.nodeID(b), ErrLinkInvalid, err)
	}
	if b.Policy.Link == from {
		return fmt.Errorf("link %s -> %s: %w: mutual link", w.nodeID(a), w.nodeID(b), ErrLinkInvalid)
	}
	if !a.Policy.Link.IsZero() && a.Policy.Link != to {
		w.audit(actor, "BRIDGE_UNLINK", a, "relinked", nil)
	}
	prev := a.Policy.Link
	a.Policy.Link = to
	a.Dirty = true
	w.bridgesChanged(from, to, prev)
	w.audit(actor, "BRIDGE_LINK", a, "", map[string]any{"partner": w.nodeID(b)})
	return nil
}

// Unlink clears a bridge's link; it falls back to its geometric forward neighbour.
func (w *World) Unlink(actor string, h NodeHandle) error {
	n := w.get(h)
	if n == nil {
		return fmt.Errorf("unlink: %w", ErrStaleNode)
	}
	if n.Policy.Kind != modelpkg.PolicyBridge {
		return fmt.Errorf("unlink %s: %w: %v", w.nodeID(n), ErrLinkInvalid, distrt.ErrNotBridge)
	}
	if n.Policy.Link.IsZero() {
		return nil
	}
	prev := n.Policy.Link
	n.Policy.Link = NodeHandle{}
	n.Dirty = true
	w.bridgesChanged(h, prev)
	w.audit(actor, "BRIDGE_UNLINK", n, "", nil)
	return nil
}

// bridgesChanged re-derives the incoming partner of each listed bridge and then rebuilds the
// tables around them, since a bridge's effective forward follows its links.
func (w *World) bridgesChanged(hs ...NodeHandle) {
	for _, h := range hs {
		t := w.get(h)
		if t == nil || t.Policy.Kind != modelpkg.PolicyBridge {
			continue
		}
		t.Policy.Incoming = NodeHandle{}
		for _, o := range w.live() {
			if o.Policy.Kind == modelpkg.PolicyBridge && o.Policy.Link == h {
				t.Policy.Incoming = o.Handle
				break
			}
		}
	}
	for _, h := range hs {
		if t := w.get(h); t != nil {
			w.rebuildAround(h, t.Pos, t.Size)
		}
	}
}

// Configure updates the sorter selection or the inverted flag of a sorter or overflow gate.
func (w *World) Configure(actor string, h NodeHandle, selected ItemKind, inverted bool) error {
	n := w.get(h)
	if n == nil {
		return fmt.Errorf("configure: %w", ErrStaleNode)
	}
	if err := w.checkItem(selected); err != nil {
		return fmt.Errorf("configure %s: %w", w.nodeID(n), err)
	}
	switch n.Policy.Kind {
	case modelpkg.PolicySorter:
		n.Policy.Selected = selected
		n.Policy.Inverted = inverted
	case modelpkg.PolicyOverflow:
		n.Policy.Inverted = inverted
	default:
		return fmt.Errorf("configure %s: %w", w.nodeID(n), ErrRejected)
	}
	n.Dirty = true
	w.audit(actor, "NODE_CONFIGURE", n, "", map[string]any{"selected": string(selected), "inverted": inverted})
	return nil
}

func (w *World) nodeID(n *modelpkg.Node) string {
	return ids.NodeID(n.Type, n.Pos.X, n.Pos.Y)
}

// NodeID returns the textual id of a live node.
func (w *World) NodeID(h NodeHandle) (string, bool) {
	n := w.get(h)
	if n == nil {
		return "", false
	}
	return w.nodeID(n), true
}
