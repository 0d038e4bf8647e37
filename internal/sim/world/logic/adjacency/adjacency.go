package adjacency

import modelpkg "beltway.ai/internal/sim/world/kernel/model"

// Env is the grid-facing view the resolver needs. Implementations must report only live nodes.
type Env interface {
	NodeAt(p modelpkg.Vec2i) (modelpkg.NodeHandle, bool)
	// Facing returns the forward direction of h and whether h has one at all.
	Facing(h modelpkg.NodeHandle) (modelpkg.Direction, bool)
}

// SideCells lists the cells one step beyond the size×size footprint at anchor on side d,
// scanned from the lower coordinate upward.
func SideCells(anchor modelpkg.Vec2i, size int, d modelpkg.Direction) []modelpkg.Vec2i {
	if size < 1 {
		size = 1
	}
	out := make([]modelpkg.Vec2i, 0, size)
	for i := 0; i < size; i++ {
		var c modelpkg.Vec2i
		switch d {
		case modelpkg.East:
			c = modelpkg.Vec2i{X: anchor.X + size, Y: anchor.Y + i}
		case modelpkg.West:
			c = modelpkg.Vec2i{X: anchor.X - 1, Y: anchor.Y + i}
		case modelpkg.North:
			c = modelpkg.Vec2i{X: anchor.X + i, Y: anchor.Y + size}
		default:
			c = modelpkg.Vec2i{X: anchor.X + i, Y: anchor.Y - 1}
		}
		out = append(out, c)
	}
	return out
}

// Resolve builds the receiver table of a node: per side, the first adjacent node that does not
// face back into it. Oriented neighbors pointing into the node are never receivers, otherwise two
// oriented nodes could each treat the other as their output and exchange items forever.
func Resolve(env Env, self modelpkg.NodeHandle, anchor modelpkg.Vec2i, size int) [modelpkg.NumDirections]modelpkg.NodeHandle {
	var out [modelpkg.NumDirections]modelpkg.NodeHandle
	if env == nil {
		return out
	}
	for d := modelpkg.Direction(0); d < modelpkg.NumDirections; d++ {
		for _, c := range SideCells(anchor, size, d) {
			h, ok := env.NodeAt(c)
			if !ok || h == self {
				continue
			}
			if facing, oriented := env.Facing(h); oriented && facing == d.Opposite() {
				continue
			}
			out[d] = h
			break
		}
	}
	return out
}

// Touching returns every distinct node sharing an edge with the footprint, in side then scan
// order. These are the nodes whose tables must be rebuilt when the footprint changes.
func Touching(env Env, self modelpkg.NodeHandle, anchor modelpkg.Vec2i, size int) []modelpkg.NodeHandle {
	if env == nil {
		return nil
	}
	seen := map[modelpkg.NodeHandle]bool{}
	out := make([]modelpkg.NodeHandle, 0, 4)
	for d := modelpkg.Direction(0); d < modelpkg.NumDirections; d++ {
		for _, c := range SideCells(anchor, size, d) {
			h, ok := env.NodeAt(c)
			if !ok || h == self || seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// EntrySide returns the side of the dst footprint that faces src. Footprints are assumed not to
// overlap; for non-adjacent pairs the dominant axis decides.
func EntrySide(dst modelpkg.Vec2i, dstSize int, src modelpkg.Vec2i, srcSize int) modelpkg.Direction {
	switch {
	case src.X >= dst.X+dstSize:
		return modelpkg.East
	case src.X+srcSize <= dst.X:
		return modelpkg.West
	case src.Y >= dst.Y+dstSize:
		return modelpkg.North
	default:
		return modelpkg.South
	}
}
