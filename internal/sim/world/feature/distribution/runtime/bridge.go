package runtime

import modelpkg "beltway.ai/internal/sim/world/kernel/model"

// Span describes where a bridge sits; the world fills it from its arena.
type Span struct {
	Handle modelpkg.NodeHandle
	Pos    modelpkg.Vec2i
	Team   modelpkg.TeamTag
	Range  int
	Bridge bool
}

type LinkError string

func (e LinkError) Error() string { return string(e) }

const (
	ErrNotBridge    LinkError = "not a bridge"
	ErrSelfLink     LinkError = "bridge cannot link to itself"
	ErrTeamMismatch LinkError = "bridges belong to different teams"
	ErrNotAligned   LinkError = "bridges are not axis-aligned"
	ErrOutOfRange   LinkError = "bridge target out of range"
)

// ValidateLink checks the pairing rules: both bridges, same team, axis-aligned, within the
// sender's connection range.
func ValidateLink(from, to Span) error {
	if !from.Bridge || !to.Bridge {
		return ErrNotBridge
	}
	if from.Handle == to.Handle {
		return ErrSelfLink
	}
	if from.Team != to.Team {
		return ErrTeamMismatch
	}
	if _, ok := modelpkg.AxisDirection(from.Pos, to.Pos); !ok {
		return ErrNotAligned
	}
	if modelpkg.Manhattan(from.Pos, to.Pos) > from.Range {
		return ErrOutOfRange
	}
	return nil
}

func linkAlive(env Env, n *modelpkg.Node) bool {
	return !n.Policy.Link.IsZero() && env.Alive(n.Policy.Link)
}

// linkDirection is the axis direction from a linked bridge toward its partner.
func linkDirection(env Env, n *modelpkg.Node) (modelpkg.Direction, bool) {
	if !linkAlive(env, n) {
		return 0, false
	}
	p, ok := env.PosOf(n.Policy.Link)
	if !ok {
		return 0, false
	}
	return modelpkg.AxisDirection(n.Pos, p)
}

// BridgeForward is the effective forward of a bridge. A linked bridge faces its partner. The
// receiving end of a link keeps its orientation unless that points back at the sender, in which
// case it continues along the link axis. Otherwise the placement orientation applies.
func BridgeForward(env Env, n *modelpkg.Node) (modelpkg.Direction, bool) {
	if dir, ok := linkDirection(env, n); ok {
		return dir, true
	}
	if !n.Policy.Incoming.IsZero() && env.Alive(n.Policy.Incoming) {
		if p, ok := env.PosOf(n.Policy.Incoming); ok {
			if back, ok := modelpkg.AxisDirection(n.Pos, p); ok && back == n.Orientation {
				return back.Opposite(), true
			}
		}
	}
	return n.Orientation, true
}
