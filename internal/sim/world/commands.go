package world

import (
	"fmt"
	"strings"

	modelpkg "beltway.ai/internal/sim/world/kernel/model"
	"beltway.ai/internal/sim/world/logic/rates"
)

type CommandOp string

const (
	OpPlace     CommandOp = "PLACE"
	OpRemove    CommandOp = "REMOVE"
	OpLink      CommandOp = "LINK"
	OpUnlink    CommandOp = "UNLINK"
	OpEnqueue   CommandOp = "ENQUEUE"
	OpConfigure CommandOp = "CONFIGURE"
	OpTransfer  CommandOp = "TRANSFER"
)

// Command is a mutation applied at a tick boundary. Nodes are addressed by any cell they occupy
// so recorded commands replay without depending on arena handles.
type Command struct {
	Op    CommandOp `json:"op"`
	Actor string    `json:"actor,omitempty"`

	Place *PlaceSpec `json:"place,omitempty"`

	Pos    Vec2i     `json:"pos"`
	Target Vec2i     `json:"target,omitempty"`
	Item   ItemKind  `json:"item,omitempty"`
	From   Direction `json:"from,omitempty"`

	Selected ItemKind `json:"selected,omitempty"`
	Inverted bool     `json:"inverted,omitempty"`

	// Resp, when set, receives the outcome once the command is applied.
	Resp chan CommandResult `json:"-"`
}

type CommandResult struct {
	Tick   uint64
	Handle NodeHandle
	// Node is the textual id of the addressed node, captured before a removal.
	Node string
	Err  error
}

func (w *World) resolve(p Vec2i) (NodeHandle, error) {
	h, ok := w.NodeAt(p)
	if !ok {
		return NodeHandle{}, fmt.Errorf("no node at %s: %w", p, ErrStaleNode)
	}
	return h, nil
}

func (w *World) applyCommand(cmd Command) CommandResult {
	res := CommandResult{Tick: w.tick.Load()}
	actor := strings.TrimSpace(cmd.Actor)
	if err := w.allowCommand(actor); err != nil {
		res.Err = err
		w.log.Debug().Err(err).Str("actor", actor).Msg("command dropped")
		return res
	}
	switch cmd.Op {
	case OpPlace:
		if cmd.Place == nil {
			res.Err = fmt.Errorf("place: missing spec")
			break
		}
		res.Handle, res.Err = w.Place(actor, *cmd.Place)
	case OpRemove:
		if res.Handle, res.Err = w.resolve(cmd.Pos); res.Err == nil {
			res.Node, _ = w.NodeID(res.Handle)
			res.Err = w.Remove(actor, res.Handle)
		}
	case OpLink:
		var to NodeHandle
		if res.Handle, res.Err = w.resolve(cmd.Pos); res.Err != nil {
			break
		}
		if to, res.Err = w.resolve(cmd.Target); res.Err != nil {
			break
		}
		res.Err = w.Link(actor, res.Handle, to)
	case OpUnlink:
		if res.Handle, res.Err = w.resolve(cmd.Pos); res.Err == nil {
			res.Err = w.Unlink(actor, res.Handle)
		}
	case OpEnqueue:
		if res.Handle, res.Err = w.resolve(cmd.Pos); res.Err == nil {
			res.Err = w.Enqueue(actor, res.Handle, cmd.Item, cmd.From)
		}
	case OpConfigure:
		if res.Handle, res.Err = w.resolve(cmd.Pos); res.Err == nil {
			res.Err = w.Configure(actor, res.Handle, cmd.Selected, cmd.Inverted)
		}
	case OpTransfer:
		var to NodeHandle
		if res.Handle, res.Err = w.resolve(cmd.Pos); res.Err != nil {
			break
		}
		if to, res.Err = w.resolve(cmd.Target); res.Err != nil {
			break
		}
		res.Err = w.Transfer(res.Handle, to, cmd.Item)
	default:
		res.Err = fmt.Errorf("unknown command op %q", cmd.Op)
	}
	if res.Node == "" {
		res.Node, _ = w.NodeID(res.Handle)
	}
	if res.Err != nil {
		w.log.Debug().Err(res.Err).Str("op", string(cmd.Op)).Msg("command failed")
	}
	return res
}

func (w *World) allowCommand(actor string) error {
	if w.cfg.CommandWindowTicks == 0 || w.cfg.CommandMax <= 0 {
		return nil
	}
	win := w.rates[actor]
	if win == nil {
		win = &rates.Window{}
		w.rates[actor] = win
	}
	if ok, cd := win.Allow(w.tick.Load(), w.cfg.CommandWindowTicks, w.cfg.CommandMax); !ok {
		return fmt.Errorf("actor %q: retry in %d ticks: %w", actor, cd, ErrRateLimited)
	}
	return nil
}

// ParseOrientation accepts a direction name or a 0..3 index.
func ParseOrientation(s string) (Direction, error) {
	if d, ok := modelpkg.ParseDirection(strings.TrimSpace(s)); ok {
		return d, nil
	}
	switch strings.TrimSpace(s) {
	case "", "0":
		return modelpkg.East, nil
	case "1":
		return modelpkg.North, nil
	case "2":
		return modelpkg.West, nil
	case "3":
		return modelpkg.South, nil
	}
	return 0, fmt.Errorf("bad orientation %q", s)
}
