package world

import (
	"crypto/sha256"
	"encoding/hex"

	"beltway.ai/internal/sim/world/io/digestcodec"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes every live node in arena order. Two worlds fed the same commands produce
// the same sequence of digests.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestcodec.WriteU64(h, &tmp, nowTick)
	digestcodec.WriteU64(h, &tmp, uint64(w.cfg.TickRateHz))
	digestcodec.WriteU64(h, &tmp, w.totals.Emitted)
	digestcodec.WriteU64(h, &tmp, w.totals.Injected)
	digestcodec.WriteU64(h, &tmp, w.totals.Sunk)
	digestcodec.WriteU64(h, &tmp, w.totals.Dropped)

	for _, n := range w.live() {
		digestNode(h, &tmp, n)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestNode(h hashWriter, tmp *[8]byte, n *modelpkg.Node) {
	digestcodec.WriteU64(h, tmp, uint64(n.Handle.Index)<<32|uint64(n.Handle.Gen))
	digestcodec.WriteString(h, tmp, n.Type)
	digestcodec.WriteI64(h, tmp, int64(n.Pos.X))
	digestcodec.WriteI64(h, tmp, int64(n.Pos.Y))
	h.Write([]byte{byte(n.Team), byte(n.Team >> 8), byte(n.Orientation), digestcodec.BoolByte(n.Oriented), byte(n.Policy.Kind)})

	p := n.Policy
	digestcodec.WriteString(h, tmp, string(p.Selected))
	digestcodec.WriteString(h, tmp, string(p.Emit))
	h.Write([]byte{digestcodec.BoolByte(p.Inverted), digestcodec.BoolByte(n.NextSide)})
	digestcodec.WriteU64(h, tmp, uint64(p.Link.Index)<<32|uint64(p.Link.Gen))

	for _, hn := range n.Neighbors {
		digestcodec.WriteU64(h, tmp, uint64(hn.Index)<<32|uint64(hn.Gen))
	}

	digestLane(h, tmp, &n.Lane)
	for i := range n.Lanes {
		digestLane(h, tmp, &n.Lanes[i])
	}
	digestcodec.WriteU64(h, tmp, uint64(len(n.Belt)))
	for _, it := range n.Belt {
		digestItem(h, tmp, it)
	}
	digestcodec.WriteSortedNonZeroIntMap(h, tmp, n.Inventory.Counts)
	digestcodec.WriteI64(h, tmp, int64(n.Inventory.LastIndex))
	digestcodec.WriteF64(h, tmp, n.NextEmitAt)
}

func digestLane(h hashWriter, tmp *[8]byte, l *modelpkg.Lane) {
	digestcodec.WriteU64(h, tmp, uint64(len(l.Queue)))
	for _, it := range l.Queue {
		digestItem(h, tmp, it)
	}
	h.Write([]byte{digestcodec.BoolByte(l.HasWaiting)})
	if l.HasWaiting {
		digestItem(h, tmp, l.Waiting)
	}
}

func digestItem(h hashWriter, tmp *[8]byte, it modelpkg.TransitItem) {
	digestcodec.WriteString(h, tmp, string(it.Kind))
	h.Write([]byte{byte(it.From)})
	digestcodec.WriteF64(h, tmp, it.ReadyAt)
	digestcodec.WriteF64(h, tmp, it.Progress)
	digestcodec.WriteF64(h, tmp, it.Lateral)
}
