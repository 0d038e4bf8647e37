package world

import modelpkg "beltway.ai/internal/sim/world/kernel/model"

func (w *World) audit(actor string, action string, n *modelpkg.Node, reason string, details map[string]any) {
	if actor == "" {
		actor = "WORLD"
	}
	entry := AuditEntry{
		Tick:    w.tick.Load(),
		Actor:   actor,
		Action:  action,
		Node:    w.nodeID(n),
		Pos:     n.Pos.ToArray(),
		Reason:  reason,
		Details: details,
	}
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(entry)
	}
	if len(w.observers) > 0 {
		w.auditsThisTick = append(w.auditsThisTick, entry)
	}
}
