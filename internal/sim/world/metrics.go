package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Nodes     int    `json:"nodes"`
	InFlight  int    `json:"in_flight"`
	Transfers int    `json:"transfers"`
	Stalled   int    `json:"stalled"`
	Totals    Totals `json:"totals"`

	QueueDepths QueueDepths `json:"queue_depths"`
	Observers   int         `json:"observers"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Commands int `json:"commands"`
	Inspect  int `json:"inspect"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
