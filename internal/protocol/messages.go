package protocol

import "beltway.ai/internal/sim/world"

// Client -> Server. First message on the operator WS connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Actor           string `json:"actor"`
	// MaxQueue bounds buffered RESULT messages; slower readers lose results.
	MaxQueue int `json:"max_queue,omitempty"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`
	TickRateHz      int    `json:"tick_rate_hz"`
}

// CmdMsg carries one world mutation. Seq is echoed back in the matching RESULT.
type CmdMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Seq             uint64        `json:"seq"`
	Command         world.Command `json:"command"`
}

type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Tick            uint64 `json:"tick"`
	Node            string `json:"node,omitempty"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}
