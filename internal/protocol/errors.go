package protocol

import (
	"errors"

	"beltway.ai/internal/sim/world"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoCapacity    = "E_NO_CAPACITY"
	ErrTeamMismatch  = "E_TEAM_MISMATCH"
	ErrStale         = "E_STALE"
	ErrRejected      = "E_REJECTED"
	ErrOccupied      = "E_OCCUPIED"
	ErrUnknownType   = "E_UNKNOWN_TYPE"
	ErrUnknownItem   = "E_UNKNOWN_ITEM"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrNoCapacity:      {},
	ErrTeamMismatch:    {},
	ErrStale:           {},
	ErrRejected:        {},
	ErrOccupied:        {},
	ErrUnknownType:     {},
	ErrUnknownItem:     {},
	ErrInvalidTarget:   {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

var sentinelCodes = []struct {
	err  error
	code string
}{
	{world.ErrCapacityExceeded, ErrNoCapacity},
	{world.ErrTeamMismatch, ErrTeamMismatch},
	{world.ErrStaleNode, ErrStale},
	{world.ErrRejected, ErrRejected},
	{world.ErrOccupied, ErrOccupied},
	{world.ErrUnknownType, ErrUnknownType},
	{world.ErrUnknownItem, ErrUnknownItem},
	{world.ErrLinkInvalid, ErrInvalidTarget},
	{world.ErrRateLimited, ErrRateLimit},
}

// CodeFor maps a command error to its wire code. Unmapped errors are bad requests.
func CodeFor(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return ErrBadRequest
}
