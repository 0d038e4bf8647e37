package world

import "errors"

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrTeamMismatch     = errors.New("team mismatch")
	ErrStaleNode        = errors.New("stale or unknown node")
	ErrRejected         = errors.New("transfer rejected")
	ErrOccupied         = errors.New("cell occupied")
	ErrUnknownType      = errors.New("unknown node type")
	ErrUnknownItem      = errors.New("unknown item kind")
	ErrLinkInvalid      = errors.New("invalid bridge link")
	ErrRateLimited      = errors.New("command rate limited")

	errMissingCatalogs = errors.New("world: nil catalogs")
)
