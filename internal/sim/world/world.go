package world

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"beltway.ai/internal/sim/catalogs"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
	"beltway.ai/internal/sim/world/logic/rates"
)

type (
	Vec2i      = modelpkg.Vec2i
	Direction  = modelpkg.Direction
	ItemKind   = modelpkg.ItemKind
	TeamTag    = modelpkg.TeamTag
	NodeHandle = modelpkg.NodeHandle
	ItemCount  = modelpkg.ItemCount
	Node       = modelpkg.Node
)

// AdvanceOrder selects how nodes are visited within a tick. Results must not depend on it beyond
// timing; the alternatives exist to exercise that.
type AdvanceOrder string

const (
	OrderIndex   AdvanceOrder = "index"
	OrderReverse AdvanceOrder = "reverse"
	OrderShuffle AdvanceOrder = "shuffle"
)

type WorldConfig struct {
	ID           string
	TickRateHz   int
	CommandQueue int
	Order        AdvanceOrder
	// Seed drives OrderShuffle.
	Seed int64

	ObserverEveryTicks int

	// Per-actor command budget: at most CommandMax commands every CommandWindowTicks. Zero disables.
	CommandWindowTicks uint64
	CommandMax         int
}

// World owns the node arena, the occupancy grid and the tick clock.
// All state must be accessed only from the world loop goroutine, or from a single goroutine
// driving Step directly.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      zerolog.Logger

	tick atomic.Uint64

	slots []slot
	free  []uint32
	grid  map[Vec2i]NodeHandle

	cmds          chan Command
	inspect       chan InspectRequest
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	observers map[string]*observerClient
	rates     map[string]*rates.Window

	// Per-tick scratch, reset at the start of each step.
	transfers      int
	stalled        int
	auditsThisTick []AuditEntry
	removedIDs     []string

	totals  Totals
	metrics atomic.Value
}

// Totals are running item counters at the network boundaries.
type Totals struct {
	Emitted  uint64 `json:"emitted"`
	Injected uint64 `json:"injected"`
	Sunk     uint64 `json:"sunk"`
	Dropped  uint64 `json:"dropped"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick      uint64    `json:"tick"`
	Commands  []Command `json:"commands,omitempty"`
	Transfers int       `json:"transfers"`
	Digest    string    `json:"digest"`
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Node    string         `json:"node,omitempty"`
	Pos     [2]int         `json:"pos"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, errMissingCatalogs
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.CommandQueue <= 0 {
		cfg.CommandQueue = 1024
	}
	if cfg.Order == "" {
		cfg.Order = OrderIndex
	}
	if cfg.ObserverEveryTicks <= 0 {
		cfg.ObserverEveryTicks = 1
	}
	w := &World{
		cfg:           cfg,
		catalogs:      cats,
		log:           zerolog.Nop(),
		grid:          map[Vec2i]NodeHandle{},
		cmds:          make(chan Command, cfg.CommandQueue),
		inspect:       make(chan InspectRequest, 64),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
		rates:         map[string]*rates.Window{},
	}
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetLogger(l zerolog.Logger)   { w.log = l.With().Str("world", w.cfg.ID).Logger() }

func (w *World) Commands() chan<- Command                           { return w.cmds }
func (w *World) Inspect() chan<- InspectRequest                     { return w.inspect }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

// Dt is the fixed step in seconds.
func (w *World) Dt() float64 { return 1 / float64(w.cfg.TickRateHz) }

// Now is the sim time of the current tick in seconds.
func (w *World) Now() float64 { return float64(w.tick.Load()) / float64(w.cfg.TickRateHz) }

func (w *World) Totals() Totals { return w.totals }
