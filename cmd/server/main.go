package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beltway.ai/internal/observability"
	persistlog "beltway.ai/internal/persistence/log"
	"beltway.ai/internal/sim/catalogs"
	"beltway.ai/internal/sim/layout"
	"beltway.ai/internal/sim/tuning"
	"beltway.ai/internal/sim/world"
	"beltway.ai/internal/transport/observer"
	"beltway.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "layout file (.yaml/.yml/.toml) applied at the first tick")
		order      = flag.String("order", string(world.OrderIndex), "node advance order: index, reverse or shuffle")
		seed       = flag.Int64("seed", 1337, "seed for the shuffle advance order")
		logLevel   = flag.String("log_level", "info", "zerolog level")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
	)
	flag.Parse()

	logger := observability.InitLogger("beltway-server", *logLevel)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalogs")
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Fatal().Err(err).Msg("load tuning")
		}
		logger.Warn().Str("path", tp).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	w, err := world.New(world.WorldConfig{
		ID:                 *worldID,
		TickRateHz:         tune.TickRateHz,
		CommandQueue:       tune.CommandQueue,
		Order:              world.AdvanceOrder(*order),
		Seed:               *seed,
		ObserverEveryTicks: tune.Observer.EveryTicks,
		CommandWindowTicks: tune.RateLimits.CommandWindowTicks,
		CommandMax:         tune.RateLimits.CommandMax,
	}, cats)
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}
	w.SetLogger(logger)

	worldDir := filepath.Join(tune.Logs.Dir, *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("log dir")
	}

	idx, err := openRuntimeIndex(tune.Logs.IndexDB, *disableDB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index backend")
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Warn().Err(err).Msg("index backend: upsert catalogs")
		}
	}

	logOpts := []persistlog.Option{
		persistlog.WithRotateEvery(time.Duration(tune.Logs.RotateMinutes) * time.Minute),
		persistlog.WithFlushEvery(tune.Logs.FlushEvery),
	}
	tickLog := persistlog.NewTickLogger(worldDir, logOpts...)
	defer func() {
		_ = tickLog.Close()
		logger.Info().Uint64("ticks_logged", tickLog.Records()).Msg("tick log closed")
	}()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: indexTicks(idx)})
	if tune.Logs.AuditEnabled {
		auditLog := persistlog.NewAuditLogger(worldDir, logOpts...)
		defer auditLog.Close()
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: indexAudits(idx)})
	}

	// The layout goes through the command path so it is recorded in the tick log for replay.
	if lp := strings.TrimSpace(*layoutPath); lp != "" {
		doc, err := layout.Load(lp)
		if err != nil {
			logger.Fatal().Err(err).Msg("load layout")
		}
		tick, err := doc.Apply(w, "layout")
		if err != nil {
			logger.Fatal().Err(err).Msg("apply layout")
		}
		logger.Info().Str("layout", filepath.Base(lp)).Uint64("tick", tick).Int("nodes", w.NodeCount()).Msg("layout applied")
	}

	observability.RegisterMetrics()
	prometheus.MustRegister(observability.NewWorldCollector(w, statsSource(idx), *worldID))

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("world stopped")
		}
	}()

	mux := http.NewServeMux()
	route := func(path string, h http.Handler) {
		mux.Handle(path, observability.Instrument(logger, path, h))
	}
	route("/healthz", http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	}))
	mux.Handle("/metrics", promhttp.Handler())

	if envBool("BW_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		admin := &adminAPI{world: w, index: idx}
		route("/admin/v1/state", admin.state())
		route("/admin/v1/nodes", admin.nodes())
		route("/admin/v1/commands", admin.commands())
		route("/admin/v1/audits", admin.audits())

		obsSrv := observer.NewServer(w, logger)
		obsSrv.SetMaxNodes(tune.Observer.MaxNodes)
		route("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		route("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Info().Msg("admin endpoints disabled (BW_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("BW_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	route("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Str("world", *worldID).Int("tick_rate_hz", tune.TickRateHz).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
