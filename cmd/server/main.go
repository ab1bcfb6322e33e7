package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gathersim/internal/persistence/indexdb"
	persistlog "gathersim/internal/persistence/log"
	"gathersim/internal/sim/catalogs"
	"gathersim/internal/sim/tuning"
	"gathersim/internal/sim/world"
	"gathersim/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		schemaDir  = flag.String("schemas", "./schemas", "protocol schema directory (edge ACT validation; empty to disable)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	w, err := world.New(world.ConfigFromTuning(*worldID, tune), cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Journal + optional read-model index behind one TickLogger.
	var sinks multiTickLogger
	if tune.Journal.Enabled {
		tickLog := persistlog.NewTickLogger(worldDir)
		defer tickLog.Close()
		sinks.a = tickLog
	}
	if tune.Index.Enabled && !*disableDB {
		idx, err := indexdb.Open(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		sinks.b = idx
	}
	if sinks.a != nil || sinks.b != nil {
		w.SetTickLogger(sinks)
	}

	actSchema := loadActSchema(*schemaDir, logger)

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP gathersim_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE gathersim_world_tick gauge\n")
		fmt.Fprintf(rw, "gathersim_world_tick{world=%q} %d\n", *worldID, w.Tick())

		if idx, ok := sinks.b.(*indexdb.SQLiteIndex); ok && idx != nil {
			fmt.Fprintf(rw, "# HELP gathersim_index_dropped_total Tick entries dropped by the index writer.\n")
			fmt.Fprintf(rw, "# TYPE gathersim_index_dropped_total counter\n")
			fmt.Fprintf(rw, "gathersim_index_dropped_total %d\n", idx.Drops())
		}
	})
	if envBool("GS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger, actSchema).Handler())

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

	logger.Printf("listening on %s (world=%s tick_rate=%dhz)", *addr, *worldID, w.TickRateHz())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// loadActSchema compiles schemas/act.schema.json when present. Missing schema
// just disables edge validation; the world loop still rejects bad commands.
func loadActSchema(dir string, logger *log.Logger) *jsonschema.Schema {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	path := filepath.Join(dir, "act.schema.json")
	if _, err := os.Stat(path); err != nil {
		logger.Printf("act schema not found (%s); edge validation disabled", path)
		return nil
	}
	sch, err := jsonschema.Compile(path)
	if err != nil {
		logger.Fatalf("compile act schema: %v", err)
	}
	return sch
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

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
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
