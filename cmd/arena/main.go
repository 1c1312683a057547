package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/robot-arena/internal/agents"
	"github.com/signalsfoundry/robot-arena/internal/battle"
	"github.com/signalsfoundry/robot-arena/internal/config"
	"github.com/signalsfoundry/robot-arena/internal/control"
	"github.com/signalsfoundry/robot-arena/internal/host"
	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/observability"
	"github.com/signalsfoundry/robot-arena/internal/recording"
	"github.com/signalsfoundry/robot-arena/internal/results"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
	"github.com/signalsfoundry/robot-arena/internal/transport/observer"
)

type flags struct {
	battlePath   string
	metricsAddr  string
	observerAddr string
	controlAddr  string
	recordDir    string
	resultsDB    string
	hold         bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	fs.StringVar(&f.battlePath, "battle", "configs/battle.yaml", "Path to the battle YAML file")
	fs.StringVar(&f.metricsAddr, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	fs.StringVar(&f.observerAddr, "observer-addr", ":8080", "HTTP address for the observer websocket (empty disables)")
	fs.StringVar(&f.controlAddr, "control-addr", ":50051", "TCP address of the battle control gRPC server (empty disables)")
	fs.StringVar(&f.recordDir, "record-dir", "", "Directory for compressed battle recordings (empty disables)")
	fs.StringVar(&f.resultsDB, "results-db", "", "SQLite file that accumulates battle results (empty disables)")
	fs.BoolVar(&f.hold, "hold", false, "Keep serving after the battle ends until interrupted")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	if err := run(ctx, f, log, os.Stdout); err != nil {
		log.Error(ctx, "arena exited", logging.Err(err))
		os.Exit(1)
	}
}

// run plays one battle described by f.battlePath and writes its result as
// JSON to out.
func run(ctx context.Context, f flags, log logging.Logger, out io.Writer) error {
	cfg, err := config.Load(f.battlePath)
	if err != nil {
		return err
	}
	r, err := cfg.Roster()
	if err != nil {
		return fmt.Errorf("battle.yaml: %w", err)
	}

	reg := prometheus.NewRegistry()
	battleMetrics, err := observability.NewBattleCollector(reg)
	if err != nil {
		return fmt.Errorf("init battle metrics: %w", err)
	}
	controlMetrics, err := observability.NewControlCollector(reg)
	if err != nil {
		return fmt.Errorf("init control metrics: %w", err)
	}

	unit := host.CPUUnit()
	registry := host.NewRegistry()
	agents.Register(registry)

	opts := cfg.BattleOptions(unit)
	opts.Loader = registry
	opts.Log = log
	opts.Metrics = battleMetrics
	opts.StateOptions = []state.BattleStateOption{state.WithMetricsRecorder(battleMetrics)}

	b, err := battle.New(opts, r)
	if err != nil {
		return err
	}
	ctx = logging.ContextWithBattleID(ctx, b.ID())
	log.Info(ctx, "battle configured",
		logging.String("name", cfg.Name),
		logging.Int("agents", r.Len()),
		logging.Duration("cpu_unit", unit),
		logging.Duration("turn_timeout", opts.TurnTimeout),
	)

	var rec *recording.EventLog
	if f.recordDir != "" {
		rec, err = recording.Create(f.recordDir, b.ID(), log)
		if err != nil {
			return err
		}
		detach := rec.Attach(b.State())
		defer func() {
			detach()
			if err := rec.Close(); err != nil {
				log.Warn(ctx, "failed to close recording", logging.Err(err))
			}
		}()
	}

	var store *results.Store
	if f.resultsDB != "" {
		store, err = results.Open(f.resultsDB)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	metricsSrv := serveMetrics(ctx, f.metricsAddr, controlMetrics, log)
	defer shutdownHTTP(metricsSrv)

	watchers := observer.NewServer(b.State(), log, controlMetrics)
	defer watchers.Close()
	observerSrv := serveObserver(ctx, f.observerAddr, watchers, log)
	defer shutdownHTTP(observerSrv)

	grpcSrv, err := serveControl(ctx, f.controlAddr, b, log, controlMetrics)
	if err != nil {
		return err
	}
	if grpcSrv != nil {
		defer grpcSrv.GracefulStop()
	}

	res, err := b.Run(ctx)
	if err != nil {
		return err
	}

	recordingPath := ""
	if rec != nil {
		recordingPath = rec.Path()
	}
	if store != nil {
		if err := store.Record(context.WithoutCancel(ctx), cfg.Name, cfg.Seed, res, recordingPath); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if f.hold && ctx.Err() == nil {
		log.Info(ctx, "battle over; holding servers until interrupted")
		<-ctx.Done()
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, collector *observability.ControlCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	return serveHTTP(ctx, addr, mux, "metrics", log)
}

func serveObserver(ctx context.Context, addr string, watchers *observer.Server, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/watch", watchers.Handler())
	return serveHTTP(ctx, addr, mux, "observer", log)
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, name string, log logging.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, name+" server exited", logging.Err(err))
		}
	}()
	log.Info(ctx, "serving "+name, logging.String("addr", addr))
	return srv
}

func shutdownHTTP(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func serveControl(ctx context.Context, addr string, b *battle.Battle, log logging.Logger, collector *observability.ControlCollector) (*grpc.Server, error) {
	if addr == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for control gRPC on %s: %w", addr, err)
	}
	srv := control.NewServer(b, log, collector)
	log.Info(ctx, "starting battle control gRPC server", logging.String("addr", addr))
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error(ctx, "gRPC server exited", logging.Err(err))
		}
	}()
	return srv, nil
}
