// Command uestack runs the UE protocol stack on the reference layers: a
// millisecond radio clock, a loopback data path, and the HTTP control
// surface in front. It attaches on start and detaches on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/uestack/internal/api"
	"github.com/banshee-data/uestack/internal/config"
	"github.com/banshee-data/uestack/internal/db"
	"github.com/banshee-data/uestack/internal/layers"
	"github.com/banshee-data/uestack/internal/metrics"
	"github.com/banshee-data/uestack/internal/observability"
	"github.com/banshee-data/uestack/internal/pool"
	"github.com/banshee-data/uestack/internal/stack"
	"github.com/banshee-data/uestack/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to TOML config (defaults apply when empty)")
	listen     = flag.String("listen", "", "Listen address override for the HTTP control surface")
)

func main() {
	flag.Parse()

	session := uuid.NewString()
	log := observability.InitLogger("uestack", session)
	log.Info().Str("version", version.Short()).Msg("uestack starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration rejected")
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}

	bufs := pool.New(cfg.Pool.Buffers, cfg.Pool.BufSize)
	set := layers.NewSet(log, cfg.Log)
	stk := stack.New(cfg, log, bufs)
	if err := stk.Init(set.Dependencies()); err != nil {
		log.Fatal().Err(err).Msg("stack init failed")
	}
	set.PHY.SetHandler(stk)

	var database *db.DB
	recorders := []metrics.Recorder{metrics.NewLogRecorder(log)}
	if cfg.Metrics.DBPath != "" {
		database, err = db.NewDB(cfg.Metrics.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("metrics history database failed")
		}
		defer database.Close()
		recorders = append(recorders, metrics.NewDBRecorder(log, database, session))
	}
	poller := metrics.NewPoller(log, stk, cfg.Metrics.Period(), recorders...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The radio clock outlives the signal context: switch-off needs
	// subframes still flowing to finish the bearer flush.
	clockCtx, stopClock := context.WithCancel(context.Background())
	clockDone := make(chan struct{})
	go func() {
		defer close(clockDone)
		runRadioClock(clockCtx, stk)
	}()

	if !stk.SwitchOn() {
		log.Warn().Msg("initial switch-on refused")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return serveAPI(gctx, log, cfg.API.Listen, stk, database) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("runtime error")
	}

	if !stk.SwitchOff() {
		log.Warn().Msg("detach did not complete before deadline")
	}
	stopClock()
	<-clockDone
	stk.Stop()
	log.Info().Msg("shutdown complete")
}

// runRadioClock stands in for the radio: one tick per millisecond, with
// the elapsed count carrying scheduling hiccups the way a real radio
// reports missed subframes.
func runRadioClock(ctx context.Context, stk *stack.Stack) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	var cur stack.TickPoint
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := uint32(now.Sub(last) / time.Millisecond)
			if elapsed < 1 {
				elapsed = 1
			}
			last = now
			cur = cur.Add(elapsed)
			stk.OnTick(cur, elapsed)
		}
	}
}

func serveAPI(ctx context.Context, log zerolog.Logger, addr string, stk *stack.Stack, database *db.DB) error {
	if addr == "" {
		log.Info().Msg("HTTP control surface disabled")
		<-ctx.Done()
		return nil
	}

	mux := api.NewServer(log, stk, database).ServeMux()
	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(log, mux),
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	log.Info().Str("listen", addr).Msg("HTTP control surface up")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	return nil
}
