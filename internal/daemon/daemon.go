package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solpxlb/puffquest/internal/api"
	"github.com/solpxlb/puffquest/internal/app/game"
	"github.com/solpxlb/puffquest/internal/app/stats"
	"github.com/solpxlb/puffquest/internal/infra/observability"
	"github.com/solpxlb/puffquest/internal/infra/passive"
	"github.com/solpxlb/puffquest/internal/infra/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Daemon owns every long-lived component.
type Daemon struct {
	Config  Config
	DB      *sqlite.DB
	Game    *game.Service
	Passive *passive.Job
	Stats   *stats.Aggregator
	Tracer  *observability.Tracer
}

// New opens storage and builds the services described by cfg.
func New(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlite.Open(cfg.DataDir())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	tracer := observability.NewTracer(observability.TracerConfig{
		Enabled:  cfg.Metrics.Enabled,
		MaxSpans: cfg.Metrics.MaxSpans,
	})

	cooldown, _ := time.ParseDuration(cfg.Economy.PuffCooldown)
	d := &Daemon{
		Config: cfg,
		DB:     db,
		Game: game.New(game.Config{
			StreakBonus:   cfg.Economy.StreakBonus,
			ExchangeRate:  cfg.Economy.ExchangeRate,
			PuffCooldown:  cooldown,
			RequireInvite: cfg.Economy.RequireInvite,
		}, db, nil),
		Passive: passive.NewJob(passive.Config{
			MinClaimInterval: parseDuration(cfg.Jobs.MinClaimInterval, time.Hour),
		}, db, tracer),
		Stats:  stats.NewAggregator(db, tracer),
		Tracer: tracer,
	}
	return d, nil
}

// Close releases storage.
func (d *Daemon) Close() error {
	return d.DB.Close()
}

// Handler builds the HTTP API.
func (d *Daemon) Handler() http.Handler {
	srv := api.NewServer(d.Game)
	srv.SetJobs(d.Passive, d.Stats)
	srv.SetTracer(d.Tracer)
	srv.SetHealthCheck(d.DB.Ping)
	srv.SetCORSOrigins(d.Config.API.CORSOrigins)
	srv.SetTimeout(parseDuration(d.Config.API.Timeout, 30*time.Second))
	if d.Config.Metrics.Enabled {
		srv.EnableMetrics()
	}
	return srv.Handler()
}

// Run listens on the configured address and serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Config.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.Config.ListenAddr(), err)
	}
	return d.Serve(ctx, ln)
}

// Serve runs the HTTP server and, when enabled, the job schedulers on ln.
// Cancelling ctx shuts everything down gracefully.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Printf("[daemon] listening on %s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Printf("[daemon] shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if d.Config.Jobs.Enabled {
		for _, s := range d.schedulers() {
			s := s
			g.Go(func() error { return s.Run(gctx) })
		}
	}

	return g.Wait()
}

// schedulers returns the batch job loops.
func (d *Daemon) schedulers() []*Scheduler {
	jobs := d.Config.Jobs
	return []*Scheduler{
		NewScheduler(stats.JobName, parseDuration(jobs.StatsInterval, time.Hour), jobs.RunOnStart,
			func(ctx context.Context) error {
				_, err := d.Stats.Refresh(ctx)
				return err
			}),
		NewScheduler(passive.JobName, parseDuration(jobs.PassiveInterval, time.Hour), jobs.RunOnStart,
			func(ctx context.Context) error {
				_, err := d.Passive.Run(ctx)
				return err
			}),
	}
}
