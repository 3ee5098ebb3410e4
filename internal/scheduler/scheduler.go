// Package scheduler runs the periodic background jobs: the drift check
// that reconciles local subscription state with provider truth, and a
// keep-alive ping that stops the hosting platform from idling the
// service out.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/janmager/myfreelance-backend/internal/clock"
	obsmetrics "github.com/janmager/myfreelance-backend/internal/observability/metrics"
	subscriptiondomain "github.com/janmager/myfreelance-backend/internal/subscription/domain"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Reconciler subscriptiondomain.Reconciler
	Config     Config              `optional:"true"`
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	reconciler subscriptiondomain.Reconciler
	metrics    *obsmetrics.Metrics
	httpClient *http.Client
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Reconciler == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		reconciler: p.Reconciler,
		metrics:    p.Metrics,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// DriftCheckJob runs one reconciliation sweep.
func (s *Scheduler) DriftCheckJob(ctx context.Context) error {
	corrected, err := s.reconciler.ReconcileWithProviders(ctx)
	if err != nil {
		return err
	}
	if corrected > 0 {
		s.log.Info("drift check corrected subscriptions", zap.Int("corrected", corrected))
	}
	return nil
}

// KeepAliveJob pings the service's own health endpoint.
func (s *Scheduler) KeepAliveJob(ctx context.Context) error {
	if s.cfg.APIURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("keep-alive ping returned %d", resp.StatusCode)
	}
	return nil
}

// RunOnce runs a single drift sweep. Startup and tests call this.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, "drift_check", s.DriftCheckJob)
}

// RunForever ticks the drift check and keep-alive on their own
// intervals until the context ends.
func (s *Scheduler) RunForever(ctx context.Context) {
	driftTicker := time.NewTicker(s.cfg.DriftCheckInterval)
	defer driftTicker.Stop()
	keepAliveTicker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-driftTicker.C:
			if err := s.runJob(ctx, "drift_check", s.DriftCheckJob); err != nil {
				s.log.Warn("scheduler run failed", zap.Error(err))
			}
		case <-keepAliveTicker.C:
			if err := s.runJob(ctx, "keep_alive", s.KeepAliveJob); err != nil {
				s.log.Warn("keep-alive failed", zap.Error(err))
			}
		}
	}
}
