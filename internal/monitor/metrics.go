package monitor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/naa/pkg/consts"
	"github.com/turtacn/naa/pkg/logger"
	"github.com/turtacn/naa/pkg/protocol"
)

var (
	// RunsTotal counts executed runs, partitioned by what triggered them.
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naa_runs_total",
		Help: "Total number of program sequence runs",
	}, []string{"trigger"})
	// StepsTotal counts supervised steps, partitioned by outcome.
	StepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naa_steps_total",
		Help: "Total number of supervised program steps",
	}, []string{"outcome"})
	// StepDuration tracks how long one program session lasted.
	StepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "naa_step_duration_seconds",
		Help:    "Time from launch to exit of a supervised program",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
	})
	// RunDuration tracks the duration of a whole run.
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "naa_run_duration_seconds",
		Help:    "Time taken by a full program sequence run",
		Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400, 28800},
	})
	// SchedulerState is 1 for the current scheduler state and 0 otherwise.
	SchedulerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "naa_scheduler_state",
		Help: "Current scheduler state",
	}, []string{"state"})
	// NextFire is the unix time of the next scheduled trigger.
	NextFire = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "naa_next_fire_timestamp_seconds",
		Help: "Unix time of the next scheduled run",
	})
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RunsTotal, StepsTotal, StepDuration, RunDuration, SchedulerState, NextFire)
	})
}

// ObserveRun records a finished run.
func ObserveRun(res protocol.RunResult) {
	RunsTotal.WithLabelValues(string(res.Trigger)).Inc()
	RunDuration.Observe(res.Finished.Sub(res.Started).Seconds())
	for _, s := range res.Steps {
		StepsTotal.WithLabelValues(string(s.Outcome)).Inc()
		if s.Outcome != protocol.StepLaunchFailed && !s.Finished.IsZero() {
			StepDuration.Observe(s.Duration().Seconds())
		}
	}
}

// SetState marks state as the current scheduler state.
func SetState(state consts.SchedulerState) {
	for _, s := range []consts.SchedulerState{consts.StateIdle, consts.StateWaiting, consts.StateRunning} {
		v := 0.0
		if s == state {
			v = 1
		}
		SchedulerState.WithLabelValues(string(s)).Set(v)
	}
}

// SetNextFire publishes the next trigger time.
func SetNextFire(t time.Time) {
	NextFire.Set(float64(t.Unix()))
}

// Serve registers the collectors and exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Info("Metrics server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Error("Metrics server failed", "err", err)
		return err
	}
	return nil
}

// Personal.AI order the ending
