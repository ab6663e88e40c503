package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/gymtrack/internal/model"
)

// DefaultTickInterval is how often Run sweeps.
const DefaultTickInterval = time.Minute

// DefaultLeaseName names the lease row Run competes for.
const DefaultLeaseName = "reconciler"

// ErrTickInProgress is returned by Tick when another tick is still running.
// The skipped tick is not queued.
var ErrTickInProgress = errors.New("reconciler tick already in progress")

// ErrLeaseHeld is returned by TickOnce when another holder owns the lease.
var ErrLeaseHeld = errors.New("reconciler lease held by another process")

// SweepStore is the slice of the store the Reconciler drives.
// Implemented by *store.Store.
type SweepStore interface {
	DueForActivation(ctx context.Context, now time.Time) ([]model.Reservation, error)
	ActivateReservation(ctx context.Context, r model.Reservation, now time.Time) (applied, mirrored bool, err error)
	DueForCompletion(ctx context.Context, now time.Time) ([]model.Reservation, error)
	CompleteReservation(ctx context.Context, r model.Reservation, now time.Time) (applied, released bool, err error)
	StaleOccupancies(ctx context.Context, now time.Time) ([]string, error)
	ReleaseStaleOccupancy(ctx context.Context, resourceID string, now time.Time) (bool, error)
}

// LeaseStore lets several processes share one database while only one of
// them sweeps. Implemented by *store.Store.
type LeaseStore interface {
	AcquireLease(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, holder string) error
}

// TickReport counts what one tick did.
type TickReport struct {
	At time.Time `json:"at"`

	Activated int `json:"activated"`
	// Mirrored counts activations that also updated the resource cache;
	// the difference is resources held in maintenance.
	Mirrored  int `json:"mirrored"`
	Completed int `json:"completed"`
	// Expired counts scheduled reservations whose window passed entirely
	// before any tick saw them; they are completed without activating.
	Expired  int `json:"expired"`
	Released int `json:"released"`
	Repaired int `json:"repaired"`
	Failures int `json:"failures"`
}

// Changed reports whether the tick moved any row.
func (r TickReport) Changed() bool {
	return r.Activated+r.Completed+r.Released+r.Repaired > 0
}

// Reconciler advances reservations and resource caches as time passes.
//
// Thread-safety: Tick may be called from any goroutine; overlapping calls
// are rejected with ErrTickInProgress.
type Reconciler struct {
	store  SweepStore
	clock  Clock
	logger *slog.Logger
	tracer trace.Tracer

	interval time.Duration

	leases    LeaseStore
	leaseName string
	holder    string
	leaseTTL  time.Duration

	onTick func(TickReport)

	running atomic.Bool
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithInterval sets the Run period. Default: DefaultTickInterval.
func WithInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.interval = d
	}
}

// WithReconcilerClock sets the time source. Default: SystemClock.
func WithReconcilerClock(c Clock) ReconcilerOption {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithReconcilerLogger sets the logger. Default: slog.Default().
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithReconcilerTracerProvider sets where tick spans go.
func WithReconcilerTracerProvider(tp trace.TracerProvider) ReconcilerOption {
	return func(r *Reconciler) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// WithLease makes Run sweep only while holding the named lease. ttl should
// comfortably exceed the interval; the lease is renewed on every tick.
func WithLease(ls LeaseStore, holder string, ttl time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.leases = ls
		r.holder = holder
		r.leaseTTL = ttl
	}
}

// WithTickHook is called after every completed tick from Run.
func WithTickHook(fn func(TickReport)) ReconcilerOption {
	return func(r *Reconciler) {
		r.onTick = fn
	}
}

// NewReconciler creates a Reconciler over st.
func NewReconciler(st SweepStore, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:     st,
		clock:     SystemClock{},
		logger:    slog.Default(),
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
		interval:  DefaultTickInterval,
		leaseName: DefaultLeaseName,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tick runs one reconciliation pass: activation, then completion, then
// stale-cache repair. Running it again without time passing changes
// nothing.
//
// ERROR HANDLING: a failure on one row is logged and counted in the
// report, and the sweep moves on. Tick only returns an error when a sweep
// could not even list its candidates, or when another tick is running.
func (r *Reconciler) Tick(ctx context.Context) (report TickReport, err error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("reconciler tick skipped: previous tick still running")
		return TickReport{}, ErrTickInProgress
	}
	defer r.running.Store(false)

	now := r.clock.Now().UTC().Truncate(time.Millisecond)
	report.At = now

	ctx, span := startSpan(ctx, r.tracer, "engine.Tick")
	defer func() {
		span.SetAttributes(
			attribute.Int("tick.activated", report.Activated),
			attribute.Int("tick.completed", report.Completed),
			attribute.Int("tick.repaired", report.Repaired),
			attribute.Int("tick.failures", report.Failures),
		)
		endSpan(span, err)
	}()

	var errs []error
	if err := r.activate(ctx, now, &report); err != nil {
		errs = append(errs, err)
	}
	if err := r.complete(ctx, now, &report); err != nil {
		errs = append(errs, err)
	}
	if err := r.repair(ctx, now, &report); err != nil {
		errs = append(errs, err)
	}

	if report.Changed() || report.Failures > 0 {
		r.logger.Info("reconciler tick",
			"at", now,
			"activated", report.Activated,
			"completed", report.Completed,
			"expired", report.Expired,
			"released", report.Released,
			"repaired", report.Repaired,
			"failures", report.Failures,
		)
	}

	if err := errors.Join(errs...); err != nil {
		return report, storeErr("tick", err)
	}
	return report, nil
}

func (r *Reconciler) activate(ctx context.Context, now time.Time, report *TickReport) error {
	due, err := r.store.DueForActivation(ctx, now)
	if err != nil {
		r.logger.Error("activation sweep: list failed", "error", err)
		return err
	}

	for _, res := range due {
		applied, mirrored, err := r.store.ActivateReservation(ctx, res, now)
		if err != nil {
			report.Failures++
			r.logger.Error("activation failed",
				"reservation_id", res.ID,
				"resource_id", res.ResourceID,
				"error", err,
			)
			continue
		}
		if !applied {
			continue
		}
		report.Activated++
		if mirrored {
			report.Mirrored++
		} else {
			r.logger.Warn("activated reservation on resource in maintenance",
				"reservation_id", res.ID,
				"resource_id", res.ResourceID,
			)
		}
	}
	return nil
}

func (r *Reconciler) complete(ctx context.Context, now time.Time, report *TickReport) error {
	due, err := r.store.DueForCompletion(ctx, now)
	if err != nil {
		r.logger.Error("completion sweep: list failed", "error", err)
		return err
	}

	for _, res := range due {
		applied, released, err := r.store.CompleteReservation(ctx, res, now)
		if err != nil {
			report.Failures++
			r.logger.Error("completion failed",
				"reservation_id", res.ID,
				"resource_id", res.ResourceID,
				"error", err,
			)
			continue
		}
		if !applied {
			continue
		}
		report.Completed++
		if res.Status == model.ReservationScheduled {
			report.Expired++
		}
		if released {
			report.Released++
		}
	}
	return nil
}

func (r *Reconciler) repair(ctx context.Context, now time.Time, report *TickReport) error {
	stale, err := r.store.StaleOccupancies(ctx, now)
	if err != nil {
		r.logger.Error("cache repair: list failed", "error", err)
		return err
	}

	for _, id := range stale {
		changed, err := r.store.ReleaseStaleOccupancy(ctx, id, now)
		if err != nil {
			report.Failures++
			r.logger.Error("cache repair failed", "resource_id", id, "error", err)
			continue
		}
		if changed {
			report.Repaired++
		}
	}
	return nil
}

// Run ticks immediately and then every interval until ctx is cancelled.
// With a lease configured, ticks only while holding it and releases it on
// exit. Tick errors are logged; Run itself only returns ctx.Err().
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler starting", "interval", r.interval, "lease", r.leases != nil)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	defer func() {
		if r.leases == nil {
			return
		}
		// ctx is already done; give the release its own short deadline.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.leases.ReleaseLease(releaseCtx, r.leaseName, r.holder); err != nil {
			r.logger.Warn("release lease failed", "error", err)
		}
	}()

	for {
		r.runOnce(ctx)

		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// TickOnce runs a single tick for one-shot callers such as cron. With a
// lease configured it takes the lease first, returning ErrLeaseHeld if a
// running reconciler owns it, and releases it afterwards so Run elsewhere
// is not locked out for the TTL.
func (r *Reconciler) TickOnce(ctx context.Context) (TickReport, error) {
	if r.leases == nil {
		return r.Tick(ctx)
	}

	ok, err := r.leases.AcquireLease(ctx, r.leaseName, r.holder, r.clock.Now().UTC(), r.leaseTTL)
	if err != nil {
		return TickReport{}, storeErr("acquire lease", err)
	}
	if !ok {
		return TickReport{}, ErrLeaseHeld
	}
	defer func() {
		if err := r.leases.ReleaseLease(context.WithoutCancel(ctx), r.leaseName, r.holder); err != nil {
			r.logger.Warn("release lease failed", "error", err)
		}
	}()

	return r.Tick(ctx)
}

func (r *Reconciler) runOnce(ctx context.Context) {
	if r.leases != nil {
		ok, err := r.leases.AcquireLease(ctx, r.leaseName, r.holder, r.clock.Now().UTC(), r.leaseTTL)
		if err != nil {
			r.logger.Error("acquire lease failed", "error", err)
			return
		}
		if !ok {
			r.logger.Debug("lease held elsewhere, skipping tick", "lease", r.leaseName)
			return
		}
	}

	report, err := r.Tick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		return
	case err != nil:
		r.logger.Error("reconciler tick failed", "error", err)
	}
	if r.onTick != nil {
		r.onTick(report)
	}
}
