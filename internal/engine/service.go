package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/gymtrack/internal/model"
	"github.com/roach88/gymtrack/internal/store"
)

// Booking limits, in minutes.
const (
	DefaultGranularityMinutes = 15
	DefaultMaxMinutes         = 180
)

// DefaultStatusRetries bounds how often SetStatus re-reads a resource after
// losing a conditional write to a concurrent writer.
const DefaultStatusRetries = 5

const tracerName = "github.com/roach88/gymtrack/internal/engine"

// Service exposes the admission and status operations over a Store.
//
// Thread-safety: Service holds no mutable state of its own and is safe for
// concurrent use; all coordination happens in the store.
type Service struct {
	store  *store.Store
	clock  Clock
	ids    IDGenerator
	tracer trace.Tracer
	logger *slog.Logger

	granularity   int
	maxMinutes    int
	statusRetries int
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithIDGenerator sets the ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithGranularity sets the booking increment in minutes. Default: 15.
func WithGranularity(minutes int) Option {
	return func(s *Service) {
		s.granularity = minutes
	}
}

// WithMaxMinutes sets the longest bookable duration. Default: 180.
func WithMaxMinutes(minutes int) Option {
	return func(s *Service) {
		s.maxMinutes = minutes
	}
}

// WithTracerProvider sets where spans go. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service over st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:         st,
		clock:         SystemClock{},
		ids:           UUIDv7Generator{},
		tracer:        otel.GetTracerProvider().Tracer(tracerName),
		logger:        slog.Default(),
		granularity:   DefaultGranularityMinutes,
		maxMinutes:    DefaultMaxMinutes,
		statusRetries: DefaultStatusRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// now returns the clock's instant at the store's millisecond precision, so
// values returned to callers compare equal to what a later read yields.
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

// storeErr passes domain errors and context cancellation through and
// classifies anything else as STORE_UNAVAILABLE.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *model.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return model.StoreUnavailable(op, err)
}
