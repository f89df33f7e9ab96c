package service

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("stable_booking/internal/service")

// Notifier sends student-facing messages about a booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, booking *model.Booking, student *model.Student) error
	BookingCancelled(ctx context.Context, booking *model.Booking, student *model.Student) error
	LessonReminder(ctx context.Context, booking *model.Booking, student *model.Student) error
}

// EventPublisher delivers booking events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

const defaultNotifyTimeout = 10 * time.Second

type options struct {
	notifier      Notifier
	publisher     EventPublisher
	metrics       *metrics.BookingMetrics
	now           func() time.Time
	location      *time.Location
	notifyTimeout time.Duration
}

func defaultOptions() options {
	return options{
		now:           time.Now,
		location:      time.Local,
		notifyTimeout: defaultNotifyTimeout,
	}
}

type Option func(*options)

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now, e.g. for cancelled_at and reminder windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the school time zone used for calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.notifyTimeout = d
		}
	}
}

// sideEffects runs post-commit work in the background. A failure is logged
// and never reaches the caller of the workflow that triggered it.
type sideEffects struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *zap.Logger
}

func (se *sideEffects) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	se.wg.Add(1)
	go func() {
		defer se.wg.Done()
		ctx, cancel := context.WithTimeout(detached, se.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			se.logger.Warn("Side effect failed", zap.String("effect", name), zap.Error(err))
		}
	}()
}

func (se *sideEffects) wait() {
	se.wg.Wait()
}
