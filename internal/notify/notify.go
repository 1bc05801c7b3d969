// Package notify delivers user-facing error messages raised by the data-access
// services. Services never decide how a message reaches the user; they hand it
// to a Notifier.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/farm-records-service/internal/observability"
)

// Notifier receives user-facing error messages.
type Notifier interface {
	NotifyError(ctx context.Context, message string)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, message string)

func (f Func) NotifyError(ctx context.Context, message string) { f(ctx, message) }

// Log writes notifications to the request logger, falling back to Logger.
type Log struct {
	Logger *zap.Logger
}

func (l Log) NotifyError(ctx context.Context, message string) {
	observability.NotificationsTotal.Inc()
	observability.LoggerFromContext(ctx, l.Logger).Warn("user notification",
		zap.String("message", message),
		zap.String("correlation_id", observability.CorrelationID(ctx)),
	)
}

// Collector buffers notifications so they can be returned with a response.
type Collector struct {
	mu       sync.Mutex
	messages []string
}

func (c *Collector) NotifyError(_ context.Context, message string) {
	c.mu.Lock()
	c.messages = append(c.messages, message)
	c.mu.Unlock()
}

// Messages returns a copy of everything collected so far, in order.
func (c *Collector) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

type collectorKey struct{}

// WithCollector attaches a per-request Collector to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// CollectorFromContext returns the Collector attached to ctx, if any.
func CollectorFromContext(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	return c, ok && c != nil
}

// Dispatcher routes each notification to the Collector on the context and,
// when there is none, to Fallback.
type Dispatcher struct {
	Fallback Notifier
}

func (d Dispatcher) NotifyError(ctx context.Context, message string) {
	if c, ok := CollectorFromContext(ctx); ok {
		c.NotifyError(ctx, message)
		return
	}
	if d.Fallback != nil {
		d.Fallback.NotifyError(ctx, message)
	}
}

// Multi fans a notification out to every non-nil Notifier.
type Multi []Notifier

func (m Multi) NotifyError(ctx context.Context, message string) {
	for _, n := range m {
		if n != nil {
			n.NotifyError(ctx, message)
		}
	}
}

// Standard is the notifier both binaries run with: every notification is
// logged and counted, and also collected when the context carries a Collector.
func Standard(logger *zap.Logger) Notifier {
	return Multi{Dispatcher{}, Log{Logger: logger}}
}

// Discard drops every notification.
var Discard Notifier = Func(func(context.Context, string) {})
