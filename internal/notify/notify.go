// Package notify delivers operator notifications.
//
// Delivery itself (e-mail, push) lives outside this repository; Notifier
// is the seam. Callers that must not block on or fail because of a
// notification wrap their notifier in Async.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/gymtrack/internal/model"
)

// Message is one notification.
type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to a logger instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs msg at info level.
func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"subject", msg.Subject,
		"recipients", strings.Join(msg.Recipients, ","),
		"body", msg.Body,
	)
	return nil
}

// DefaultAsyncTimeout bounds a single background delivery.
const DefaultAsyncTimeout = 10 * time.Second

// Async delivers in the background. Notify never blocks on delivery and
// never returns the delivery error; failures are logged.
type Async struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps next.
func NewAsync(next Notifier, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{next: next, logger: logger, timeout: DefaultAsyncTimeout}
}

// Notify starts delivery and returns nil immediately. Delivery is detached
// from ctx's cancellation so that a finished request does not abort it.
func (a *Async) Notify(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Notify(dctx, msg); err != nil {
			a.logger.Warn("notification failed",
				"subject", msg.Subject,
				"recipients", len(msg.Recipients),
				"error", err,
			)
		}
	}()
	return nil
}

// Wait blocks until every delivery started so far has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}

// MaintenanceReport builds the message sent to administrators when a
// resource is put into maintenance.
func MaintenanceReport(r model.Resource, recipients []string) Message {
	reporter, message, at := "unknown", "", r.UpdatedAt
	if r.LastIncident != nil {
		reporter = r.LastIncident.ReporterID
		message = r.LastIncident.Message
		at = r.LastIncident.ReportedAt
	}
	if message == "" {
		message = "(no description)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Machine: %s (%s)\n", r.Name, r.ID)
	fmt.Fprintf(&b, "Reported by: %s\n", reporter)
	fmt.Fprintf(&b, "Reported at: %s\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\n%s\n", message)

	return Message{
		Subject:    fmt.Sprintf("[gymtrack] %s is in maintenance", r.Name),
		Body:       b.String(),
		Recipients: append([]string(nil), recipients...),
	}
}
