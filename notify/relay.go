package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dnsswitch/dnsswitch/metrics"
	"github.com/dnsswitch/dnsswitch/pkg/logger"
)

// Sender delivers one message to the channel.
type Sender interface {
	Send(ctx context.Context, text string, rich bool) error
}

// Notifier is what the poll loop raises events through. Implementations
// never surface delivery errors to the caller.
type Notifier interface {
	Notify(ctx context.Context, text string, rich bool)
}

// Nop discards every notification. Used when no channel is configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, bool) {}

type pendingMessage struct {
	text       string
	rich       bool
	enqueuedAt time.Time
}

// annotated appends the delayed-message note in the message's own format.
func (m pendingMessage) annotated() string {
	ts := m.enqueuedAt.Format(time.RFC3339)
	if m.rich {
		return fmt.Sprintf("%s\n\n_This is a delayed message from `%s`\\._", m.text, ts)
	}
	return fmt.Sprintf("%s\n\nThis is a delayed message from %s.", m.text, ts)
}

// Relay forwards events to a Sender, holding undeliverable messages in an
// unbounded in-memory queue until the channel recovers. The first
// notification after process start is swallowed so every restart does not
// begin with a stale alert.
//
// The relay is owned by the poll loop's single flow and is not safe for
// concurrent use. Queue depth is published through the pending gauge.
type Relay struct {
	sender Sender

	firstDropped bool
	pending      []pendingMessage
}

func NewRelay(sender Sender) *Relay {
	return &Relay{sender: sender}
}

// Pending returns the depth of the pending queue.
func (r *Relay) Pending() int {
	return len(r.pending)
}

func (r *Relay) Notify(ctx context.Context, text string, rich bool) {
	if !r.firstDropped {
		r.firstDropped = true
		logger.Debugf("Suppressing first notification after start: %s", text)
		return
	}

	if err := r.sender.Send(ctx, text, rich); err != nil {
		logger.Errorf("Notification delivery failed, queued: %s", err)
		metrics.NotificationsFailedTotal.Inc()
		r.pending = append(r.pending, pendingMessage{text: text, rich: rich, enqueuedAt: time.Now()})
		metrics.NotificationsPending.Set(float64(len(r.pending)))
		return
	}
	metrics.NotificationsSentTotal.Inc()

	r.drain(ctx)
}

// drain re-attempts queued messages oldest first, one pass over the queue
// as it stood when the triggering delivery succeeded. A failed item goes to
// the back so it is never lost, at the cost of reordering, and the pass
// never revisits it, so a channel that died mid-drain cannot spin the loop.
func (r *Relay) drain(ctx context.Context) {
	n := len(r.pending)
	for i := 0; i < n; i++ {
		item := r.pending[0]
		r.pending = r.pending[1:]

		if err := r.sender.Send(ctx, item.annotated(), item.rich); err != nil {
			logger.Errorf("Delayed notification delivery failed, requeued: %s", err)
			metrics.NotificationsFailedTotal.Inc()
			r.pending = append(r.pending, item)
			continue
		}
		metrics.NotificationsSentTotal.Inc()
	}
	metrics.NotificationsPending.Set(float64(len(r.pending)))
}
