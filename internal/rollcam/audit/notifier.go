// Package audit ships notable chat events to operators.
//
// Every handled message is already recorded in the SQLite audit log; the
// notifiers here additionally surface the events an operator should react
// to (stale archives, dispatch failures, new members, failed pushes) in a
// Matrix audit room and/or on a Kafka topic.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rollcam/rollcam/common/trace"
)

// Kind is a machine-readable event category.
type Kind string

const (
	KindStale            Kind = "freshness.stale"
	KindError            Kind = "dispatch.error"
	KindMemberRegistered Kind = "member.registered"
	KindNotifySent       Kind = "notify.sent"
	KindNotifyFailed     Kind = "notify.failed"
)

// Event carries what a notifier formats and sends.
type Event struct {
	Kind Kind `json:"kind"`
	// Actor is the chat user that triggered the event, if any.
	Actor string `json:"actor,omitempty"`
	// Target is the machine key or member name the event concerns.
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
	// TraceID defaults to the trace id carried by ctx.
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers audit events. Notify must not block the caller for
// long; failures are logged, not returned.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

// fill defaults TraceID and Timestamp.
func (e Event) fill(ctx context.Context) Event {
	if e.TraceID == "" {
		e.TraceID = trace.FromContext(ctx)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// Sender is the subset of the Matrix client needed by MatrixNotifier.
type Sender interface {
	SendNotice(ctx context.Context, roomID, message string) error
}

// MatrixNotifier posts formatted notices to a Matrix audit room.
type MatrixNotifier struct {
	sender Sender
	roomID string
}

func NewMatrixNotifier(sender Sender, roomID string) *MatrixNotifier {
	return &MatrixNotifier{sender: sender, roomID: roomID}
}

// Notify formats evt as a short notice and posts it.
func (n *MatrixNotifier) Notify(ctx context.Context, evt Event) {
	if n.roomID == "" {
		return
	}
	evt = evt.fill(ctx)

	icon := kindIcon(evt.Kind)
	msg := fmt.Sprintf("%s [%s] %s", icon, evt.Kind, evt.Message)
	if evt.Target != "" {
		msg = fmt.Sprintf("%s %s → %s", icon, evt.Target, evt.Message)
	}
	if evt.TraceID != "" {
		msg = fmt.Sprintf("%s\n  trace: %s", msg, evt.TraceID)
	}
	if evt.Actor != "" {
		msg = fmt.Sprintf("%s\n  actor: %s", msg, evt.Actor)
	}

	if err := n.sender.SendNotice(ctx, n.roomID, msg); err != nil {
		slog.Warn("audit notifier: failed to send room notice",
			"room", n.roomID, "kind", evt.Kind, "err", err)
		return
	}
	slog.Debug("audit notifier: sent notice", "room", n.roomID, "kind", evt.Kind)
}

// Multi fans an event out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evt Event) {
	for _, n := range m {
		n.Notify(ctx, evt)
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Notify(_ context.Context, _ Event) {}

func kindIcon(k Kind) string {
	switch k {
	case KindStale:
		return "⏳"
	case KindError:
		return "🚨"
	case KindMemberRegistered:
		return "🟢"
	case KindNotifySent:
		return "📤"
	case KindNotifyFailed:
		return "❌"
	default:
		return "ℹ️"
	}
}
