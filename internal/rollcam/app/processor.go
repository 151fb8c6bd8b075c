package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/rollcam/rollcam/common/trace"
	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/members"
	"github.com/rollcam/rollcam/internal/rollcam/metrics"
	"github.com/rollcam/rollcam/internal/rollcam/observability"
	"github.com/rollcam/rollcam/internal/rollcam/store"
)

// auditWriter is the subset of *store.Store the processor records into.
type auditWriter interface {
	WriteAudit(ctx context.Context, e *store.AuditEntry) error
}

// Processor is the transport-neutral message pipeline shared by the Matrix
// sync loop, the HTTP gateway and the ask command: membership gate, dispatch,
// audit row and reply metric.
type Processor struct {
	gate       *members.Gate
	dispatcher *commands.Dispatcher
	audit      auditWriter
	metrics    *metrics.Metrics
	greeting   string
}

// NewProcessor wires a Processor. gate and audit may be nil.
func NewProcessor(d *commands.Dispatcher, gate *members.Gate, aw auditWriter, m *metrics.Metrics) *Processor {
	return &Processor{
		gate:       gate,
		dispatcher: d,
		audit:      aw,
		metrics:    m,
		greeting:   d.Vocabulary().GreetingText,
	}
}

// Greeting is the text sent to users who add or join the bot.
func (p *Processor) Greeting() string { return p.greeting }

// Process runs one inbound message and returns the reply to deliver.
func (p *Processor) Process(ctx context.Context, transport string, in commands.Inbound) commands.Reply {
	ctx, traceID := trace.Ensure(ctx)
	log := observability.WithTrace(ctx)
	start := time.Now()

	if p.gate != nil {
		res, err := p.gate.Check(ctx, transport, in.Sender, in.Text)
		if err != nil {
			log.Error("membership check failed", "sender", in.Sender, "err", err)
			return commands.Reply{Kind: commands.ReplyNone}
		}
		switch res.Outcome {
		case members.Drop:
			return commands.Reply{Kind: commands.ReplyNone}
		case members.Registered:
			reply := commands.Reply{Kind: commands.ReplyText, Text: res.Reply, Intent: "register_member"}
			p.record(ctx, traceID, transport, in, reply, "", start, nil)
			return reply
		}
	}

	reply := p.dispatcher.Dispatch(ctx, in)
	if reply.Kind == commands.ReplyNone {
		return reply
	}
	machine := commands.MachineOf(p.dispatcher.Interpret(in.Text))
	p.record(ctx, traceID, transport, in, reply, machine, start, reply.Err)
	return reply
}

func (p *Processor) record(ctx context.Context, traceID, transport string, in commands.Inbound, reply commands.Reply, machine string, start time.Time, failure error) {
	p.metrics.Reply(transport, reply.Kind.String())
	if p.audit == nil {
		return
	}
	entry := &store.AuditEntry{
		TraceID:   traceID,
		Transport: transport,
		Sender:    in.Sender,
		Room:      in.Room,
		Message:   in.Text,
		Intent:    reply.Intent,
		Machine:   sql.NullString{String: machine, Valid: machine != ""},
		ReplyKind: reply.Kind.String(),
		Duration:  time.Since(start),
	}
	if failure != nil {
		entry.ErrorMessage = sql.NullString{String: failure.Error(), Valid: true}
	}
	if err := p.audit.WriteAudit(ctx, entry); err != nil {
		observability.WithTrace(ctx).Warn("failed to write audit log", "err", err)
	}
}
