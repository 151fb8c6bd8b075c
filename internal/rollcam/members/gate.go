// Package members implements the chat allow-list with self-registration.
//
// A sender becomes a member by sending "<prefix><name>" (for example
// "Rollcam:Amy"). When membership is required, messages from anyone else are
// dropped before they reach the dispatcher.
package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rollcam/rollcam/internal/rollcam/audit"
	"github.com/rollcam/rollcam/internal/rollcam/observability"
	"github.com/rollcam/rollcam/internal/rollcam/store"
)

// DefaultPrefix starts a registration message.
const DefaultPrefix = "Rollcam:"

// Store is the subset of *store.Store the gate needs.
type Store interface {
	GetMember(ctx context.Context, sender string) (*store.Member, error)
	UpsertMember(ctx context.Context, m *store.Member) error
}

// Outcome is what the caller should do with a message.
type Outcome int

const (
	// Proceed means dispatch the message normally.
	Proceed Outcome = iota
	// Registered means the message was a registration; send Result.Reply.
	Registered
	// Drop means ignore the message silently.
	Drop
)

// Result is the gate's decision for one message.
type Result struct {
	Outcome Outcome
	Reply   string
	Name    string
}

// Config configures a Gate.
type Config struct {
	// Required drops messages from senders who have not registered.
	Required bool
	// Prefix defaults to DefaultPrefix.
	Prefix string
	// WelcomeText is a fmt template taking the member name.
	WelcomeText string
	Notifier    audit.Notifier
}

// Gate applies the membership policy.
type Gate struct {
	store    Store
	cfg      Config
	notifier audit.Notifier
}

func NewGate(st Store, cfg Config) *Gate {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.WelcomeText == "" {
		cfg.WelcomeText = "Welcome %s!"
	}
	n := cfg.Notifier
	if n == nil {
		n = audit.Noop{}
	}
	return &Gate{store: st, cfg: cfg, notifier: n}
}

// Check decides what to do with text from sender. Store errors are returned
// and the caller should treat the message as dropped.
func (g *Gate) Check(ctx context.Context, transport, sender, text string) (Result, error) {
	log := observability.WithTrace(ctx)

	_, err := g.store.GetMember(ctx, sender)
	switch {
	case err == nil:
		return Result{Outcome: Proceed}, nil
	case !errors.Is(err, store.ErrNotFound):
		return Result{Outcome: Drop}, fmt.Errorf("members: lookup %s: %w", sender, err)
	}

	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, g.cfg.Prefix); ok {
		name, _, _ := strings.Cut(rest, ":")
		name = strings.TrimSpace(name)
		if name != "" {
			return g.register(ctx, transport, sender, name)
		}
	}

	if !g.cfg.Required {
		return Result{Outcome: Proceed}, nil
	}
	log.Info("message from non-member dropped", "sender", sender, "transport", transport)
	return Result{Outcome: Drop}, nil
}

func (g *Gate) register(ctx context.Context, transport, sender, name string) (Result, error) {
	m := &store.Member{Sender: sender, Name: name, Transport: transport}
	if err := g.store.UpsertMember(ctx, m); err != nil {
		return Result{Outcome: Drop}, fmt.Errorf("members: register %s: %w", sender, err)
	}
	observability.WithTrace(ctx).Info("new member added", "sender", sender, "name", name)
	g.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindMemberRegistered,
		Actor:   sender,
		Target:  name,
		Message: "registered via " + transport,
	})
	return Result{
		Outcome: Registered,
		Reply:   fmt.Sprintf(g.cfg.WelcomeText, name),
		Name:    name,
	}, nil
}
