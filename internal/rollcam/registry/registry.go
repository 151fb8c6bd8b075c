// Package registry holds the configured set of archive machines and the
// vocabulary the command interpreter matches against.
//
// A Registry is built once at startup and never mutated afterwards, so it can
// be shared by every message handler without locking.
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnknownMachine is returned by Lookup when no machine has the given key.
var ErrUnknownMachine = errors.New("unknown machine")

// Machine is one image archive the bot can browse.
type Machine struct {
	// Key is the display key that prefixes every command for this machine,
	// e.g. "(L1)".
	Key string
	// Label is the machine menu button text.
	Label string
	// ID is the archive-side machine identifier, e.g. "rl1".
	ID string
	// URL is the base listing URL; it always ends in "/".
	URL string
	// ImageURL is the public base used when building image links.
	ImageURL string

	ImagePrefix  string
	SearchPrefix string
	TimePrefix   string
}

// Registry is an ordered, read-only machine list plus its vocabulary.
type Registry struct {
	machines []Machine
	byKey    map[string]int
	vocab    Vocabulary
}

// New validates machines, fills defaults from vocab and returns a Registry
// that preserves the given order.
func New(machines []Machine, vocab Vocabulary) (*Registry, error) {
	vocab = vocab.merge(DefaultVocabulary())
	if len(machines) == 0 {
		return nil, errors.New("registry: at least one machine is required")
	}

	r := &Registry{
		machines: make([]Machine, 0, len(machines)),
		byKey:    make(map[string]int, len(machines)),
		vocab:    vocab,
	}
	for i, m := range machines {
		m, err := normalize(m, vocab)
		if err != nil {
			return nil, fmt.Errorf("registry: machine %d: %w", i, err)
		}
		if _, dup := r.byKey[m.Key]; dup {
			return nil, fmt.Errorf("registry: duplicate machine key %q", m.Key)
		}
		r.byKey[m.Key] = len(r.machines)
		r.machines = append(r.machines, m)
	}
	return r, nil
}

func normalize(m Machine, vocab Vocabulary) (Machine, error) {
	m.Key = strings.TrimSpace(m.Key)
	if m.Key == "" {
		return m, errors.New("key is required")
	}
	if err := checkURL(m.URL); err != nil {
		return m, fmt.Errorf("url: %w", err)
	}
	m.URL = withSlash(m.URL)
	if m.ImageURL == "" {
		m.ImageURL = m.URL
	} else {
		if err := checkURL(m.ImageURL); err != nil {
			return m, fmt.Errorf("image_url: %w", err)
		}
		m.ImageURL = withSlash(m.ImageURL)
	}
	if m.Label == "" {
		m.Label = strings.TrimSuffix(strings.TrimPrefix(m.Key, "("), ")")
	}
	if m.ID == "" {
		m.ID = m.Label
	}
	bang := "!"
	if len(vocab.MenuKeywords) > 0 {
		bang = vocab.MenuKeywords[0]
	}
	if m.ImagePrefix == "" {
		m.ImagePrefix = bang + m.Key + vocab.ImageWord + vocab.Delimiter
	}
	if m.SearchPrefix == "" {
		m.SearchPrefix = bang + m.Key + vocab.SearchWord + vocab.Delimiter
	}
	if m.TimePrefix == "" {
		m.TimePrefix = m.Key + vocab.TimeWord + vocab.Delimiter
	}
	return m, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q must be absolute (scheme://host/...)", raw)
	}
	return nil
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// Machines returns the machines in configuration order. The slice is a copy.
func (r *Registry) Machines() []Machine {
	out := make([]Machine, len(r.machines))
	copy(out, r.machines)
	return out
}

// Len returns the number of machines.
func (r *Registry) Len() int { return len(r.machines) }

// Lookup returns the machine with the given key.
func (r *Registry) Lookup(key string) (Machine, error) {
	i, ok := r.byKey[key]
	if !ok {
		return Machine{}, fmt.Errorf("%w: %q", ErrUnknownMachine, key)
	}
	return r.machines[i], nil
}

// Vocabulary returns the effective vocabulary.
func (r *Registry) Vocabulary() Vocabulary {
	v := r.vocab
	v.MenuKeywords = append([]string(nil), r.vocab.MenuKeywords...)
	v.Functions = append([]Function(nil), r.vocab.Functions...)
	return v
}

// Resolve finds a machine by key, ID or label, in that order. It lets
// HTTP callers use URL-safe identifiers ("rl1") instead of display keys.
func (r *Registry) Resolve(ref string) (Machine, error) {
	if m, err := r.Lookup(ref); err == nil {
		return m, nil
	}
	for _, m := range r.machines {
		if m.ID == ref {
			return m, nil
		}
	}
	for _, m := range r.machines {
		if m.Label == ref {
			return m, nil
		}
	}
	return Machine{}, fmt.Errorf("%w: %q", ErrUnknownMachine, ref)
}
