package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"time"
	_ "time/tzdata" // DefaultTimezone must resolve on minimal images

	"github.com/rollcam/rollcam/common/redact"
	"github.com/rollcam/rollcam/internal/rollcam/audit"
	"github.com/rollcam/rollcam/internal/rollcam/listing"
	"github.com/rollcam/rollcam/internal/rollcam/menu"
	"github.com/rollcam/rollcam/internal/rollcam/metrics"
	"github.com/rollcam/rollcam/internal/rollcam/observability"
	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

// ErrMalformedFilename is returned when a requested image name does not
// carry a date and hour.
var ErrMalformedFilename = errors.New("malformed image filename")

// ErrUnsafePath is returned when a bucket or filename taken from a message
// would leave the machine's folder.
var ErrUnsafePath = errors.New("path segment escapes machine folder")

// DefaultTimezone is the archive's local zone.
const DefaultTimezone = "Asia/Taipei"

// Lister returns archive listings with the parent entry removed. Failures
// read as empty listings.
type Lister interface {
	Folders(ctx context.Context, url string) []string
	Children(ctx context.Context, url string) []string
}

// LatestSource returns up to n newest image paths ("<bucket>/<file>") for a
// machine, newest first.
type LatestSource interface {
	Latest(ctx context.Context, m registry.Machine, n int) ([]string, error)
}

// Config wires a Dispatcher.
type Config struct {
	Registry *registry.Registry
	Lister   Lister
	// Latest defaults to listing.ArchiveLatest over Lister when Lister is a
	// *listing.Directory.
	Latest LatestSource
	// Location defaults to DefaultTimezone.
	Location *time.Location
	// Now defaults to time.Now.
	Now      func() time.Time
	Metrics  *metrics.Metrics
	Notifier audit.Notifier
}

// Dispatcher maps messages to replies. It holds no mutable state and is
// safe for concurrent use.
type Dispatcher struct {
	reg      *registry.Registry
	vocab    registry.Vocabulary
	interp   *Interpreter
	lister   Lister
	latest   LatestSource
	loc      *time.Location
	now      func() time.Time
	metrics  *metrics.Metrics
	notifier audit.Notifier
}

// NewDispatcher validates cfg and returns a Dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("commands: registry is required")
	}
	if cfg.Lister == nil {
		return nil, errors.New("commands: lister is required")
	}
	if cfg.Latest == nil {
		dir, ok := cfg.Lister.(*listing.Directory)
		if !ok {
			return nil, errors.New("commands: latest source is required")
		}
		cfg.Latest = listing.NewArchiveLatest(dir)
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("commands: load %s: %w", DefaultTimezone, err)
		}
		cfg.Location = loc
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = audit.Noop{}
	}
	return &Dispatcher{
		reg:      cfg.Registry,
		vocab:    cfg.Registry.Vocabulary(),
		interp:   NewInterpreter(cfg.Registry),
		lister:   cfg.Lister,
		latest:   cfg.Latest,
		loc:      cfg.Location,
		now:      cfg.Now,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
	}, nil
}

// Vocabulary exposes the registry vocabulary to transports.
func (d *Dispatcher) Vocabulary() registry.Vocabulary { return d.vocab }

// Interpret classifies text without executing it.
func (d *Dispatcher) Interpret(text string) Intent { return d.interp.Interpret(text) }

// Dispatch classifies and executes one message. It never returns an error:
// failures and panics become the generic error text.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) (reply Reply) {
	log := observability.WithTrace(ctx)
	intent := d.interp.Interpret(in.Text)
	d.metrics.Intent(intent.Name())

	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch panic", "intent", intent.Name(), "panic", r, "stack", string(debug.Stack()))
			err := fmt.Errorf("panic: %v", r)
			d.fail(ctx, in, intent, err)
			reply = textReply(d.vocab.ErrorText)
			reply.Err = err
		}
		reply.Intent = intent.Name()
	}()

	if _, ok := intent.(Unrecognized); ok {
		log.Info("unrecognized message ignored", "sender", in.Sender, "room", in.Room)
		return Reply{Kind: ReplyNone}
	}

	r, err := d.execute(ctx, in, intent)
	if err != nil {
		log.Error("dispatch failed", "intent", intent.Name(), "text", in.Text, "err", err)
		d.fail(ctx, in, intent, err)
		r = textReply(d.vocab.ErrorText)
		r.Err = err
		return r
	}
	log.Debug("dispatched", "intent", intent.Name(), "kind", r.Kind.String())
	return r
}

func (d *Dispatcher) fail(ctx context.Context, in Inbound, intent Intent, err error) {
	d.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindError,
		Actor:   in.Sender,
		Target:  MachineOf(intent),
		Message: fmt.Sprintf("%s: %v", intent.Name(), err),
	})
}

func (d *Dispatcher) execute(ctx context.Context, in Inbound, intent Intent) (Reply, error) {
	switch v := intent.(type) {
	case ShowMenu:
		return d.functionMenu(), nil
	case ChoosePipeline:
		return d.machineMenu(v.Function), nil
	case RequestDateList:
		m, err := d.reg.Lookup(v.Machine)
		if err != nil {
			return Reply{}, err
		}
		opts := listing.DateOptions(d.lister.Folders(ctx, m.URL), m.ImagePrefix)
		return d.listingMenu(m, opts), nil
	case RequestTimeList:
		m, err := d.reg.Lookup(v.Machine)
		if err != nil {
			return Reply{}, err
		}
		opts := listing.TimeBucketOptions(d.lister.Folders(ctx, m.URL), v.Date, m.SearchPrefix)
		return d.listingMenu(m, opts), nil
	case RequestImageList:
		m, err := d.reg.Lookup(v.Machine)
		if err != nil {
			return Reply{}, err
		}
		if err := checkSegment(v.Bucket); err != nil {
			return Reply{}, err
		}
		files := d.lister.Children(ctx, m.URL+v.Bucket+"/")
		return d.listingMenu(m, listing.MinuteImageOptions(files, m.TimePrefix)), nil
	case ShowLatest:
		return d.showLatest(ctx, in, v)
	case ShowSpecificImage:
		m, err := d.reg.Lookup(v.Machine)
		if err != nil {
			return Reply{}, err
		}
		if err := checkSegment(v.Filename); err != nil {
			return Reply{}, err
		}
		if v.Date == "" || v.Hour == "" {
			return Reply{}, fmt.Errorf("%w: %q", ErrMalformedFilename, v.Filename)
		}
		return imagesReply(joinURL(m.ImageURL, v.Date+"_"+v.Hour, v.Filename)), nil
	default:
		return Reply{}, fmt.Errorf("unhandled intent %T", intent)
	}
}

// checkSegment rejects names that are not a single path segment.
func checkSegment(name string) error {
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return nil
}

func (d *Dispatcher) functionMenu() Reply {
	opts := make([]menu.Option, 0, len(d.vocab.Functions))
	for _, f := range d.vocab.Functions {
		opts = append(opts, menu.Option{Label: f.Label, Payload: f.Payload})
	}
	c := menu.NewCarousel(d.vocab.MenuText, opts)
	c.Title = d.vocab.MenuTitle
	c.Text = d.vocab.MenuText
	return menuReply(c)
}

func (d *Dispatcher) machineMenu(function string) Reply {
	suffix := d.vocab.StripMenuKeyword(function)
	machines := d.reg.Machines()
	opts := make([]menu.Option, 0, len(machines))
	for _, m := range machines {
		opts = append(opts, menu.Option{Label: m.Label, Payload: m.Key + suffix})
	}
	return menuReply(menu.NewCarousel(d.vocab.MachineAltText, opts))
}

func (d *Dispatcher) listingMenu(m registry.Machine, opts []menu.Option) Reply {
	if len(opts) == 0 {
		return textReply(d.vocab.NoResultsText)
	}
	c := menu.NewCarousel(m.Label, opts)
	return menuReply(c)
}

func (d *Dispatcher) showLatest(ctx context.Context, in Inbound, v ShowLatest) (Reply, error) {
	m, err := d.reg.Lookup(v.Machine)
	if err != nil {
		return Reply{}, err
	}
	batch, err := d.latest.Latest(ctx, m, v.Count)
	if err != nil {
		return Reply{}, fmt.Errorf("latest images for %s: %w", m.Key, err)
	}

	fresh := IsFresh(batch, d.now(), d.loc)
	d.metrics.Freshness(m.Key, fresh)
	if !fresh {
		observability.WithTrace(ctx).Info("latest images are stale",
			"machine", m.Key, "url", redact.URL(m.URL), "newest", firstOr(batch, ""))
		d.notifier.Notify(ctx, audit.Event{
			Kind:    audit.KindStale,
			Actor:   in.Sender,
			Target:  m.Key,
			Message: fmt.Sprintf("no images within the last hour (newest: %s)", firstOr(batch, "none")),
		})
		return textReply(d.vocab.StaleText), nil
	}

	if len(batch) > v.Count {
		batch = batch[:v.Count]
	}
	urls := make([]string, 0, len(batch))
	for _, entry := range batch {
		urls = append(urls, joinURL(m.ImageURL, entry))
	}
	return imagesReply(urls...), nil
}

// joinURL appends path elements to base. Elements may themselves contain
// "/" separators.
func joinURL(base string, elems ...string) string {
	if joined, err := url.JoinPath(base, elems...); err == nil {
		return joined
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(elems, "/")
}

func firstOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s[0]
}
