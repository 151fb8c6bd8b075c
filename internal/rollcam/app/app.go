// Package app provides the main Rollcam application
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"maunium.net/go/mautrix/event"

	"github.com/rollcam/rollcam/common/retry"
	"github.com/rollcam/rollcam/common/trace"
	"github.com/rollcam/rollcam/internal/rollcam/audit"
	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/gateway"
	"github.com/rollcam/rollcam/internal/rollcam/listing"
	"github.com/rollcam/rollcam/internal/rollcam/matrix"
	"github.com/rollcam/rollcam/internal/rollcam/members"
	"github.com/rollcam/rollcam/internal/rollcam/metrics"
	"github.com/rollcam/rollcam/internal/rollcam/observability"
	"github.com/rollcam/rollcam/internal/rollcam/registry"
	"github.com/rollcam/rollcam/internal/rollcam/store"
)

// MatrixTransport names the Matrix transport in audit rows and metrics.
const MatrixTransport = "matrix"

// typingTimeout bounds the typing indicator if clearing it fails.
const typingTimeout = 30 * time.Second

// App is the main Rollcam application
type App struct {
	config     *Config
	store      *store.Store
	registry   *registry.Registry
	metrics    *metrics.Metrics
	promReg    *prometheus.Registry
	matrix     *matrix.Client
	processor  *Processor
	gateway    *gateway.Server
	kafka      *audit.KafkaNotifier
	dispatcher *commands.Dispatcher
}

// New wires every component. The Matrix client and HTTP gateway are only
// created when configured, so the same constructor serves `rollcam serve`
// and the offline `rollcam ask`.
func New(ctx context.Context, config *Config) (*App, error) {
	observability.LogConfig("configuration loaded", config.logFields(),
		config.Matrix.AccessToken, config.WebhookSecret, config.NotifyJWTSecret)

	reg, err := registry.Load(config.MachinesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load machines: %w", err)
	}
	slog.Info("machine registry loaded", "path", config.MachinesFile, "machines", reg.Len())

	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{config: config, store: st, registry: reg, promReg: prometheus.NewRegistry()}
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.promReg)

	if config.MatrixEnabled() {
		matrixCfg := config.Matrix
		matrixCfg.DB = st.DB()
		if matrixCfg.GreetingText == "" {
			matrixCfg.GreetingText = reg.Vocabulary().GreetingText
		}
		slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
		a.matrix, err = matrix.New(&matrixCfg)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
		}
	}

	notifier := a.buildNotifier()

	src, err := buildSource(ctx, config, reg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.dispatcher, err = commands.NewDispatcher(commands.Config{
		Registry: reg,
		Lister:   listing.NewDirectory(src, a.metrics),
		Location: config.Location,
		Metrics:  a.metrics,
		Notifier: notifier,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	gate := members.NewGate(st, members.Config{
		Required:    config.MembersRequired,
		Prefix:      config.RegistrationPrefix,
		WelcomeText: reg.Vocabulary().WelcomeText,
		Notifier:    notifier,
	})
	a.processor = NewProcessor(a.dispatcher, gate, st, a.metrics)

	if config.HTTPAddr != "" {
		gwCfg := gateway.Config{
			Registry:      reg,
			Processor:     a.processor,
			Status:        st,
			Metrics:       a.metrics,
			Notifier:      notifier,
			Gatherer:      a.promReg,
			WebhookSecret: config.WebhookSecret,
			RateLimit:     config.WebhookRateLimit,
			NotifySecret:  config.NotifyJWTSecret,
			Retry:         retry.DefaultConfig,
		}
		if a.matrix != nil && config.NotifyRoomID != "" {
			gwCfg.Pusher = &matrixPusher{client: a.matrix, roomID: config.NotifyRoomID}
		}
		a.gateway, err = gateway.New(config.HTTPAddr, gwCfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize gateway: %w", err)
		}
	}

	return a, nil
}

// buildNotifier fans audit events out to the Matrix audit room and Kafka,
// whichever are configured.
func (a *App) buildNotifier() audit.Notifier {
	var out audit.Multi
	if a.matrix != nil && a.config.AuditRoomID != "" {
		out = append(out, audit.NewMatrixNotifier(a.matrix, a.config.AuditRoomID))
		slog.Info("audit room notifications enabled", "room", a.config.AuditRoomID)
	}
	if len(a.config.KafkaBrokers) > 0 {
		a.kafka = audit.NewKafkaNotifier(audit.NewKafkaWriter(a.config.KafkaBrokers, a.config.KafkaTopic))
		out = append(out, a.kafka)
		slog.Info("audit events shipped to Kafka", "brokers", a.config.KafkaBrokers, "topic", a.config.KafkaTopic)
	}
	if len(out) == 0 {
		return audit.Noop{}
	}
	return out
}

// Processor returns the shared message pipeline.
func (a *App) Processor() *Processor { return a.processor }

// Registry returns the loaded machine registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Store returns the application database.
func (a *App) Store() *store.Store { return a.store }

// Run starts the Rollcam application
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.gateway != nil {
		if err := a.gateway.Start(ctx); err != nil {
			return fmt.Errorf("failed to start gateway: %w", err)
		}
	}

	if a.matrix != nil {
		slog.Info("starting Matrix sync")
		if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
			return fmt.Errorf("failed to start Matrix client: %w", err)
		}
	}

	slog.Info("Rollcam is running; press Ctrl+C to stop", "machines", a.registry.Len())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop stops the Rollcam application
func (a *App) Stop() {
	if a.matrix != nil {
		slog.Info("stopping Matrix client")
		a.matrix.Stop()
	}
	if a.gateway != nil {
		slog.Info("stopping gateway")
		a.gateway.Stop()
	}
	a.close()
}

func (a *App) close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			slog.Warn("failed to close Kafka writer", "err", err)
		}
	}
	slog.Info("closing database")
	a.store.Close()
}

// handleMessage processes incoming Matrix messages
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msg := evt.Content.AsMessage()
	if msg == nil {
		return
	}
	ctx, _ = trace.Ensure(ctx)
	log := observability.WithTrace(ctx)
	roomID := evt.RoomID.String()

	if err := a.matrix.SetTyping(ctx, roomID, true, typingTimeout); err != nil {
		log.Debug("failed to set typing indicator", "room", roomID, "err", err)
	}
	defer func() {
		if err := a.matrix.SetTyping(ctx, roomID, false, 0); err != nil {
			log.Debug("failed to clear typing indicator", "room", roomID, "err", err)
		}
	}()

	reply := a.processor.Process(ctx, MatrixTransport, commands.Inbound{
		Text:       msg.Body,
		ReplyToken: evt.ID.String(),
		Sender:     evt.Sender.String(),
		Room:       roomID,
	})
	if err := a.deliver(ctx, roomID, evt.ID.String(), reply); err != nil {
		log.Error("failed to send reply", "room", roomID, "kind", reply.Kind.String(), "err", err)
	}
}

// deliver renders reply into Matrix events.
func (a *App) deliver(ctx context.Context, roomID, eventID string, reply commands.Reply) error {
	switch reply.Kind {
	case commands.ReplyText:
		return a.matrix.ReplyToMessage(ctx, roomID, eventID, reply.Text)
	case commands.ReplyImages:
		for _, u := range reply.Images {
			if err := a.matrix.SendImage(ctx, roomID, u); err != nil {
				return err
			}
		}
		return nil
	case commands.ReplyMenu:
		if reply.Menu == nil {
			return nil
		}
		return a.matrix.SendMenu(ctx, roomID, *reply.Menu)
	default:
		return nil
	}
}

// matrixPusher delivers notify requests to a fixed Matrix room.
type matrixPusher struct {
	client *matrix.Client
	roomID string
}

func (p *matrixPusher) PushText(ctx context.Context, text string) error {
	return p.client.SendText(ctx, p.roomID, text)
}

func (p *matrixPusher) PushImage(ctx context.Context, imageURL string) error {
	return p.client.SendImage(ctx, p.roomID, imageURL)
}
