// Package gateway is the HTTP face of rollcam.
//
// It serves:
//
//	POST /webhooks/chat      LINE-style chat callbacks, answered inline
//	POST /notify/:machine    push a message and archive image to the notify room
//	GET  /health, /status    liveness and runtime statistics
//	GET  /metrics            Prometheus exposition
//
// Chat callbacks are authenticated with an HMAC-SHA256 body signature when a
// webhook secret is configured and rate-limited per client address. Notify
// requests require an HS256 bearer token when a notify secret is configured
// and have their own, tighter per-client limit. `rollcam serve` refuses to
// start the gateway without the secrets.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rollcam/rollcam/common/retry"
	"github.com/rollcam/rollcam/internal/rollcam/audit"
	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/metrics"
	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

// DefaultRateLimit is the default maximum number of chat callbacks per client
// per minute when no explicit limit is configured.
const DefaultRateLimit = 60

// DefaultNotifyRateLimit is the number of notify requests allowed per client
// in each NotifyRateWindow.
const DefaultNotifyRateLimit = 10

// NotifyRateWindow is the notify rate-limit window.
const NotifyRateWindow = 3 * time.Minute

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 * 1024 * 1024 // 1 MiB

// Transport names the gateway in audit rows and metrics.
const Transport = "webhook"

// Processor runs one chat message through membership, dispatch and audit.
type Processor interface {
	Process(ctx context.Context, transport string, in commands.Inbound) commands.Reply
	// Greeting is sent when a user adds the bot.
	Greeting() string
}

// Pusher delivers notify requests to the chat room operators watch.
type Pusher interface {
	PushText(ctx context.Context, text string) error
	PushImage(ctx context.Context, imageURL string) error
}

// statusProvider is the minimal interface the status endpoint needs from Store.
type statusProvider interface {
	MemberCount(ctx context.Context) (int, error)
	AuditCount(ctx context.Context) (int, error)
}

// Config holds the gateway's collaborators. Processor and Registry are
// required; the rest are optional.
type Config struct {
	Registry  *registry.Registry
	Processor Processor
	Pusher    Pusher
	Status    statusProvider
	Metrics   *metrics.Metrics
	Notifier  audit.Notifier
	// Gatherer backs /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// WebhookSecret enables signature checks on chat callbacks.
	WebhookSecret string
	// RateLimit is the number of callbacks allowed per client per minute.
	// Defaults to DefaultRateLimit when zero or negative.
	RateLimit int
	// NotifySecret enables bearer-token checks on notify requests.
	NotifySecret string
	// NotifyRateLimit is the number of notify requests allowed per client per
	// NotifyRateWindow. Defaults to DefaultNotifyRateLimit when zero or
	// negative.
	NotifyRateLimit int
	// Retry controls notify push retries. Zero means retry.DefaultConfig.
	Retry retry.Config
}

// Server is the echo-based HTTP gateway.
type Server struct {
	addr      string
	cfg       Config
	echo      *echo.Echo
	limiter   *rateLimiter
	notifyLim *rateLimiter
	validator *TokenValidator
	startedAt time.Time
	server    *http.Server
}

// New creates and configures the HTTP server (does not start it).
func New(addr string, cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("gateway: registry is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("gateway: processor is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = audit.Noop{}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	notifyLimit := cfg.NotifyRateLimit
	if notifyLimit <= 0 {
		notifyLimit = DefaultNotifyRateLimit
	}

	s := &Server{
		addr:      addr,
		cfg:       cfg,
		echo:      echo.New(),
		limiter:   newRateLimiter(limit, time.Minute),
		notifyLim: newRateLimiter(notifyLimit, NotifyRateWindow),
		startedAt: time.Now(),
	}
	if cfg.NotifySecret != "" {
		s.validator = NewTokenValidator(cfg.NotifySecret)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	s.echo.POST("/webhooks/chat", s.handleWebhook, s.countStatus)
	s.echo.POST("/notify/:machine", s.handleNotify)
	return s, nil
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener (e.g. with httptest.NewRecorder).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start begins listening in the background. Blocks until the listener is
// established so the caller knows the port is open before returning.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("gateway listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("gateway shutdown error", "err", err)
	}
}

// countStatus records the response status class of chat callbacks.
func (s *Server) countStatus(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		s.cfg.Metrics.Webhook(c.Response().Status)
		return err
	}
}

// errorBody is the JSON error payload.
type errorBody struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorBody{Error: msg})
}
