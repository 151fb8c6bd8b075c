package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rollcam/rollcam/common/retry"
	"github.com/rollcam/rollcam/common/trace"
	"github.com/rollcam/rollcam/internal/rollcam/audit"
	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

// NotifyRequest is the body of POST /notify/:machine.
type NotifyRequest struct {
	Message string `json:"message"`
	// ImagePath is relative to the machine's image URL,
	// e.g. "20240101_08/20240101_08_30_00.png".
	ImagePath string `json:"image_path"`
}

// NotifyResponse is returned when the push was delivered.
type NotifyResponse struct {
	Status   string `json:"status"`
	Machine  string `json:"machine"`
	ImageURL string `json:"image_url,omitempty"`
	TraceID  string `json:"trace_id"`
}

// handleNotify is the HTTP handler for POST /notify/:machine.
func (s *Server) handleNotify(c echo.Context) error {
	ctx, traceID := trace.Ensure(c.Request().Context())

	if s.cfg.Pusher == nil {
		return jsonError(c, http.StatusServiceUnavailable, "Notify room not configured")
	}

	if !s.notifyLim.Allow(c.RealIP()) {
		slog.Warn("notify: rate limit exceeded", "trace_id", traceID, "client", c.RealIP())
		return jsonError(c, http.StatusTooManyRequests, "Rate limit exceeded")
	}

	caller := "anonymous"
	if s.validator != nil {
		claims, err := s.validator.Validate(bearerToken(c.Request()))
		if err != nil {
			slog.Warn("notify: auth failed", "trace_id", traceID, "ip", c.RealIP(), "err", err)
			return jsonError(c, http.StatusUnauthorized, "invalid or missing token")
		}
		caller = claims.Subject
	}

	ref, err := url.PathUnescape(c.Param("machine"))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid machine")
	}
	m, err := s.cfg.Registry.Resolve(ref)
	if err != nil {
		return jsonError(c, http.StatusNotFound, "unknown machine")
	}

	var req NotifyRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	req.Message = strings.TrimSpace(req.Message)
	req.ImagePath = strings.TrimLeft(strings.TrimSpace(req.ImagePath), "/")
	if req.Message == "" && req.ImagePath == "" {
		return jsonError(c, http.StatusBadRequest, "message or image_path is required")
	}
	if strings.Contains(req.ImagePath, "..") || strings.ContainsAny(req.ImagePath, `\?#`) {
		return jsonError(c, http.StatusBadRequest, "invalid image_path")
	}

	imageURL := ""
	if req.ImagePath != "" {
		imageURL = m.ImageURL + req.ImagePath
	}

	err = s.push(ctx, m, req.Message, imageURL)
	s.cfg.Metrics.Notification(m.Key, err)

	evt := audit.Event{Actor: caller, Target: m.Key}
	if err != nil {
		slog.Error("notify: push failed", "trace_id", traceID, "machine", m.Key, "err", err)
		evt.Kind = audit.KindNotifyFailed
		evt.Message = fmt.Sprintf("push for %s failed: %v", m.Label, err)
		s.cfg.Notifier.Notify(ctx, evt)
		return jsonError(c, http.StatusBadGateway, "push failed")
	}

	slog.Info("notify: pushed", "trace_id", traceID, "machine", m.Key, "caller", caller)
	evt.Kind = audit.KindNotifySent
	evt.Message = fmt.Sprintf("pushed %s to notify room", m.Label)
	s.cfg.Notifier.Notify(ctx, evt)

	return c.JSON(http.StatusOK, NotifyResponse{
		Status:   "sent",
		Machine:  m.Key,
		ImageURL: imageURL,
		TraceID:  traceID,
	})
}

// push sends the text then the image, retrying each independently so a
// transient image failure does not repeat the text.
func (s *Server) push(ctx context.Context, m registry.Machine, message, imageURL string) error {
	text := message
	if text == "" {
		text = m.Label
	}
	if err := retry.Do(ctx, s.cfg.Retry, func() error {
		return s.cfg.Pusher.PushText(ctx, text)
	}); err != nil {
		return fmt.Errorf("push text: %w", err)
	}
	if imageURL == "" {
		return nil
	}
	if err := retry.Do(ctx, s.cfg.Retry, func() error {
		return s.cfg.Pusher.PushImage(ctx, imageURL)
	}); err != nil {
		return fmt.Errorf("push image: %w", err)
	}
	return nil
}
