package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rollcam/rollcam/common/trace"
	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/menu"
)

// CallbackRequest is the body of POST /webhooks/chat. It follows the LINE
// Messaging API callback shape.
type CallbackRequest struct {
	Destination string          `json:"destination,omitempty"`
	Events      []CallbackEvent `json:"events"`
}

// CallbackEvent is one delivered event. Only "message" events carrying text
// and "follow" events are answered.
type CallbackEvent struct {
	Type       string           `json:"type"`
	ReplyToken string           `json:"replyToken"`
	Source     EventSource      `json:"source"`
	Message    *CallbackMessage `json:"message,omitempty"`
}

// EventSource identifies where an event came from.
type EventSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// CallbackMessage is the message payload of a "message" event.
type CallbackMessage struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallbackResponse carries the replies for every answered event.
type CallbackResponse struct {
	Replies []EventReply `json:"replies"`
}

// EventReply answers one event, addressed by its reply token.
type EventReply struct {
	ReplyToken string            `json:"replyToken"`
	Intent     string            `json:"intent,omitempty"`
	Messages   []OutboundMessage `json:"messages"`
}

// OutboundMessage is one rendered message. Type is "text", "image" or
// "carousel".
type OutboundMessage struct {
	Type               string         `json:"type"`
	Text               string         `json:"text,omitempty"`
	OriginalContentURL string         `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string         `json:"previewImageUrl,omitempty"`
	Carousel           *menu.Carousel `json:"carousel,omitempty"`
}

// handleWebhook is the HTTP handler for POST /webhooks/chat.
func (s *Server) handleWebhook(c echo.Context) error {
	r := c.Request()

	if !s.limiter.Allow(c.RealIP()) {
		slog.Warn("webhook: rate limit exceeded", "client", c.RealIP())
		return jsonError(c, http.StatusTooManyRequests, "Rate limit exceeded")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "Failed to read body")
	}
	if len(body) > maxBodyBytes {
		return jsonError(c, http.StatusRequestEntityTooLarge, "Body too large")
	}

	if s.cfg.WebhookSecret != "" {
		if err := VerifySignature([]byte(s.cfg.WebhookSecret), body, r.Header.Get(SignatureHeader)); err != nil {
			slog.Warn("webhook: signature rejected", "client", c.RealIP(), "err", err)
			return jsonError(c, http.StatusBadRequest, "Invalid signature")
		}
	}

	var req CallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid JSON body")
	}

	resp := CallbackResponse{Replies: []EventReply{}}
	for _, evt := range req.Events {
		ctx, traceID := trace.Ensure(r.Context())
		msgs, intent := s.answer(ctx, evt)
		if len(msgs) == 0 {
			continue
		}
		slog.Debug("webhook: answered event", "trace_id", traceID, "type", evt.Type, "intent", intent)
		resp.Replies = append(resp.Replies, EventReply{
			ReplyToken: evt.ReplyToken,
			Intent:     intent,
			Messages:   msgs,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// answer produces the messages for a single event.
func (s *Server) answer(ctx context.Context, evt CallbackEvent) ([]OutboundMessage, string) {
	switch evt.Type {
	case "follow":
		g := s.cfg.Processor.Greeting()
		if g == "" {
			return nil, ""
		}
		return []OutboundMessage{{Type: "text", Text: g}}, ""
	case "message":
		if evt.Message == nil || evt.Message.Type != "text" {
			return nil, ""
		}
		in := commands.Inbound{
			Text:       evt.Message.Text,
			ReplyToken: evt.ReplyToken,
			Sender:     evt.Source.UserID,
			Room:       evt.Source.conversation(),
		}
		reply := s.cfg.Processor.Process(ctx, Transport, in)
		return RenderReply(reply), reply.Intent
	default:
		return nil, ""
	}
}

// conversation returns the id replies are addressed to.
func (src EventSource) conversation() string {
	switch {
	case src.GroupID != "":
		return src.GroupID
	case src.RoomID != "":
		return src.RoomID
	default:
		return src.UserID
	}
}

// RenderReply converts a dispatcher reply into outbound messages.
func RenderReply(reply commands.Reply) []OutboundMessage {
	switch reply.Kind {
	case commands.ReplyText:
		return []OutboundMessage{{Type: "text", Text: reply.Text}}
	case commands.ReplyImages:
		out := make([]OutboundMessage, 0, len(reply.Images))
		for _, u := range reply.Images {
			out = append(out, OutboundMessage{Type: "image", OriginalContentURL: u, PreviewImageURL: u})
		}
		return out
	case commands.ReplyMenu:
		if reply.Menu == nil {
			return nil
		}
		return []OutboundMessage{{Type: "carousel", Text: reply.Menu.AltText, Carousel: reply.Menu}}
	default:
		return nil
	}
}
