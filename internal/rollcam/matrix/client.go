// Package matrix is the Matrix chat transport: it syncs the watched rooms,
// hands text messages to the application and renders replies as text,
// images and menu notices.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/rollcam/rollcam/internal/rollcam/menu"
)

// maxImageBytes caps archive images re-uploaded to the homeserver.
const maxImageBytes = 20 << 20

// MenuEventKey carries the structured menu alongside the HTML rendering so
// capable clients can draw real buttons.
const MenuEventKey = "com.rollcam.menu"

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms are the room IDs where Rollcam answers commands.
	Rooms []string
	// DB persists the sync token across restarts. When nil an in-memory
	// store is used and room history is replayed on every restart.
	DB *sql.DB
	// GreetingText is posted when a user joins a watched room; empty
	// disables greetings.
	GreetingText string
	// FetchTimeout bounds image downloads; defaults to 15s.
	FetchTimeout time.Duration
	// HTTPClient downloads archive images before upload. When nil a client
	// with FetchTimeout is used.
	HTTPClient *http.Client
}

// Client wraps the mautrix client.
type Client struct {
	client     *mautrix.Client
	config     *Config
	http       *http.Client
	stopCh     chan struct{}
	startedAt  time.Time
	msgHandler MessageHandler
}

// MessageHandler processes incoming text messages.
type MessageHandler func(ctx context.Context, evt *event.Event)

// New creates a Client; call Start to begin syncing.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	hc := config.HTTPClient
	if hc == nil {
		timeout := config.FetchTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	c := &Client{
		client: client,
		config: config,
		http:   hc,
		stopCh: make(chan struct{}),
	}

	if config.DB != nil {
		client.Store = NewDBSyncStore(config.DB)
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no DB configured, using in-memory store (history will replay on restart)")
	}
	return c, nil
}

// Start joins the watched rooms and syncs in the background, reconnecting
// with exponential back-off.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler
	c.startedAt = time.Now()

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleMember)

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			err := c.client.SyncWithContext(ctx)
			if err == nil {
				return
			}
			select {
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
			select {
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
		}
	}()
	return nil
}

// Stop stops syncing.
func (c *Client) Stop() {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	c.client.StopSync()
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, roomID, message string) error {
	if _, err := c.client.SendText(ctx, id.RoomID(roomID), message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendNotice sends a notice (rendered less prominently by clients).
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{MsgType: event.MsgNotice, Body: message}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// ReplyToMessage sends text as a reply to eventID.
func (c *Client) ReplyToMessage(ctx context.Context, roomID, eventID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    message,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(eventID)},
		},
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// SendMenu posts a carousel as an HTML notice with the structured menu
// attached under MenuEventKey.
func (c *Client) SendMenu(ctx context.Context, roomID string, m menu.Carousel) error {
	htmlBody, plain := RenderMenu(m)
	content := &event.Content{
		Parsed: &event.MessageEventContent{
			MsgType:       event.MsgNotice,
			Body:          plain,
			Format:        event.FormatHTML,
			FormattedBody: htmlBody,
		},
		Raw: map[string]any{MenuEventKey: m},
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content); err != nil {
		return fmt.Errorf("failed to send menu: %w", err)
	}
	return nil
}

// SendImage downloads imageURL, uploads it to the homeserver and posts it as
// an m.image. When the archive cannot be reached the URL is sent as text so
// the user still gets a link.
func (c *Client) SendImage(ctx context.Context, roomID, imageURL string) error {
	data, mime, err := c.download(ctx, imageURL)
	if err != nil {
		slog.Warn("matrix: image download failed, sending link", "url", imageURL, "err", err)
		return c.SendText(ctx, roomID, imageURL)
	}

	up, err := c.client.UploadBytes(ctx, data, mime)
	if err != nil {
		slog.Warn("matrix: image upload failed, sending link", "url", imageURL, "err", err)
		return c.SendText(ctx, roomID, imageURL)
	}

	content := event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    fileName(imageURL),
		URL:     up.ContentURI.CUString(),
		Info:    &event.FileInfo{MimeType: mime, Size: len(data)},
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send image: %w", err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// SetTyping sets or clears the typing indicator.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

// IsWatchedRoom reports whether roomID is one of the configured rooms.
func (c *Client) IsWatchedRoom(roomID string) bool {
	return slices.Contains(c.config.Rooms, roomID)
}

// GetUserID returns the bot's user ID.
func (c *Client) GetUserID() string {
	return c.config.UserID
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}
	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}
	if !c.IsWatchedRoom(evt.RoomID.String()) {
		return
	}
	if c.msgHandler != nil {
		c.msgHandler(ctx, evt)
	}
}

// handleMember greets users who newly join a watched room.
func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	if c.config.GreetingText == "" || evt.StateKey == nil {
		return
	}
	if *evt.StateKey == c.config.UserID || !c.IsWatchedRoom(evt.RoomID.String()) {
		return
	}
	// Skip membership replayed from before this process started.
	if evt.Timestamp < c.startedAt.UnixMilli() {
		return
	}
	if !isFreshJoin(evt) {
		return
	}
	if err := c.SendText(ctx, evt.RoomID.String(), c.config.GreetingText); err != nil {
		slog.Warn("matrix: failed to greet new member", "room", evt.RoomID, "user", *evt.StateKey, "err", err)
	}
}

// isFreshJoin is true for join events that are not profile updates of an
// existing member.
func isFreshJoin(evt *event.Event) bool {
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipJoin {
		return false
	}
	if prev := evt.Unsigned.PrevContent; prev != nil {
		_ = prev.ParseRaw(event.StateMember)
		if p := prev.AsMember(); p != nil && p.Membership == event.MembershipJoin {
			return false
		}
	}
	return true
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
