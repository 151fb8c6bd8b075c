package commands

import "github.com/rollcam/rollcam/internal/rollcam/menu"

// Inbound is one chat message as seen by the dispatcher. Only Text drives
// classification; the rest is carried for logging and transports.
type Inbound struct {
	Text       string
	ReplyToken string
	Sender     string
	Room       string
}

// ReplyKind selects which payload of a Reply is meaningful.
type ReplyKind int

const (
	ReplyNone ReplyKind = iota
	ReplyText
	ReplyImages
	ReplyMenu
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyText:
		return "text"
	case ReplyImages:
		return "images"
	case ReplyMenu:
		return "menu"
	default:
		return "none"
	}
}

// Reply is the transport-neutral result of dispatching one message.
type Reply struct {
	Kind   ReplyKind
	Text   string
	Images []string
	Menu   *menu.Carousel
	// Intent is the name of the intent that produced the reply.
	Intent string
	// Err is the failure behind a generic error reply, for audit.
	Err error
}

func textReply(s string) Reply { return Reply{Kind: ReplyText, Text: s} }

func imagesReply(urls ...string) Reply { return Reply{Kind: ReplyImages, Images: urls} }

func menuReply(c menu.Carousel) Reply { return Reply{Kind: ReplyMenu, Menu: &c} }
