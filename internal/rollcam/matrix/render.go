package matrix

import (
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/rollcam/rollcam/internal/rollcam/menu"
)

// RenderMenu renders a carousel as HTML plus a plain-text fallback. Each
// option shows its label and the exact command to send back.
func RenderMenu(c menu.Carousel) (htmlBody, plain string) {
	var h, p strings.Builder

	heading := c.Title
	if heading == "" {
		heading = c.AltText
	}
	if heading != "" {
		fmt.Fprintf(&h, "<p><strong>%s</strong></p>", html.EscapeString(heading))
		p.WriteString(heading + "\n")
	}
	if c.Text != "" && c.Text != heading {
		fmt.Fprintf(&h, "<p>%s</p>", html.EscapeString(c.Text))
		p.WriteString(c.Text + "\n")
	}

	n := 0
	for i, page := range c.Pages {
		if len(c.Pages) > 1 {
			fmt.Fprintf(&h, "<p><em>%d/%d</em></p>", i+1, len(c.Pages))
			fmt.Fprintf(&p, "[%d/%d]\n", i+1, len(c.Pages))
		}
		fmt.Fprintf(&h, "<ol start=\"%d\">", n+1)
		for _, o := range page.Options {
			n++
			fmt.Fprintf(&h, "<li>%s: <code>%s</code></li>", html.EscapeString(o.Label), html.EscapeString(o.Payload))
			fmt.Fprintf(&p, "%d. %s: %s\n", n, o.Label, o.Payload)
		}
		h.WriteString("</ol>")
	}
	return h.String(), strings.TrimRight(p.String(), "\n")
}

func fileName(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	if name := path.Base(rawURL); name != "." && name != "/" {
		return name
	}
	return "image"
}
