// Package menu paginates selectable options into carousels. Each option's
// payload is a complete command string; choosing it sends that string back
// as the next message, so no navigation state lives on the server.
package menu

// DefaultPageSize is the maximum number of buttons per page.
const DefaultPageSize = 10

// Option is one selectable button.
type Option struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Page is one carousel card.
type Page struct {
	Options []Option `json:"options"`
}

// Carousel is a menu reply. Title and Text are optional headings.
type Carousel struct {
	AltText string `json:"alt_text"`
	Title   string `json:"title,omitempty"`
	Text    string `json:"text,omitempty"`
	Pages   []Page `json:"pages"`
}

// Build splits options into consecutive pages of at most pageSize options,
// keeping their order. pageSize <= 0 means DefaultPageSize. No options means
// no pages.
func Build(options []Option, pageSize int) []Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if len(options) == 0 {
		return nil
	}
	pages := make([]Page, 0, (len(options)+pageSize-1)/pageSize)
	for start := 0; start < len(options); start += pageSize {
		end := min(start+pageSize, len(options))
		chunk := make([]Option, end-start)
		copy(chunk, options[start:end])
		pages = append(pages, Page{Options: chunk})
	}
	return pages
}

// NewCarousel builds a carousel with the default page size.
func NewCarousel(altText string, options []Option) Carousel {
	return Carousel{AltText: altText, Pages: Build(options, DefaultPageSize)}
}

// Options flattens the carousel back into its option list.
func (c Carousel) Options() []Option {
	var out []Option
	for _, p := range c.Pages {
		out = append(out, p.Options...)
	}
	return out
}

// Empty reports whether the carousel has no options.
func (c Carousel) Empty() bool { return len(c.Pages) == 0 }
