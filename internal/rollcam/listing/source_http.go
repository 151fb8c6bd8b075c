package listing

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultTimeout bounds one listing fetch.
const DefaultTimeout = 10 * time.Second

// maxIndexBytes caps how much of an index page is read.
const maxIndexBytes = 8 << 20

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate checks. Archive servers on
	// plant networks commonly run with self-signed certificates.
	InsecureSkipVerify bool
}

// HTTPSource lists directories served as HTML index pages (Apache or nginx
// autoindex and similar) by collecting every <a href> in document order.
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource builds an HTTPSource with its own transport.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via FETCH_INSECURE_TLS
	}
	return &HTTPSource{client: &http.Client{Timeout: opts.Timeout, Transport: tr}}
}

// List implements Source. Non-2xx responses are errors.
func (s *HTTPSource) List(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return ParseIndex(io.LimitReader(resp.Body, maxIndexBytes))
}

// ParseIndex extracts the non-empty href of every anchor in an HTML index.
func ParseIndex(r io.Reader) ([]string, error) {
	var hrefs []string
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("parse index: %w", err)
			}
			return hrefs, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}
			for _, a := range tok.Attr {
				if a.Key == "href" && a.Val != "" {
					hrefs = append(hrefs, a.Val)
					break
				}
			}
		}
	}
}
