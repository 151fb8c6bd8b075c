// Package listing fetches remote archive directory listings and derives the
// option sets the menus are built from.
//
// A listing is the ordered list of child names under one archive URL. Folder
// names end in "/"; everything else is a file. The first entry of every
// listing is the parent-directory link and is dropped by Directory.
package listing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Source returns the raw child entries of url in document order, including
// the leading parent entry.
type Source interface {
	List(ctx context.Context, url string) ([]string, error)
}

// MultiSource dispatches to a Source by URL scheme.
type MultiSource struct {
	schemes map[string]Source
}

// NewMultiSource returns an empty MultiSource; register sources with Handle.
func NewMultiSource() *MultiSource {
	return &MultiSource{schemes: make(map[string]Source)}
}

// Handle registers src for the given schemes (e.g. "http", "https").
func (m *MultiSource) Handle(src Source, schemes ...string) *MultiSource {
	for _, s := range schemes {
		m.schemes[strings.ToLower(s)] = src
	}
	return m
}

// List implements Source.
func (m *MultiSource) List(ctx context.Context, rawURL string) ([]string, error) {
	scheme := schemeOf(rawURL)
	src, ok := m.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("no listing source for scheme %q", scheme)
	}
	return src.List(ctx, rawURL)
}

func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
