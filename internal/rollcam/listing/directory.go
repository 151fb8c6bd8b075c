package listing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rollcam/rollcam/common/redact"
	"github.com/rollcam/rollcam/internal/rollcam/metrics"
)

// Directory wraps a Source with the archive conventions: the first entry is
// the parent link and is always dropped, and failures read as empty listings.
type Directory struct {
	source  Source
	metrics *metrics.Metrics
}

// NewDirectory returns a Directory over src. m may be nil.
func NewDirectory(src Source, m *metrics.Metrics) *Directory {
	return &Directory{source: src, metrics: m}
}

// Children returns every entry of url after the parent entry.
func (d *Directory) Children(ctx context.Context, url string) []string {
	return dropParent(d.fetch(ctx, url))
}

// Folders returns the folder entries of url (names ending in "/"), after the
// parent folder.
func (d *Directory) Folders(ctx context.Context, url string) []string {
	var folders []string
	for _, e := range d.fetch(ctx, url) {
		if strings.HasSuffix(e, "/") {
			folders = append(folders, e)
		}
	}
	return dropParent(folders)
}

func (d *Directory) fetch(ctx context.Context, url string) []string {
	scheme := schemeOf(url)
	start := time.Now()
	entries, err := d.source.List(ctx, url)
	d.metrics.ObserveListing(scheme, time.Since(start))
	if err != nil {
		slog.Warn("listing: fetch failed, treating as empty",
			"url", redact.URL(url), "err", err)
		d.metrics.ListingFailed(scheme)
		return nil
	}
	return entries
}

func dropParent(entries []string) []string {
	if len(entries) <= 1 {
		return nil
	}
	return entries[1:]
}
