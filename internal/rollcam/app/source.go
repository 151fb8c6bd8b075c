package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rollcam/rollcam/internal/rollcam/listing"
	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

// buildSource routes http(s) machines to the HTML index reader and s3
// machines to the bucket lister. The AWS configuration is only loaded when
// some machine actually lives in S3.
func buildSource(ctx context.Context, config *Config, reg *registry.Registry) (*listing.MultiSource, error) {
	src := listing.NewMultiSource().Handle(listing.NewHTTPSource(config.Fetch), "http", "https")
	if config.Fetch.InsecureSkipVerify {
		slog.Warn("TLS verification disabled for archive listings")
	}

	if !usesS3(reg) {
		return src, nil
	}
	s3src, err := listing.NewS3Source(ctx, config.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 listing: %w", err)
	}
	slog.Info("S3 listing enabled", "region", config.S3.Region, "anonymous", config.S3.Anonymous)
	return src.Handle(s3src, "s3"), nil
}

func usesS3(reg *registry.Registry) bool {
	for _, m := range reg.Machines() {
		if strings.HasPrefix(strings.ToLower(m.URL), "s3://") {
			return true
		}
	}
	return false
}
