package commands

import (
	"strings"
	"time"
)

// bucketLayout formats an hour folder name, e.g. "20240101_10".
const bucketLayout = "20060102_15"

// FreshWindow returns the current and previous hour buckets in loc.
func FreshWindow(now time.Time, loc *time.Location) [2]string {
	now = now.In(loc)
	return [2]string{now.Format(bucketLayout), now.Add(-time.Hour).Format(bucketLayout)}
}

// IsFresh reports whether the newest entry of batch ("<bucket>/<file>") lies
// in the freshness window. An empty batch is never fresh.
func IsFresh(batch []string, now time.Time, loc *time.Location) bool {
	if len(batch) == 0 {
		return false
	}
	bucket, _, _ := strings.Cut(batch[0], "/")
	w := FreshWindow(now, loc)
	return bucket == w[0] || bucket == w[1]
}
