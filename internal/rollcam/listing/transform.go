package listing

import (
	"sort"
	"strings"

	"github.com/rollcam/rollcam/internal/rollcam/menu"
)

// DateOptions returns one option per distinct date among folder names of the
// form "<date>_<hour>/", sorted ascending. Payload is prefix+date.
func DateOptions(folders []string, prefix string) []menu.Option {
	seen := make(map[string]struct{}, len(folders))
	var dates []string
	for _, f := range folders {
		date, _, _ := strings.Cut(f, "_")
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		dates = append(dates, date)
	}
	sort.Strings(dates)

	opts := make([]menu.Option, 0, len(dates))
	for _, d := range dates {
		opts = append(opts, menu.Option{Label: d, Payload: prefix + d})
	}
	return opts
}

// TimeBucketOptions returns the folders that start with date, in listing
// order, with the trailing "/" removed. Payload is prefix+bucket.
func TimeBucketOptions(folders []string, date, prefix string) []menu.Option {
	var opts []menu.Option
	for _, f := range folders {
		if !strings.HasPrefix(f, date) {
			continue
		}
		bucket, _, _ := strings.Cut(f, "/")
		opts = append(opts, menu.Option{Label: bucket, Payload: prefix + bucket})
	}
	return opts
}

// MinuteImageOptions keeps one image per minute from files named
// "<date>_<HH>_<MM>_<SS>_...". The minute is the third "_" field. A later
// file for the same minute replaces the earlier one but the minute keeps the
// position where it first appeared. Label is "HH_MM_SS"; payload is
// prefix+filename. Names with fewer than four fields are skipped.
func MinuteImageOptions(files []string, prefix string) []menu.Option {
	var order []string
	latest := make(map[string]string)
	for _, f := range files {
		fields := strings.Split(f, "_")
		if len(fields) < 4 {
			continue
		}
		minute := fields[2]
		if _, ok := latest[minute]; !ok {
			order = append(order, minute)
		}
		latest[minute] = f
	}

	opts := make([]menu.Option, 0, len(order))
	for _, minute := range order {
		f := latest[minute]
		fields := strings.Split(f, "_")
		opts = append(opts, menu.Option{
			Label:   strings.Join(fields[1:4], "_"),
			Payload: prefix + f,
		})
	}
	return opts
}
