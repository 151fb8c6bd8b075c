// Package environment reads typed settings from environment variables.
//
// A Reader falls back to the default when a variable is unset or empty. A
// variable that is set but malformed is recorded instead of silently replaced,
// and Err reports every such variable at once so a typo in a deployment fails
// at startup rather than running with a surprising default.
package environment

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database for minimal containers
)

// Reader looks variables up through lookup and accumulates parse errors.
type Reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

// New returns a Reader over the process environment.
func New() *Reader {
	return &Reader{lookup: os.LookupEnv}
}

// FromMap returns a Reader over vars, for tests and tooling.
func FromMap(vars map[string]string) *Reader {
	return &Reader{lookup: func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}}
}

func (r *Reader) raw(name string) string {
	v, _ := r.lookup(name)
	return strings.TrimSpace(v)
}

func (r *Reader) fail(name, value, want string, err error) {
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: want %s: %w", name, value, want, err))
		return
	}
	r.errs = append(r.errs, fmt.Errorf("%s=%q: want %s", name, value, want))
}

// Err joins every malformed variable seen so far, or returns nil.
func (r *Reader) Err() error {
	return errors.Join(r.errs...)
}

// String returns the variable, or def when it is unset or empty.
func (r *Reader) String(name, def string) string {
	if v := r.raw(name); v != "" {
		return v
	}
	return def
}

// Bool parses the variable with strconv.ParseBool.
func (r *Reader) Bool(name string, def bool) bool {
	v := r.raw(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, v, "a boolean", nil)
		return def
	}
	return b
}

// NonNegativeInt parses the variable as a decimal integer >= 0.
func (r *Reader) NonNegativeInt(name string, def int) int {
	v := r.raw(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		r.fail(name, v, "a non-negative integer", nil)
		return def
	}
	return n
}

// Timeout parses the variable as a positive time.Duration such as "10s".
func (r *Reader) Timeout(name string, def time.Duration) time.Duration {
	v := r.raw(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail(name, v, "a positive duration like 10s", nil)
		return def
	}
	return d
}

// List splits the variable on commas, trimming whitespace and dropping empty
// elements. An unset variable gives nil.
func (r *Reader) List(name string) []string {
	var out []string
	for _, p := range strings.Split(r.raw(name), ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Location loads the IANA time zone named by the variable, defaulting to
// defZone. An unknown zone is an error because it would shift every hour
// window computed in it.
func (r *Reader) Location(name, defZone string) *time.Location {
	zone := r.String(name, defZone)
	loc, err := time.LoadLocation(zone)
	if err != nil {
		r.fail(name, zone, "an IANA time zone", err)
		return time.UTC
	}
	return loc
}
