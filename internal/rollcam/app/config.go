package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/rollcam/rollcam/common/environment"
	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/gateway"
	"github.com/rollcam/rollcam/internal/rollcam/listing"
	"github.com/rollcam/rollcam/internal/rollcam/matrix"
	"github.com/rollcam/rollcam/internal/rollcam/members"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	// MachinesFile is the YAML machine registry.
	MachinesFile string
	// Location is the archive's local zone used for the freshness window.
	Location *time.Location
	Matrix   matrix.Config
	// NotifyRoomID receives POST /notify pushes. Empty disables the endpoint.
	NotifyRoomID string
	// AuditRoomID is an optional Matrix room where operators see stale,
	// error and registration events.
	AuditRoomID string

	Fetch listing.HTTPOptions
	S3    listing.S3Options

	// HTTPAddr is the TCP address for the gateway (e.g. ":8080"). When
	// empty the gateway is disabled.
	HTTPAddr         string
	WebhookSecret    string
	WebhookRateLimit int
	NotifyJWTSecret  string

	// KafkaBrokers enables shipping audit events to KafkaTopic.
	KafkaBrokers []string
	KafkaTopic   string

	MembersRequired    bool
	RegistrationPrefix string

	LogLevel  string
	LogFormat string
}

// LoadConfig reads the configuration from environment variables. Every
// malformed variable is reported in the returned error.
func LoadConfig() (*Config, error) {
	env := environment.New()
	fetchTimeout := env.Timeout("FETCH_TIMEOUT", listing.DefaultTimeout)
	cfg := &Config{
		DatabasePath: env.String("DATABASE_PATH", "./rollcam.db"),
		MachinesFile: env.String("MACHINES_FILE", "./machines.yaml"),
		Location:     env.Location("ARCHIVE_TIMEZONE", commands.DefaultTimezone),
		Matrix: matrix.Config{
			Homeserver:   env.String("MATRIX_HOMESERVER", ""),
			UserID:       env.String("MATRIX_USER_ID", ""),
			AccessToken:  env.String("MATRIX_ACCESS_TOKEN", ""),
			Rooms:        env.List("MATRIX_ROOMS"),
			FetchTimeout: fetchTimeout,
		},
		NotifyRoomID: env.String("MATRIX_NOTIFY_ROOM", ""),
		AuditRoomID:  env.String("MATRIX_AUDIT_ROOM", ""),
		Fetch: listing.HTTPOptions{
			Timeout:            fetchTimeout,
			InsecureSkipVerify: env.Bool("FETCH_INSECURE_TLS", false),
		},
		S3: listing.S3Options{
			Region:    env.String("S3_REGION", ""),
			Anonymous: env.Bool("S3_ANONYMOUS", false),
		},
		HTTPAddr:           env.String("HTTP_ADDR", ""),
		WebhookSecret:      env.String("WEBHOOK_SECRET", ""),
		WebhookRateLimit:   env.NonNegativeInt("WEBHOOK_RATE_LIMIT", gateway.DefaultRateLimit),
		NotifyJWTSecret:    env.String("NOTIFY_JWT_SECRET", ""),
		KafkaBrokers:       env.List("KAFKA_BROKERS"),
		KafkaTopic:         env.String("KAFKA_TOPIC", "rollcam.audit"),
		MembersRequired:    env.Bool("MEMBERS_REQUIRED", false),
		RegistrationPrefix: env.String("REGISTRATION_PREFIX", members.DefaultPrefix),
		LogLevel:           env.String("LOG_LEVEL", "info"),
		LogFormat:          env.String("LOG_FORMAT", "text"),
	}
	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// MatrixEnabled reports whether the Matrix transport is configured.
func (c *Config) MatrixEnabled() bool {
	return c.Matrix.Homeserver != ""
}

// Validate checks the settings needed by `rollcam serve`.
func (c *Config) Validate() error {
	var errs []error
	if c.MatrixEnabled() {
		if c.Matrix.UserID == "" {
			errs = append(errs, errors.New("MATRIX_USER_ID is required"))
		}
		if c.Matrix.AccessToken == "" {
			errs = append(errs, errors.New("MATRIX_ACCESS_TOKEN is required"))
		}
		if len(c.Matrix.Rooms) == 0 {
			errs = append(errs, errors.New("MATRIX_ROOMS is required"))
		}
	} else if c.HTTPAddr == "" {
		errs = append(errs, errors.New("either MATRIX_HOMESERVER or HTTP_ADDR must be set"))
	}
	if c.HTTPAddr != "" {
		if c.WebhookSecret == "" {
			errs = append(errs, errors.New("WEBHOOK_SECRET is required when HTTP_ADDR is set"))
		}
		if c.MatrixEnabled() && c.NotifyRoomID != "" && c.NotifyJWTSecret == "" {
			errs = append(errs, errors.New("NOTIFY_JWT_SECRET is required when HTTP_ADDR and MATRIX_NOTIFY_ROOM are set"))
		}
	}
	if c.WebhookRateLimit < 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_RATE_LIMIT must not be negative, got %d", c.WebhookRateLimit))
	}
	return errors.Join(errs...)
}

// logFields is the redacted configuration summary logged at startup.
func (c *Config) logFields() map[string]any {
	return map[string]any{
		"database_path":     c.DatabasePath,
		"machines_file":     c.MachinesFile,
		"timezone":          c.Location.String(),
		"matrix_homeserver": c.Matrix.Homeserver,
		"matrix_user_id":    c.Matrix.UserID,
		"matrix_rooms":      c.Matrix.Rooms,
		"access_token":      c.Matrix.AccessToken,
		"notify_room":       c.NotifyRoomID,
		"audit_room":        c.AuditRoomID,
		"http_addr":         c.HTTPAddr,
		"webhook_secret":    c.WebhookSecret,
		"notify_jwt_secret": c.NotifyJWTSecret,
		"kafka_brokers":     c.KafkaBrokers,
		"members_required":  c.MembersRequired,
		"insecure_tls":      c.Fetch.InsecureSkipVerify,
	}
}
