package gateway

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rollcam/rollcam/common/version"
)

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	BuildTime   string    `json:"build_time"`
	StartedAt   time.Time `json:"started_at"`
	UptimeSecs  float64   `json:"uptime_seconds"`
	Machines    int       `json:"machines"`
	MemberCount int       `json:"member_count"`
	AuditCount  int       `json:"audit_count"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	resp := statusResponse{
		Status:     "ok",
		Version:    version.Version,
		Commit:     version.GitCommit,
		BuildTime:  version.BuildTime,
		StartedAt:  s.startedAt,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		Machines:   s.cfg.Registry.Len(),
	}
	if s.cfg.Status != nil {
		if n, err := s.cfg.Status.MemberCount(ctx); err == nil {
			resp.MemberCount = n
		}
		if n, err := s.cfg.Status.AuditCount(ctx); err == nil {
			resp.AuditCount = n
		}
	}
	return c.JSON(http.StatusOK, resp)
}
