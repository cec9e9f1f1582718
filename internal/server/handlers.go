package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/loginguard/internal/alerts"
	"github.com/mbd888/loginguard/internal/anomaly"
	"github.com/mbd888/loginguard/internal/audit"
	"github.com/mbd888/loginguard/internal/logging"
	"github.com/mbd888/loginguard/internal/validation"
)

const defaultListLimit = 50

// -----------------------------------------------------------------------------
// Scoring
// -----------------------------------------------------------------------------

// scoreRequest is the body for POST /v1/score
type scoreRequest struct {
	PrincipalID string `json:"principalId"`
	IPAddress   string `json:"ipAddress"`
	UserAgent   string `json:"userAgent"`
	Geo         *struct {
		Country string `json:"country"`
		City    string `json:"city"`
	} `json:"geo"`
	// Record controls whether this attempt is appended to the principal's
	// login history as a successful login carrying the computed score.
	Record bool `json:"record"`
}

// scoreLogin handles POST /v1/score
// Scores the attempt, evaluates the blocking policy, raises a security alert
// when risk is at least medium, and optionally records the attempt.
func (s *Server) scoreLogin(c *gin.Context) {
	ctx := c.Request.Context()

	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	validators := []func() *validation.ValidationError{
		validation.Required("principalId", req.PrincipalID),
		validation.ValidPrincipal("principalId", req.PrincipalID),
		validation.MaxLength("ipAddress", req.IPAddress, 64),
		validation.MaxLength("userAgent", req.UserAgent, 512),
	}
	if req.Geo != nil {
		validators = append(validators,
			validation.MaxLength("geo.country", req.Geo.Country, 100),
			validation.MaxLength("geo.city", req.Geo.City, 100),
		)
	}
	if errs := validation.Validate(validators...); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	login := &anomaly.LoginContext{
		PrincipalID: req.PrincipalID,
		IPAddress:   validation.SanitizeString(req.IPAddress, 64),
		UserAgent:   validation.SanitizeString(req.UserAgent, 512),
	}
	if req.Geo != nil {
		login.Geo = &anomaly.Geo{
			Country: validation.SanitizeString(req.Geo.Country, 100),
			City:    validation.SanitizeString(req.Geo.City, 100),
		}
	}

	score := s.detector.ScoreLogin(ctx, login)
	decision := s.detector.ShouldBlock(ctx, req.PrincipalID, score)

	var alert *alerts.Alert
	if score.RiskLevel != anomaly.RiskLow {
		alert = s.alertService.CreateFromScore(ctx, score, login)
	}

	if req.Record {
		country, city := "", ""
		if login.Geo != nil {
			country, city = login.Geo.Country, login.Geo.City
		}
		total := score.TotalScore
		s.recorder.RecordAttempt(ctx, req.PrincipalID, true,
			login.IPAddress, login.UserAgent, country, city, &total)
	}

	resp := gin.H{
		"score":    score,
		"decision": decision,
	}
	if alert != nil {
		resp["alertId"] = alert.ID
	}
	c.JSON(http.StatusOK, resp)
}

// -----------------------------------------------------------------------------
// Login recording
// -----------------------------------------------------------------------------

// recordLoginRequest is the body for POST /v1/logins
type recordLoginRequest struct {
	PrincipalID string `json:"principalId"`
	Success     *bool  `json:"success" binding:"required"`
	IPAddress   string `json:"ipAddress"`
	UserAgent   string `json:"userAgent"`
	Country     string `json:"country"`
	City        string `json:"city"`
	RiskScore   *int   `json:"riskScore"`
}

// recordLogin handles POST /v1/logins
func (s *Server) recordLogin(c *gin.Context) {
	var req recordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("principalId", req.PrincipalID),
		validation.ValidPrincipal("principalId", req.PrincipalID),
		validation.MaxLength("ipAddress", req.IPAddress, 64),
		validation.MaxLength("userAgent", req.UserAgent, 512),
		validation.MaxLength("country", req.Country, 100),
		validation.MaxLength("city", req.City, 100),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	s.recorder.RecordAttempt(c.Request.Context(), req.PrincipalID, *req.Success,
		validation.SanitizeString(req.IPAddress, 64),
		validation.SanitizeString(req.UserAgent, 512),
		validation.SanitizeString(req.Country, 100),
		validation.SanitizeString(req.City, 100),
		req.RiskScore,
	)

	// Recording is best-effort; the recorder never surfaces write errors.
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// -----------------------------------------------------------------------------
// Per-principal views
// -----------------------------------------------------------------------------

// getHistory handles GET /v1/principals/:id/history
func (s *Server) getHistory(c *gin.Context) {
	ctx := c.Request.Context()
	principalID := c.Param("id")
	limit := queryInt(c, "limit", defaultListLimit)

	records, err := s.historyStore.ListByPrincipal(ctx, principalID, limit)
	if err != nil {
		logging.L(ctx).Error("failed to list login history", "principal_id", principalID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list login history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"principalId": principalID,
		"records":     records,
		"count":       len(records),
	})
}

// getPattern handles GET /v1/principals/:id/pattern
func (s *Server) getPattern(c *gin.Context) {
	ctx := c.Request.Context()
	principalID := c.Param("id")

	pattern, err := s.detector.Profiler().Compute(ctx, principalID)
	if err != nil {
		logging.L(ctx).Error("failed to compute pattern", "principal_id", principalID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute login pattern",
		})
		return
	}

	if pattern == nil {
		c.JSON(http.StatusOK, gin.H{
			"principalId": principalID,
			"sampleSize":  0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"principalId":        principalID,
		"typicalHours":       pattern.HourList(),
		"typicalCountries":   pattern.CountryList(),
		"knownDevices":       len(pattern.Devices),
		"avgIntervalSeconds": pattern.AvgInterval.Seconds(),
		"loginsPerDay":       pattern.LoginsPerDay,
		"sampleSize":         pattern.SampleSize,
	})
}

// getSettings handles GET /v1/principals/:id/settings
// Principals without a stored record get the defaults, unpersisted — the same
// view the blocking policy takes of them.
func (s *Server) getSettings(c *gin.Context) {
	ctx := c.Request.Context()
	principalID := c.Param("id")

	settings, err := s.settingsStore.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, anomaly.ErrSettingsNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"settings": s.defaultSettings(principalID),
				"stored":   false,
			})
			return
		}
		logging.L(ctx).Error("failed to get settings", "principal_id", principalID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get detection settings",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"settings": settings,
		"stored":   true,
	})
}

// settingsRequest is the body for PUT /v1/principals/:id/settings
type settingsRequest struct {
	PatternDetection   *bool  `json:"patternDetection"`
	VelocityChecks     *bool  `json:"velocityChecks"`
	LocationAnalysis   *bool  `json:"locationAnalysis"`
	DeviceChecks       *bool  `json:"deviceChecks"`
	Sensitivity        string `json:"sensitivity"`
	AutoBlockThreshold *int   `json:"autoBlockThreshold"`
}

// putSettings handles PUT /v1/principals/:id/settings
// Fields absent from the body keep their defaults (or current stored values).
func (s *Server) putSettings(c *gin.Context) {
	ctx := c.Request.Context()
	principalID := c.Param("id")

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	// Start from current settings (or defaults) so partial updates work.
	settings, err := s.settingsStore.Get(ctx, principalID)
	if err != nil {
		if !errors.Is(err, anomaly.ErrSettingsNotFound) {
			logging.L(ctx).Error("failed to get settings", "principal_id", principalID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to get detection settings",
			})
			return
		}
		settings = s.defaultSettings(principalID)
	}

	if req.PatternDetection != nil {
		settings.PatternDetection = *req.PatternDetection
	}
	if req.VelocityChecks != nil {
		settings.VelocityChecks = *req.VelocityChecks
	}
	if req.LocationAnalysis != nil {
		settings.LocationAnalysis = *req.LocationAnalysis
	}
	if req.DeviceChecks != nil {
		settings.DeviceChecks = *req.DeviceChecks
	}
	if req.Sensitivity != "" {
		settings.Sensitivity = anomaly.Sensitivity(req.Sensitivity)
	}
	if req.AutoBlockThreshold != nil {
		settings.AutoBlockThreshold = *req.AutoBlockThreshold
	}

	if err := settings.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_settings",
			"message": err.Error(),
		})
		return
	}

	if err := s.settingsStore.Upsert(ctx, settings); err != nil {
		logging.L(ctx).Error("failed to upsert settings", "principal_id", principalID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to save detection settings",
		})
		return
	}

	s.auditWriter.Record(audit.Event{
		EventType:   "detection_settings_updated",
		Severity:    "low",
		PrincipalID: principalID,
		Metadata: map[string]any{
			"sensitivity":          settings.Sensitivity,
			"auto_block_threshold": settings.AutoBlockThreshold,
		},
	})

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

// listAlerts handles GET /v1/alerts
func (s *Server) listAlerts(c *gin.Context) {
	ctx := c.Request.Context()

	filter := alerts.ListFilter{
		PrincipalID: c.Query("principal_id"),
		Status:      alerts.Status(c.Query("status")),
		Limit:       queryInt(c, "limit", defaultListLimit),
	}

	list, err := s.alertStore.List(ctx, filter)
	if err != nil {
		logging.L(ctx).Error("failed to list alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list alerts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"count":  len(list),
	})
}

// acknowledgeAlert handles POST /v1/alerts/:id/acknowledge
func (s *Server) acknowledgeAlert(c *gin.Context) {
	s.transitionAlert(c, s.alertService.Acknowledge)
}

// resolveAlert handles POST /v1/alerts/:id/resolve
func (s *Server) resolveAlert(c *gin.Context) {
	s.transitionAlert(c, s.alertService.Resolve)
}

func (s *Server) transitionAlert(c *gin.Context, fn func(ctx context.Context, id string) (*alerts.Alert, error)) {
	ctx := c.Request.Context()
	id := c.Param("id")

	alert, err := fn(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, alerts.ErrAlertNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "alert_not_found",
				"message": "No alert with this id",
			})
		case errors.Is(err, alerts.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "invalid_transition",
				"message": err.Error(),
			})
		default:
			logging.L(ctx).Error("failed to transition alert", "alert_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to update alert",
			})
		}
		return
	}

	s.auditWriter.Record(audit.Event{
		EventType:   "security_alert_" + string(alert.Status),
		Severity:    alert.Severity,
		PrincipalID: alert.PrincipalID,
		Metadata:    map[string]any{"alert_id": alert.ID},
	})

	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// -----------------------------------------------------------------------------
// Audit
// -----------------------------------------------------------------------------

// listAuditEvents handles GET /v1/audit/events
func (s *Server) listAuditEvents(c *gin.Context) {
	ctx := c.Request.Context()

	filter := audit.ListFilter{
		PrincipalID: c.Query("principal_id"),
		EventType:   c.Query("event_type"),
		Limit:       queryInt(c, "limit", defaultListLimit),
	}

	events, err := s.auditStore.List(ctx, filter)
	if err != nil {
		logging.L(ctx).Error("failed to list audit events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list audit events",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// defaultSettings is the unstored settings view for a principal, seeded from
// the service-wide defaults (DEFAULT_SENSITIVITY, DEFAULT_AUTO_BLOCK_THRESHOLD).
func (s *Server) defaultSettings(principalID string) *anomaly.Settings {
	settings := anomaly.DefaultSettings(principalID)
	settings.Sensitivity = anomaly.Sensitivity(s.cfg.DefaultSensitivity)
	settings.AutoBlockThreshold = s.cfg.DefaultThreshold
	return settings
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}
