// Package alerts manages security alerts raised for anomalous logins.
//
// An alert is advisory: it records that scoring found something unusual,
// carries the full score and login context in its metadata, and waits for an
// operator to acknowledge and resolve it. Alert creation is best-effort —
// a failed insert is logged and dropped, never surfaced to the login flow.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/loginguard/internal/anomaly"
	"github.com/mbd888/loginguard/internal/audit"
	"github.com/mbd888/loginguard/internal/idgen"
	"github.com/mbd888/loginguard/internal/metrics"
	"github.com/mbd888/loginguard/internal/traces"
)

// TypeAnomalousLogin is the alert type raised by the anomaly detector.
const TypeAnomalousLogin = "anomalous_login"

// Status is the alert lifecycle state.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Errors
var (
	ErrAlertNotFound     = errors.New("alert not found")
	ErrInvalidTransition = errors.New("invalid alert status transition")
)

// Alert is one security alert.
type Alert struct {
	ID             string         `json:"id"`
	PrincipalID    string         `json:"principalId"`
	AlertType      string         `json:"alertType"`
	Severity       string         `json:"severity"` // mirrors the risk level
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time     `json:"resolvedAt,omitempty"`
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	PrincipalID string
	Status      Status
	Limit       int
}

// Store persists security alerts.
type Store interface {
	Create(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	List(ctx context.Context, filter ListFilter) ([]*Alert, error)
	// UpdateStatus sets the lifecycle state and stamps the matching
	// transition timestamp.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
}

// Service creates alerts from anomaly scores and drives their lifecycle.
type Service struct {
	store  Store
	audit  *audit.Writer
	logger *slog.Logger
}

// NewService creates an alert service. The audit writer may be nil.
func NewService(store Store, auditWriter *audit.Writer, logger *slog.Logger) *Service {
	return &Service{store: store, audit: auditWriter, logger: logger}
}

// CreateFromScore raises an alert for a scored login. Best-effort: insert
// and audit failures are logged, never returned — the decision that
// triggered the alert has already been made and must stand.
func (s *Service) CreateFromScore(ctx context.Context, score *anomaly.Score, login *anomaly.LoginContext) *Alert {
	ctx, span := traces.StartSpan(ctx, "alerts.create", traces.PrincipalID(score.PrincipalID))
	defer span.End()

	alert := &Alert{
		ID:          idgen.WithPrefix("alert_"),
		PrincipalID: score.PrincipalID,
		AlertType:   TypeAnomalousLogin,
		Severity:    string(score.RiskLevel),
		Title:       fmt.Sprintf("Anomalous login detected (%s risk)", score.RiskLevel),
		Description: fmt.Sprintf("Login attempt scored %d/120.", score.TotalScore),
		Metadata: map[string]any{
			"score":      score,
			"ip_address": login.IPAddress,
			"user_agent": login.UserAgent,
			"geo":        login.Geo,
		},
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}

	if err := s.store.Create(ctx, alert); err != nil {
		metrics.StoreErrors.WithLabelValues("alert_create").Inc()
		s.logger.Error("failed to create security alert",
			"principal_id", score.PrincipalID,
			"severity", alert.Severity,
			"error", err,
		)
		return nil
	}

	metrics.AlertsCreated.WithLabelValues(alert.Severity).Inc()
	span.SetAttributes(traces.AlertID(alert.ID))

	if s.audit != nil {
		s.audit.Record(audit.Event{
			EventType:   "security_alert_created",
			Severity:    alert.Severity,
			PrincipalID: alert.PrincipalID,
			Metadata: map[string]any{
				"alert_id":    alert.ID,
				"alert_type":  alert.AlertType,
				"total_score": score.TotalScore,
				"reasons":     score.Reasons,
			},
		})
	}

	return alert
}

// Acknowledge moves an active alert to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, id string) (*Alert, error) {
	return s.transition(ctx, id, StatusAcknowledged)
}

// Resolve moves an active or acknowledged alert to resolved.
func (s *Service) Resolve(ctx context.Context, id string) (*Alert, error) {
	return s.transition(ctx, id, StatusResolved)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*Alert, error) {
	alert, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !validTransition(alert.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, to)
	}

	now := time.Now()
	if err := s.store.UpdateStatus(ctx, id, to, now); err != nil {
		return nil, err
	}

	alert.Status = to
	switch to {
	case StatusAcknowledged:
		alert.AcknowledgedAt = &now
	case StatusResolved:
		alert.ResolvedAt = &now
	}
	return alert, nil
}

func validTransition(from, to Status) bool {
	switch to {
	case StatusAcknowledged:
		return from == StatusActive
	case StatusResolved:
		return from == StatusActive || from == StatusAcknowledged
	default:
		return false
	}
}
