package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbd888/loginguard/internal/idgen"
	"github.com/mbd888/loginguard/internal/metrics"
	"github.com/mbd888/loginguard/internal/retry"
)

const (
	recorderMaxAttempts = 3
	recorderBaseDelay   = 50 * time.Millisecond
)

// Recorder appends login-history records best-effort: failures are retried a
// few times, then logged and dropped. A broken history store must never stop
// a login flow, so RecordAttempt has no error return.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger, timeout time.Duration) *Recorder {
	return &Recorder{store: store, logger: logger, timeout: timeout}
}

// RecordAttempt persists one login attempt. riskScore may be nil for
// attempts that were not scored (e.g. failed password checks).
func (r *Recorder) RecordAttempt(ctx context.Context, principalID string, success bool, ipAddress, userAgent, country, city string, riskScore *int) {
	rec := &Record{
		ID:          idgen.WithPrefix("login_"),
		PrincipalID: principalID,
		Success:     success,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Country:     country,
		City:        city,
		RiskScore:   riskScore,
		CreatedAt:   time.Now(),
	}

	// Detach from the caller's deadline: the login response should not wait
	// on history writes, but the write still gets its own bound.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout*recorderMaxAttempts)
	defer cancel()

	err := retry.Do(wctx, recorderMaxAttempts, recorderBaseDelay, func() error {
		c, cancel := context.WithTimeout(wctx, r.timeout)
		defer cancel()
		return r.store.Append(c, rec)
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("history_append").Inc()
		r.logger.Error("failed to record login attempt",
			"principal_id", principalID,
			"success", success,
			"error", err,
		)
	}
}
