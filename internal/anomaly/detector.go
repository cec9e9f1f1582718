package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/loginguard/internal/history"
	"github.com/mbd888/loginguard/internal/metrics"
	"github.com/mbd888/loginguard/internal/traces"
)

// DefaultStoreTimeout bounds each individual store call made while scoring,
// so a slow data layer cannot stall the login flow indefinitely.
const DefaultStoreTimeout = 3 * time.Second

// Detector scores login attempts and evaluates the blocking policy.
//
// It holds no state between calls: every score is recomputed from the
// history store at call time. Concurrent calls for the same principal are
// not serialized; two simultaneous logins may each be scored against a
// history snapshot that does not yet include the other. That weak
// consistency is accepted — scoring is advisory, and the alternative
// (per-principal locking across network calls) would put a lock on the
// login hot path.
type Detector struct {
	history  history.Store
	settings SettingsStore
	profiler *Profiler
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewDetector creates a detector over the given stores.
func NewDetector(historyStore history.Store, settingsStore SettingsStore, logger *slog.Logger) *Detector {
	return &Detector{
		history:  historyStore,
		settings: settingsStore,
		profiler: NewProfiler(historyStore, 100),
		logger:   logger,
		timeout:  DefaultStoreTimeout,
		now:      time.Now,
	}
}

// WithSampleSize overrides how many historical logins feed the pattern.
func (d *Detector) WithSampleSize(n int) *Detector {
	d.profiler = NewProfiler(d.history, n)
	return d
}

// WithStoreTimeout overrides the per-call store timeout.
func (d *Detector) WithStoreTimeout(t time.Duration) *Detector {
	d.timeout = t
	return d
}

// WithNow overrides the clock (for tests).
func (d *Detector) WithNow(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Profiler exposes the underlying profiler (for the pattern inspection API).
func (d *Detector) Profiler() *Profiler {
	return d.profiler
}

// ScoreLogin evaluates one login attempt against the principal's pattern.
//
// A principal with no successful history short-circuits to a zero score at
// low risk: first-time logins are never penalized. Store failures on any
// sub-check degrade that check to zero rather than failing the call.
func (d *Detector) ScoreLogin(ctx context.Context, in *LoginContext) *Score {
	start := time.Now()
	defer func() {
		metrics.ScoreDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, span := traces.StartSpan(ctx, "anomaly.score", traces.PrincipalID(in.PrincipalID))
	defer span.End()

	score := &Score{
		PrincipalID: in.PrincipalID,
		EvaluatedAt: d.now(),
	}

	pattern := d.patternOrNil(ctx, in.PrincipalID)
	if pattern == nil {
		score.RiskLevel = RiskLow
		score.Reasons = []string{"insufficient login history to establish a pattern"}
		metrics.LoginsScored.WithLabelValues(string(score.RiskLevel)).Inc()
		span.SetAttributes(traces.RiskScore(0), traces.RiskLevel(string(RiskLow)))
		return score
	}

	// Reasons keep the check order: time, location, device, velocity, behavior.
	if pts, reason := d.timeCheck(pattern); pts > 0 {
		score.TimeScore = pts
		score.Reasons = append(score.Reasons, reason)
	}

	if pts, reason := d.locationCheck(pattern, in.Geo); pts > 0 {
		score.LocationScore = pts
		score.Reasons = append(score.Reasons, reason)
	}

	if pts, reason := d.deviceCheck(pattern, in.UserAgent); pts > 0 {
		score.DeviceScore = pts
		score.Reasons = append(score.Reasons, reason)
	}

	if pts := d.velocityCheck(ctx, in.PrincipalID, in.Geo); pts > 0 {
		score.VelocityScore = pts
		score.Reasons = append(score.Reasons, "impossible travel detected")
	}

	if pts, reason := d.behaviorCheck(ctx, in.PrincipalID); pts > 0 {
		score.BehaviorScore = pts
		if reason != "" {
			score.Reasons = append(score.Reasons, reason)
		}
	}

	score.TotalScore = score.TimeScore + score.LocationScore + score.DeviceScore +
		score.VelocityScore + score.BehaviorScore
	score.RiskLevel = levelFor(score.TotalScore)

	metrics.LoginsScored.WithLabelValues(string(score.RiskLevel)).Inc()
	span.SetAttributes(traces.RiskScore(score.TotalScore), traces.RiskLevel(string(score.RiskLevel)))

	return score
}

// timeCheck scores how far the current hour is from the pattern's typical
// hours. Inside the set scores zero; outside, the tiers are >6 hours away
// and (3,6] hours away from the nearest typical hour.
func (d *Detector) timeCheck(pattern *Pattern) (int, string) {
	hour := d.now().Hour()
	if pattern.HasHour(hour) {
		return 0, ""
	}

	switch dist := pattern.NearestHourDistance(hour); {
	case dist > hourDistanceMajor:
		return timeScoreMajor, "unusual login time"
	case dist > hourDistanceMinor:
		return timeScoreMinor, "slightly unusual login time"
	default:
		return 0, ""
	}
}

// locationCheck scores a country never seen in the pattern. All or nothing:
// a country seen even once in history scores zero.
func (d *Detector) locationCheck(pattern *Pattern, geo *Geo) (int, string) {
	if geo == nil || geo.Country == "" {
		return 0, ""
	}
	if pattern.HasCountry(geo.Country) {
		return 0, ""
	}
	return locationScore, fmt.Sprintf("new location detected: %s", geo.Country)
}

// deviceCheck scores a client signature that matches none of the pattern's
// known devices.
func (d *Detector) deviceCheck(pattern *Pattern, userAgent string) (int, string) {
	if pattern.KnownDevice(userAgent) {
		return 0, ""
	}
	return deviceScore, "unrecognized device or browser"
}

// velocityCheck is a two-tier impossible-travel heuristic: a different
// country within 2 hours of the last successful login, or a different city
// within 30 minutes. It compares names only — no geographic distance is
// computed. That is a deliberate simplification carried over from the
// original heuristic, not a bug.
func (d *Detector) velocityCheck(ctx context.Context, principalID string, geo *Geo) int {
	if geo == nil || geo.Country == "" {
		return 0
	}

	cctx, cancel := d.callCtx(ctx)
	defer cancel()

	last, err := d.history.LastSuccessful(cctx, principalID)
	if err != nil {
		d.degrade("last_successful", principalID, err)
		return 0
	}
	if last == nil {
		return 0
	}

	elapsed := d.now().Sub(last.CreatedAt)
	if elapsed < velocityCountryWindow && last.Country != "" && last.Country != geo.Country {
		return velocityCountryScore
	}
	if elapsed < velocityCityWindow && geo.City != "" && last.City != "" && last.City != geo.City {
		return velocityCityScore
	}
	return 0
}

// behaviorCheck scores recent failed attempts within the failure window.
// Only the heavy tier (>3 failures) carries a reason string.
func (d *Detector) behaviorCheck(ctx context.Context, principalID string) (int, string) {
	cctx, cancel := d.callCtx(ctx)
	defer cancel()

	count, err := d.history.CountFailedSince(cctx, principalID, d.now().Add(-failureWindow))
	if err != nil {
		d.degrade("count_failed", principalID, err)
		return 0, ""
	}

	switch {
	case count > failureMinorCutoff:
		return behaviorScoreMajor, fmt.Sprintf("%d recent failed login attempts", count)
	case count >= 1:
		return behaviorScoreMinor, ""
	default:
		return 0, ""
	}
}

// patternOrNil is the fail-open wrapper around pattern computation: any
// fetch error is treated the same as "no history".
func (d *Detector) patternOrNil(ctx context.Context, principalID string) *Pattern {
	cctx, cancel := d.callCtx(ctx)
	defer cancel()

	pattern, err := d.profiler.Compute(cctx, principalID)
	if err != nil {
		d.degrade("list_successful", principalID, err)
		return nil
	}
	return pattern
}

// degrade records a store failure that was mapped to a benign default.
func (d *Detector) degrade(op, principalID string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	d.logger.Warn("store call failed, degrading fail-open",
		"op", op,
		"principal_id", principalID,
		"error", err,
	)
}

func (d *Detector) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}
