// Package anomaly implements login anomaly scoring and adaptive blocking.
//
// Every login attempt is evaluated against the principal's behavioral
// pattern (derived from their recent successful logins) across 5 additive
// checks: time-of-day, location, device, travel velocity, and recent
// failures. Sub-scores sum to a 0-120 total mapped onto a four-level risk
// ordinal. A per-principal blocking policy then compares the total against a
// sensitivity-adjusted threshold.
//
// The package is deliberately fail-open: missing history, missing settings,
// or store errors always degrade to the most permissive outcome, so a broken
// data layer can never lock users out.
package anomaly

import (
	"time"
)

// RiskLevel classifies a total anomaly score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Fixed risk-level thresholds on the total score. Not configurable;
// per-principal tuning happens in the blocking policy, not here.
const (
	criticalThreshold = 70
	highThreshold     = 50
	mediumThreshold   = 30
)

// Sub-score point values. Each check is independent and additive.
const (
	timeScoreMajor = 20 // login hour far from every typical hour
	timeScoreMinor = 10 // login hour moderately far

	locationScore = 30 // country never seen before

	deviceScore = 20 // client signature matches no known device

	velocityCountryScore = 30 // cross-country login within 2 hours
	velocityCityScore    = 15 // cross-city login within 30 minutes

	behaviorScoreMajor = 20 // more than 3 recent failures
	behaviorScoreMinor = 10 // 1-3 recent failures
)

// Check parameters.
const (
	// hourDistanceMajor/Minor tier the distance from the nearest typical
	// hour. The distance is a plain |a-b|, not wrap-around aware: 23 and 0
	// are treated as 23 apart. Preserved as-is from the original heuristic.
	hourDistanceMajor = 6
	hourDistanceMinor = 3

	// devicePrefixLen is how many leading characters of a known signature
	// must appear (case-insensitively) in the current one to match.
	devicePrefixLen = 20

	velocityCountryWindow = 2 * time.Hour
	velocityCityWindow    = 30 * time.Minute

	failureWindow      = 15 * time.Minute
	failureMinorCutoff = 3 // failures above this score behaviorScoreMajor
)

// Geo is best-effort geolocation for a login attempt.
type Geo struct {
	Country string `json:"country"`
	City    string `json:"city,omitempty"`
}

// LoginContext carries the inputs for one scoring call.
type LoginContext struct {
	PrincipalID string `json:"principalId"`
	IPAddress   string `json:"ipAddress"`
	UserAgent   string `json:"userAgent"`
	Geo         *Geo   `json:"geo,omitempty"`
}

// Score is the result of one scoring call.
type Score struct {
	PrincipalID   string    `json:"principalId"`
	TimeScore     int       `json:"timeScore"`
	LocationScore int       `json:"locationScore"`
	DeviceScore   int       `json:"deviceScore"`
	VelocityScore int       `json:"velocityScore"`
	BehaviorScore int       `json:"behaviorScore"`
	TotalScore    int       `json:"totalScore"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	Reasons       []string  `json:"reasons"`
	EvaluatedAt   time.Time `json:"evaluatedAt"`
}

// levelFor maps a total score onto the risk ordinal.
func levelFor(total int) RiskLevel {
	switch {
	case total >= criticalThreshold:
		return RiskCritical
	case total >= highThreshold:
		return RiskHigh
	case total >= mediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}
