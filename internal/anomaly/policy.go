package anomaly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/loginguard/internal/metrics"
)

// Sensitivity tunes how aggressively the blocking policy fires.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Effective-threshold bounds. High sensitivity can never push the threshold
// below the floor (which would block nearly every login); low sensitivity
// can never push it above the cap (which would make blocking unreachable).
const (
	thresholdFloor   = 30
	thresholdCap     = 90
	sensitivityShift = 20
)

// ErrSettingsNotFound is returned by SettingsStore.Get when a principal has
// no settings record.
var ErrSettingsNotFound = errors.New("detection settings not found")

// Settings is the per-principal detection configuration. At most one record
// exists per principal (upsert keyed by principal id).
//
// The four feature toggles are part of the stored schema and the API, but
// scoring currently runs all five checks unconditionally; only Sensitivity
// and AutoBlockThreshold change behavior, and only in the blocking policy.
type Settings struct {
	PrincipalID        string      `json:"principalId"`
	PatternDetection   bool        `json:"patternDetection"`
	VelocityChecks     bool        `json:"velocityChecks"`
	LocationAnalysis   bool        `json:"locationAnalysis"`
	DeviceChecks       bool        `json:"deviceChecks"`
	Sensitivity        Sensitivity `json:"sensitivity"`
	AutoBlockThreshold int         `json:"autoBlockThreshold"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// DefaultSettings returns the settings created on first configuration.
func DefaultSettings(principalID string) *Settings {
	now := time.Now()
	return &Settings{
		PrincipalID:        principalID,
		PatternDetection:   true,
		VelocityChecks:     true,
		LocationAnalysis:   true,
		DeviceChecks:       true,
		Sensitivity:        SensitivityMedium,
		AutoBlockThreshold: 70,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Validate checks field ranges before an upsert.
func (s *Settings) Validate() error {
	if s.PrincipalID == "" {
		return fmt.Errorf("principal id is required")
	}
	if s.AutoBlockThreshold < 0 || s.AutoBlockThreshold > 100 {
		return fmt.Errorf("auto block threshold must be in [0, 100]")
	}
	switch s.Sensitivity {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return nil
	default:
		return fmt.Errorf("invalid sensitivity %q", s.Sensitivity)
	}
}

// SettingsStore persists per-principal detection settings.
type SettingsStore interface {
	// Get returns the settings for a principal, or ErrSettingsNotFound.
	Get(ctx context.Context, principalID string) (*Settings, error)
	// Upsert creates or replaces the settings keyed by principal id.
	Upsert(ctx context.Context, settings *Settings) error
}

// Decision is the blocking policy's verdict on a scored login.
type Decision struct {
	Blocked            bool   `json:"blocked"`
	Reason             string `json:"reason,omitempty"`
	EffectiveThreshold int    `json:"effectiveThreshold,omitempty"`
}

// EffectiveThreshold adjusts a stored threshold by sensitivity: high
// subtracts the shift (floored), low adds it (capped), medium is unchanged.
func EffectiveThreshold(threshold int, sensitivity Sensitivity) int {
	switch sensitivity {
	case SensitivityHigh:
		t := threshold - sensitivityShift
		if t < thresholdFloor {
			t = thresholdFloor
		}
		return t
	case SensitivityLow:
		t := threshold + sensitivityShift
		if t > thresholdCap {
			t = thresholdCap
		}
		return t
	default:
		return threshold
	}
}

// ShouldBlock maps a score onto a block/allow decision using the
// principal's settings. Principals without settings are never blocked, and
// a settings fetch failure is treated the same way: absence of
// configuration must not lock anyone out.
func (d *Detector) ShouldBlock(ctx context.Context, principalID string, score *Score) Decision {
	cctx, cancel := d.callCtx(ctx)
	defer cancel()

	settings, err := d.settings.Get(cctx, principalID)
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			d.degrade("settings_get", principalID, err)
		}
		metrics.BlockDecisions.WithLabelValues("allowed").Inc()
		return Decision{Blocked: false}
	}

	effective := EffectiveThreshold(settings.AutoBlockThreshold, settings.Sensitivity)

	if score.TotalScore >= effective {
		metrics.BlockDecisions.WithLabelValues("blocked").Inc()
		return Decision{
			Blocked:            true,
			EffectiveThreshold: effective,
			Reason: fmt.Sprintf("anomaly score %d at or above threshold %d: %s",
				score.TotalScore, effective, strings.Join(score.Reasons, "; ")),
		}
	}

	metrics.BlockDecisions.WithLabelValues("allowed").Inc()
	return Decision{Blocked: false, EffectiveThreshold: effective}
}
