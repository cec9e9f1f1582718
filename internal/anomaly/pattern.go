package anomaly

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mbd888/loginguard/internal/history"
)

// Pattern is a behavioral baseline derived from a principal's recent
// successful logins. It is recomputed fresh on every scoring call; nothing
// here is cached or persisted.
type Pattern struct {
	Hours     map[int]bool    // distinct login hours (0-23)
	Countries map[string]bool // distinct non-empty country names
	Devices   map[string]bool // distinct non-empty client signatures (full strings)

	// AvgInterval is the mean positive gap between consecutive logins.
	AvgInterval time.Duration
	// LoginsPerDay is the sample size divided by the observed span in days
	// (minimum one day, so same-day bursts don't blow up the rate).
	LoginsPerDay float64
	// SampleSize is how many records the pattern was derived from.
	SampleSize int
}

// HasHour reports whether h is a typical login hour.
func (p *Pattern) HasHour(h int) bool { return p.Hours[h] }

// HasCountry reports whether country is a typical login location.
func (p *Pattern) HasCountry(country string) bool { return p.Countries[country] }

// NearestHourDistance returns the minimum plain |a-b| distance from h to any
// typical hour. Not wrap-around aware. Returns 0 for an empty hour set.
func (p *Pattern) NearestHourDistance(h int) int {
	min := -1
	for typical := range p.Hours {
		d := h - typical
		if d < 0 {
			d = -d
		}
		if min < 0 || d < min {
			min = d
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// KnownDevice reports whether sig looks like one of the pattern's devices:
// it must contain, case-insensitively, the first devicePrefixLen characters
// of at least one known signature.
func (p *Pattern) KnownDevice(sig string) bool {
	lower := strings.ToLower(sig)
	for device := range p.Devices {
		prefix := device
		if len(prefix) > devicePrefixLen {
			prefix = prefix[:devicePrefixLen]
		}
		if strings.Contains(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// HourList returns the typical hours sorted ascending (for API responses).
func (p *Pattern) HourList() []int {
	out := make([]int, 0, len(p.Hours))
	for h := range p.Hours {
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}

// CountryList returns the typical countries sorted (for API responses).
func (p *Pattern) CountryList() []string {
	out := make([]string, 0, len(p.Countries))
	for c := range p.Countries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Profiler derives login patterns from the history store.
type Profiler struct {
	history    history.Store
	sampleSize int
}

// NewProfiler creates a profiler reading up to sampleSize successful logins
// per principal.
func NewProfiler(store history.Store, sampleSize int) *Profiler {
	if sampleSize <= 0 {
		sampleSize = 100
	}
	return &Profiler{history: store, sampleSize: sampleSize}
}

// Compute derives the pattern for a principal from their most recent
// successful logins, newest first. Returns (nil, nil) when the principal has
// no successful history: no pattern means no basis for scoring, and callers
// must treat that as a clean slate rather than an anomaly.
func (p *Profiler) Compute(ctx context.Context, principalID string) (*Pattern, error) {
	recs, err := p.history.ListSuccessful(ctx, principalID, p.sampleSize)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	pattern := &Pattern{
		Hours:      make(map[int]bool),
		Countries:  make(map[string]bool),
		Devices:    make(map[string]bool),
		SampleSize: len(recs),
	}

	for _, rec := range recs {
		pattern.Hours[rec.CreatedAt.Hour()] = true
		if rec.Country != "" {
			pattern.Countries[rec.Country] = true
		}
		if rec.UserAgent != "" {
			pattern.Devices[rec.UserAgent] = true
		}
	}

	// Mean positive gap between adjacent records in fetched (newest-first)
	// order. Non-positive gaps (clock skew, same-instant writes) are skipped.
	var totalGap time.Duration
	validPairs := 0
	for i := 0; i < len(recs)-1; i++ {
		gap := recs[i].CreatedAt.Sub(recs[i+1].CreatedAt)
		if gap > 0 {
			totalGap += gap
			validPairs++
		}
	}
	if validPairs > 0 {
		pattern.AvgInterval = totalGap / time.Duration(validPairs)
	}

	newest := recs[0].CreatedAt
	oldest := recs[len(recs)-1].CreatedAt
	spanDays := newest.Sub(oldest).Hours() / 24
	if spanDays < 1 {
		spanDays = 1
	}
	pattern.LoginsPerDay = float64(len(recs)) / spanDays

	return pattern, nil
}
