// Package quality decides whether a finished recording holds enough data to
// be worth analyzing.
package quality

import (
	"fmt"

	"github.com/cvacare/gaitsession/internal/apperrors"
)

// Policy holds the gate thresholds.
type Policy struct {
	// MinSamples is the hard floor on the smaller of the two sample counts.
	MinSamples int
	// MinSeconds is the soft floor on recording length.
	MinSeconds int
}

// DefaultPolicy returns the thresholds the analysis service was tuned for.
func DefaultPolicy() Policy {
	return Policy{MinSamples: 10, MinSeconds: 10}
}

// Verdict is the outcome of the gate.
type Verdict int

const (
	Accepted Verdict = iota
	SoftWarning
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case SoftWarning:
		return "soft_warning"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Option is a follow-up the user may pick after a soft warning.
type Option string

const (
	RecordAgain   Option = "record_again"
	AnalyzeAnyway Option = "analyze_anyway"
)

// Decision is the full gate result.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	// Reason is nil when accepted, otherwise apperrors.ErrInsufficientSamples
	// or apperrors.ErrTooShort.
	Reason  error    `json:"-"`
	Options []Option `json:"options,omitempty"`
}

// Evaluate applies policy to a finished recording. The sample floor is
// checked before the duration floor: a recording with too few samples is
// rejected no matter how long it ran.
func Evaluate(policy Policy, accelCount, gyroCount, elapsedSeconds int) Decision {
	if min(accelCount, gyroCount) < policy.MinSamples {
		return Decision{Verdict: Rejected, Reason: apperrors.ErrInsufficientSamples}
	}
	if elapsedSeconds < policy.MinSeconds {
		return Decision{
			Verdict: SoftWarning,
			Reason:  apperrors.ErrTooShort,
			Options: []Option{RecordAgain, AnalyzeAnyway},
		}
	}
	return Decision{Verdict: Accepted}
}

// Allows reports whether the decision offers opt.
func (d Decision) Allows(opt Option) bool {
	for _, o := range d.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Grade labels the amount of captured data the same way the analysis
// service reports data_quality.
type Grade string

const (
	Poor      Grade = "poor"
	Fair      Grade = "fair"
	Good      Grade = "good"
	Excellent Grade = "excellent"
)

// GradeOf grades a recording by the smaller of its two sample counts.
func GradeOf(accelCount, gyroCount int) Grade {
	n := min(accelCount, gyroCount)
	switch {
	case n < 50:
		return Poor
	case n < 100:
		return Fair
	case n < 200:
		return Good
	default:
		return Excellent
	}
}
