package analysis

import (
	"fmt"
	"strings"

	"github.com/cvacare/gaitsession/internal/units"
)

// Level places a metric value in one of three bands, or marks it absent.
type Level int

const (
	NoData Level = iota
	Low
	Mid
	High
)

func (l Level) String() string {
	switch l {
	case NoData:
		return "no_data"
	case Low:
		return "low"
	case Mid:
		return "mid"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Band describes how one metric is split into three levels. Values below
// LowBelow are Low, values below MidBelow are Mid, the rest are High.
type Band struct {
	Metric   string
	Subject  string // as it reads in a sentence
	LowBelow float64
	MidBelow float64
	Labels   [3]string // low, mid, high
}

// Bands are the fixed thresholds for every interpreted metric, in the order
// they appear in the narrative.
var Bands = []Band{
	{Metric: "cadence", Subject: "cadence", LowBelow: 80, MidBelow: 100, Labels: [3]string{"slow", "normal", "fast"}},
	{Metric: "velocity", Subject: "walking speed", LowBelow: 0.8, MidBelow: 1.2, Labels: [3]string{"slow", "average", "fast"}},
	{Metric: "stride_length", Subject: "stride length", LowBelow: 0.8, MidBelow: 1.2, Labels: [3]string{"short", "normal", "long"}},
	{Metric: "gait_symmetry", Subject: "gait symmetry", LowBelow: 0.7, MidBelow: 0.9, Labels: [3]string{"needs attention", "good", "excellent"}},
	{Metric: "stability_score", Subject: "stability", LowBelow: 0.6, MidBelow: 0.8, Labels: [3]string{"unstable", "moderate", "very stable"}},
	{Metric: "step_regularity", Subject: "step regularity", LowBelow: 0.6, MidBelow: 0.8, Labels: [3]string{"irregular", "fairly regular", "very consistent"}},
}

// Classify places v in the band. Exactly 0 is NoData, not Low.
func (b Band) Classify(v float64) (Level, string) {
	switch {
	case v == 0:
		return NoData, "no data"
	case v < b.LowBelow:
		return Low, b.Labels[0]
	case v < b.MidBelow:
		return Mid, b.Labels[1]
	default:
		return High, b.Labels[2]
	}
}

// Reading is the interpretation of one metric.
type Reading struct {
	Metric  string  `json:"metric"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Level   Level   `json:"level"`
	Label   string  `json:"label"`
}

// Interpretation is the user-facing view of a Metrics value.
type Interpretation struct {
	StepCount int       `json:"step_count"`
	Readings  []Reading `json:"readings"`
	Narrative string    `json:"narrative"`
}

// Reading returns the interpretation of the named metric.
func (in Interpretation) Reading(metric string) (Reading, bool) {
	for _, r := range in.Readings {
		if r.Metric == metric {
			return r, true
		}
	}
	return Reading{}, false
}

// Interpret classifies every banded metric of m independently. Velocity is
// displayed in speedUnit (see the units package; empty means m/s). Metrics
// without data are listed with level NoData and left out of the narrative.
func Interpret(m Metrics, speedUnit string) Interpretation {
	if speedUnit == "" {
		speedUnit = units.MPS
	}
	values := map[string]float64{
		"cadence":         m.Cadence,
		"velocity":        m.Velocity,
		"stride_length":   m.StrideLength,
		"gait_symmetry":   m.GaitSymmetry,
		"stability_score": m.StabilityScore,
		"step_regularity": m.StepRegularity,
	}

	out := Interpretation{StepCount: m.StepCount}
	var sentences []string
	for _, band := range Bands {
		v := values[band.Metric]
		level, label := band.Classify(v)
		r := Reading{
			Metric:  band.Metric,
			Value:   v,
			Display: display(band.Metric, v, speedUnit),
			Level:   level,
			Label:   label,
		}
		out.Readings = append(out.Readings, r)
		if level != NoData {
			sentences = append(sentences, fmt.Sprintf("Your %s is %s (%s).", band.Subject, label, r.Display))
		}
	}

	if len(sentences) == 0 {
		out.Narrative = "Not enough gait data to summarize this recording."
	} else {
		out.Narrative = strings.Join(sentences, " ")
	}
	return out
}

func display(metric string, v float64, speedUnit string) string {
	if v == 0 {
		return "-"
	}
	switch metric {
	case "cadence":
		return fmt.Sprintf("%.0f steps/min", v)
	case "velocity":
		return units.FormatSpeed(v, speedUnit)
	case "stride_length":
		if speedUnit == units.MPH {
			return fmt.Sprintf("%.2f ft", units.ConvertLength(v, units.Feet))
		}
		return fmt.Sprintf("%.2f m", v)
	default:
		return fmt.Sprintf("%.0f%%", v*100)
	}
}
