package sensor

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a buffer of samples.
type Stats struct {
	Count int `json:"count"`
	// DurationSeconds spans the first to the last timestamp.
	DurationSeconds float64 `json:"duration_seconds"`
	// SamplingRate is the effective rate in Hz, count over duration.
	SamplingRate  float64 `json:"sampling_rate"`
	MeanMagnitude float64 `json:"mean_magnitude"`
	StdMagnitude  float64 `json:"std_magnitude"`
}

// ComputeStats computes Stats over samples. Fewer than two samples give a
// zero duration and rate.
func ComputeStats(samples []Sample) Stats {
	st := Stats{Count: len(samples)}
	if len(samples) == 0 {
		return st
	}

	mags := make([]float64, len(samples))
	for i, s := range samples {
		mags[i] = math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
	}
	if len(mags) == 1 {
		st.MeanMagnitude = mags[0]
		return st
	}
	st.MeanMagnitude, st.StdMagnitude = stat.MeanStdDev(mags, nil)

	span := samples[len(samples)-1].Timestamp - samples[0].Timestamp
	if span > 0 {
		st.DurationSeconds = float64(span) / 1000
		st.SamplingRate = float64(len(samples)) / st.DurationSeconds
	}
	return st
}
