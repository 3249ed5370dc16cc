// Package rytmi contains the data model of the rytmi beat engine: presets,
// tracks and their step grids, effect settings, and the Beat aggregate that
// ties them together. Everything here is plain data with validating helpers;
// the live scheduler and mixer are in the engine package, sound resources in
// the samples package, and pattern generation in the gen package.
package rytmi

import "time"

// SampleRate is the fixed rate of every rendered and played buffer, in
// frames per second.
const SampleRate = 44100

// MinTempo and MaxTempo bound every tempo in the system, whether set
// directly, derived from tap timestamps, or carried by a generation request.
const (
	MinTempo = 60
	MaxTempo = 200
)

// The grid is sixteenth notes: a bar is 16 steps and a full pattern cycle is
// four bars.
const (
	StepsPerBar     = 16
	StepsPerPattern = 64
)

// StepCounts lists the sequence lengths a beat may use.
var StepCounts = [...]int{16, 32, 64}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampTempo limits a tempo to the playable range.
func ClampTempo(bpm float64) float64 {
	return Clamp(bpm, MinTempo, MaxTempo)
}

// NormalizeStepCount snaps n to the nearest supported sequence length.
func NormalizeStepCount(n int) int {
	switch {
	case n <= 16:
		return 16
	case n <= 32:
		return 32
	default:
		return 64
	}
}

// StepDuration returns the wall-clock duration of one step at the given
// tempo, before swing: 60000/bpm/4 milliseconds.
func StepDuration(bpm float64) time.Duration {
	bpm = ClampTempo(bpm)
	return time.Duration(60000 / bpm / 4 * float64(time.Millisecond))
}

// SwingStepDuration returns the duration of the step at the given index,
// tempo and swing amount. Even-indexed steps shorten and odd-indexed steps
// lengthen by the same share, so a bar keeps its total length:
// even = base * (1 - swing/2), odd = base * (1 + swing/2).
func SwingStepDuration(bpm, swing float64, index int) time.Duration {
	base := StepDuration(bpm)
	swing = Clamp(swing, 0, 1)
	f := 1 - swing*0.5
	if index%2 != 0 {
		f = 1 + swing*0.5
	}
	return time.Duration(float64(base) * f)
}
