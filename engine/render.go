package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/fault"
)

// tailLimit caps how long a bounce waits for the last voices to ring out.
const tailLimit = 30 * rytmi.SampleRate

// Bounce renders a beat offline: the given number of passes over the step
// grid, walked in frame time instead of wall time, through a private mixer.
// The same audibility, probability and micro-timing rules apply as in live
// playback, with the probability draws seeded explicitly, so the same seed
// always renders the same audio. Trigger failures degrade the mix and are
// recorded; they do not abort the bounce.
func Bounce(beat rytmi.Beat, loader rytmi.SoundLoader, faults *fault.Handler, cycles int, seed uint64) (rytmi.AudioBuffer, error) {
	if err := beat.Validate(); err != nil {
		return nil, fmt.Errorf("bounce: %w", err)
	}
	if len(beat.Tracks) == 0 {
		return nil, rytmi.ErrEmptyBeat
	}
	if cycles < 1 {
		cycles = 1
	}
	mixer := NewMixer()
	mixer.SetMaster(beat.Master)
	rng := rand.New(rand.NewPCG(seed, 0x9E3779B97F4A7C15))
	fire := func(track rytmi.Track, step rytmi.Step, index int) {
		snd, err := loader.Load(track.PresetID)
		if err == nil {
			err = mixer.Trigger(snd, track, step)
		}
		if err != nil && faults != nil {
			faults.Report(rytmi.ErrorRecord{
				Kind:     rytmi.ErrPlayback,
				Severity: rytmi.SeverityMedium,
				Message:  fmt.Sprintf("bounce track %s step %d: %v", track.Name, index, err),
				PresetID: track.PresetID,
			})
		}
	}

	// cumulative rounding keeps step boundaries from drifting over long
	// renders
	steps := cycles * beat.TotalSteps
	bounds := make([]int, steps+1)
	var cum float64
	for i := 0; i < steps; i++ {
		d := rytmi.SwingStepDuration(beat.Tempo, beat.Swing, i%beat.TotalSteps)
		cum += d.Seconds() * rytmi.SampleRate
		bounds[i+1] = int(math.Round(cum))
	}
	out := make(rytmi.AudioBuffer, bounds[steps])
	pos := 0
	render := func(end int) {
		if end > pos {
			mixer.ReadAudio(out[pos:end])
			pos = end
		}
	}
	for i := 0; i < steps; i++ {
		idx := i % beat.TotalSteps
		start, end := bounds[i], bounds[i+1]
		triggers := gatherTriggers(beat.Tracks, idx, beat.Quantize, rng)
		sort.SliceStable(triggers, func(a, b int) bool { return triggers[a].delay < triggers[b].delay })
		for _, tr := range triggers {
			at := start + int(tr.delay*float64(end-start))
			if at > end {
				at = end
			}
			render(at)
			fire(tr.track, tr.step, idx)
		}
		render(end)
	}
	// let the last hits ring out past the grid
	tail := make(rytmi.AudioBuffer, 1024)
	for rendered := 0; mixer.Voices() > 0 && rendered < tailLimit; rendered += len(tail) {
		mixer.ReadAudio(tail)
		out = append(out, tail...)
	}
	return out, nil
}
