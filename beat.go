package rytmi

import (
	"errors"
	"fmt"
)

// Beat is the whole playable state of a session: transport settings plus
// every track and the master chain. It is what snapshots serialize and what
// the engine installs when a pattern is applied.
type Beat struct {
	Tempo      float64       `yaml:"tempo"`
	Swing      float64       `yaml:"swing"`
	Quantize   bool          `yaml:"quantize"`
	TotalSteps int           `yaml:"totalsteps"`
	Tracks     []Track       `yaml:"tracks"`
	Master     MasterEffects `yaml:"master"`
}

// Copy makes a deep copy of the beat.
func (b *Beat) Copy() Beat {
	tracks := make([]Track, 0, len(b.Tracks))
	for i := range b.Tracks {
		tracks = append(tracks, b.Tracks[i].Copy())
	}
	ret := *b
	ret.Tracks = tracks
	return ret
}

// Validate checks that the beat can be installed as is: tempo and sequence
// length in range, every track the same length as the beat, and every gain
// in its documented range.
func (b *Beat) Validate() error {
	if b.Tempo < MinTempo || b.Tempo > MaxTempo {
		return fmt.Errorf("tempo %g out of range [%d, %d]", b.Tempo, MinTempo, MaxTempo)
	}
	if b.Swing < 0 || b.Swing > 1 {
		return fmt.Errorf("swing %g out of range [0, 1]", b.Swing)
	}
	validSteps := false
	for _, n := range StepCounts {
		if b.TotalSteps == n {
			validSteps = true
			break
		}
	}
	if !validSteps {
		return fmt.Errorf("total steps %d not one of %v", b.TotalSteps, StepCounts)
	}
	ids := map[string]bool{}
	for i := range b.Tracks {
		t := &b.Tracks[i]
		if t.ID == "" {
			return fmt.Errorf("track %d has no id", i)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate track id %q", t.ID)
		}
		ids[t.ID] = true
		if t.PresetID == "" {
			return fmt.Errorf("track %q has no preset", t.ID)
		}
		if len(t.Steps) != b.TotalSteps {
			return fmt.Errorf("track %q has %d steps, beat has %d", t.ID, len(t.Steps), b.TotalSteps)
		}
		if t.Volume < 0 || t.Volume > 1 {
			return fmt.Errorf("track %q volume %g out of range [0, 1]", t.ID, t.Volume)
		}
		if t.Pan < -1 || t.Pan > 1 {
			return fmt.Errorf("track %q pan %g out of range [-1, 1]", t.ID, t.Pan)
		}
		for j := range t.Steps {
			s := &t.Steps[j]
			if s.Velocity < 0 || s.Velocity > 1 {
				return fmt.Errorf("track %q step %d velocity %g out of range [0, 1]", t.ID, j, s.Velocity)
			}
			if s.Probability < 0 || s.Probability > 1 {
				return fmt.Errorf("track %q step %d probability %g out of range [0, 1]", t.ID, j, s.Probability)
			}
		}
	}
	return nil
}

var ErrEmptyBeat = errors.New("beat has no tracks")

// SoloActive reports whether any track is soloed.
func (b *Beat) SoloActive() bool {
	return AnySolo(b.Tracks)
}

// Audible reports whether track index i should sound on a tick: muted tracks
// never sound, and when any track is soloed only soloed, unmuted tracks do.
func (b *Beat) Audible(i int) bool {
	if i < 0 || i >= len(b.Tracks) {
		return false
	}
	return TrackAudible(&b.Tracks[i], b.SoloActive())
}

// AnySolo reports whether any track in the slice is soloed.
func AnySolo(tracks []Track) bool {
	for i := range tracks {
		if tracks[i].Solo {
			return true
		}
	}
	return false
}

// TrackAudible applies the mute and solo gating rule to a single track,
// given whether any solo is active in the set it belongs to.
func TrackAudible(t *Track, soloActive bool) bool {
	if t.Muted {
		return false
	}
	if soloActive && !t.Solo {
		return false
	}
	return true
}
