package gen

import (
	"fmt"
	"math/rand/v2"

	"github.com/rytmilabs/rytmi"
)

// Generated patterns are one bar long; the engine stretches or loops them to
// its configured sequence length on install.
const genSteps = 16

// category maps a pick to the preset category it draws from and the display
// name its track gets.
func (p rolePick) category(st styleTraits) (rytmi.Category, string) {
	switch p.role {
	case roleKick:
		return rytmi.CategoryKick, "Kick"
	case roleBass:
		return rytmi.CategoryBass, "Bass"
	case rolePercussion:
		switch p.index {
		case 0:
			return rytmi.CategoryHat, "Hats"
		case 1:
			return rytmi.CategorySnare, "Snare"
		case 2:
			return rytmi.CategoryClap, "Clap"
		default:
			return rytmi.CategoryPercussion, fmt.Sprintf("Perc %d", p.index-2)
		}
	case roleSynth:
		if st.acid && p.index == 0 {
			return rytmi.CategorySynthAcid, "Acid"
		}
		switch p.index {
		case 0:
			return rytmi.CategorySynthLead, "Lead"
		case 1:
			return rytmi.CategorySynthPad, "Pad"
		default:
			return rytmi.CategorySynthLead, fmt.Sprintf("Synth %d", p.index+1)
		}
	default:
		return rytmi.CategoryFX, "FX"
	}
}

// buildTrack makes the complete track for one picked role: preset, steps,
// effects and mixer strip.
func (g *Generator) buildTrack(pick rolePick, req *rytmi.PatternRequest, st styleTraits, rng *rand.Rand) (rytmi.Track, error) {
	cat, name := pick.category(st)
	presetID, err := g.pickPreset(cat, st, rng)
	if err != nil {
		return rytmi.Track{}, fmt.Errorf("%v track: %w", pick.role, err)
	}
	t := rytmi.NewTrack(newTrackID(), name, presetID, genSteps)
	switch pick.role {
	case roleKick:
		t.Steps = kickSteps(req, st)
	case roleBass:
		t.Steps = bassSteps(req, st, rng)
	case rolePercussion:
		t.Steps = percussionSteps(pick.index, req, st, rng)
	case roleSynth:
		t.Steps = synthSteps(pick.index, req, st, rng)
	default:
		t.Steps = fxSteps(req, rng)
	}
	t.Effects = trackEffects(pick, st, req.Intensity)
	vol, pan := mixStrip(pick, st, rng)
	t.SetVolume(vol)
	t.SetPan(pan)
	return t, nil
}

// mixStrip picks a starting volume and pan per role, spreading the quieter
// layers off-center so the beat does not stack up in the middle.
func mixStrip(pick rolePick, st styleTraits, rng *rand.Rand) (vol, pan float64) {
	spread := func(width float64) float64 { return (rng.Float64()*2 - 1) * width }
	switch pick.role {
	case roleKick:
		return 1, 0
	case roleBass:
		return 0.9, 0
	case rolePercussion:
		switch pick.index {
		case 0:
			return 0.7, spread(0.25)
		case 1:
			return 0.85, spread(0.05)
		case 2:
			return 0.8, spread(0.15)
		default:
			return 0.65, spread(0.4)
		}
	case roleSynth:
		if st.acid && pick.index == 0 {
			return 0.8, spread(0.1)
		}
		if pick.index == 1 {
			return 0.6, 0
		}
		return 0.75, spread(0.2)
	default:
		return 0.55, spread(0.45)
	}
}

func emptySteps() []rytmi.Step {
	steps := make([]rytmi.Step, genSteps)
	for i := range steps {
		steps[i] = rytmi.NewStep()
	}
	return steps
}

// set activates the step at i with the given velocity and returns it for
// further adjustment. Indices wrap so layered templates never run off the
// grid.
func set(steps []rytmi.Step, i int, vel float64) *rytmi.Step {
	s := &steps[i%len(steps)]
	s.Active = true
	s.SetVelocity(vel)
	return s
}

// kickSteps lays a quarter-note foundation and unlocks offbeat, ghost and
// probabilistic layers at complexity 3, 5 and 7.
func kickSteps(req *rytmi.PatternRequest, st styleTraits) []rytmi.Step {
	steps := emptySteps()
	accent := 0.75 + 0.02*float64(req.Intensity)
	for i := 0; i < genSteps; i += 4 {
		set(steps, i, accent)
	}
	if st.broken {
		// displace the third downbeat for the broken feel
		steps[8].Active = false
		set(steps, 10, accent*0.9)
	}
	if req.Complexity >= 3 {
		set(steps, 7, accent*0.7)
	}
	if req.Complexity >= 5 {
		set(steps, 14, accent*0.45)
	}
	if req.Complexity >= 7 {
		set(steps, 3, accent*0.5).SetProbability(0.4)
		set(steps, 11, accent*0.5).SetProbability(0.3)
	}
	return steps
}

// bassSteps branches on the acid trait: a 16th-note run with accents and
// filter locks, or a standard on-beat pattern that densifies with complexity.
func bassSteps(req *rytmi.PatternRequest, st styleTraits, rng *rand.Rand) []rytmi.Step {
	steps := emptySteps()
	vel := 0.6 + 0.03*float64(req.Intensity)
	if st.acid {
		for i := range steps {
			s := set(steps, i, vel*0.55)
			switch {
			case i%4 == 2 || i == 7 || i == 15:
				// accented squelch: open the filter hard for this step only
				s.SetVelocity(vel)
				s.Locks = []rytmi.ParameterLock{
					{Param: "cutoff", Value: 0.55 + 0.3*rng.Float64()},
					{Param: "resonance", Value: 0.85},
				}
			case rng.Float64() < 0.3:
				s.Locks = []rytmi.ParameterLock{{Param: "cutoff", Value: 0.15 + 0.2*rng.Float64()}}
			}
			if i%8 == 5 {
				s.SetProbability(0.8)
			}
		}
		return steps
	}
	set(steps, 0, vel)
	set(steps, 8, vel*0.95)
	if req.Complexity >= 3 {
		set(steps, 11, vel*0.8)
	}
	if req.Complexity >= 5 {
		set(steps, 6, vel*0.7)
		set(steps, 14, vel*0.75)
	}
	if req.Complexity >= 7 {
		set(steps, 3, vel*0.6).SetProbability(0.6)
	}
	return steps
}

// percussionSteps varies by the track's index in the percussion family: hats
// first, then snare, clap, and free percussion.
func percussionSteps(index int, req *rytmi.PatternRequest, st styleTraits, rng *rand.Rand) []rytmi.Step {
	steps := emptySteps()
	vel := 0.5 + 0.03*float64(req.Intensity)
	switch index {
	case 0: // hats: eighths, upgraded to sixteenths with complexity
		for i := 0; i < genSteps; i += 2 {
			v := vel
			if i%4 == 2 {
				v = vel * 1.2 // offbeat opens louder
			}
			set(steps, i, v)
		}
		if req.Complexity >= 4 {
			for i := 1; i < genSteps; i += 4 {
				set(steps, i, vel*0.5)
			}
		}
		if req.Complexity >= 7 {
			for i := 3; i < genSteps; i += 4 {
				set(steps, i, vel*0.45).SetProbability(0.5)
			}
		}
		if st.broken {
			for i := 1; i < genSteps; i += 2 {
				if steps[i].Active {
					steps[i].SetOffset(0.12)
				}
			}
		}
	case 1: // snare: backbeat plus ghosts and a fill
		set(steps, 4, vel*1.3)
		set(steps, 12, vel*1.3)
		if st.broken {
			steps[12].Active = false
			set(steps, 11, vel*1.2)
			set(steps, 14, vel*0.9)
		}
		if req.Complexity >= 5 {
			set(steps, 7, vel*0.4).SetProbability(0.45)
			set(steps, 10, vel*0.35).SetProbability(0.35)
		}
		if req.Complexity >= 7 {
			set(steps, 15, vel*0.6).SetProbability(0.5)
		}
	case 2: // clap doubles the backbeat
		set(steps, 4, vel*1.2)
		set(steps, 12, vel*1.2)
		if req.Complexity >= 6 {
			set(steps, 13, vel*0.5).SetProbability(0.4)
		}
	default: // free percussion: seeded syncopation, denser with complexity
		hits := 2 + req.Complexity/2
		for n := 0; n < hits; n++ {
			i := rng.IntN(genSteps)
			if i%4 == 0 {
				i++ // keep free percussion off the downbeats
			}
			s := set(steps, i, vel*(0.5+0.5*rng.Float64()))
			if rng.Float64() < 0.4 {
				s.SetProbability(0.6)
			}
		}
	}
	return steps
}

// tuneMotif is the pool of tune-lock values melodic phrases draw from,
// roughly a minor pentatonic around the preset's center.
var tuneMotif = [...]float64{0.5, 0.56, 0.59, 0.65, 0.71, 0.44, 0.38}

// synthSteps varies by style and index: an acid line, a melodic lead whose
// phrase repeats at complexity 8+, a sustained pad, or a sparse generic line.
func synthSteps(index int, req *rytmi.PatternRequest, st styleTraits, rng *rand.Rand) []rytmi.Step {
	steps := emptySteps()
	vel := 0.55 + 0.025*float64(req.Intensity)
	if st.acid && index == 0 {
		for i := 0; i < genSteps; i++ {
			if rng.Float64() < 0.3 {
				continue // rests keep the line breathing
			}
			s := set(steps, i, vel*0.6)
			locks := []rytmi.ParameterLock{{Param: "tune", Value: tuneMotif[rng.IntN(len(tuneMotif))]}}
			if i%4 == 3 || rng.Float64() < 0.25 {
				s.SetVelocity(vel)
				locks = append(locks, rytmi.ParameterLock{Param: "cutoff", Value: 0.5 + 0.35*rng.Float64()})
			}
			s.Locks = locks
		}
		return steps
	}
	if index == 1 { // pad: long tones on the downbeats
		set(steps, 0, vel*0.8)
		set(steps, 8, vel*0.7)
		if req.Complexity >= 6 {
			set(steps, 14, vel*0.5)
		}
		return steps
	}
	// lead: a short phrase in the first half of the bar
	positions := []int{0, 3, 6, 10}
	phrase := make([]float64, len(positions))
	for i := range phrase {
		phrase[i] = tuneMotif[rng.IntN(len(tuneMotif))]
	}
	for i, pos := range positions {
		s := set(steps, pos, vel)
		s.Locks = []rytmi.ParameterLock{{Param: "tune", Value: phrase[i]}}
	}
	if req.Complexity >= 8 {
		// repeat the phrase in the second half, answering a step late
		for i, pos := range positions {
			s := set(steps, pos+8, vel*0.85)
			s.Locks = []rytmi.ParameterLock{{Param: "tune", Value: phrase[(i+1)%len(phrase)]}}
		}
	} else if req.Complexity >= 4 {
		set(steps, 12, vel*0.7).Locks = []rytmi.ParameterLock{{Param: "tune", Value: phrase[0]}}
	}
	return steps
}

// fxSteps places sparse accents, more of them as complexity grows, most
// gated by probability so they surprise rather than repeat.
func fxSteps(req *rytmi.PatternRequest, rng *rand.Rand) []rytmi.Step {
	steps := emptySteps()
	vel := 0.5 + 0.03*float64(req.Intensity)
	set(steps, 15, vel).SetProbability(0.6) // sweep into the next bar
	extra := req.Complexity / 4
	for n := 0; n < extra; n++ {
		i := 4 + rng.IntN(genSteps-5)
		set(steps, i, vel*(0.4+0.4*rng.Float64())).SetProbability(0.3 + 0.05*float64(req.Complexity))
	}
	return steps
}
