package rytmi

// DefaultVelocity is the velocity a freshly activated step gets.
const DefaultVelocity = 0.8

type (
	// ParameterLock overrides one preset parameter for the duration of a
	// single step trigger. The overridden value never sticks to the preset.
	ParameterLock struct {
		Param string  `yaml:"param"`
		Value float64 `yaml:"value"`
	}

	// Step is one slot in a track's grid. Offset shifts the trigger inside
	// the step, in fractions of the step duration; it only applies when the
	// beat plays unquantized.
	Step struct {
		Active      bool            `yaml:"active"`
		Velocity    float64         `yaml:"velocity"`
		Probability float64         `yaml:"probability"`
		Offset      float64         `yaml:"offset,omitempty"`
		Locks       []ParameterLock `yaml:"locks,omitempty"`
	}

	// Track is one voice of a beat: a preset, a step grid, and a mixer
	// strip. Sequence length always equals the beat's total step count.
	Track struct {
		ID       string       `yaml:"id"`
		Name     string       `yaml:"name"`
		PresetID string       `yaml:"preset"`
		Steps    []Step       `yaml:"steps"`
		Muted    bool         `yaml:"muted,omitempty"`
		Solo     bool         `yaml:"solo,omitempty"`
		Volume   float64      `yaml:"volume"`
		Pan      float64      `yaml:"pan"` // -1 left .. 1 right
		Effects  TrackEffects `yaml:"effects"`
	}
)

// NewStep returns an inactive step with the default velocity and certain
// probability, so toggling it on plays without further editing.
func NewStep() Step {
	return Step{Velocity: DefaultVelocity, Probability: 1}
}

// Copy makes a deep copy of the step.
func (s *Step) Copy() Step {
	ret := *s
	if s.Locks != nil {
		ret.Locks = make([]ParameterLock, len(s.Locks))
		copy(ret.Locks, s.Locks)
	}
	return ret
}

func (s *Step) SetVelocity(v float64)    { s.Velocity = Clamp(v, 0, 1) }
func (s *Step) SetProbability(p float64) { s.Probability = Clamp(p, 0, 1) }

// SetOffset limits micro-timing to half a step in either direction.
func (s *Step) SetOffset(o float64) { s.Offset = Clamp(o, -0.5, 0.5) }

// NewTrack returns a track with the given number of default steps, unity
// volume, centered pan and a neutral effect chain.
func NewTrack(id, name, presetID string, steps int) Track {
	t := Track{
		ID:       id,
		Name:     name,
		PresetID: presetID,
		Volume:   1,
		Effects:  DefaultTrackEffects(),
	}
	t.Steps = make([]Step, 0, steps)
	for i := 0; i < steps; i++ {
		t.Steps = append(t.Steps, NewStep())
	}
	return t
}

// Copy makes a deep copy of the track.
func (t *Track) Copy() Track {
	steps := make([]Step, 0, len(t.Steps))
	for i := range t.Steps {
		steps = append(steps, t.Steps[i].Copy())
	}
	ret := *t
	ret.Steps = steps
	return ret
}

// Step returns the step the given tick index falls on. Indices wrap around
// the sequence length, so shorter tracks loop inside longer beats.
func (t *Track) Step(index int) Step {
	if len(t.Steps) == 0 {
		return Step{}
	}
	index %= len(t.Steps)
	if index < 0 {
		index += len(t.Steps)
	}
	return t.Steps[index]
}

// ToggleStep flips the step at index and returns its new active state. Out
// of range indices leave the track untouched.
func (t *Track) ToggleStep(index int) bool {
	if index < 0 || index >= len(t.Steps) {
		return false
	}
	t.Steps[index].Active = !t.Steps[index].Active
	return t.Steps[index].Active
}

func (t *Track) SetVolume(v float64) { t.Volume = Clamp(v, 0, 1) }
func (t *Track) SetPan(p float64)    { t.Pan = Clamp(p, -1, 1) }

// SetLength resizes the grid to n steps, keeping the existing prefix and
// filling any growth with default steps.
func (t *Track) SetLength(n int) {
	n = NormalizeStepCount(n)
	if n <= len(t.Steps) {
		t.Steps = t.Steps[:n]
		return
	}
	for len(t.Steps) < n {
		t.Steps = append(t.Steps, NewStep())
	}
}
