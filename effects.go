package rytmi

type (
	// FilterKind names the filter shape a track asks for.
	FilterKind string

	// FilterSettings is the per-track filter. The core approximates its
	// audible effect through gain and playback rate; the settings travel
	// with the track so a full renderer downstream can honor them exactly.
	FilterSettings struct {
		Kind      FilterKind `yaml:"kind"`
		Cutoff    float64    `yaml:"cutoff"`    // 0..1, normalized frequency
		Resonance float64    `yaml:"resonance"` // 0..1
		Envelope  float64    `yaml:"envelope"`  // 0..1, how far a trigger opens the filter
	}

	DelaySettings struct {
		Time     float64 `yaml:"time"`     // 0..1 of a step
		Feedback float64 `yaml:"feedback"` // 0..1
		Mix      float64 `yaml:"mix"`      // 0..1
	}

	ReverbSettings struct {
		Size    float64 `yaml:"size"`    // 0..1
		Damping float64 `yaml:"damping"` // 0..1
		Mix     float64 `yaml:"mix"`     // 0..1
	}

	DistortionSettings struct {
		Amount float64 `yaml:"amount"` // 0..1 drive
		Tone   float64 `yaml:"tone"`   // 0..1
	}

	// TrackEffects is the per-track effect chain.
	TrackEffects struct {
		Filter     FilterSettings     `yaml:"filter"`
		Delay      DelaySettings      `yaml:"delay"`
		Reverb     ReverbSettings     `yaml:"reverb"`
		Distortion DistortionSettings `yaml:"distortion"`
	}

	CompressorSettings struct {
		Threshold float64 `yaml:"threshold"` // 0..1, linear amplitude
		Ratio     float64 `yaml:"ratio"`     // 1..20
		Attack    float64 `yaml:"attack"`    // 0..1
		Release   float64 `yaml:"release"`   // 0..1
	}

	// EQSettings holds three band gains where 1 is flat.
	EQSettings struct {
		Low  float64 `yaml:"low"`  // 0..2
		Mid  float64 `yaml:"mid"`  // 0..2
		High float64 `yaml:"high"` // 0..2
	}

	// MasterEffects is the output bus chain.
	MasterEffects struct {
		Limiter    float64            `yaml:"limiter"` // 0..1 drive into the clipper
		Compressor CompressorSettings `yaml:"compressor"`
		EQ         EQSettings         `yaml:"eq"`
	}
)

const (
	FilterLowpass  FilterKind = "lowpass"
	FilterHighpass FilterKind = "highpass"
	FilterBandpass FilterKind = "bandpass"
)

// DefaultTrackEffects returns a neutral chain: filter fully open, all sends
// dry, no distortion.
func DefaultTrackEffects() TrackEffects {
	return TrackEffects{
		Filter: FilterSettings{Kind: FilterLowpass, Cutoff: 1},
	}
}

// DefaultMasterEffects returns a gentle output chain suitable as a starting
// point for every beat.
func DefaultMasterEffects() MasterEffects {
	return MasterEffects{
		Limiter:    0.2,
		Compressor: CompressorSettings{Threshold: 0.7, Ratio: 2, Attack: 0.3, Release: 0.5},
		EQ:         EQSettings{Low: 1, Mid: 1, High: 1},
	}
}

// Clamp forces every field into its documented range.
func (e *TrackEffects) Clamp() {
	if e.Filter.Kind != FilterLowpass && e.Filter.Kind != FilterHighpass && e.Filter.Kind != FilterBandpass {
		e.Filter.Kind = FilterLowpass
	}
	e.Filter.Cutoff = Clamp(e.Filter.Cutoff, 0, 1)
	e.Filter.Resonance = Clamp(e.Filter.Resonance, 0, 1)
	e.Filter.Envelope = Clamp(e.Filter.Envelope, 0, 1)
	e.Delay.Time = Clamp(e.Delay.Time, 0, 1)
	e.Delay.Feedback = Clamp(e.Delay.Feedback, 0, 1)
	e.Delay.Mix = Clamp(e.Delay.Mix, 0, 1)
	e.Reverb.Size = Clamp(e.Reverb.Size, 0, 1)
	e.Reverb.Damping = Clamp(e.Reverb.Damping, 0, 1)
	e.Reverb.Mix = Clamp(e.Reverb.Mix, 0, 1)
	e.Distortion.Amount = Clamp(e.Distortion.Amount, 0, 1)
	e.Distortion.Tone = Clamp(e.Distortion.Tone, 0, 1)
}

// Clamp forces every field into its documented range.
func (m *MasterEffects) Clamp() {
	m.Limiter = Clamp(m.Limiter, 0, 1)
	m.Compressor.Threshold = Clamp(m.Compressor.Threshold, 0, 1)
	m.Compressor.Ratio = Clamp(m.Compressor.Ratio, 1, 20)
	m.Compressor.Attack = Clamp(m.Compressor.Attack, 0, 1)
	m.Compressor.Release = Clamp(m.Compressor.Release, 0, 1)
	m.EQ.Low = Clamp(m.EQ.Low, 0, 2)
	m.EQ.Mid = Clamp(m.EQ.Mid, 0, 2)
	m.EQ.High = Clamp(m.EQ.High, 0, 2)
}
