package rytmi

type (
	// Category groups presets by the role they play in a beat. Every track
	// carries exactly one preset and inherits its category.
	Category string

	// Parameter is one adjustable control of a preset. Values are plain
	// floats in [Min, Max]; what a parameter means is up to the renderer.
	Parameter struct {
		ID      string  `yaml:"id"`
		Name    string  `yaml:"name,omitempty"`
		Value   float64 `yaml:"value"`
		Min     float64 `yaml:"min"`
		Max     float64 `yaml:"max"`
		Default float64 `yaml:"default"`
	}

	// Preset is a named, parameterized instrument within a category. Sample
	// is the stable locator of the audio resource the preset renders from;
	// the parameters are the recipe the renderer applies to it, so editing a
	// parameter changes the sound that ends up cached.
	Preset struct {
		ID       string      `yaml:"id"`
		Name     string      `yaml:"name"`
		Category Category    `yaml:"category"`
		Sample   string      `yaml:"sample"`
		Params   []Parameter `yaml:"params,omitempty"`
	}

	// Sound is a loaded, playable resource: the preset definition unified
	// with the PCM rendered from it. PCM is mono at SampleRate and must be
	// treated as read-only; parameter edits swap in a new Sound instead of
	// mutating an old one.
	Sound interface {
		Preset() Preset
		PCM() []float32
	}

	// SoundLoader is what the engine needs from the resource layer.
	//
	// Load returns the cached sound for a preset, rendering it on first use.
	// A preset that fails to load resolves through the fallback chain once
	// before the error surfaces; either way the failure is recorded. Load
	// does not touch the retain count.
	//
	// Retain and Release track how many tracks hold a preset; when the count
	// drops to zero the cached audio is freed. UnloadAll drops everything
	// and is safe to call repeatedly.
	//
	// Definition returns the preset definition without rendering audio.
	SoundLoader interface {
		Load(presetID string) (Sound, error)
		Retain(presetID string)
		Release(presetID string)
		SetParam(presetID, paramID string, value float64) error
		Definition(presetID string) (Preset, bool)
		UnloadAll()
	}
)

const (
	CategoryKick       Category = "kick"
	CategoryBass       Category = "bass"
	CategoryHat        Category = "hat"
	CategorySnare      Category = "snare"
	CategoryClap       Category = "clap"
	CategoryPercussion Category = "percussion"
	CategorySynthLead  Category = "synth-lead"
	CategorySynthPad   Category = "synth-pad"
	CategorySynthAcid  Category = "synth-acid"
	CategoryFX         Category = "fx"
)

// Categories lists every category in the order the engine creates its
// default tracks.
var Categories = [...]Category{
	CategoryKick, CategoryBass, CategoryHat, CategorySnare, CategoryClap,
	CategoryPercussion, CategorySynthLead, CategorySynthPad, CategorySynthAcid, CategoryFX,
}

// KnownCategory reports whether c is one of the ten built-in categories.
func KnownCategory(c Category) bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Clamp limits v to the parameter's range.
func (p *Parameter) Clamp(v float64) float64 {
	return Clamp(v, p.Min, p.Max)
}

// Copy makes a deep copy of the preset.
func (p *Preset) Copy() Preset {
	params := make([]Parameter, len(p.Params))
	copy(params, p.Params)
	ret := *p
	ret.Params = params
	return ret
}

// Param returns the parameter with the given id.
func (p *Preset) Param(id string) (Parameter, bool) {
	for _, par := range p.Params {
		if par.ID == id {
			return par, true
		}
	}
	return Parameter{}, false
}

// ParamValue returns the current value of the parameter, or zero if the
// preset has no such parameter.
func (p *Preset) ParamValue(id string) float64 {
	if par, ok := p.Param(id); ok {
		return par.Value
	}
	return 0
}

// SetParam sets a parameter, clamping the value to the parameter's range.
// It reports whether the preset had the parameter at all.
func (p *Preset) SetParam(id string, value float64) bool {
	for i := range p.Params {
		if p.Params[i].ID == id {
			p.Params[i].Value = p.Params[i].Clamp(value)
			return true
		}
	}
	return false
}
