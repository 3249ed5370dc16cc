package rytmi

import "fmt"

// Complexity and intensity run on a 1..10 scale.
const (
	MinLevel = 1
	MaxLevel = 10
)

type (
	// PatternRequest describes the beat a caller wants generated. Requests
	// are validated strictly: out-of-range fields reject the request instead
	// of being silently clamped, so a caller bug surfaces where it was made.
	PatternRequest struct {
		Style      string   `yaml:"style"`
		Tempo      float64  `yaml:"tempo"`
		Complexity int      `yaml:"complexity"`
		Intensity  int      `yaml:"intensity"`
		Focus      []string `yaml:"focus,omitempty"`
		Seed       int64    `yaml:"seed,omitempty"` // 0 picks a random seed
	}

	// PatternResponse is a complete generated beat: the tracks, the derived
	// effect settings, a human-readable description and alternative
	// directions the caller may offer as variations.
	PatternResponse struct {
		Tracks      []Track       `yaml:"tracks"`
		Master      MasterEffects `yaml:"master"`
		Tempo       float64       `yaml:"tempo"`
		Description string        `yaml:"description"`
		Variations  []string      `yaml:"variations"`
	}
)

// Validate rejects requests with out-of-range fields.
func (r *PatternRequest) Validate() error {
	if r.Style == "" {
		return fmt.Errorf("pattern request has no style")
	}
	if r.Tempo < MinTempo || r.Tempo > MaxTempo {
		return fmt.Errorf("tempo %g out of range [%d, %d]", r.Tempo, MinTempo, MaxTempo)
	}
	if r.Complexity < MinLevel || r.Complexity > MaxLevel {
		return fmt.Errorf("complexity %d out of range [%d, %d]", r.Complexity, MinLevel, MaxLevel)
	}
	if r.Intensity < MinLevel || r.Intensity > MaxLevel {
		return fmt.Errorf("intensity %d out of range [%d, %d]", r.Intensity, MinLevel, MaxLevel)
	}
	return nil
}

// HasFocus reports whether the request names the given focus tag.
func (r *PatternRequest) HasFocus(tag string) bool {
	for _, f := range r.Focus {
		if f == tag {
			return true
		}
	}
	return false
}
