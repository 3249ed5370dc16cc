package gen

import (
	"strings"

	"github.com/rytmilabs/rytmi"
)

// styleTraits is the generator's reading of a free-form style label. Traits
// are matched on substrings so "dark acid techno" lights up both the acid and
// the dark treatment.
type styleTraits struct {
	name    string // cleaned label, for descriptions
	acid    bool   // 303 treatment: squelchy bass, resonant synth lines
	dark    bool   // subdued highs, heavier lows
	minimal bool   // fewer layers, sparser grids
	broken  bool   // displaced snares and shuffled hats
	bright  bool   // open hats, lifted high band
}

func parseStyle(label string) styleTraits {
	name := strings.Join(strings.Fields(strings.ToLower(label)), " ")
	st := styleTraits{name: name}
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(name, w) {
				return true
			}
		}
		return false
	}
	st.acid = has("acid", "303")
	st.dark = has("dark", "industrial", "warehouse", "berlin")
	st.minimal = has("minimal", "deep", "dub", "lofi", "lo-fi")
	st.broken = has("break", "garage", "jungle", "electro", "idm")
	st.bright = has("trance", "rave", "uplift", "happy", "disco")
	return st
}

// preferredPreset points a category at the variant that fits the style, or
// returns empty when any member will do.
func (st styleTraits) preferredPreset(cat rytmi.Category) string {
	switch cat {
	case rytmi.CategoryKick:
		if st.acid || st.dark {
			return "kick-808"
		}
		if st.minimal {
			return "kick-sub"
		}
	case rytmi.CategoryBass:
		if st.acid {
			return "bass-acid"
		}
		if st.minimal {
			return "bass-sub"
		}
	case rytmi.CategoryHat:
		if st.bright {
			return "hat-open"
		}
		if st.minimal {
			return "hat-tight"
		}
	case rytmi.CategorySnare:
		if st.minimal {
			return "snare-rim"
		}
	case rytmi.CategorySynthLead:
		if st.minimal || st.dark {
			return "synth-lead-soft"
		}
	case rytmi.CategoryFX:
		if st.dark {
			return "fx-impact"
		}
	}
	return ""
}
