package gen

import (
	"math/rand/v2"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/rytmilabs/rytmi"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// adjective tables indexed by 1..10 level, split into thirds. Intensity picks
// the energy word, complexity the texture word.
var (
	energyWords  = [3]string{"laid-back", "driving", "relentless"}
	textureWords = [3]string{"stripped-down", "layered", "intricate"}
)

// roleFragments describes each role family in the finished beat; only roles
// actually present contribute.
var roleFragments = map[role]string{
	roleKick:       "a steady kick foundation",
	roleBass:       "a bassline holding the low end",
	rolePercussion: "percussion keeping the groove moving",
	roleSynth:      "synth lines on top",
	roleFX:         "effect sweeps for tension",
}

// acid overrides the plainer fragments when the style calls for it.
var acidFragments = map[role]string{
	roleBass:  "a squelching acid bassline",
	roleSynth: "resonant acid lines on top",
}

var descTmpl = template.Must(template.New("description").Funcs(sprig.TxtFuncMap()).Parse(
	`A {{ .Energy }}, {{ .Texture }} {{ .Style }} beat at {{ .Tempo }} BPM with {{ join ", " .Fragments }}.`))

var titleCaser = cases.Title(language.English)

// describe assembles the human-readable summary of a generated beat from the
// adjective tables and the fragments of the roles that made it in.
func describe(req *rytmi.PatternRequest, st styleTraits, picks []rolePick) string {
	third := func(level int) int {
		switch {
		case level <= 3:
			return 0
		case level <= 7:
			return 1
		default:
			return 2
		}
	}
	seen := map[role]bool{}
	var fragments []string
	for _, p := range picks {
		if seen[p.role] {
			continue
		}
		seen[p.role] = true
		frag := roleFragments[p.role]
		if st.acid {
			if f, ok := acidFragments[p.role]; ok {
				frag = f
			}
		}
		fragments = append(fragments, frag)
	}
	style := st.name
	if style == "" {
		style = "electronic"
	}
	data := struct {
		Energy    string
		Texture   string
		Style     string
		Tempo     int
		Fragments []string
	}{
		Energy:    energyWords[third(req.Intensity)],
		Texture:   textureWords[third(req.Complexity)],
		Style:     style,
		Tempo:     int(req.Tempo),
		Fragments: fragments,
	}
	var sb strings.Builder
	if err := descTmpl.Execute(&sb, data); err != nil {
		// the template is static; if it ever breaks, fall back to the label
		return titleCaser.String(style) + " beat"
	}
	return sb.String()
}

// variationPool is the fixed candidate list variation suggestions are drawn
// from. Draws do not de-duplicate across calls.
var variationPool = []string{
	"drop the kick for the last bar and let the bass carry it",
	"double the hat resolution for a busier top end",
	"swap the snare for a rimshot and pull the velocity down",
	"push the swing up for a lazier pocket",
	"mute everything but kick and bass for an intro section",
	"add probability to the percussion so no two bars repeat",
	"open the filter across four bars for a slow riser",
	"halve the tempo feel by muting the offbeat hats",
	"layer a second clap a step late for width",
	"detune the lead slightly for a thicker unison",
}

// suggestVariations draws three suggestions with a Fisher-Yates shuffle over
// the candidate pool.
func suggestVariations(rng *rand.Rand) []string {
	pool := make([]string, len(variationPool))
	copy(pool, variationPool)
	for i := len(pool) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:3]
}
