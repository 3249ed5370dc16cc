// Package gen turns a creative request into a complete playable beat: a set
// of tracks with step patterns, per-track and master effect settings, a
// description of what came out, and suggestions for where to take it next.
// Generation is offline; the caller installs the result into an engine.
package gen

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/fault"
)

// Track counts stay between MinTracks and MaxTracks no matter what the
// request asks for.
const (
	MinTracks = 3
	MaxTracks = 8
)

type (
	// PresetSource is where the generator picks instruments from, usually
	// the samples catalog.
	PresetSource interface {
		Category(cat rytmi.Category) []string
		DefaultFor(cat rytmi.Category) (string, bool)
	}

	// Generator builds beats from pattern requests. Construct one with
	// NewGenerator; the zero value has nowhere to pick presets from.
	Generator struct {
		presets PresetSource
		faults  *fault.Handler
	}

	// role is the musical job of one generated track.
	role int

	// rolePick is one track the generator decided to produce: the role and
	// the index within that role family, which selects the flavor
	// (percussion 0 is hats, 1 snare, 2 clap; synth 0 lead, 1 pad).
	rolePick struct {
		role  role
		index int
	}
)

const (
	roleKick role = iota
	roleBass
	rolePercussion
	roleSynth
	roleFX
)

var roleNames = [...]string{"kick", "bass", "percussion", "synth", "fx"}

func (r role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

func NewGenerator(presets PresetSource, faults *fault.Handler) *Generator {
	return &Generator{presets: presets, faults: faults}
}

// Generate builds a complete beat from the request. Requests with
// out-of-range fields are rejected rather than clamped, so a caller bug
// surfaces at the call site. Any failure during synthesis aborts the whole
// call and is recorded as a pattern-generation error; Generate never returns
// a partial result.
func (g *Generator) Generate(req rytmi.PatternRequest) (resp *rytmi.PatternResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("pattern synthesis: %v", r)
		}
		if err != nil && g.faults != nil {
			g.faults.Report(rytmi.ErrorRecord{
				Kind:     rytmi.ErrPatternGen,
				Severity: rytmi.SeverityMedium,
				Message:  err.Error(),
			})
		}
	}()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("pattern request: %w", err)
	}
	seed := uint64(req.Seed)
	if req.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, 0x6C62272E07BB0142))
	st := parseStyle(req.Style)
	picks := chooseRoles(&req, st, trackBudget(req.Complexity), rng)
	tracks := make([]rytmi.Track, 0, len(picks))
	for _, pick := range picks {
		track, err := g.buildTrack(pick, &req, st, rng)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return &rytmi.PatternResponse{
		Tracks:      tracks,
		Master:      masterEffects(st, req.Intensity),
		Tempo:       req.Tempo,
		Description: describe(&req, st, picks),
		Variations:  suggestVariations(rng),
	}, nil
}

// trackBudget caps how many tracks a request may produce:
// clamp(3, complexity/2+2, 8).
func trackBudget(complexity int) int {
	return clampInt(complexity/2+2, MinTracks, MaxTracks)
}

// chooseRoles decides which tracks to produce. The kick is unconditional;
// bass, percussion, synth and fx follow in that priority order, each gated by
// the request's focus tags and a random inclusion draw, until the budget runs
// out. The result never goes below the track floor.
func chooseRoles(req *rytmi.PatternRequest, st styleTraits, budget int, rng *rand.Rand) []rolePick {
	picks := []rolePick{{roleKick, 0}}
	add := func(r role, idx int) bool {
		if len(picks) >= budget {
			return false
		}
		picks = append(picks, rolePick{r, idx})
		return true
	}

	if req.HasFocus("bass") || st.acid || rng.Float64() < 0.85 {
		add(roleBass, 0)
	}

	percTarget := 1 + (req.Complexity-1)/3
	if req.HasFocus("percussion") || req.HasFocus("drums") {
		percTarget++
	}
	if st.minimal {
		percTarget--
	}
	percTarget = clampInt(percTarget, 1, 4)
	nextPerc := 0
	for i := 0; i < percTarget; i++ {
		if i > 0 && rng.Float64() > 0.85 {
			continue
		}
		if !add(rolePercussion, nextPerc) {
			break
		}
		nextPerc++
	}

	synthTarget := 0
	if req.Complexity >= 3 {
		synthTarget = 1
	}
	if req.Complexity >= 7 {
		synthTarget = 2
	}
	wantsSynth := req.HasFocus("melody") || req.HasFocus("synth")
	if wantsSynth && synthTarget == 0 {
		synthTarget = 1
	}
	if st.minimal && synthTarget > 1 {
		synthTarget = 1
	}
	for i := 0; i < synthTarget; i++ {
		if !wantsSynth && rng.Float64() > 0.75 {
			continue
		}
		if !add(roleSynth, i) {
			break
		}
	}

	if req.Complexity >= 5 && (req.HasFocus("fx") || req.HasFocus("atmosphere") || rng.Float64() < 0.35+0.04*float64(req.Intensity)) {
		add(roleFX, 0)
	}

	// random exclusion can leave a thin beat; fill back up with percussion
	for len(picks) < MinTracks {
		picks = append(picks, rolePick{rolePercussion, nextPerc})
		nextPerc++
	}
	return picks
}

// pickPreset chooses a preset of the category: style-preferred variants
// first, then a random member, then the category default.
func (g *Generator) pickPreset(cat rytmi.Category, st styleTraits, rng *rand.Rand) (string, error) {
	ids := g.presets.Category(cat)
	if prefer := st.preferredPreset(cat); prefer != "" {
		for _, id := range ids {
			if id == prefer {
				return id, nil
			}
		}
	}
	if len(ids) > 0 {
		return ids[rng.IntN(len(ids))], nil
	}
	if id, ok := g.presets.DefaultFor(cat); ok {
		return id, nil
	}
	return "", fmt.Errorf("no presets available in category %q", cat)
}

func newTrackID() string {
	return uuid.NewString()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
