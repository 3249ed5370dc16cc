package samples

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/rytmilabs/rytmi"
	"github.com/viterin/vek/vek32"
)

// maxRenderSeconds caps how long a single rendered resource may be.
const maxRenderSeconds = 2

// RenderPreset synthesizes the mono PCM of a preset definition at
// rytmi.SampleRate. Rendering is deterministic: the noise generator is
// seeded from the sample locator, so the same definition always yields the
// same audio. All panics during synthesis are caught and returned as errors.
func RenderPreset(p rytmi.Preset) (pcm []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			pcm, err = nil, fmt.Errorf("rendering %q: %v", p.ID, r)
		}
	}()
	kind, variant, err := parseLocator(p.Sample)
	if err != nil {
		return nil, fmt.Errorf("rendering %q: %w", p.ID, err)
	}
	rng := rand.New(rand.NewPCG(locatorSeed(p.Sample), 0x9E3779B97F4A7C15))
	switch kind {
	case "kick":
		pcm = renderKick(&p, variant, rng)
	case "bass":
		pcm = renderBass(&p, variant, rng)
	case "hat":
		pcm = renderHat(&p, variant, rng)
	case "snare":
		pcm = renderSnare(&p, variant, rng)
	case "clap":
		pcm = renderClap(&p, variant, rng)
	case "percussion":
		pcm = renderPercussion(&p, variant, rng)
	case "synth-lead":
		pcm = renderLead(&p, variant, rng)
	case "synth-pad":
		pcm = renderPad(&p, variant, rng)
	case "synth-acid":
		pcm = renderAcid(&p, variant, rng)
	case "fx":
		pcm = renderFX(&p, variant, rng)
	default:
		return nil, fmt.Errorf("rendering %q: unknown resource kind %q", p.ID, kind)
	}
	if !normalize(pcm, 0.9) {
		return nil, fmt.Errorf("rendering %q: resource came out silent", p.ID)
	}
	return pcm, nil
}

// parseLocator splits a locator of the form "builtin:kind/variant". Only the
// builtin scheme exists; anything else fails the load and lets the fallback
// chain take over.
func parseLocator(locator string) (kind, variant string, err error) {
	scheme, rest, found := strings.Cut(locator, ":")
	if !found || scheme != "builtin" {
		return "", "", fmt.Errorf("unsupported sample locator %q", locator)
	}
	kind, variant, found = strings.Cut(rest, "/")
	if !found || kind == "" || variant == "" {
		return "", "", fmt.Errorf("malformed sample locator %q", locator)
	}
	return kind, variant, nil
}

func locatorSeed(locator string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(locator))
	return h.Sum64()
}

// param returns the preset's value for a parameter, or def when the preset
// does not carry it.
func param(p *rytmi.Preset, id string, def float64) float64 {
	if par, ok := p.Param(id); ok {
		return par.Value
	}
	return def
}

func frames(seconds float64) int {
	if seconds > maxRenderSeconds {
		seconds = maxRenderSeconds
	}
	return int(seconds * rytmi.SampleRate)
}

// normalize scales the buffer so its peak sits at the given level. It
// reports false when the buffer is silent.
func normalize(pcm []float32, peak float32) bool {
	if len(pcm) == 0 {
		return false
	}
	work := make([]float32, len(pcm))
	copy(work, pcm)
	vek32.Abs_Inplace(work)
	max := vek32.Max(work)
	if max <= 1e-9 {
		return false
	}
	vek32.MulNumber_Inplace(pcm, peak/max)
	return true
}

// expEnv fills a new buffer with exp(-t*rate).
func expEnv(n int, rate float64) []float32 {
	env := make([]float32, n)
	e := 1.0
	step := math.Exp(-rate / rytmi.SampleRate)
	for i := range env {
		env[i] = float32(e)
		e *= step
	}
	return env
}

// attack applies a linear fade-in over the first n frames.
func attack(buf []float32, n int) {
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] *= float32(i) / float32(n)
	}
}

// sineSweep renders a sine whose frequency glides exponentially from f0
// towards f1 at the given fall rate.
func sineSweep(n int, f0, f1, fall float64) []float32 {
	buf := make([]float32, n)
	phase := 0.0
	e := 1.0
	step := math.Exp(-fall / rytmi.SampleRate)
	for i := range buf {
		f := f1 + (f0-f1)*e
		e *= step
		phase += f / rytmi.SampleRate
		buf[i] = float32(math.Sin(2 * math.Pi * phase))
	}
	return buf
}

func sawOsc(n int, freq float64) []float32 {
	buf := make([]float32, n)
	phase := 0.0
	for i := range buf {
		phase += freq / rytmi.SampleRate
		phase -= math.Floor(phase)
		buf[i] = float32(2*phase - 1)
	}
	return buf
}

func squareOsc(n int, freq float64) []float32 {
	buf := make([]float32, n)
	phase := 0.0
	for i := range buf {
		phase += freq / rytmi.SampleRate
		phase -= math.Floor(phase)
		if phase < 0.5 {
			buf[i] = 1
		} else {
			buf[i] = -1
		}
	}
	return buf
}

func noiseBuf(n int, rng *rand.Rand) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(rng.Float64()*2 - 1)
	}
	return buf
}

// lpCoeff maps a normalized cutoff (0..1) to a one-pole coefficient,
// exponential from 40 Hz to around 22 kHz.
func lpCoeff(cutoff float64) float64 {
	fc := 40 * math.Pow(550, rytmi.Clamp(cutoff, 0, 1))
	return 1 - math.Exp(-2*math.Pi*fc/rytmi.SampleRate)
}

// lowpass runs a one-pole lowpass with a static cutoff in place.
func lowpass(buf []float32, cutoff float64) {
	g := float32(lpCoeff(cutoff))
	var lp float32
	for i := range buf {
		lp += g * (buf[i] - lp)
		buf[i] = lp
	}
}

// highpass subtracts the one-pole lowpass from the signal in place.
func highpass(buf []float32, cutoff float64) {
	g := float32(lpCoeff(cutoff))
	var lp float32
	for i := range buf {
		lp += g * (buf[i] - lp)
		buf[i] -= lp
	}
}

// sweepFilter runs a one-pole lowpass whose cutoff starts at base+depth and
// decays towards base, feeding back a resonance share of the band edge. This
// is what gives acid lines their squelch.
func sweepFilter(buf []float32, base, depth, fall, resonance float64) {
	e := 1.0
	step := math.Exp(-fall / rytmi.SampleRate)
	var lp, band float32
	res := float32(resonance * 0.9)
	for i := range buf {
		g := float32(lpCoeff(base + depth*e))
		e *= step
		in := buf[i] + res*band
		prev := lp
		lp += g * (in - lp)
		band = lp - prev
		buf[i] = lp
	}
}

// mix adds src*gain into dst, clipping src to dst's length.
func mix(dst, src []float32, gain float32) {
	n := len(src)
	if n > len(dst) {
		n = len(dst)
	}
	if gain == 1 {
		vek32.Add_Inplace(dst[:n], src[:n])
		return
	}
	scaled := make([]float32, n)
	vek32.MulNumber_Into(scaled, src[:n], gain)
	vek32.Add_Inplace(dst[:n], scaled)
}

func renderKick(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tune := param(p, "tune", 0.5)
	decay := param(p, "decay", 0.5)
	punch := param(p, "punch", 0.6)
	f0 := 160 * math.Pow(2, tune-0.5)
	f1 := 42.0
	fall := 18.0
	ampFall := 9 - 5*decay
	switch variant {
	case "808":
		f1 = 38
		fall = 10
	case "punchy":
		fall = 30
		f0 *= 1.3
	case "sub":
		f0 = 90 * math.Pow(2, tune-0.5)
		f1 = 34
		fall = 8
	}
	n := frames(0.2 + 0.5*decay)
	out := sineSweep(n, f0, f1, fall)
	vek32.Mul_Inplace(out, expEnv(n, ampFall))
	if punch > 0 {
		click := noiseBuf(frames(0.004), rng)
		lowpass(click, 0.85)
		mix(out, click, float32(punch*0.7))
	}
	return out
}

func renderBass(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tune := param(p, "tune", 0.5)
	cutoff := param(p, "cutoff", 0.6)
	decay := param(p, "decay", 0.5)
	root := 55 * math.Pow(2, (tune-0.5)*2)
	n := frames(0.2 + 0.4*decay)
	var out []float32
	switch variant {
	case "acid":
		out = sawOsc(n, root)
		sweepFilter(out, cutoff*0.5, 0.45, 14-8*decay, param(p, "resonance", 0.7))
	case "sub":
		out = sineSweep(n, root, root, 0)
		mix(out, sineSweep(n, root*2, root*2, 0), 0.15)
	case "pluck":
		out = sawOsc(n, root)
		mix(out, squareOsc(n, root*1.005), 0.4)
		lowpass(out, cutoff)
	default:
		out = sawOsc(n, root)
		lowpass(out, cutoff)
	}
	vek32.Mul_Inplace(out, expEnv(n, 10-6*decay))
	attack(out, frames(0.002))
	return out
}

func renderHat(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tone := param(p, "tone", 0.6)
	decay := param(p, "decay", 0.3)
	dur := 0.04 + 0.3*decay
	if variant == "open" {
		dur = 0.15 + 0.5*decay
	}
	n := frames(dur)
	out := noiseBuf(n, rng)
	// a metallic stack of inharmonic squares under the noise
	for _, ratio := range []float64{2.0, 3.03, 4.47, 5.81} {
		mix(out, squareOsc(n, 880*ratio*(0.8+0.4*tone)), 0.12)
	}
	highpass(out, 0.75+0.2*tone)
	vek32.Mul_Inplace(out, expEnv(n, 3/dur))
	return out
}

func renderSnare(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tone := param(p, "tone", 0.5)
	snap := param(p, "snap", 0.6)
	decay := param(p, "decay", 0.4)
	n := frames(0.1 + 0.25*decay)
	body := sineSweep(n, 240*(0.7+0.6*tone), 140, 25)
	vek32.Mul_Inplace(body, expEnv(n, 35))
	rattle := noiseBuf(n, rng)
	highpass(rattle, 0.5)
	vek32.Mul_Inplace(rattle, expEnv(n, 18-8*decay))
	out := body
	mix(out, rattle, float32(0.4+0.8*snap))
	if variant == "rim" {
		click := squareOsc(frames(0.005), 1700)
		mix(out, click, 0.8)
	}
	return out
}

func renderClap(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	spread := param(p, "spread", 0.5)
	decay := param(p, "decay", 0.5)
	gap := 0.008 + 0.01*spread
	n := frames(3*gap + 0.1 + 0.3*decay)
	out := make([]float32, n)
	for burst := 0; burst < 3; burst++ {
		start := frames(float64(burst) * gap)
		b := noiseBuf(frames(0.012), rng)
		vek32.Mul_Inplace(b, expEnv(len(b), 220))
		mix(out[start:], b, 0.9)
	}
	tail := noiseBuf(n-frames(3*gap), rng)
	vek32.Mul_Inplace(tail, expEnv(len(tail), 16-6*decay))
	mix(out[frames(3*gap):], tail, 1)
	highpass(out, 0.45)
	if variant == "wide" {
		lowpass(out, 0.9)
	}
	return out
}

func renderPercussion(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tune := param(p, "tune", 0.5)
	decay := param(p, "decay", 0.4)
	if variant == "conga" {
		n := frames(0.05 + 0.25*decay)
		out := sineSweep(n, 420*math.Pow(2, tune-0.5), 330*math.Pow(2, tune-0.5), 40)
		vek32.Mul_Inplace(out, expEnv(n, 22-10*decay))
		return out
	}
	// shaker and anything unnamed: shaped noise
	n := frames(0.03 + 0.2*decay)
	out := noiseBuf(n, rng)
	highpass(out, 0.6+0.35*tune)
	env := expEnv(n, 30-15*decay)
	vek32.Mul_Inplace(out, env)
	attack(out, frames(0.005))
	return out
}

func renderLead(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tune := param(p, "tune", 0.5)
	detune := param(p, "detune", 0.3)
	cutoff := param(p, "cutoff", 0.8)
	root := 220 * math.Pow(2, (tune-0.5)*2)
	n := frames(0.35)
	out := sawOsc(n, root)
	mix(out, sawOsc(n, root*(1+0.01*detune)), 0.7)
	if variant == "soft" {
		mix(out, sineSweep(n, root, root, 0), 0.5)
	}
	lowpass(out, cutoff)
	vek32.Mul_Inplace(out, expEnv(n, 6))
	attack(out, frames(0.004))
	return out
}

func renderPad(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tune := param(p, "tune", 0.5)
	spread := param(p, "spread", 0.5)
	att := param(p, "attack", 0.4)
	root := 110 * math.Pow(2, (tune-0.5)*2)
	n := frames(1.2)
	out := sawOsc(n, root)
	// a fifth and an octave on top make it a chord
	mix(out, sawOsc(n, root*1.4983*(1+0.004*spread)), 0.8)
	mix(out, sawOsc(n, root*2*(1-0.004*spread)), 0.6)
	lowpass(out, 0.45)
	vek32.Mul_Inplace(out, expEnv(n, 2.5))
	attack(out, frames(0.05+0.3*att))
	return out
}

func renderAcid(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	tune := param(p, "tune", 0.5)
	cutoff := param(p, "cutoff", 0.35)
	resonance := param(p, "resonance", 0.8)
	decay := param(p, "decay", 0.4)
	root := 110 * math.Pow(2, (tune-0.5)*2)
	n := frames(0.2 + 0.3*decay)
	out := squareOsc(n, root)
	mix(out, sawOsc(n, root), 0.5)
	sweepFilter(out, cutoff*0.5, 0.5, 16-8*decay, resonance)
	vek32.Mul_Inplace(out, expEnv(n, 8-4*decay))
	attack(out, frames(0.002))
	return out
}

func renderFX(p *rytmi.Preset, variant string, rng *rand.Rand) []float32 {
	switch variant {
	case "sweep":
		rise := param(p, "rise", 0.6)
		tone := param(p, "tone", 0.5)
		n := frames(0.4 + 0.8*rise)
		out := noiseBuf(n, rng)
		// opening filter: run the sweep backwards so the cutoff rises
		rev := make([]float32, n)
		for i := range rev {
			rev[i] = out[n-1-i]
		}
		sweepFilter(rev, 0.15+0.3*tone, 0.55, 4/(0.4+0.8*rise), 0.3)
		for i := range out {
			out[i] = rev[n-1-i]
		}
		attack(out, n/2)
		return out
	case "impact":
		tune := param(p, "tune", 0.4)
		decay := param(p, "decay", 0.6)
		n := frames(0.3 + 0.6*decay)
		out := sineSweep(n, 120*math.Pow(2, tune-0.5), 35, 12)
		vek32.Mul_Inplace(out, expEnv(n, 7-3*decay))
		boom := noiseBuf(frames(0.05), rng)
		lowpass(boom, 0.4)
		mix(out, boom, 0.6)
		return out
	default:
		tone := param(p, "tone", 0.5)
		decay := param(p, "decay", 0.4)
		n := frames(0.1 + 0.5*decay)
		out := noiseBuf(n, rng)
		lowpass(out, 0.3+0.6*tone)
		vek32.Mul_Inplace(out, expEnv(n, 12-8*decay))
		return out
	}
}
