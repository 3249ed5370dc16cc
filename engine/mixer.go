package engine

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/rytmilabs/rytmi"
	"github.com/viterin/vek/vek32"
)

// maxVoices caps simultaneous one-shots; past it the voice closest to
// finishing is stolen.
const maxVoices = 32

type (
	// voice is one playing one-shot: a window into a Sound's PCM advanced at
	// a playback rate, scaled by per-trigger gains.
	voice struct {
		pcm   []float32
		pos   float64
		rate  float64
		limit int
		gainL float32
		gainR float32
	}

	// Mixer sums the active voices into stereo buffers and runs the master
	// chain over the result. True per-track audio effects are out of scope
	// for the core: a trigger's filter, distortion and lock settings are
	// approximated through gain and playback rate, while the delay and
	// reverb settings ride along as data for a full renderer downstream.
	Mixer struct {
		mu      sync.Mutex
		voices  []voice
		master  rytmi.MasterEffects
		comp    float32 // compressor power follower
		level   [2]float32
		scratch []float32
		closed  bool
	}
)

func NewMixer() *Mixer {
	return &Mixer{master: rytmi.DefaultMasterEffects()}
}

// SetMaster swaps the output bus settings, clamping them first.
func (m *Mixer) SetMaster(fx rytmi.MasterEffects) {
	fx.Clamp()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.master = fx
}

// Master returns the current output bus settings.
func (m *Mixer) Master() rytmi.MasterEffects {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master
}

// Trigger starts one voice for a step of a track. The voice's gain folds in
// the step velocity, track volume, and the gain-expressible parts of the
// track effects; parameter locks bend the playback rate and gain the same
// way.
func (m *Mixer) Trigger(snd rytmi.Sound, track rytmi.Track, step rytmi.Step) error {
	if snd == nil {
		return fmt.Errorf("track %s: no sound", track.Name)
	}
	pcm := snd.PCM()
	if len(pcm) == 0 {
		return fmt.Errorf("track %s: sound has no audio", track.Name)
	}
	vel := rytmi.Clamp(step.Velocity, 0, 1)
	gain := vel * rytmi.Clamp(track.Volume, 0, 1)
	fx := track.Effects
	brightness := rytmi.Clamp(fx.Filter.Cutoff+fx.Filter.Envelope*vel, 0, 1)
	gain *= 0.6 + 0.4*brightness
	gain *= 1 + rytmi.Clamp(fx.Distortion.Amount, 0, 1)*0.6
	lockGain, rate, length := lockAdjust(snd.Preset(), step.Locks)
	gain *= lockGain
	limit := int(float64(len(pcm)) * length)
	if limit < 1 {
		limit = 1
	}
	if limit > len(pcm) {
		limit = len(pcm)
	}
	pan := rytmi.Clamp(track.Pan, -1, 1)
	v := voice{
		pcm:   pcm,
		rate:  rate,
		limit: limit,
		gainL: float32(gain * math.Min(1, 1-pan)),
		gainR: float32(gain * math.Min(1, 1+pan)),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("track %s: mixer is closed", track.Name)
	}
	if len(m.voices) >= maxVoices {
		steal := 0
		remaining := math.MaxFloat64
		for i := range m.voices {
			r := (float64(m.voices[i].limit) - m.voices[i].pos) / m.voices[i].rate
			if r < remaining {
				remaining = r
				steal = i
			}
		}
		m.voices[steal] = v
		return nil
	}
	m.voices = append(m.voices, v)
	return nil
}

// lockAdjust turns parameter locks into trigger-time adjustments. Pitch-like
// parameters bend the playback rate, gain-like ones the level, decay the
// audible length; locks on anything else ride along as data but stay
// inaudible in the core's approximation.
func lockAdjust(preset rytmi.Preset, locks []rytmi.ParameterLock) (gain, rate, length float64) {
	gain, rate, length = 1, 1, 1
	for _, lock := range locks {
		par, ok := preset.Param(lock.Param)
		if !ok {
			continue
		}
		v := par.Clamp(lock.Value)
		switch lock.Param {
		case "tune", "pitch":
			rate *= math.Pow(2, (v-par.Default)*2)
		case "gain", "level", "volume":
			gain *= v
		case "cutoff", "tone", "brightness":
			gain *= 0.5 + 0.5*v
		case "decay":
			length = 0.25 + 0.75*v
		case "accent":
			gain *= 1 + 0.5*v
		}
	}
	return gain, rate, length
}

// ReadAudio sums the active voices into buf and runs the master chain. It
// always fills the whole buffer, with silence when nothing plays, and
// reports io.EOF only after Close.
func (m *Mixer) ReadAudio(buf rytmi.AudioBuffer) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.EOF
	}
	for i := range buf {
		buf[i] = [2]float32{}
	}
	alive := m.voices[:0]
	for _, v := range m.voices {
		for i := range buf {
			idx := int(v.pos)
			if idx >= v.limit {
				break
			}
			sample := v.pcm[idx]
			buf[i][0] += sample * v.gainL
			buf[i][1] += sample * v.gainR
			v.pos += v.rate
		}
		if int(v.pos) < v.limit {
			alive = append(alive, v)
		}
	}
	m.voices = alive
	m.runMasterLocked(buf)
	m.measureLocked(buf)
	return len(buf), nil
}

// runMasterLocked applies the output approximation: a power-follower
// compressor, a broadband EQ gain, and a clipping limiter.
func (m *Mixer) runMasterLocked(buf rytmi.AudioBuffer) {
	comp := m.master.Compressor
	th2 := float32(comp.Threshold * comp.Threshold)
	invRatio := float32(1 / comp.Ratio)
	atk := alpha(0.001 + 0.05*comp.Attack)
	rel := alpha(0.02 + 0.5*comp.Release)
	eqGain := float32((m.master.EQ.Low + m.master.EQ.Mid + m.master.EQ.High) / 3)
	drive := float32(1 + m.master.Limiter)
	for i := range buf {
		l, r := buf[i][0], buf[i][1]
		power := (l*l + r*r) * 0.5
		a := rel
		if power > m.comp {
			a = atk
		}
		m.comp += a * (power - m.comp)
		gain := float32(1)
		if th2 > 0 && m.comp > th2 {
			// pow(threshold^2/level, (1-1/ratio)/2) in the familiar form
			gain = pow32(th2/m.comp, (1-invRatio)*0.5)
		}
		gain *= eqGain * drive
		buf[i][0] = clip(l * gain)
		buf[i][1] = clip(r * gain)
	}
}

// measureLocked keeps per-channel peak levels of the last block for meters.
func (m *Mixer) measureLocked(buf rytmi.AudioBuffer) {
	if len(buf) == 0 {
		return
	}
	if cap(m.scratch) < len(buf) {
		m.scratch = make([]float32, len(buf))
	}
	scratch := m.scratch[:len(buf)]
	for ch := 0; ch < 2; ch++ {
		for i := range buf {
			scratch[i] = buf[i][ch]
		}
		vek32.Abs_Inplace(scratch)
		m.level[ch] = vek32.Max(scratch)
	}
}

// Levels returns the peak amplitude per channel of the last rendered block.
func (m *Mixer) Levels() [2]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Voices returns how many one-shots are currently sounding.
func (m *Mixer) Voices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Close silences the mixer for good: voices are dropped, later triggers fail
// and ReadAudio reports io.EOF so a player can wind down.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = nil
	m.closed = true
	return nil
}

func alpha(seconds float64) float32 {
	return float32(1 - math.Exp(-1/(seconds*rytmi.SampleRate)))
}

func pow32(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

func clip(x float32) float32 {
	return float32(math.Min(math.Max(float64(x), -1), 1))
}
