package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/fault"
)

// Engine is the facade over the live core: one track list, one mixer, one
// scheduler and one event hub, tied to the caller's resource loader and
// fault handler. NewEngine starts the message and event loops; Close shuts
// them down. Everything in between may be called from any goroutine.
type Engine struct {
	broker *Broker
	loader rytmi.SoundLoader
	faults *fault.Handler

	tracks *TrackList
	mixer  *Mixer
	sched  *Scheduler
	hub    *Hub

	// editMu serializes the operations that pair track edits with loader
	// retain/release bookkeeping, so counts cannot cross between two
	// concurrent installs. Plain reads and step edits go straight to the
	// components, which lock for themselves.
	editMu   sync.Mutex
	faultSub fault.Subscription
	closed   bool
}

// NewEngine wires the core together and installs the default beat, one
// starter track per preset category, so the engine plays something the
// moment Play is called. The broker's engine and hub loops are started here
// and run until Close.
func NewEngine(broker *Broker, loader rytmi.SoundLoader, faults *fault.Handler) *Engine {
	e := &Engine{
		broker: broker,
		loader: loader,
		faults: faults,
		tracks: NewTrackList(),
		mixer:  NewMixer(),
		hub:    NewHub(broker),
	}
	e.sched = NewScheduler(broker, e.tracks, e.trigger, faults)
	// forward failure records to event subscribers. The callback may fire
	// with the scheduler lock held, so it must not call back into it.
	e.faultSub = faults.Subscribe(func(rec rytmi.ErrorRecord) {
		r := rec
		TrySend(broker.ToHub, Event{Kind: EventError, At: rec.At, Err: &r})
	})
	if err := e.InstallBeat(DefaultBeat()); err != nil {
		faults.Report(rytmi.ErrorRecord{
			Kind:     rytmi.ErrUnknown,
			Severity: rytmi.SeverityHigh,
			Message:  fmt.Sprintf("default beat: %v", err),
		})
	}
	go e.hub.Run()
	go e.run()
	return e
}

// trigger is the scheduler's TriggerFunc: resolve the track's sound and
// voice it on the mixer.
func (e *Engine) trigger(track rytmi.Track, step rytmi.Step, index int) error {
	snd, err := e.loader.Load(track.PresetID)
	if err != nil {
		return err
	}
	return e.mixer.Trigger(snd, track, step)
}

// run drains commands from input adapters until CloseEngine.
func (e *Engine) run() {
	defer close(e.broker.FinishedEngine)
	for {
		select {
		case msg := <-e.broker.ToEngine:
			e.handle(msg)
		case <-e.broker.CloseEngine:
			return
		}
	}
}

func (e *Engine) handle(msg MsgToEngine) {
	if msg.Pad != nil {
		e.PadTrigger(msg.Pad.Category, msg.Pad.Velocity)
	}
	switch msg.Transport {
	case TransportStart:
		e.Play()
	case TransportStop:
		e.Stop()
	case TransportTap:
		at := msg.TapAt
		if at.IsZero() {
			at = time.Now()
		}
		e.sched.TapTempo(at)
	}
}

// Close stops playback, shuts down the loops, detaches subscriptions and
// unloads every resource. Closing twice is safe.
func (e *Engine) Close() error {
	e.editMu.Lock()
	if e.closed {
		e.editMu.Unlock()
		return nil
	}
	e.closed = true
	e.editMu.Unlock()
	e.sched.Stop()
	e.faultSub.Close()
	TrySend(e.broker.CloseEngine, struct{}{})
	TrySend(e.broker.CloseHub, struct{}{})
	TimeoutReceive(e.broker.FinishedEngine, 3*time.Second)
	TimeoutReceive(e.broker.FinishedHub, 3*time.Second)
	e.loader.UnloadAll()
	return e.mixer.Close()
}

// Transport.

func (e *Engine) Play()  { e.sched.Play() }
func (e *Engine) Pause() { e.sched.Pause() }
func (e *Engine) Stop()  { e.sched.Stop() }

func (e *Engine) SetTempo(bpm float64) float64 { return e.sched.SetTempo(bpm) }
func (e *Engine) TapTempo() float64            { return e.sched.TapTempo(time.Now()) }
func (e *Engine) SetSwing(swing float64) float64 {
	return e.sched.SetSwing(swing)
}
func (e *Engine) SetQuantize(on bool) { e.sched.SetQuantize(on) }

// SetTotalSteps snaps the sequence length to 16, 32 or 64 and resizes every
// track's grid to match.
func (e *Engine) SetTotalSteps(n int) int {
	n = e.sched.SetTotalSteps(n)
	e.tracks.SetLength(n)
	return n
}

func (e *Engine) State() TransportState { return e.sched.State() }
func (e *Engine) CurrentStep() int      { return e.sched.CurrentStep() }
func (e *Engine) Tempo() float64        { return e.sched.Tempo() }
func (e *Engine) Swing() float64        { return e.sched.Swing() }
func (e *Engine) Quantize() bool        { return e.sched.Quantize() }
func (e *Engine) TotalSteps() int       { return e.sched.TotalSteps() }

// Track edits.

var errNoTrack = errors.New("no such track")

func (e *Engine) updateTrack(trackID string, f func(*rytmi.Track)) error {
	if !e.tracks.Update(trackID, f) {
		return fmt.Errorf("%w: %q", errNoTrack, trackID)
	}
	return nil
}

func (e *Engine) updateStep(trackID string, index int, f func(*rytmi.Step)) error {
	var rangeErr error
	err := e.updateTrack(trackID, func(t *rytmi.Track) {
		if index < 0 || index >= len(t.Steps) {
			rangeErr = fmt.Errorf("step %d out of range, track has %d", index, len(t.Steps))
			return
		}
		f(&t.Steps[index])
	})
	if err != nil {
		return err
	}
	return rangeErr
}

// ToggleStep flips a step on or off and returns its new active state.
func (e *Engine) ToggleStep(trackID string, index int) (bool, error) {
	var active bool
	err := e.updateStep(trackID, index, func(s *rytmi.Step) {
		s.Active = !s.Active
		active = s.Active
	})
	return active, err
}

func (e *Engine) SetStepVelocity(trackID string, index int, v float64) error {
	return e.updateStep(trackID, index, func(s *rytmi.Step) { s.SetVelocity(v) })
}

func (e *Engine) SetStepProbability(trackID string, index int, p float64) error {
	return e.updateStep(trackID, index, func(s *rytmi.Step) { s.SetProbability(p) })
}

func (e *Engine) SetStepOffset(trackID string, index int, o float64) error {
	return e.updateStep(trackID, index, func(s *rytmi.Step) { s.SetOffset(o) })
}

// SetStepLocks replaces a step's parameter locks. Lock values are clamped at
// trigger time against the preset's parameter ranges, not here, so a lock
// outlives retuning of the parameter.
func (e *Engine) SetStepLocks(trackID string, index int, locks []rytmi.ParameterLock) error {
	cp := make([]rytmi.ParameterLock, len(locks))
	copy(cp, locks)
	return e.updateStep(trackID, index, func(s *rytmi.Step) { s.Locks = cp })
}

func (e *Engine) SetMuted(trackID string, muted bool) error {
	return e.updateTrack(trackID, func(t *rytmi.Track) { t.Muted = muted })
}

func (e *Engine) SetSolo(trackID string, solo bool) error {
	return e.updateTrack(trackID, func(t *rytmi.Track) { t.Solo = solo })
}

func (e *Engine) SetVolume(trackID string, v float64) error {
	return e.updateTrack(trackID, func(t *rytmi.Track) { t.SetVolume(v) })
}

func (e *Engine) SetPan(trackID string, p float64) error {
	return e.updateTrack(trackID, func(t *rytmi.Track) { t.SetPan(p) })
}

func (e *Engine) SetTrackEffects(trackID string, fx rytmi.TrackEffects) error {
	fx.Clamp()
	return e.updateTrack(trackID, func(t *rytmi.Track) { t.Effects = fx })
}

// AddTrack appends a track playing the given preset, sized to the current
// sequence length, and returns a copy of it. The preset is retained until
// the track is removed.
func (e *Engine) AddTrack(name, presetID string) (rytmi.Track, error) {
	e.editMu.Lock()
	defer e.editMu.Unlock()
	if _, ok := e.loader.Definition(presetID); !ok {
		return rytmi.Track{}, fmt.Errorf("unknown preset %q", presetID)
	}
	t := rytmi.NewTrack(uuid.NewString(), name, presetID, e.sched.TotalSteps())
	e.loader.Retain(presetID)
	e.tracks.Add(t)
	return t, nil
}

// RemoveTrack deletes a track and releases its preset.
func (e *Engine) RemoveTrack(trackID string) error {
	e.editMu.Lock()
	defer e.editMu.Unlock()
	removed, ok := e.tracks.Remove(trackID)
	if !ok {
		return fmt.Errorf("%w: %q", errNoTrack, trackID)
	}
	e.loader.Release(removed.PresetID)
	return nil
}

// SwapPreset points a track at a different preset, retaining the new one and
// releasing the old. The step grid is untouched.
func (e *Engine) SwapPreset(trackID, presetID string) error {
	e.editMu.Lock()
	defer e.editMu.Unlock()
	if _, ok := e.loader.Definition(presetID); !ok {
		return fmt.Errorf("unknown preset %q", presetID)
	}
	var old string
	err := e.updateTrack(trackID, func(t *rytmi.Track) {
		old = t.PresetID
		t.PresetID = presetID
	})
	if err != nil {
		return err
	}
	e.loader.Retain(presetID)
	e.loader.Release(old)
	return nil
}

// SetPresetParam edits a parameter of the preset a track plays. The edit
// invalidates the cached audio, so the next trigger sounds different; other
// tracks on the same preset change with it.
func (e *Engine) SetPresetParam(trackID, paramID string, value float64) error {
	t, ok := e.tracks.Get(trackID)
	if !ok {
		return fmt.Errorf("%w: %q", errNoTrack, trackID)
	}
	return e.loader.SetParam(t.PresetID, paramID, value)
}

// Track returns a copy of one track.
func (e *Engine) Track(trackID string) (rytmi.Track, bool) {
	return e.tracks.Get(trackID)
}

// Tracks returns a deep copy of every track in order.
func (e *Engine) Tracks() []rytmi.Track {
	return e.tracks.Snapshot()
}

// Master bus.

func (e *Engine) SetMasterEffects(fx rytmi.MasterEffects) { e.mixer.SetMaster(fx) }
func (e *Engine) MasterEffects() rytmi.MasterEffects      { return e.mixer.Master() }

// Beat returns a deep snapshot of the whole session, suitable for WriteBeat
// or an offline bounce.
func (e *Engine) Beat() rytmi.Beat {
	return rytmi.Beat{
		Tempo:      e.sched.Tempo(),
		Swing:      e.sched.Swing(),
		Quantize:   e.sched.Quantize(),
		TotalSteps: e.sched.TotalSteps(),
		Tracks:     e.tracks.Snapshot(),
		Master:     e.mixer.Master(),
	}
}

// InstallBeat validates a beat and swaps it in whole: tracks, transport
// settings and master chain. Presets of the incoming tracks are retained
// before the outgoing ones are released, so presets used by both never drop
// to zero holders in between. Playback keeps running through the swap.
func (e *Engine) InstallBeat(b rytmi.Beat) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("install beat: %w", err)
	}
	e.editMu.Lock()
	defer e.editMu.Unlock()
	old := e.tracks.PresetIDs()
	for i := range b.Tracks {
		e.loader.Retain(b.Tracks[i].PresetID)
	}
	e.tracks.Replace(b.Tracks)
	for _, id := range old {
		e.loader.Release(id)
	}
	e.sched.SetTotalSteps(b.TotalSteps)
	e.sched.SetTempo(b.Tempo)
	e.sched.SetSwing(b.Swing)
	e.sched.SetQuantize(b.Quantize)
	e.mixer.SetMaster(b.Master)
	return nil
}

// ApplyPattern installs a generated pattern as the new session: its tracks,
// tempo and master chain, at the generator's one-bar length. Swing and
// quantize settings survive.
func (e *Engine) ApplyPattern(resp *rytmi.PatternResponse) error {
	if resp == nil || len(resp.Tracks) == 0 {
		return rytmi.ErrEmptyBeat
	}
	return e.InstallBeat(rytmi.Beat{
		Tempo:      resp.Tempo,
		Swing:      e.sched.Swing(),
		Quantize:   e.sched.Quantize(),
		TotalSteps: rytmi.StepsPerBar,
		Tracks:     resp.Tracks,
		Master:     resp.Master,
	})
}

// PadTrigger voices a one-shot immediately, outside the grid: the first
// audible track whose preset matches the category plays with its own mix
// settings; with no such track the category's fallback preset plays dry.
func (e *Engine) PadTrigger(cat rytmi.Category, velocity float64) {
	step := rytmi.NewStep()
	step.Active = true
	step.SetVelocity(velocity)
	var target *rytmi.Track
	tracks := e.tracks.Snapshot()
	solo := rytmi.AnySolo(tracks)
	for i := range tracks {
		def, ok := e.loader.Definition(tracks[i].PresetID)
		if ok && def.Category == cat && rytmi.TrackAudible(&tracks[i], solo) {
			target = &tracks[i]
			break
		}
	}
	if target == nil {
		id, ok := e.faults.Fallback(string(cat))
		if !ok {
			return
		}
		t := rytmi.NewTrack("", string(cat), id, 0)
		t.SetVolume(0.9)
		target = &t
	}
	if err := e.trigger(*target, step, 0); err != nil {
		e.faults.Report(rytmi.ErrorRecord{
			Kind:     rytmi.ErrPlayback,
			Severity: rytmi.SeverityLow,
			Message:  fmt.Sprintf("pad %s: %v", cat, err),
			PresetID: target.PresetID,
		})
	}
}

// Preload renders the sound of every track ahead of playback.
func (e *Engine) Preload() {
	ids := e.tracks.PresetIDs()
	for _, id := range ids {
		e.loader.Load(id)
	}
}

// Subscribe attaches an event channel to the hub. See Hub.Subscribe.
func (e *Engine) Subscribe(buffer int) (Subscription, <-chan Event) {
	return e.hub.Subscribe(buffer)
}

// Broker returns the channel fabric input adapters send through.
func (e *Engine) Broker() *Broker { return e.broker }

// Source returns the live audio output, for handing to a player.
func (e *Engine) Source() rytmi.AudioSource { return e.mixer }

// Levels returns the stereo peak of the last rendered block.
func (e *Engine) Levels() [2]float32 { return e.mixer.Levels() }
