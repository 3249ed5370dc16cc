package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/fault"
)

type TransportState int

const (
	StateStopped TransportState = iota
	StatePlaying
	StatePaused
)

var transportStateNames = [...]string{"stopped", "playing", "paused"}

func (s TransportState) String() string {
	if s < 0 || int(s) >= len(transportStateNames) {
		return "unknown"
	}
	return transportStateNames[s]
}

// TriggerFunc plays one step of one track. The scheduler records failures
// through the fault handler and keeps ticking, so a broken track can never
// halt the loop.
type TriggerFunc func(track rytmi.Track, step rytmi.Step, index int) error

// Tap sequences further apart than tapResetGap start a fresh measurement
// window; up to maxTaps recent taps are averaged.
const (
	tapResetGap = 2 * time.Second
	maxTaps     = 4
)

// Scheduler walks the step grid on a self-rescheduling timer. Each tick
// processes the pending step and re-arms the timer with the duration of the
// step it just played; rescheduling with that per-step duration is what
// makes swing audible instead of collapsing back to a straight grid.
//
// All state lives behind one mutex shared by the timer goroutine and the
// callers, so transport commands, tempo changes and ticks serialize cleanly.
type Scheduler struct {
	mu sync.Mutex

	state    TransportState
	stepIdx  int // next grid position to play
	ticks    int // steps played since transport last started from stop
	tempo    float64
	swing    float64
	quantize bool
	total    int

	timer *time.Timer
	runID uint64 // bumped on every transport change; stale timers no-op

	taps []time.Time

	tracks  *TrackList
	trigger TriggerFunc
	broker  *Broker
	faults  *fault.Handler
	rng     *rand.Rand
	now     func() time.Time
}

func NewScheduler(broker *Broker, tracks *TrackList, trigger TriggerFunc, faults *fault.Handler) *Scheduler {
	return &Scheduler{
		tempo:    120,
		quantize: true,
		total:    16,
		tracks:   tracks,
		trigger:  trigger,
		broker:   broker,
		faults:   faults,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xDA3E39CB94B95BDB)),
		now:      time.Now,
	}
}

// Play starts playback from the current position: from step zero when
// stopped, from the paused position when paused. The first step is processed
// before Play returns, so even an immediate Stop afterwards has produced the
// step-zero events. Playing while already playing is a no-op.
func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePlaying {
		return
	}
	s.state = StatePlaying
	s.runID++
	s.sendTransportLocked()
	s.tickLocked(s.runID)
}

// Pause halts the timer but keeps the position, so Play resumes where the
// beat left off. Pausing while not playing is a no-op.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return
	}
	s.cancelTimerLocked()
	s.state = StatePaused
	s.sendTransportLocked()
}

// Stop halts the timer and resets the position to step zero. Stopping while
// already stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	s.cancelTimerLocked()
	s.state = StateStopped
	s.stepIdx = 0
	s.ticks = 0
	s.sendTransportLocked()
}

func (s *Scheduler) cancelTimerLocked() {
	s.runID++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// tick is the timer callback. The runID check discards callbacks armed
// before the latest transport change.
func (s *Scheduler) tick(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying || id != s.runID {
		return
	}
	s.tickLocked(id)
}

// tickLocked plays the pending step and re-arms the timer with that step's
// own swung duration.
func (s *Scheduler) tickLocked(id uint64) {
	idx := s.stepIdx
	dur := rytmi.SwingStepDuration(s.tempo, s.swing, idx)
	s.emitTimingLocked(idx)
	s.processStepLocked(idx, dur)
	s.ticks++
	s.stepIdx = (idx + 1) % s.total
	s.timer = time.AfterFunc(dur, func() { s.tick(id) })
}

func (s *Scheduler) emitTimingLocked(idx int) {
	now := s.now()
	bar := s.ticks / rytmi.StepsPerBar
	pattern := s.ticks / rytmi.StepsPerPattern
	TrySend(s.broker.ToHub, Event{Kind: EventStep, Step: idx, Bar: bar, Pattern: pattern, State: s.state, Tempo: s.tempo, At: now})
	if s.ticks%rytmi.StepsPerBar == 0 {
		TrySend(s.broker.ToHub, Event{Kind: EventBar, Step: idx, Bar: bar, Pattern: pattern, State: s.state, Tempo: s.tempo, At: now})
	}
	if s.ticks%rytmi.StepsPerPattern == 0 {
		TrySend(s.broker.ToHub, Event{Kind: EventPattern, Step: idx, Bar: bar, Pattern: pattern, State: s.state, Tempo: s.tempo, At: now})
	}
}

func (s *Scheduler) sendTransportLocked() {
	TrySend(s.broker.ToHub, Event{
		Kind:    EventTransport,
		Step:    s.stepIdx,
		Bar:     s.ticks / rytmi.StepsPerBar,
		Pattern: s.ticks / rytmi.StepsPerPattern,
		State:   s.state,
		Tempo:   s.tempo,
		At:      s.now(),
	})
}

// stepTrigger is one trigger due within a step: the track and step data to
// play, and how far into the step it fires as a fraction of the step
// duration.
type stepTrigger struct {
	track rytmi.Track
	step  rytmi.Step
	delay float64
}

// gatherTriggers applies the audibility, activity and probability gates to
// every track for one tick. The returned triggers carry copies, detached
// from the live track store. Offsets only delay when the beat plays
// unquantized; zero and negative offsets fire on the tick itself.
func gatherTriggers(tracks []rytmi.Track, index int, quantize bool, rng *rand.Rand) []stepTrigger {
	var ret []stepTrigger
	solo := rytmi.AnySolo(tracks)
	for i := range tracks {
		t := &tracks[i]
		if !rytmi.TrackAudible(t, solo) || len(t.Steps) == 0 {
			continue
		}
		step := t.Step(index)
		if !step.Active {
			continue
		}
		if step.Probability < 1 && rng.Float64() > step.Probability {
			continue
		}
		delay := 0.0
		if !quantize && step.Offset > 0 {
			delay = step.Offset
		}
		track := *t
		track.Steps = nil
		ret = append(ret, stepTrigger{track: track, step: step.Copy(), delay: delay})
	}
	return ret
}

func (s *Scheduler) processStepLocked(idx int, dur time.Duration) {
	var triggers []stepTrigger
	s.tracks.View(func(tracks []rytmi.Track) {
		triggers = gatherTriggers(tracks, idx, s.quantize, s.rng)
	})
	for _, tr := range triggers {
		if tr.delay > 0 {
			// a deferred trigger is on its own: it fires even if the next
			// tick, or a stop, comes first
			tr := tr
			time.AfterFunc(time.Duration(tr.delay*float64(dur)), func() {
				s.fire(tr.track, tr.step, idx)
			})
			continue
		}
		s.fire(tr.track, tr.step, idx)
	}
}

func (s *Scheduler) fire(track rytmi.Track, step rytmi.Step, index int) {
	if s.trigger == nil {
		return
	}
	if err := s.trigger(track, step, index); err != nil {
		s.faults.Report(rytmi.ErrorRecord{
			Kind:     rytmi.ErrPlayback,
			Severity: rytmi.SeverityMedium,
			Message:  fmt.Sprintf("track %s step %d: %v", track.Name, index, err),
			PresetID: track.PresetID,
		})
	}
}

// SetTempo clamps and applies a new tempo. Mid-playback changes take effect
// when the next tick re-arms the timer. The effective tempo is returned.
func (s *Scheduler) SetTempo(bpm float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setTempoLocked(bpm)
}

func (s *Scheduler) setTempoLocked(bpm float64) float64 {
	bpm = rytmi.ClampTempo(bpm)
	if bpm != s.tempo {
		s.tempo = bpm
		TrySend(s.broker.ToHub, Event{Kind: EventTempo, Tempo: bpm, State: s.state, At: s.now()})
	}
	return bpm
}

// TapTempo feeds one tap timestamp into the tempo measurement. Taps further
// than two seconds from the previous one restart the window without touching
// the tempo; from two taps on, the tempo becomes 60000 over the mean gap in
// milliseconds, clamped to the playable range. The current tempo is
// returned.
func (s *Scheduler) TapTempo(at time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.taps); n > 0 && at.Sub(s.taps[n-1]) > tapResetGap {
		s.taps = s.taps[:0]
	}
	s.taps = append(s.taps, at)
	if len(s.taps) > maxTaps {
		s.taps = append(s.taps[:0], s.taps[len(s.taps)-maxTaps:]...)
	}
	if len(s.taps) < 2 {
		return s.tempo
	}
	var total time.Duration
	for i := 1; i < len(s.taps); i++ {
		total += s.taps[i].Sub(s.taps[i-1])
	}
	mean := total / time.Duration(len(s.taps)-1)
	if mean <= 0 {
		return s.tempo
	}
	return s.setTempoLocked(float64(time.Minute) / float64(mean))
}

// SetSwing clamps and applies a swing amount in [0, 1].
func (s *Scheduler) SetSwing(swing float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swing = rytmi.Clamp(swing, 0, 1)
	return s.swing
}

func (s *Scheduler) SetQuantize(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantize = on
}

// SetTotalSteps snaps n to a supported sequence length and keeps the play
// position inside the new range.
func (s *Scheduler) SetTotalSteps(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = rytmi.NormalizeStepCount(n)
	s.stepIdx %= s.total
	return s.total
}

func (s *Scheduler) State() TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentStep returns the next grid position to play; zero when stopped.
func (s *Scheduler) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepIdx
}

func (s *Scheduler) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

func (s *Scheduler) Swing() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swing
}

func (s *Scheduler) Quantize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantize
}

func (s *Scheduler) TotalSteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
