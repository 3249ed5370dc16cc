package engine_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/engine"
	"github.com/rytmilabs/rytmi/fault"
)

// triggerLog records every trigger the scheduler fires. Triggers fire on the
// caller's goroutine for step zero and on the timer goroutine afterwards, so
// everything locks.
type triggerLog struct {
	mu    sync.Mutex
	names []string
	steps []int
	err   error
}

func (l *triggerLog) fire(track rytmi.Track, step rytmi.Step, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, track.Name)
	l.steps = append(l.steps, index)
	return l.err
}

func (l *triggerLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

func (l *triggerLog) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func activeTrack(id, name string, steps ...int) rytmi.Track {
	t := rytmi.NewTrack(id, name, "kick-classic", 16)
	for _, i := range steps {
		t.Steps[i].Active = true
	}
	return t
}

func newScheduler(log *triggerLog, tracks ...rytmi.Track) (*engine.Scheduler, *engine.Broker, *fault.Handler) {
	broker := engine.NewBroker()
	faults := fault.NewHandler()
	list := engine.NewTrackList()
	list.Replace(tracks)
	s := engine.NewScheduler(broker, list, log.fire, faults)
	return s, broker, faults
}

// nextEvent pulls events until one of the wanted kind arrives.
func nextEvent(t *testing.T, c <-chan engine.Event, kind engine.EventKind) engine.Event {
	t.Helper()
	for {
		ev, ok := engine.TimeoutReceive(c, 2*time.Second)
		if !ok {
			t.Fatalf("timed out waiting for a %v event", kind)
		}
		if ev.Kind == kind {
			return ev
		}
	}
}

func TestSetTempoClamps(t *testing.T) {
	s, _, _ := newScheduler(&triggerLog{})
	tests := []struct{ in, want float64 }{
		{250, 200}, {10, 60}, {140, 140}, {60, 60}, {200, 200},
	}
	for _, test := range tests {
		if got := s.SetTempo(test.in); got != test.want {
			t.Errorf("SetTempo(%g) = %g, want %g", test.in, got, test.want)
		}
		if got := s.Tempo(); got != test.want {
			t.Errorf("Tempo() after SetTempo(%g) = %g, want %g", test.in, got, test.want)
		}
	}
}

func TestPlayProcessesStepZeroBeforeReturning(t *testing.T) {
	log := &triggerLog{}
	s, broker, _ := newScheduler(log, activeTrack("a", "Kick", 0))
	s.SetTempo(60) // 250ms steps keep the timer out of this test
	s.Play()
	if log.count() != 1 {
		t.Fatalf("step zero fired %d triggers before Play returned, want 1", log.count())
	}
	s.Stop()
	if got := s.CurrentStep(); got != 0 {
		t.Errorf("CurrentStep() after Stop = %d, want 0", got)
	}
	if got := s.State(); got != engine.StateStopped {
		t.Errorf("State() after Stop = %v, want stopped", got)
	}
	// the synchronous step zero produced its timing events: transport,
	// then step, bar and pattern for tick zero, then the stop transport
	wantKinds := []engine.EventKind{
		engine.EventTransport, engine.EventStep, engine.EventBar,
		engine.EventPattern, engine.EventTransport,
	}
	for i, want := range wantKinds {
		ev, ok := engine.TimeoutReceive(broker.ToHub, time.Second)
		if !ok {
			t.Fatalf("event %d: nothing arrived, want %v", i, want)
		}
		if ev.Kind != want {
			t.Fatalf("event %d = %v, want %v", i, ev.Kind, want)
		}
		if want == engine.EventStep && ev.Step != 0 {
			t.Errorf("step event carries step %d, want 0", ev.Step)
		}
	}
}

func TestSchedulerTicksWrapAndStopEndsThem(t *testing.T) {
	log := &triggerLog{}
	s, broker, _ := newScheduler(log, activeTrack("a", "Kick"))
	s.SetTempo(200) // 75ms steps
	s.Play()
	var got []int
	for len(got) < 17 {
		ev := nextEvent(t, broker.ToHub, engine.EventStep)
		got = append(got, ev.Step)
	}
	s.Stop()
	for i, step := range got {
		if step != i%16 {
			t.Fatalf("step event %d carries step %d, want %d", i, step, i%16)
		}
	}
	// drain whatever was in flight, then the stream must stay silent
	for {
		if _, ok := engine.TimeoutReceive(broker.ToHub, 50*time.Millisecond); !ok {
			break
		}
	}
	if ev, ok := engine.TimeoutReceive(broker.ToHub, 200*time.Millisecond); ok {
		t.Errorf("event %v arrived after Stop", ev.Kind)
	}
}

func TestPauseKeepsPositionStopResets(t *testing.T) {
	log := &triggerLog{}
	s, broker, _ := newScheduler(log, activeTrack("a", "Kick", 0))
	s.SetTempo(60)
	s.Play()
	s.Pause()
	if got := s.CurrentStep(); got != 1 {
		t.Fatalf("CurrentStep() after pause = %d, want 1", got)
	}
	if got := s.State(); got != engine.StatePaused {
		t.Fatalf("State() after pause = %v, want paused", got)
	}
	// drain the events so far, then resume and expect step 1 next
	for {
		if _, ok := engine.TimeoutReceive(broker.ToHub, 50*time.Millisecond); !ok {
			break
		}
	}
	s.Play()
	if ev := nextEvent(t, broker.ToHub, engine.EventStep); ev.Step != 1 {
		t.Errorf("first step after resume = %d, want 1", ev.Step)
	}
	s.Stop()
	if got := s.CurrentStep(); got != 0 {
		t.Errorf("CurrentStep() after stop = %d, want 0", got)
	}
}

func TestPauseWhileStoppedAndPlayWhilePlayingAreNoOps(t *testing.T) {
	log := &triggerLog{}
	s, _, _ := newScheduler(log, activeTrack("a", "Kick", 0))
	s.SetTempo(60)
	s.Pause()
	if got := s.State(); got != engine.StateStopped {
		t.Fatalf("Pause while stopped moved state to %v", got)
	}
	s.Play()
	s.Play() // must not re-process step zero
	if log.count() != 1 {
		t.Errorf("double Play fired %d triggers, want 1", log.count())
	}
	s.Stop()
	s.Stop()
	if got := s.State(); got != engine.StateStopped {
		t.Errorf("double Stop left state %v", got)
	}
}

func TestTapTempo(t *testing.T) {
	s, _, _ := newScheduler(&triggerLog{})
	s.SetTempo(100)
	t0 := time.Unix(1000, 0)
	if got := s.TapTempo(t0); got != 100 {
		t.Errorf("first tap changed tempo to %g, want 100 unchanged", got)
	}
	if got := s.TapTempo(t0.Add(500 * time.Millisecond)); got != 120 {
		t.Errorf("two taps 500ms apart give %g, want 120", got)
	}
	if got := s.TapTempo(t0.Add(1000 * time.Millisecond)); got != 120 {
		t.Errorf("three even taps give %g, want 120", got)
	}
	// a three second silence restarts the window without touching the tempo
	if got := s.TapTempo(t0.Add(4 * time.Second)); got != 120 {
		t.Errorf("tap after a long gap changed tempo to %g, want 120", got)
	}
	if got := s.Tempo(); got != 120 {
		t.Errorf("tempo after window restart = %g, want 120", got)
	}
}

func TestTapTempoClamps(t *testing.T) {
	s, _, _ := newScheduler(&triggerLog{})
	t0 := time.Unix(2000, 0)
	s.TapTempo(t0)
	if got := s.TapTempo(t0.Add(200 * time.Millisecond)); got != 200 {
		t.Errorf("200ms taps give %g, want the 200 ceiling", got)
	}
	s2, _, _ := newScheduler(&triggerLog{})
	s2.TapTempo(t0)
	if got := s2.TapTempo(t0.Add(1500 * time.Millisecond)); got != 60 {
		t.Errorf("1500ms taps give %g, want the 60 floor", got)
	}
}

func TestTapTempoWindowKeepsFourTaps(t *testing.T) {
	s, _, _ := newScheduler(&triggerLog{})
	t0 := time.Unix(3000, 0)
	// two slow taps, then three fast ones; the slow gap must age out
	s.TapTempo(t0)
	s.TapTempo(t0.Add(1000 * time.Millisecond))
	s.TapTempo(t0.Add(1400 * time.Millisecond))
	s.TapTempo(t0.Add(1800 * time.Millisecond))
	got := s.TapTempo(t0.Add(2200 * time.Millisecond))
	// window holds the last four taps, all 400ms apart
	if got != 150 {
		t.Errorf("tempo = %g, want 150 from the four newest taps", got)
	}
}

func TestTriggerFailureDoesNotHaltTheLoop(t *testing.T) {
	log := &triggerLog{err: errors.New("no sound")}
	s, broker, faults := newScheduler(log, activeTrack("a", "Kick"))
	s.SetTempo(200)
	s.Play()
	defer s.Stop()
	for i := 0; i < 3; i++ {
		nextEvent(t, broker.ToHub, engine.EventStep)
	}
	if got := s.State(); got != engine.StatePlaying {
		t.Fatalf("State() = %v after trigger failures, want playing", got)
	}
	recs := faults.Records()
	if len(recs) == 0 {
		t.Fatalf("trigger failures were not recorded")
	}
	if recs[0].Kind != rytmi.ErrPlayback {
		t.Errorf("record kind = %v, want playback", recs[0].Kind)
	}
}

func TestMuteAndSoloGateTriggers(t *testing.T) {
	a := activeTrack("a", "A", 0)
	b := activeTrack("b", "B", 0)
	b.Muted = true
	log := &triggerLog{}
	s, _, _ := newScheduler(log, a, b)
	s.SetTempo(60)
	s.Play()
	s.Stop()
	if got := log.seen(); len(got) != 1 || got[0] != "A" {
		t.Errorf("muted track audible: triggers %v, want [A]", got)
	}

	c := activeTrack("c", "C", 0)
	d := activeTrack("d", "D", 0)
	d.Solo = true
	log2 := &triggerLog{}
	s2, _, _ := newScheduler(log2, c, d)
	s2.SetTempo(60)
	s2.Play()
	s2.Stop()
	if got := log2.seen(); len(got) != 1 || got[0] != "D" {
		t.Errorf("solo gating wrong: triggers %v, want [D]", got)
	}

	// muted wins even when soloed
	e := activeTrack("e", "E", 0)
	e.Solo = true
	e.Muted = true
	log3 := &triggerLog{}
	s3, _, _ := newScheduler(log3, e)
	s3.SetTempo(60)
	s3.Play()
	s3.Stop()
	if got := log3.count(); got != 0 {
		t.Errorf("muted solo track fired %d triggers, want 0", got)
	}
}

func TestZeroProbabilityStepNeverFires(t *testing.T) {
	a := activeTrack("a", "A", 0)
	a.Steps[0].Probability = 0
	log := &triggerLog{}
	s, _, _ := newScheduler(log, a)
	s.SetTempo(60)
	s.Play()
	s.Stop()
	if got := log.count(); got != 0 {
		t.Errorf("probability zero step fired %d times", got)
	}
}

func TestOffsetDefersOnlyWhenUnquantized(t *testing.T) {
	a := activeTrack("a", "A", 0)
	a.Steps[0].SetOffset(0.3)
	log := &triggerLog{}
	s, _, _ := newScheduler(log, a)
	s.SetTempo(60)
	s.Play() // quantized: the offset is ignored and step zero fires inline
	if log.count() != 1 {
		t.Fatalf("quantized offset step fired %d times before Play returned, want 1", log.count())
	}
	s.Stop()

	log2 := &triggerLog{}
	s2, _, _ := newScheduler(log2, a)
	s2.SetTempo(200)
	s2.SetQuantize(false)
	s2.Play() // unquantized: the trigger is deferred past the tick
	if log2.count() != 0 {
		t.Fatalf("unquantized offset trigger fired inline")
	}
	deadline := time.Now().Add(2 * time.Second)
	for log2.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s2.Stop()
	if log2.count() == 0 {
		t.Errorf("deferred trigger never fired")
	}
}

func TestSetTotalStepsSnapsAndWraps(t *testing.T) {
	s, _, _ := newScheduler(&triggerLog{})
	tests := []struct{ in, want int }{{10, 16}, {16, 16}, {24, 32}, {33, 64}, {64, 64}, {100, 64}}
	for _, test := range tests {
		if got := s.SetTotalSteps(test.in); got != test.want {
			t.Errorf("SetTotalSteps(%d) = %d, want %d", test.in, got, test.want)
		}
	}
	if got := s.TotalSteps(); got != 64 {
		t.Errorf("TotalSteps() = %d, want 64", got)
	}
}

func TestSwingSettersClamp(t *testing.T) {
	s, _, _ := newScheduler(&triggerLog{})
	if got := s.SetSwing(1.4); got != 1 {
		t.Errorf("SetSwing(1.4) = %g, want 1", got)
	}
	if got := s.SetSwing(-0.2); got != 0 {
		t.Errorf("SetSwing(-0.2) = %g, want 0", got)
	}
	if got := s.SetSwing(0.5); got != 0.5 || s.Swing() != 0.5 {
		t.Errorf("SetSwing(0.5) = %g, Swing() = %g, want 0.5", got, s.Swing())
	}
}
