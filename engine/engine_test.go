package engine_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/engine"
	"github.com/rytmilabs/rytmi/fault"
	"github.com/rytmilabs/rytmi/samples"
)

// fakeLoader counts retains and releases so the facade's resource
// bookkeeping is observable without rendering anything.
type fakeLoader struct {
	mu       sync.Mutex
	refs     map[string]int
	loads    map[string]int
	frames   int // sound length served by Load; 0 means 64
	unloads  int
	lastEdit [2]string
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{refs: map[string]int{}, loads: map[string]int{}}
}

func (l *fakeLoader) Load(presetID string) (rytmi.Sound, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[presetID]++
	n := l.frames
	if n == 0 {
		n = 64
	}
	return constSound(0.5, n), nil
}

func (l *fakeLoader) Retain(presetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs[presetID]++
}

func (l *fakeLoader) Release(presetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs[presetID]--; l.refs[presetID] <= 0 {
		delete(l.refs, presetID)
	}
}

func (l *fakeLoader) SetParam(presetID, paramID string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastEdit = [2]string{presetID, paramID}
	return nil
}

func (l *fakeLoader) Definition(presetID string) (rytmi.Preset, bool) {
	if strings.HasPrefix(presetID, "nope") {
		return rytmi.Preset{}, false
	}
	cat, _, _ := strings.Cut(presetID, "-")
	return rytmi.Preset{ID: presetID, Category: rytmi.Category(cat)}, true
}

func (l *fakeLoader) UnloadAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unloads++
	l.refs = map[string]int{}
}

func (l *fakeLoader) ref(presetID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs[presetID]
}

func (l *fakeLoader) loaded(presetID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[presetID]
}

func newFakeEngine(t *testing.T) (*engine.Engine, *fakeLoader, *fault.Handler) {
	t.Helper()
	broker := engine.NewBroker()
	loader := newFakeLoader()
	faults := fault.NewHandler()
	e := engine.NewEngine(broker, loader, faults)
	t.Cleanup(func() { e.Close() })
	return e, loader, faults
}

func newRealEngine(t *testing.T) (*engine.Engine, *engine.Broker) {
	t.Helper()
	catalog, err := samples.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	faults := fault.NewHandler()
	broker := engine.NewBroker()
	e := engine.NewEngine(broker, samples.NewLoader(catalog, faults), faults)
	t.Cleanup(func() { e.Close() })
	return e, broker
}

func TestEngineStartsWithDefaultBeat(t *testing.T) {
	e, _ := newRealEngine(t)
	beat := e.Beat()
	if err := beat.Validate(); err != nil {
		t.Fatalf("default beat does not validate: %v", err)
	}
	if len(beat.Tracks) != len(rytmi.Categories) {
		t.Fatalf("default beat has %d tracks, want one per category (%d)", len(beat.Tracks), len(rytmi.Categories))
	}
	if beat.Tempo != 120 || beat.TotalSteps != 16 {
		t.Errorf("default transport = %g BPM / %d steps, want 120 / 16", beat.Tempo, beat.TotalSteps)
	}
	if !beat.Tracks[0].Steps[0].Active {
		t.Errorf("default kick does not land on the downbeat")
	}
}

func TestEngineCloseTwice(t *testing.T) {
	e, loader, _ := newFakeEngine(t)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if loader.unloads == 0 {
		t.Errorf("Close did not unload resources")
	}
	if got := e.State(); got != engine.StateStopped {
		t.Errorf("State() after Close = %v, want stopped", got)
	}
}

func TestEngineTrackLifecycleRefcounts(t *testing.T) {
	e, loader, _ := newFakeEngine(t)
	if got := loader.ref("kick-classic"); got != 1 {
		t.Fatalf("default install retained kick-classic %d times, want 1", got)
	}
	added, err := e.AddTrack("Second Kick", "kick-classic")
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if got := loader.ref("kick-classic"); got != 2 {
		t.Errorf("after AddTrack refs = %d, want 2", got)
	}
	if len(added.Steps) != e.TotalSteps() {
		t.Errorf("new track has %d steps, want %d", len(added.Steps), e.TotalSteps())
	}
	if _, err := e.AddTrack("Broken", "nope-such"); err == nil {
		t.Errorf("AddTrack accepted an unknown preset")
	}
	if err := e.RemoveTrack(added.ID); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	if got := loader.ref("kick-classic"); got != 1 {
		t.Errorf("after RemoveTrack refs = %d, want 1", got)
	}
	if err := e.RemoveTrack(added.ID); err == nil {
		t.Errorf("RemoveTrack succeeded twice")
	}
}

func TestEngineSwapPreset(t *testing.T) {
	e, loader, _ := newFakeEngine(t)
	if err := e.SwapPreset("default-kick", "kick-808"); err != nil {
		t.Fatalf("SwapPreset: %v", err)
	}
	if got := loader.ref("kick-classic"); got != 0 {
		t.Errorf("old preset still retained %d times", got)
	}
	if got := loader.ref("kick-808"); got != 1 {
		t.Errorf("new preset retained %d times, want 1", got)
	}
	track, ok := e.Track("default-kick")
	if !ok || track.PresetID != "kick-808" {
		t.Errorf("track preset = %q, want kick-808", track.PresetID)
	}
	if err := e.SwapPreset("default-kick", "nope-such"); err == nil {
		t.Errorf("SwapPreset accepted an unknown preset")
	}
	if err := e.SwapPreset("zz", "kick-808"); err == nil {
		t.Errorf("SwapPreset accepted an unknown track")
	}
}

func TestEngineInstallBeatSwapsRefcounts(t *testing.T) {
	e, loader, _ := newFakeEngine(t)
	next := rytmi.Beat{
		Tempo: 140, Quantize: true, TotalSteps: 16,
		Tracks: []rytmi.Track{
			rytmi.NewTrack("n1", "One", "kick-classic", 16),
			rytmi.NewTrack("n2", "Two", "kick-classic", 16),
		},
		Master: rytmi.DefaultMasterEffects(),
	}
	if err := e.InstallBeat(next); err != nil {
		t.Fatalf("InstallBeat: %v", err)
	}
	if got := loader.ref("kick-classic"); got != 2 {
		t.Errorf("kick-classic refs = %d, want 2", got)
	}
	if got := loader.ref("bass-standard"); got != 0 {
		t.Errorf("outgoing preset still retained %d times", got)
	}
	if got := e.Tempo(); got != 140 {
		t.Errorf("tempo after install = %g, want 140", got)
	}
	bad := next
	bad.Tempo = 30
	if err := e.InstallBeat(bad); err == nil {
		t.Errorf("InstallBeat accepted an invalid beat")
	}
}

func TestEngineStepAndMixEdits(t *testing.T) {
	e, _, _ := newFakeEngine(t)
	active, err := e.ToggleStep("default-kick", 1)
	if err != nil || !active {
		t.Fatalf("ToggleStep = %v, %v, want true, nil", active, err)
	}
	active, err = e.ToggleStep("default-kick", 1)
	if err != nil || active {
		t.Fatalf("second ToggleStep = %v, %v, want false, nil", active, err)
	}
	if _, err := e.ToggleStep("zz", 0); err == nil {
		t.Errorf("ToggleStep accepted an unknown track")
	}
	if err := e.SetStepVelocity("default-kick", 99, 0.5); err == nil {
		t.Errorf("SetStepVelocity accepted an out of range index")
	}
	if err := e.SetStepVelocity("default-kick", 0, 1.8); err != nil {
		t.Fatalf("SetStepVelocity: %v", err)
	}
	if err := e.SetStepProbability("default-kick", 0, -1); err != nil {
		t.Fatalf("SetStepProbability: %v", err)
	}
	if err := e.SetStepOffset("default-kick", 0, 2); err != nil {
		t.Fatalf("SetStepOffset: %v", err)
	}
	locks := []rytmi.ParameterLock{{Param: "tune", Value: 0.7}}
	if err := e.SetStepLocks("default-kick", 0, locks); err != nil {
		t.Fatalf("SetStepLocks: %v", err)
	}
	locks[0].Value = 0 // the engine must have copied the slice
	track, _ := e.Track("default-kick")
	s := track.Steps[0]
	if s.Velocity != 1 || s.Probability != 0 || s.Offset != 0.5 {
		t.Errorf("edits did not clamp and stick: %+v", s)
	}
	if len(s.Locks) != 1 || s.Locks[0].Value != 0.7 {
		t.Errorf("locks aliased the caller's slice: %+v", s.Locks)
	}

	if err := e.SetVolume("default-kick", 1.5); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if err := e.SetPan("default-kick", -3); err != nil {
		t.Fatalf("SetPan: %v", err)
	}
	fx := rytmi.DefaultTrackEffects()
	fx.Filter.Cutoff = 9
	if err := e.SetTrackEffects("default-kick", fx); err != nil {
		t.Fatalf("SetTrackEffects: %v", err)
	}
	track, _ = e.Track("default-kick")
	if track.Volume != 1 || track.Pan != -1 || track.Effects.Filter.Cutoff != 1 {
		t.Errorf("mix edits did not clamp: vol %g pan %g cutoff %g",
			track.Volume, track.Pan, track.Effects.Filter.Cutoff)
	}
	if err := e.SetMuted("default-kick", true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}
	if err := e.SetSolo("default-hats", true); err != nil {
		t.Fatalf("SetSolo: %v", err)
	}
	track, _ = e.Track("default-kick")
	hats, _ := e.Track("default-hats")
	if !track.Muted || !hats.Solo {
		t.Errorf("mute/solo flags did not stick")
	}
}

func TestEngineSetTotalStepsResizesEveryTrack(t *testing.T) {
	e, _, _ := newFakeEngine(t)
	if got := e.SetTotalSteps(24); got != 32 {
		t.Fatalf("SetTotalSteps(24) = %d, want 32", got)
	}
	for _, track := range e.Tracks() {
		if len(track.Steps) != 32 {
			t.Fatalf("track %s has %d steps after resize, want 32", track.Name, len(track.Steps))
		}
	}
	if e.Beat().TotalSteps != 32 {
		t.Errorf("beat snapshot does not reflect the resize")
	}
}

func TestEngineApplyPattern(t *testing.T) {
	e, _, _ := newFakeEngine(t)
	master := rytmi.DefaultMasterEffects()
	master.Limiter = 0.5
	resp := &rytmi.PatternResponse{
		Tracks: []rytmi.Track{
			rytmi.NewTrack("g1", "Kick", "kick-classic", 16),
			rytmi.NewTrack("g2", "Hats", "hat-closed", 16),
		},
		Master: master,
		Tempo:  135,
	}
	if err := e.ApplyPattern(resp); err != nil {
		t.Fatalf("ApplyPattern: %v", err)
	}
	if got := len(e.Tracks()); got != 2 {
		t.Errorf("engine has %d tracks after apply, want 2", got)
	}
	if got := e.Tempo(); got != 135 {
		t.Errorf("tempo = %g, want 135", got)
	}
	if got := e.MasterEffects().Limiter; got != 0.5 {
		t.Errorf("master limiter = %g, want 0.5", got)
	}
	if err := e.ApplyPattern(nil); err == nil {
		t.Errorf("ApplyPattern accepted nil")
	}
	if err := e.ApplyPattern(&rytmi.PatternResponse{}); err == nil {
		t.Errorf("ApplyPattern accepted an empty response")
	}
}

func TestEngineSetPresetParamRoutesThroughLoader(t *testing.T) {
	e, loader, _ := newFakeEngine(t)
	if err := e.SetPresetParam("default-kick", "tune", 0.3); err != nil {
		t.Fatalf("SetPresetParam: %v", err)
	}
	if loader.lastEdit != [2]string{"kick-classic", "tune"} {
		t.Errorf("loader saw edit %v, want kick-classic/tune", loader.lastEdit)
	}
	if err := e.SetPresetParam("zz", "tune", 0.3); err == nil {
		t.Errorf("SetPresetParam accepted an unknown track")
	}
}

func TestEnginePadTrigger(t *testing.T) {
	e, loader, _ := newFakeEngine(t)
	e.PadTrigger(rytmi.CategoryKick, 1)
	if got := loader.loaded("kick-classic"); got != 1 {
		t.Errorf("pad did not voice the kick track's preset, loads = %d", got)
	}
	// with the snare track gone the pad falls back to the category preset
	if err := e.RemoveTrack("default-snare"); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	e.PadTrigger(rytmi.CategorySnare, 0.8)
	if got := loader.loaded("snare-classic"); got != 1 {
		t.Errorf("trackless pad did not load the fallback preset, loads = %d", got)
	}
}

func TestEngineBrokerCommands(t *testing.T) {
	e, loader, _ := newFakeEngine(t)
	broker := e.Broker()
	engine.TrySend(broker.ToEngine, engine.MsgToEngine{Transport: engine.TransportStart})
	deadline := time.Now().Add(2 * time.Second)
	for e.State() != engine.StatePlaying && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := e.State(); got != engine.StatePlaying {
		t.Fatalf("State() = %v after TransportStart, want playing", got)
	}
	engine.TrySend(broker.ToEngine, engine.MsgToEngine{Transport: engine.TransportStop})
	deadline = time.Now().Add(2 * time.Second)
	for e.State() != engine.StateStopped && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := e.State(); got != engine.StateStopped {
		t.Fatalf("State() = %v after TransportStop, want stopped", got)
	}
	pad := &engine.PadMsg{Category: rytmi.CategoryBass, Velocity: 0.9}
	engine.TrySend(broker.ToEngine, engine.MsgToEngine{Pad: pad})
	deadline = time.Now().Add(2 * time.Second)
	for loader.loaded("bass-standard") == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if loader.loaded("bass-standard") == 0 {
		t.Errorf("pad message never voiced the bass")
	}
}

func TestEngineEventsReachSubscribers(t *testing.T) {
	e, _, faults := newFakeEngine(t)
	sub, ch := e.Subscribe(64)
	defer sub.Close()
	e.SetTempo(90)
	if ev := nextEvent(t, ch, engine.EventTempo); ev.Tempo != 90 {
		t.Errorf("tempo event carries %g, want 90", ev.Tempo)
	}
	faults.Report(rytmi.ErrorRecord{Kind: rytmi.ErrSampleLoad, Message: "x"})
	ev := nextEvent(t, ch, engine.EventError)
	if ev.Err == nil || ev.Err.Kind != rytmi.ErrSampleLoad {
		t.Errorf("error event carries %+v, want the reported record", ev.Err)
	}
}

// checkEngine asserts the invariants no command sequence may break: the
// session always validates, and the transport stays inside its ranges.
func checkEngine(e *engine.Engine) error {
	beat := e.Beat()
	if err := beat.Validate(); err != nil {
		return err
	}
	if n := e.TotalSteps(); n != 16 && n != 32 && n != 64 {
		return fmt.Errorf("total steps %d", n)
	}
	if tempo := e.Tempo(); tempo < rytmi.MinTempo || tempo > rytmi.MaxTempo {
		return fmt.Errorf("tempo %g", tempo)
	}
	if swing := e.Swing(); swing < 0 || swing > 1 {
		return fmt.Errorf("swing %g", swing)
	}
	if step := e.CurrentStep(); step < 0 || step >= e.TotalSteps() {
		return fmt.Errorf("current step %d", step)
	}
	return nil
}

func FuzzEngineCommands(f *testing.F) {
	f.Add([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	f.Add([]byte{250, 130, 7, 66, 0, 0, 3, 9, 27, 81, 44, 190, 2})
	f.Fuzz(func(t *testing.T, data []byte) {
		broker := engine.NewBroker()
		loader := newFakeLoader()
		e := engine.NewEngine(broker, loader, fault.NewHandler())
		defer e.Close()
		trackID := func(seed int) string {
			tracks := e.Tracks()
			if len(tracks) == 0 {
				return ""
			}
			return tracks[seed%len(tracks)].ID
		}
		ops := []func(seed int){
			func(seed int) { e.ToggleStep(trackID(seed), seed%70) },
			func(seed int) { e.SetStepVelocity(trackID(seed), seed%70, float64(seed%30)/10) },
			func(seed int) { e.SetStepProbability(trackID(seed), seed%70, float64(seed%30)/10-1) },
			func(seed int) { e.SetStepOffset(trackID(seed), seed%70, float64(seed%30)/10-1.5) },
			func(seed int) {
				e.SetStepLocks(trackID(seed), seed%70, []rytmi.ParameterLock{{Param: "tune", Value: float64(seed % 4)}})
			},
			func(seed int) { e.SetTempo(float64(seed % 300)) },
			func(seed int) { e.SetSwing(float64(seed%20)/10 - 0.5) },
			func(seed int) { e.SetTotalSteps(seed % 100) },
			func(seed int) { e.SetQuantize(seed%2 == 0) },
			func(seed int) { e.Play() },
			func(seed int) { e.Pause() },
			func(seed int) { e.Stop() },
			func(seed int) { e.TapTempo() },
			func(seed int) { e.AddTrack("Fuzz", "kick-classic") },
			func(seed int) { e.RemoveTrack(trackID(seed)) },
			func(seed int) { e.SwapPreset(trackID(seed), "hat-closed") },
			func(seed int) { e.SetMuted(trackID(seed), seed%2 == 0) },
			func(seed int) { e.SetSolo(trackID(seed), seed%2 == 0) },
			func(seed int) { e.SetVolume(trackID(seed), float64(seed%30)/10-1) },
			func(seed int) { e.SetPan(trackID(seed), float64(seed%30)/10-2) },
			func(seed int) { e.PadTrigger(rytmi.Categories[seed%len(rytmi.Categories)], float64(seed%10)/10) },
			func(seed int) { e.InstallBeat(engine.DefaultBeat()) },
			func(seed int) { e.SetPresetParam(trackID(seed), "tune", float64(seed%40)/10-2) },
		}
		reader := bytes.NewReader(data)
		for m, err := binary.ReadVarint(reader); err == nil; m, err = binary.ReadVarint(reader) {
			seed := int(m)
			if seed < 0 {
				seed = ^seed
			}
			ops[seed%len(ops)](seed)
			if err := checkEngine(e); err != nil {
				t.Fatalf("engine state broke after op %d: %v", seed%len(ops), err)
			}
		}
	})
}
