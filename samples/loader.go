package samples

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/fault"
)

type (
	// Sound is a loaded resource: the preset definition it was rendered from
	// and the resulting PCM. Sounds are immutable once created; a parameter
	// edit makes the loader render a fresh one, while voices already playing
	// the old PCM finish undisturbed.
	Sound struct {
		preset rytmi.Preset
		pcm    []float32
	}

	// entry is one cache slot, keyed by the preset id the caller asked for.
	// def carries local parameter edits; sound is nil until rendered and
	// again after an edit invalidates it.
	entry struct {
		def   rytmi.Preset
		sound *Sound
		refs  int
	}

	// Loader caches rendered sounds by preset id and owns their lifetime.
	// Loading a preset that fails resolves through the fault handler's
	// fallback chain exactly once before the error surfaces; every failure
	// is recorded either way.
	Loader struct {
		mu      sync.Mutex
		catalog *Catalog
		faults  *fault.Handler
		cache   map[string]*entry
	}
)

func (s *Sound) Preset() rytmi.Preset { return s.preset.Copy() }
func (s *Sound) PCM() []float32       { return s.pcm }

func NewLoader(catalog *Catalog, faults *fault.Handler) *Loader {
	return &Loader{
		catalog: catalog,
		faults:  faults,
		cache:   map[string]*entry{},
	}
}

// Load returns the sound for a preset id, rendering and caching it on first
// use. Repeated calls with the same id return the same instance until an
// edit or unload invalidates it. Load never touches the retain count.
func (l *Loader) Load(presetID string) (rytmi.Sound, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(presetID)
}

func (l *Loader) loadLocked(presetID string) (rytmi.Sound, error) {
	e := l.ensureLocked(presetID)
	if e != nil && e.sound != nil {
		return e.sound, nil
	}
	var err error
	kind := rytmi.ErrSampleLoad
	if e == nil || e.def.ID == "" {
		err = fmt.Errorf("unknown preset %q", presetID)
		kind = rytmi.ErrPresetLoad
	} else {
		var pcm []float32
		if pcm, err = RenderPreset(e.def); err == nil {
			e.sound = &Sound{preset: e.def.Copy(), pcm: pcm}
			return e.sound, nil
		}
	}
	// one trip through the fallback chain before giving up
	if subID, ok := l.faults.Fallback(presetID); ok {
		if subDef, found := l.catalog.Preset(subID); found {
			if pcm, subErr := RenderPreset(subDef); subErr == nil {
				if e == nil {
					e = &entry{def: subDef}
					l.cache[presetID] = e
				}
				e.sound = &Sound{preset: subDef, pcm: pcm}
				l.faults.Report(rytmi.ErrorRecord{
					Kind:      kind,
					Severity:  rytmi.SeverityMedium,
					Message:   err.Error(),
					PresetID:  presetID,
					Recovered: true,
					Recovery:  "substituted " + subID,
				})
				return e.sound, nil
			}
		}
	}
	l.faults.Report(rytmi.ErrorRecord{
		Kind:     kind,
		Severity: rytmi.SeverityHigh,
		Message:  err.Error(),
		PresetID: presetID,
	})
	return nil, fmt.Errorf("load %q: %w", presetID, err)
}

// ensureLocked returns the cache entry for a preset, creating it from the
// catalog definition when needed. Unknown presets return nil.
func (l *Loader) ensureLocked(presetID string) *entry {
	if e, ok := l.cache[presetID]; ok {
		return e
	}
	def, ok := l.catalog.Preset(presetID)
	if !ok {
		return nil
	}
	e := &entry{def: def}
	l.cache[presetID] = e
	return e
}

// Retain marks one more holder of the preset, typically a track that uses
// it. Retaining does not render; the first Load does.
func (l *Loader) Retain(presetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e := l.ensureLocked(presetID); e != nil {
		e.refs++
		return
	}
	// unknown presets get a bare slot so Release stays balanced
	e := l.cache[presetID]
	if e == nil {
		e = &entry{}
		l.cache[presetID] = e
	}
	e.refs++
}

// Release drops one holder. When the count reaches zero the rendered audio
// is freed; local parameter edits survive so re-adding the preset sounds the
// same as before.
func (l *Loader) Release(presetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.cache[presetID]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		e.refs = 0
		e.sound = nil
	}
}

// SetParam edits one parameter of a preset, clamping the value to the
// parameter's range, and invalidates the cached audio so the next Load
// renders with the new value.
func (l *Loader) SetParam(presetID, paramID string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.ensureLocked(presetID)
	if e == nil || e.def.ID == "" {
		return fmt.Errorf("unknown preset %q", presetID)
	}
	if !e.def.SetParam(paramID, value) {
		return fmt.Errorf("preset %q has no parameter %q", presetID, paramID)
	}
	e.sound = nil
	return nil
}

// Definition returns the preset definition the loader would render for an
// id, including local edits.
func (l *Loader) Definition(presetID string) (rytmi.Preset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.ensureLocked(presetID)
	if e == nil || e.def.ID == "" {
		return rytmi.Preset{}, false
	}
	return e.def.Copy(), true
}

// Preload renders every listed preset ahead of playback. Failures are
// recorded by Load; Preload itself never fails.
func (l *Loader) Preload(presetIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range presetIDs {
		l.loadLocked(id)
	}
}

// UnloadAll drops every cache slot, audio and edits alike. Calling it twice
// in a row is fine.
func (l *Loader) UnloadAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = map[string]*entry{}
}

// Loaded returns the ids that currently hold rendered audio, sorted.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ret []string
	for id, e := range l.cache {
		if e.sound != nil {
			ret = append(ret, id)
		}
	}
	sort.Strings(ret)
	return ret
}
