// Package fault keeps a session playable when resources misbehave: it
// resolves failed preset loads to substitutes through a fallback chain,
// records every failure, and fans records out to subscribers. Handlers never
// panic into their callers; a failure here degrades the sound, not the app.
package fault

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rytmilabs/rytmi"
)

// UltimateFallback is the preset every chain ends at. It ships with the
// catalog and renders from nothing but math, so it cannot fail to load.
const UltimateFallback = "kick-classic"

// maxRecords caps the error history; older records fall off the front.
const maxRecords = 128

type (
	// Handler is the session-wide failure sink. The zero value is not
	// usable; create one with NewHandler.
	Handler struct {
		mu        sync.Mutex
		fallbacks map[string]string
		ultimate  string
		records   []rytmi.ErrorRecord
		subs      map[uuid.UUID]func(rytmi.ErrorRecord)
		now       func() time.Time
	}

	// Subscription is a disposable handle to a record stream. Closing it
	// detaches the callback; closing twice is fine.
	Subscription struct {
		id uuid.UUID
		h  *Handler
	}
)

// NewHandler returns a handler with the built-in fallback table: exact
// preset substitutions, category prefixes, and the ultimate kick at the end
// of every chain.
func NewHandler() *Handler {
	return &Handler{
		fallbacks: map[string]string{
			"kick":       "kick-classic",
			"bass":       "bass-standard",
			"hat":        "hat-closed",
			"snare":      "snare-classic",
			"clap":       "clap-classic",
			"perc":       "perc-shaker",
			"synth":      "synth-lead-bright",
			"synth-lead": "synth-lead-bright",
			"synth-pad":  "synth-pad-warm",
			"synth-acid": "synth-acid-303",
			"fx":         "fx-noise",
		},
		ultimate: UltimateFallback,
		subs:     map[uuid.UUID]func(rytmi.ErrorRecord){},
		now:      time.Now,
	}
}

// SetFallback adds or overrides one entry of the fallback table. The key may
// be an exact preset id or a prefix shared by a family of presets.
func (h *Handler) SetFallback(key, substitute string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallbacks[key] = substitute
}

// Fallback resolves a substitute for a preset that failed: first an exact
// table match, then the longest prefix match, finally the ultimate kick. It
// reports false when no substitute other than the preset itself exists, so
// callers never retry a load with the same id that just failed.
func (h *Handler) Fallback(presetID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.fallbacks[presetID]
	if !ok {
		best := -1
		for key, val := range h.fallbacks {
			if len(key) > best && len(key) < len(presetID) && strings.HasPrefix(presetID, key) {
				best = len(key)
				sub = val
			}
		}
		ok = best >= 0
	}
	if !ok {
		sub = h.ultimate
	}
	if sub == presetID {
		return "", false
	}
	return sub, true
}

// Report stores one failure and notifies subscribers. A zero At is filled
// with the current time. The stored record is returned.
func (h *Handler) Report(rec rytmi.ErrorRecord) rytmi.ErrorRecord {
	h.mu.Lock()
	if rec.At.IsZero() {
		rec.At = h.now()
	}
	h.records = append(h.records, rec)
	if len(h.records) > maxRecords {
		h.records = h.records[len(h.records)-maxRecords:]
	}
	subs := make([]func(rytmi.ErrorRecord), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		notify(fn, rec)
	}
	return rec
}

// notify runs one subscriber callback, swallowing panics so a bad subscriber
// cannot take the reporter down with it.
func notify(fn func(rytmi.ErrorRecord), rec rytmi.ErrorRecord) {
	defer func() {
		recover()
	}()
	fn(rec)
}

// Records returns a copy of the error history, oldest first.
func (h *Handler) Records() []rytmi.ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	ret := make([]rytmi.ErrorRecord, len(h.records))
	copy(ret, h.records)
	return ret
}

// Clear drops the error history. Subscriptions stay.
func (h *Handler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = h.records[:0]
}

// Subscribe registers a callback for every future record. Callbacks run on
// the reporting goroutine and should return quickly.
func (h *Handler) Subscribe(fn func(rytmi.ErrorRecord)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New()
	h.subs[id] = fn
	return Subscription{id: id, h: h}
}

// Close detaches the subscription.
func (s Subscription) Close() error {
	if s.h == nil {
		return nil
	}
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	delete(s.h.subs, s.id)
	return nil
}
