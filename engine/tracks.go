package engine

import (
	"sync"

	"github.com/rytmilabs/rytmi"
)

// TrackList is the shared, synchronized store of live tracks. The facade
// mutates it from caller goroutines while the scheduler reads a consistent
// view on every tick, so all access goes through the mutex. Tracks go in and
// out by deep copy; nothing outside ever aliases the stored slices.
type TrackList struct {
	mu     sync.Mutex
	tracks []rytmi.Track
}

func NewTrackList() *TrackList {
	return &TrackList{}
}

// View calls f with the live track slice while holding the lock. f must not
// retain or mutate the slice.
func (l *TrackList) View(f func(tracks []rytmi.Track)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(l.tracks)
}

// Snapshot returns a deep copy of every track.
func (l *TrackList) Snapshot() []rytmi.Track {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := make([]rytmi.Track, 0, len(l.tracks))
	for i := range l.tracks {
		ret = append(ret, l.tracks[i].Copy())
	}
	return ret
}

// Replace swaps in a whole new set of tracks, deep copying them.
func (l *TrackList) Replace(tracks []rytmi.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = make([]rytmi.Track, 0, len(tracks))
	for i := range tracks {
		l.tracks = append(l.tracks, tracks[i].Copy())
	}
}

// Add appends a copy of the track.
func (l *TrackList) Add(t rytmi.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = append(l.tracks, t.Copy())
}

// Remove deletes the track with the given id, returning the removed track.
func (l *TrackList) Remove(id string) (rytmi.Track, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.tracks {
		if l.tracks[i].ID == id {
			removed := l.tracks[i]
			l.tracks = append(l.tracks[:i], l.tracks[i+1:]...)
			return removed, true
		}
	}
	return rytmi.Track{}, false
}

// Get returns a deep copy of the track with the given id.
func (l *TrackList) Get(id string) (rytmi.Track, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.tracks {
		if l.tracks[i].ID == id {
			return l.tracks[i].Copy(), true
		}
	}
	return rytmi.Track{}, false
}

// Update applies f to the track with the given id under the lock and reports
// whether the track existed.
func (l *TrackList) Update(id string, f func(*rytmi.Track)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.tracks {
		if l.tracks[i].ID == id {
			f(&l.tracks[i])
			return true
		}
	}
	return false
}

// SetLength resizes every track's grid to n steps.
func (l *TrackList) SetLength(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.tracks {
		l.tracks[i].SetLength(n)
	}
}

// Len returns the number of tracks.
func (l *TrackList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tracks)
}

// PresetIDs returns the preset of every track, in track order, duplicates
// included.
func (l *TrackList) PresetIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := make([]string, 0, len(l.tracks))
	for i := range l.tracks {
		ret = append(ret, l.tracks[i].PresetID)
	}
	return ret
}
