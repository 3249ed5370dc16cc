// Package engine is the live heart of rytmi: the scheduler that walks the
// step grid, the mixer that voices triggers, the track store they share, and
// the facade that ties them to the resource and fault layers. Everything
// here is driven by the caller's goroutines plus the scheduler's timer; the
// pieces talk through the Broker so none of them ever block each other.
package engine

import (
	"time"

	"github.com/rytmilabs/rytmi"
)

type (
	// Broker is the central message broker of the engine. Communication is
	// many-to-one: every message has only one possible recipient, but
	// multiple goroutines may send to the same channel. The scheduler and
	// the fault layer publish to ToHub; input adapters (MIDI, remote
	// control) publish to ToEngine.
	//
	// The Close channels ask a loop to quit and the Finished channels
	// confirm it did, so shutdown can wait without risking a hang.
	Broker struct {
		ToEngine chan MsgToEngine
		ToHub    chan Event

		CloseEngine chan struct{}
		CloseHub    chan struct{}

		FinishedEngine chan struct{}
		FinishedHub    chan struct{}
	}

	// MsgToEngine is a command from an input adapter to the engine loop.
	MsgToEngine struct {
		Pad       *PadMsg
		Transport TransportCommand
		TapAt     time.Time // used by TransportTap
	}

	// PadMsg is a live one-shot trigger, e.g. a finger drumming a MIDI pad.
	PadMsg struct {
		Category rytmi.Category
		Velocity float64
	}

	TransportCommand int
)

const (
	TransportNone TransportCommand = iota
	TransportStart
	TransportStop
	TransportTap
)

func NewBroker() *Broker {
	return &Broker{
		ToEngine:       make(chan MsgToEngine, 1024),
		ToHub:          make(chan Event, 1024),
		CloseEngine:    make(chan struct{}, 1),
		CloseHub:       make(chan struct{}, 1),
		FinishedEngine: make(chan struct{}),
		FinishedHub:    make(chan struct{}),
	}
}

// TrySend tries to send a value to a channel and returns true if succeeded
// and false if the channel was full.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive tries to receive a value from a channel within a timeout,
// returning ok = false if it timed out.
func TimeoutReceive[T any](c <-chan T, timeout time.Duration) (v T, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v = <-c:
		return v, true
	case <-timer.C:
		var zero T
		return zero, false
	}
}
