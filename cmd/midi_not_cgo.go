//go:build !cgo

package cmd

import (
	"github.com/rytmilabs/rytmi/engine"
)

func NewMidiContext(broker *engine.Broker) MIDIContext {
	// with no cgo, we cannot use MIDI, so return a null context
	return NullMIDIContext{}
}
