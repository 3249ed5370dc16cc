//go:build cgo

package cmd

import (
	"github.com/rytmilabs/rytmi/engine"
	"github.com/rytmilabs/rytmi/gomidi"
)

func NewMidiContext(broker *engine.Broker) MIDIContext {
	return gomidi.NewContext(broker)
}
