package cmd

import "errors"

// MIDIContext is what a binary needs from the MIDI layer: pick a device and
// shut down. The real implementation lives in the gomidi package; builds
// without cgo get NullMIDIContext instead.
type MIDIContext interface {
	TryToOpenBy(namePrefix string, takeFirst bool) error
	HasDeviceOpen() bool
	Close()
}

// NullMIDIContext ignores MIDI but still errors when a device was
// explicitly asked for.
type NullMIDIContext struct{}

func (NullMIDIContext) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	return errors.New("MIDI support is not compiled in")
}

func (NullMIDIContext) HasDeviceOpen() bool { return false }
func (NullMIDIContext) Close()              {}
