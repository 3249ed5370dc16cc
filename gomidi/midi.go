//go:build cgo

// Package gomidi feeds live MIDI input into the engine: note-ons become pad
// triggers for the matching category, the realtime start and stop messages
// drive the transport, and a sustain pedal press taps the tempo. Delivery is
// non-blocking; input the engine cannot take right now is dropped.
package gomidi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/engine"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	RTMIDIContext struct {
		driver             *rtmididrv.Driver
		broker             *engine.Broker
		currentIn          drivers.In
		inputDevices       []RTMIDIDevice
		devicesInitialized bool
	}

	RTMIDIDevice struct {
		context *RTMIDIContext
		in      drivers.In
	}
)

// NewContext opens the MIDI driver. Input from whichever device is opened
// later flows into the broker.
func NewContext(broker *engine.Broker) *RTMIDIContext {
	m := RTMIDIContext{broker: broker}
	// there's not much we can do if this fails, so just use m.driver = nil to
	// indicate no driver available
	m.driver, _ = rtmididrv.New()
	return &m
}

func (m *RTMIDIContext) InputDevices(yield func(RTMIDIDevice) bool) {
	if m.devicesInitialized {
		m.yieldCachedInputDevices(yield)
	} else {
		m.initInputDevices(yield)
	}
}

func (m *RTMIDIContext) yieldCachedInputDevices(yield func(RTMIDIDevice) bool) {
	for _, device := range m.inputDevices {
		if !yield(device) {
			break
		}
	}
}

func (m *RTMIDIContext) initInputDevices(yield func(RTMIDIDevice) bool) {
	if m.driver == nil {
		return
	}
	ins, err := m.driver.Ins()
	if err != nil {
		return
	}
	for i := 0; i < len(ins); i++ {
		device := RTMIDIDevice{context: m, in: ins[i]}
		m.inputDevices = append(m.inputDevices, device)
		if !yield(device) {
			break
		}
	}
	m.devicesInitialized = true
}

// Open an input device while closing the currently open if necessary.
func (m RTMIDIDevice) Open() error {
	if m.context.currentIn == m.in {
		return nil
	}
	if m.context.driver == nil {
		return errors.New("no driver available")
	}
	if m.context.HasDeviceOpen() {
		m.context.currentIn.Close()
	}
	m.context.currentIn = m.in
	if err := m.in.Open(); err != nil {
		m.context.currentIn = nil
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	if _, err := midi.ListenTo(m.in, m.context.HandleMessage); err != nil {
		m.in.Close()
		m.context.currentIn = nil
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	return nil
}

func (d RTMIDIDevice) String() string {
	return d.in.String()
}

func (c *RTMIDIContext) Close() {
	if c.driver == nil {
		return
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.driver.Close()
}

func (c *RTMIDIContext) HasDeviceOpen() bool {
	return c.currentIn != nil && c.currentIn.IsOpen()
}

// TryToOpenBy opens the first input device whose name starts with namePrefix,
// or simply the first device when takeFirst is set.
func (c *RTMIDIContext) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	var opened error
	found := false
	for input := range c.InputDevices {
		if takeFirst || strings.HasPrefix(input.String(), namePrefix) {
			found = true
			opened = input.Open()
			break
		}
	}
	if !found {
		if takeFirst {
			return errors.New("could not find any MIDI input")
		}
		return fmt.Errorf("could not find any MIDI input starting with %q", namePrefix)
	}
	return opened
}

// HandleMessage translates one incoming MIDI message into an engine command.
func (c *RTMIDIContext) HandleMessage(msg midi.Message, timestampms int32) {
	var channel, key, velocity uint8
	if msg.GetNoteOn(&channel, &key, &velocity) {
		if velocity == 0 { // a zero velocity note-on is a note-off in disguise
			return
		}
		pad := &engine.PadMsg{Category: categoryForNote(key), Velocity: float64(velocity) / 127}
		engine.TrySend(c.broker.ToEngine, engine.MsgToEngine{Pad: pad})
		return
	}
	var controller, value uint8
	if msg.GetControlChange(&channel, &controller, &value) {
		// a sustain pedal press doubles as a tap tempo footswitch
		if controller == 64 && value >= 64 {
			engine.TrySend(c.broker.ToEngine, engine.MsgToEngine{Transport: engine.TransportTap, TapAt: time.Now()})
		}
		return
	}
	switch {
	case msg.Is(midi.StartMsg), msg.Is(midi.ContinueMsg):
		engine.TrySend(c.broker.ToEngine, engine.MsgToEngine{Transport: engine.TransportStart})
	case msg.Is(midi.StopMsg):
		engine.TrySend(c.broker.ToEngine, engine.MsgToEngine{Transport: engine.TransportStop})
	}
}

// categoryForNote maps general MIDI drum notes to preset categories; notes
// outside the drum map fall back by register.
func categoryForNote(key uint8) rytmi.Category {
	switch key {
	case 35, 36:
		return rytmi.CategoryKick
	case 38, 40:
		return rytmi.CategorySnare
	case 39:
		return rytmi.CategoryClap
	case 42, 44, 46:
		return rytmi.CategoryHat
	case 37, 41, 43, 45, 47, 48, 50, 54, 56, 58:
		return rytmi.CategoryPercussion
	case 49, 51, 52, 53, 55, 57, 59:
		return rytmi.CategoryFX
	}
	switch {
	case key < 35:
		return rytmi.CategoryBass
	case key < 72:
		return rytmi.CategorySynthLead
	default:
		return rytmi.CategorySynthPad
	}
}
