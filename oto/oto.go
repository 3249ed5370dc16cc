//go:build cgo || darwin || windows || js

// Package oto implements a rytmi.AudioContext on top of the oto library,
// playing audio sources through the system's default output device.
package oto

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rytmilabs/rytmi"
)

// playerBufferSize is the oto player buffer in bytes, about 23 ms of stereo
// float32 audio. Smaller buffers cut pad latency but underrun easier.
const playerBufferSize = 8192

type (
	// Context is a handle to the audio device. One context plays any number
	// of sources; the device stays open for the lifetime of the process.
	Context struct {
		ctx *oto.Context
	}

	playback struct {
		player *oto.Player
	}
)

// NewContext opens the default audio device at the engine's sample rate and
// waits until it is ready to play.
func NewContext() (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   rytmi.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

// Play starts pulling audio from the source and returns a handle to the
// running playback. Live sources play until closed; finite sources, like a
// bounced buffer, play to the end and can be waited on.
func (c *Context) Play(src rytmi.AudioSource) rytmi.CloserWaiter {
	player := c.ctx.NewPlayer(&frameReader{source: src})
	player.SetBufferSize(playerBufferSize)
	player.Play()
	return &playback{player: player}
}

// Close suspends the device. The underlying context cannot be closed, only
// suspended, so a later NewContext in the same process reuses it.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot close oto context: %w", err)
	}
	return nil
}

// Wait blocks until the source is exhausted and the buffered audio has left
// the device.
func (p *playback) Wait() {
	for p.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
}

// Close stops the playback, dropping whatever was still buffered.
func (p *playback) Close() error {
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
