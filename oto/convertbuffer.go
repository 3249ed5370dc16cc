package oto

import (
	"encoding/binary"
	"math"

	"github.com/rytmilabs/rytmi"
)

// frameBytes is the wire size of one stereo float32 frame.
const frameBytes = 8

// frameReader adapts a rytmi.AudioSource to the io.Reader the player pulls
// from, converting frames to interleaved little-endian float32 bytes. The
// frame buffer is reused between reads.
type frameReader struct {
	source rytmi.AudioSource
	buf    rytmi.AudioBuffer
}

func (r *frameReader) Read(p []byte) (int, error) {
	n := len(p) / frameBytes
	if n == 0 {
		return 0, nil
	}
	if cap(r.buf) < n {
		r.buf = make(rytmi.AudioBuffer, n)
	}
	frames := r.buf[:n]
	got, err := r.source.ReadAudio(frames)
	if got > 0 {
		putFloat32LE(p, frames[:got])
		return got * frameBytes, nil
	}
	return 0, err
}

// putFloat32LE writes frames into dst as interleaved little-endian float32
// samples. dst must hold len(frames)*frameBytes bytes.
func putFloat32LE(dst []byte, frames rytmi.AudioBuffer) {
	for i, frame := range frames {
		binary.LittleEndian.PutUint32(dst[i*frameBytes:], math.Float32bits(frame[0]))
		binary.LittleEndian.PutUint32(dst[i*frameBytes+4:], math.Float32bits(frame[1]))
	}
}
