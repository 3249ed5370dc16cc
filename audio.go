package rytmi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type (
	// AudioBuffer is a buffer of stereo audio samples of the form
	// [..., [left, right], [left, right], ...]
	AudioBuffer [][2]float32

	// AudioSource is the interface for anything that can produce audio,
	// mainly the engine mixer and offline bounces. ReadAudio fills buf with
	// up to len(buf) frames and returns how many it wrote. It returns io.EOF
	// when the source is exhausted; live sources never are.
	AudioSource interface {
		ReadAudio(buf AudioBuffer) (int, error)
	}

	// AudioContext is the interface for playing audio sources.
	AudioContext interface {
		Play(src AudioSource) CloserWaiter
		Close() error
	}

	// CloserWaiter is the handle to one playing source. Wait blocks until
	// the source is exhausted; Close stops it early.
	CloserWaiter interface {
		io.Closer
		Wait()
	}
)

// Wav converts the buffer into a valid WAV-file, returned as a []byte array.
//
// If pcm16 is set to true, the samples in the WAV-file will be 16-bit signed
// integers; otherwise the samples will be 32-bit floats.
func (b AudioBuffer) Wav(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(len(b)*2, pcm16, buf)
	err := b.rawToBuffer(pcm16, buf)
	if err != nil {
		return nil, fmt.Errorf("Wav failed: %v", err)
	}
	return buf.Bytes(), nil
}

// Raw converts the buffer into raw interleaved audio data, returned as a
// []byte array.
func (b AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := b.rawToBuffer(pcm16, buf)
	if err != nil {
		return nil, fmt.Errorf("Raw failed: %v", err)
	}
	return buf.Bytes(), nil
}

// Source returns an AudioSource that reads the buffer from the start and
// then reports io.EOF, for handing a bounce to an audio context.
func (b AudioBuffer) Source() AudioSource {
	return &bufferSource{buf: b}
}

type bufferSource struct {
	buf AudioBuffer
	pos int
}

func (s *bufferSource) ReadAudio(buf AudioBuffer) (int, error) {
	if s.pos >= len(s.buf) {
		return 0, io.EOF
	}
	n := copy(buf, s.buf[s.pos:])
	s.pos += n
	return n, nil
}

func (b AudioBuffer) rawToBuffer(pcm16 bool, buf *bytes.Buffer) error {
	var err error
	if pcm16 {
		int16data := make([]int16, len(b)*2)
		for i, frame := range b {
			int16data[i*2] = int16(clampInt(int(frame[0]*math.MaxInt16), math.MinInt16, math.MaxInt16))
			int16data[i*2+1] = int16(clampInt(int(frame[1]*math.MaxInt16), math.MinInt16, math.MaxInt16))
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, []([2]float32)(b))
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %v", err)
	}
	return nil
}

// wavHeader writes a wave header for either float32 or int16 .wav file into
// the bytes.buffer. It needs to know the length of the buffer in float
// samples (L + R, so frames * 2) and assumes stereo sound at SampleRate. If
// pcm16 = true, then the header is for int16 audio; pcm16 = false means the
// header is for float32 audio.
func wavHeader(bufferLength int, pcm16 bool, buf *bytes.Buffer) {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	numChannels := 2
	sampleRate := SampleRate
	var bytesPerSample, chunkSize, fmtChunkSize, waveFormat int
	var factChunk bool
	if pcm16 {
		bytesPerSample = 2
		chunkSize = 36 + bytesPerSample*bufferLength
		fmtChunkSize = 16
		waveFormat = 1 // PCM
		factChunk = false
	} else {
		bytesPerSample = 4
		chunkSize = 50 + bytesPerSample*bufferLength
		fmtChunkSize = 18
		waveFormat = 3 // IEEE float
		factChunk = true
	}
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	binary.Write(buf, binary.LittleEndian, uint16(waveFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	if fmtChunkSize > 16 {
		binary.Write(buf, binary.LittleEndian, uint16(0)) // size of extension
	}
	if factChunk {
		buf.Write([]byte("fact"))
		binary.Write(buf, binary.LittleEndian, uint32(4))            // fact chunk size
		binary.Write(buf, binary.LittleEndian, uint32(bufferLength)) // sample length
	}
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
