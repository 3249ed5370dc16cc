package rytmi_test

import (
	"io"
	"testing"

	"github.com/rytmilabs/rytmi"
)

func TestWavSizes(t *testing.T) {
	buf := make(rytmi.AudioBuffer, 100)
	for i := range buf {
		buf[i] = [2]float32{0.5, -0.5}
	}
	wav, err := buf.Wav(false)
	if err != nil {
		t.Fatalf("Wav(float32) failed: %v", err)
	}
	// 58 byte float header + 200 samples * 4 bytes
	if len(wav) != 58+800 {
		t.Errorf("float32 wav is %d bytes, want %d", len(wav), 58+800)
	}
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("wav header magic missing")
	}
	wav16, err := buf.Wav(true)
	if err != nil {
		t.Fatalf("Wav(pcm16) failed: %v", err)
	}
	// 44 byte pcm header + 200 samples * 2 bytes
	if len(wav16) != 44+400 {
		t.Errorf("pcm16 wav is %d bytes, want %d", len(wav16), 44+400)
	}
	raw, err := buf.Raw(true)
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	if len(raw) != 400 {
		t.Errorf("pcm16 raw is %d bytes, want 400", len(raw))
	}
}

func TestBufferSourceDrains(t *testing.T) {
	buf := make(rytmi.AudioBuffer, 10)
	for i := range buf {
		buf[i] = [2]float32{float32(i), float32(-i)}
	}
	src := buf.Source()
	dst := make(rytmi.AudioBuffer, 4)
	var got rytmi.AudioBuffer
	for {
		n, err := src.ReadAudio(dst)
		got = append(got, dst[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadAudio failed: %v", err)
		}
	}
	if len(got) != len(buf) {
		t.Fatalf("drained %d frames, want %d", len(got), len(buf))
	}
	for i := range got {
		if got[i] != buf[i] {
			t.Fatalf("frame %d is %v, want %v", i, got[i], buf[i])
		}
	}
}
