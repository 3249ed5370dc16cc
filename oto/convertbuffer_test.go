package oto

import (
	"bytes"
	"io"
	"testing"

	"github.com/rytmilabs/rytmi"
)

func TestFrameReaderConvertsAndPropagatesEOF(t *testing.T) {
	src := rytmi.AudioBuffer{{0.5, -0.25}, {1, 0}}.Source()
	r := &frameReader{source: src}
	p := make([]byte, 64)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 2*frameBytes {
		t.Fatalf("Read returned %d bytes, want %d", n, 2*frameBytes)
	}
	want := []byte{
		0, 0, 0, 0x3f, 0, 0, 0x80, 0xbe,
		0, 0, 0x80, 0x3f, 0, 0, 0, 0,
	}
	if !bytes.Equal(p[:n], want) {
		t.Errorf("converted bytes = % x, want % x", p[:n], want)
	}
	if _, err := r.Read(p); err != io.EOF {
		t.Errorf("Read after exhaustion = %v, want io.EOF", err)
	}
}

func TestFrameReaderTooSmallForAFrame(t *testing.T) {
	r := &frameReader{source: rytmi.AudioBuffer{{1, 1}}.Source()}
	n, err := r.Read(make([]byte, frameBytes-1))
	if n != 0 || err != nil {
		t.Errorf("Read into a short buffer = %d, %v, want 0, nil", n, err)
	}
}
