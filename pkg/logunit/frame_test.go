package logunit

import (
	"bytes"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	body := []byte("hello frame")
	frame := encodeFrame(body)

	got, err := decodeFrame(bytes.NewReader(frame), true)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestFrameChecksumMismatch(t *testing.T) {
	body := []byte("hello frame")
	frame := encodeFrame(body)
	frame[len(frame)-1] ^= 0xFF // flip a byte inside the body

	_, err := decodeFrame(bytes.NewReader(frame), true)
	if err != ErrCorruption {
		t.Fatalf("expected ErrCorruption, got %v", err)
	}
}

func TestFrameShortReadIsEOF(t *testing.T) {
	body := []byte("hello frame")
	frame := encodeFrame(body)
	truncated := frame[:len(frame)-3]

	_, err := decodeFrame(bytes.NewReader(truncated), true)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestFrameBoundedOverrunIsCorruption(t *testing.T) {
	body := []byte("hello frame")
	frame := encodeFrame(body)
	// Claim more bytes than the reader actually holds, but stay within
	// a durable bound that covers the whole (still-short) input.
	truncated := frame[:len(frame)-3]

	_, err := decodeFrameBounded(bytes.NewReader(truncated), true, int64(len(truncated)))
	if err != ErrCorruption {
		t.Fatalf("expected ErrCorruption for a bounded short read, got %v", err)
	}
}

func TestFrameBoundedLengthExceedsRemainingIsCorruption(t *testing.T) {
	body := []byte("hello frame")
	frame := encodeFrame(body)

	// remaining is smaller than the frame's own claimed length, as if
	// the durable size snapshot fell strictly inside this frame.
	_, err := decodeFrameBounded(bytes.NewReader(frame), true, int64(len(frame)-1))
	if err != ErrCorruption {
		t.Fatalf("expected ErrCorruption when length overruns remaining, got %v", err)
	}
}

func TestFrameUnboundedShortReadStaysEOF(t *testing.T) {
	body := []byte("hello frame")
	frame := encodeFrame(body)
	truncated := frame[:len(frame)-3]

	_, err := decodeFrameBounded(bytes.NewReader(truncated), true, -1)
	if err != io.EOF {
		t.Fatalf("expected io.EOF for an unbounded short read, got %v", err)
	}
}

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{Version: 1, VerifyChecksum: true}
	var buf bytes.Buffer
	if err := writeFileHeader(&buf, h); err != nil {
		t.Fatalf("writeFileHeader: %v", err)
	}

	got, err := readFileHeader(&buf)
	if err != nil {
		t.Fatalf("readFileHeader: %v", err)
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}
