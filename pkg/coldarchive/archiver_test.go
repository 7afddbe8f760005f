package coldarchive

import (
	"bytes"
	"testing"

	"github.com/golang/snappy"
)

// TestCompressRoundTrip verifies compress produces valid snappy output
// that decodes back to the original bytes.
func TestCompressRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello segment")},
		{"repeated", bytes.Repeat([]byte("logunit-segment-data"), 500)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compressed := compress(tc.data)

			decoded, err := snappy.Decode(nil, compressed)
			if err != nil {
				t.Fatalf("snappy.Decode: %v", err)
			}
			if !bytes.Equal(decoded, tc.data) {
				t.Fatalf("round trip mismatch: got %q, want %q", decoded, tc.data)
			}
		})
	}
}

// TestCompressDetectsCorruption checks that flipping a byte in
// compressed output does not silently decode back to the original data:
// decoding must either fail or yield different bytes.
func TestCompressDetectsCorruption(t *testing.T) {
	data := []byte("payload that will be corrupted after compression")
	compressed := compress(data)
	if len(compressed) == 0 {
		t.Fatal("expected non-empty compressed output")
	}

	corrupted := append([]byte(nil), compressed...)
	corrupted[len(corrupted)/2] ^= 0xFF

	decoded, err := snappy.Decode(nil, corrupted)
	if err == nil && bytes.Equal(decoded, data) {
		t.Fatal("expected corruption to be detected or produce different output")
	}
}

func TestArchiveKey(t *testing.T) {
	cases := []struct {
		name       string
		prefix     string
		segment    string
		wantSuffix string
	}{
		{"plain prefix", "logunit", "/data/0.log", "logunit/0.log.snappy"},
		{"nested prefix", "cold/archive", "/data/12.log", "cold/archive/12.log.snappy"},
		{"empty prefix", "", "/data/3.log", "3.log.snappy"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := archiveKey(tc.prefix, tc.segment)
			if got != tc.wantSuffix {
				t.Fatalf("archiveKey(%q, %q) = %q, want %q", tc.prefix, tc.segment, got, tc.wantSuffix)
			}
		})
	}
}
