package logunit

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/google/uuid"
)

func TestLogEntryRoundTrip(t *testing.T) {
	stream := uuid.New()
	entry := LogEntry{
		DataType:      DataTypeData,
		GlobalAddress: 42,
		Payload:       []byte("payload bytes"),
		Rank:          7,
		Commit:        true,
		Streams:       map[uuid.UUID]struct{}{stream: {}},
		Backpointers:  map[uuid.UUID]int64{stream: 41},
	}

	record := encodeLogRecord(entry)
	got, err := readLogRecord(bufio.NewReader(bytes.NewReader(record)), true)
	if err != nil {
		t.Fatalf("readLogRecord: %v", err)
	}

	if got.GlobalAddress != entry.GlobalAddress || !bytes.Equal(got.Payload, entry.Payload) ||
		got.Rank != entry.Rank || got.Commit != entry.Commit {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, entry)
	}
	if _, ok := got.Streams[stream]; !ok {
		t.Fatalf("missing stream %s in round trip", stream)
	}
	if got.Backpointers[stream] != 41 {
		t.Fatalf("backpointer mismatch: got %v", got.Backpointers)
	}
}

func TestReadLogRecordBadDelimiterIsEOF(t *testing.T) {
	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	_, err := readLogRecord(bufio.NewReader(bytes.NewReader(garbage)), true)
	if err != io.EOF {
		t.Fatalf("expected io.EOF for bad delimiter, got %v", err)
	}
}

func TestReadLogRecordChecksumMismatch(t *testing.T) {
	entry := LogEntry{DataType: DataTypeData, GlobalAddress: 1, Payload: []byte("x")}
	record := encodeLogRecord(entry)
	record[len(record)-1] ^= 0xFF

	_, err := readLogRecord(bufio.NewReader(bytes.NewReader(record)), true)
	if err != ErrCorruption {
		t.Fatalf("expected ErrCorruption, got %v", err)
	}
}

func TestTrimEntryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTrimEntry(&buf, 123); err != nil {
		t.Fatalf("writeTrimEntry: %v", err)
	}
	if err := writeTrimEntry(&buf, 456); err != nil {
		t.Fatalf("writeTrimEntry: %v", err)
	}

	r := bufio.NewReader(&buf)
	first, err := readTrimEntry(r)
	if err != nil {
		t.Fatalf("readTrimEntry: %v", err)
	}
	if first.Address != 123 {
		t.Fatalf("got address %d, want 123", first.Address)
	}
	if first.Checksum != checksumInt64(123) {
		t.Fatalf("checksum mismatch")
	}

	second, err := readTrimEntry(r)
	if err != nil {
		t.Fatalf("readTrimEntry: %v", err)
	}
	if second.Address != 456 {
		t.Fatalf("got address %d, want 456", second.Address)
	}

	if _, err := readTrimEntry(r); err != io.EOF {
		t.Fatalf("expected io.EOF at end, got %v", err)
	}
}
