package logunit

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestHandle(t *testing.T, dir, name string) *SegmentHandle {
	t.Helper()
	base := filepath.Join(dir, name)
	dataFile, err := os.OpenFile(base+".log", os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open data file: %v", err)
	}
	trimmedFile, err := os.OpenFile(base+".log.trimmed", os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open trimmed file: %v", err)
	}
	pendingFile, err := os.OpenFile(base+".log.pending", os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open pending file: %v", err)
	}
	return newSegmentHandle(base, dataFile, trimmedFile, pendingFile)
}

func TestSegmentHandleSetOperations(t *testing.T) {
	h := openTestHandle(t, t.TempDir(), "0")
	defer h.close()

	if h.hasKnown(1) {
		t.Fatal("expected 1 to be absent from known")
	}
	h.addKnown(1)
	if !h.hasKnown(1) {
		t.Fatal("expected 1 to be present in known after addKnown")
	}

	h.addTrimmed(1)
	if !h.hasTrimmed(1) {
		t.Fatal("expected 1 to be present in trimmed after addTrimmed")
	}

	h.addPending(2)
	if !h.hasPending(2) {
		t.Fatal("expected 2 to be present in pending after addPending")
	}

	known, trimmed, pending := h.counts()
	if known != 1 || trimmed != 1 || pending != 1 {
		t.Fatalf("counts: got (%d,%d,%d), want (1,1,1)", known, trimmed, pending)
	}
}

func TestSegmentHandlePendingMinusTrimmedExcludesAlreadyTrimmed(t *testing.T) {
	h := openTestHandle(t, t.TempDir(), "0")
	defer h.close()

	h.addPending(5)
	h.addPending(3)
	h.addPending(9)
	h.addTrimmed(3)

	got := h.pendingMinusTrimmed()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got[0] != 5 || got[1] != 9 {
		t.Fatalf("expected sorted [5 9], got %v", got)
	}
}

func TestSegmentHandleSizeReflectsWrites(t *testing.T) {
	h := openTestHandle(t, t.TempDir(), "0")
	defer h.close()

	before, err := h.sizeData()
	if err != nil {
		t.Fatalf("sizeData: %v", err)
	}
	if before != 0 {
		t.Fatalf("expected empty data file, got size %d", before)
	}

	if err := h.appendData([]byte("0123456789")); err != nil {
		t.Fatalf("appendData: %v", err)
	}

	after, err := h.sizeData()
	if err != nil {
		t.Fatalf("sizeData: %v", err)
	}
	if after != 10 {
		t.Fatalf("expected size 10, got %d", after)
	}
}

func TestSegmentHandleCloseClearsSets(t *testing.T) {
	h := openTestHandle(t, t.TempDir(), "0")
	h.addKnown(1)

	if err := h.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if h.known != nil {
		t.Fatal("expected known set to be nil after close")
	}
}
