package logunit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSegmentManagerGetOrOpenIsCached(t *testing.T) {
	cfg := DefaultEngineConfig(t.TempDir())
	m, err := NewSegmentManager(cfg)
	if err != nil {
		t.Fatalf("NewSegmentManager: %v", err)
	}
	defer m.closeAll()

	h1, err := m.getOrOpen(GlobalAddress(0))
	if err != nil {
		t.Fatalf("getOrOpen: %v", err)
	}
	h2, err := m.getOrOpen(GlobalAddress(1))
	if err != nil {
		t.Fatalf("getOrOpen: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected addresses in the same segment to share a handle")
	}

	h3, err := m.getOrOpen(GlobalAddress(cfg.RecordsPerLogFile))
	if err != nil {
		t.Fatalf("getOrOpen: %v", err)
	}
	if h3 == h1 {
		t.Fatal("expected an address in the next segment to open a distinct handle")
	}
}

func TestSegmentManagerReopenRescansKnownAddresses(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultEngineConfig(dir)

	m1, err := NewSegmentManager(cfg)
	if err != nil {
		t.Fatalf("NewSegmentManager: %v", err)
	}
	h, err := m1.getOrOpen(GlobalAddress(0))
	if err != nil {
		t.Fatalf("getOrOpen: %v", err)
	}
	for _, addr := range []int64{0, 1, 2} {
		record := encodeLogRecord(LogEntry{GlobalAddress: addr, Payload: []byte("x")})
		if err := h.appendData(record); err != nil {
			t.Fatalf("appendData: %v", err)
		}
		h.addKnown(addr)
	}
	if err := m1.closeAll(); err != nil {
		t.Fatalf("closeAll: %v", err)
	}

	m2, err := NewSegmentManager(cfg)
	if err != nil {
		t.Fatalf("NewSegmentManager (reopen): %v", err)
	}
	defer m2.closeAll()

	h2, err := m2.getOrOpen(GlobalAddress(0))
	if err != nil {
		t.Fatalf("getOrOpen (reopen): %v", err)
	}
	for _, addr := range []int64{0, 1, 2} {
		if !h2.hasKnown(addr) {
			t.Fatalf("expected address %d to be rediscovered on reopen", addr)
		}
	}
}

func TestSegmentManagerRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultEngineConfig(dir)

	m1, err := NewSegmentManager(cfg)
	if err != nil {
		t.Fatalf("NewSegmentManager: %v", err)
	}
	if _, err := m1.getOrOpen(GlobalAddress(0)); err != nil {
		t.Fatalf("getOrOpen: %v", err)
	}
	if err := m1.closeAll(); err != nil {
		t.Fatalf("closeAll: %v", err)
	}

	badCfg := cfg
	badCfg.Version = cfg.Version + 1
	_, err = NewSegmentManager(badCfg)
	if err == nil {
		t.Fatal("expected version mismatch to fail startup verification")
	}
}

func TestSegmentManagerRejectsUnverifiedSegmentWhenVerificationRequired(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultEngineConfig(dir)
	cfg.NoVerify = true

	m1, err := NewSegmentManager(cfg)
	if err != nil {
		t.Fatalf("NewSegmentManager: %v", err)
	}
	if _, err := m1.getOrOpen(GlobalAddress(0)); err != nil {
		t.Fatalf("getOrOpen: %v", err)
	}
	if err := m1.closeAll(); err != nil {
		t.Fatalf("closeAll: %v", err)
	}

	strictCfg := cfg
	strictCfg.NoVerify = false
	_, err = NewSegmentManager(strictCfg)
	if err == nil {
		t.Fatal("expected unverified segment to fail strict startup verification")
	}
}

func TestSegmentManagerForgetAllowsReopen(t *testing.T) {
	cfg := DefaultEngineConfig(t.TempDir())
	m, err := NewSegmentManager(cfg)
	if err != nil {
		t.Fatalf("NewSegmentManager: %v", err)
	}
	defer m.closeAll()

	h, err := m.getOrOpen(GlobalAddress(0))
	if err != nil {
		t.Fatalf("getOrOpen: %v", err)
	}
	m.forget(h.basePath)

	if got := m.all(); len(got) != 0 {
		t.Fatalf("expected no open segments after forget, got %d", len(got))
	}

	h2, err := m.getOrOpen(GlobalAddress(0))
	if err != nil {
		t.Fatalf("getOrOpen after forget: %v", err)
	}
	if h2 == h {
		t.Fatal("expected forget to force a fresh handle on next access")
	}
}

func TestVerifyLogsWalksNestedStreamDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultEngineConfig(dir)

	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	f, err := os.Create(filepath.Join(nested, "0.log"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := writeFileHeader(f, FileHeader{Version: cfg.Version, VerifyChecksum: true}); err != nil {
		t.Fatalf("writeFileHeader: %v", err)
	}
	f.Close()

	m, err := NewSegmentManager(cfg)
	if err != nil {
		t.Fatalf("expected nested segment to pass verification: %v", err)
	}
	m.closeAll()
}
