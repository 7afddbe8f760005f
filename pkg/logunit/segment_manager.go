package logunit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// SegmentManager maps a (optional stream, segment number) pair to a
// SegmentHandle, opening or creating segments lazily and verifying
// headers on startup.
type SegmentManager struct {
	cfg EngineConfig

	// mu guards the create-or-fetch critical section in getOrOpen.
	mu       sync.Mutex
	segments map[segmentKey]*SegmentHandle
}

// NewSegmentManager creates the directory if absent and runs the
// startup verification pass over every existing *.log file.
func NewSegmentManager(cfg EngineConfig) (*SegmentManager, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("logunit: creating log dir %s: %w", cfg.LogDir, err)
	}

	m := &SegmentManager{
		cfg:      cfg,
		segments: make(map[segmentKey]*SegmentHandle),
	}

	if err := m.verifyLogs(); err != nil {
		return nil, err
	}
	return m, nil
}

// verifyLogs recursively scans the log directory for *.log files,
// re-checks their header's version and checksum-verification flag, and
// fails fast on the first mismatch.
func (m *SegmentManager) verifyLogs() error {
	return filepath.WalkDir(m.cfg.LogDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".log" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("logunit: opening %s for verification: %w", path, err)
		}
		defer f.Close()

		header, err := readFileHeader(bufio.NewReader(f))
		if err != nil {
			return fmt.Errorf("logunit: reading header of %s: %w", path, ErrCorruption)
		}

		if header.Version != m.cfg.Version {
			return fmt.Errorf("logunit: %s has version %d, engine expects %d: %w",
				path, header.Version, m.cfg.Version, ErrVersionMismatch)
		}
		if !m.cfg.NoVerify && !header.VerifyChecksum {
			return fmt.Errorf("logunit: %s was written without checksum verification: %w",
				path, ErrUnverifiedSegment)
		}
		return nil
	})
}

// getOrOpen resolves a LogAddress to its SegmentHandle, opening and
// scanning the three backing files the first time this segment is
// referenced.
func (m *SegmentManager) getOrOpen(addr LogAddress) (*SegmentHandle, error) {
	key := addr.key(m.cfg.RecordsPerLogFile)

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.segments[key]; ok {
		return h, nil
	}

	basePath := key.basePath(m.cfg.LogDir)
	h, err := m.openSegment(basePath)
	if err != nil {
		return nil, err
	}
	m.segments[key] = h
	return h, nil
}

func (m *SegmentManager) openSegment(basePath string) (*SegmentHandle, error) {
	dataFile, err := os.OpenFile(basePath+".log", os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logunit: opening data segment %s: %w", basePath, err)
	}
	trimmedFile, err := os.OpenFile(basePath+".log.trimmed", os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("logunit: opening trimmed file %s: %w", basePath, err)
	}
	pendingFile, err := os.OpenFile(basePath+".log.pending", os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		dataFile.Close()
		trimmedFile.Close()
		return nil, fmt.Errorf("logunit: opening pending file %s: %w", basePath, err)
	}

	h := newSegmentHandle(basePath, dataFile, trimmedFile, pendingFile)

	size, err := fileSize(dataFile)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		verify := !m.cfg.NoVerify
		if err := writeFileHeader(dataFile, FileHeader{Version: m.cfg.Version, VerifyChecksum: verify}); err != nil {
			return nil, fmt.Errorf("logunit: writing header for %s: %w", basePath, err)
		}
		if err := dataFile.Sync(); err != nil {
			return nil, err
		}
	} else {
		if err := m.scanExistingSegment(h); err != nil {
			return nil, err
		}
	}

	if err := loadTrimSet(trimmedFile, h.trimmed); err != nil {
		return nil, err
	}
	if err := loadTrimSet(pendingFile, h.pending); err != nil {
		return nil, err
	}

	return h, nil
}

// scanExistingSegment reads the header, then linearly scans the
// remainder of an existing data file, populating h.known with every
// discovered address ("record-discovery mode": supplying no target
// address, matching none, recording all).
func (m *SegmentManager) scanExistingSegment(h *SegmentHandle) error {
	f, err := os.Open(h.dataPath())
	if err != nil {
		return fmt.Errorf("logunit: reopening %s for scan: %w", h.dataPath(), err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if _, err := readFileHeader(r); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("logunit: %s missing file header: %w", h.dataPath(), ErrCorruption)
		}
		return err
	}

	verify := !m.cfg.NoVerify
	for {
		entry, err := readLogRecord(r, verify)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		h.addKnown(entry.GlobalAddress)
	}
}

// loadTrimSet parses f as a stream of length-delimited TrimEntry records
// and inserts each address into set.
func loadTrimSet(f *os.File, set map[int64]struct{}) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(f)
	for {
		entry, err := readTrimEntry(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		set[entry.Address] = struct{}{}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

// forget removes a segment from the map without closing its files
// (compact() calls this after an atomic rename so the next access
// reopens and re-scans the freshly rewritten segment).
func (m *SegmentManager) forget(basePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.segments {
		if h.basePath == basePath {
			delete(m.segments, k)
			return
		}
	}
}

// all returns a snapshot of every currently open segment handle.
func (m *SegmentManager) all() []*SegmentHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*SegmentHandle, 0, len(m.segments))
	for _, h := range m.segments {
		out = append(out, h)
	}
	return out
}

// closeAll force-flushes and closes every open segment, then resets the
// map.
func (m *SegmentManager) closeAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, h := range m.segments {
		if err := h.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.segments = make(map[segmentKey]*SegmentHandle)
	return firstErr
}
