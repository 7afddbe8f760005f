package logunit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// InspectSegment read-only counts a segment's known, trimmed, and
// pending addresses without registering it with any SegmentManager or
// mutating any file. It exists for external tooling (cmd/logunit-tui)
// that wants to observe engine state without opening the engine itself.
func InspectSegment(basePath string, cfg EngineConfig) (known, trimmed, pending int, err error) {
	f, err := os.Open(basePath + ".log")
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if _, err := readFileHeader(r); err != nil && !errors.Is(err, io.EOF) {
		return 0, 0, 0, err
	}

	verify := !cfg.NoVerify
	knownSet := make(map[int64]struct{})
	for {
		entry, err := readLogRecord(r, verify)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, 0, err
		}
		knownSet[entry.GlobalAddress] = struct{}{}
	}

	trimmedSet := make(map[int64]struct{})
	if tf, err := os.Open(basePath + ".log.trimmed"); err == nil {
		_ = loadTrimSet(tf, trimmedSet)
		tf.Close()
	}

	pendingSet := make(map[int64]struct{})
	if pf, err := os.Open(basePath + ".log.pending"); err == nil {
		_ = loadTrimSet(pf, pendingSet)
		pf.Close()
	}

	return len(knownSet), len(trimmedSet), len(pendingSet), nil
}

// FrameDump is one record's decoded fields plus the exact bytes it
// occupies on disk, used by the TUI's hex-dump view.
type FrameDump struct {
	Index int
	Entry LogEntry
	Raw   []byte
}

// DumpFrame scans basePath+".log" from the start and returns the
// index-th record (0-based) it finds, read-only.
func DumpFrame(basePath string, index int, cfg EngineConfig) (*FrameDump, error) {
	if index < 0 {
		return nil, fmt.Errorf("logunit: negative frame index %d", index)
	}

	f, err := os.Open(basePath + ".log")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if _, err := readFileHeader(r); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	verify := !cfg.NoVerify
	for i := 0; ; i++ {
		entry, raw, err := readLogRecordWithRaw(r, verify)
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("logunit: frame index %d out of range for %s", index, basePath)
		}
		if err != nil {
			return nil, err
		}
		if i == index {
			return &FrameDump{Index: i, Entry: entry, Raw: raw}, nil
		}
	}
}
