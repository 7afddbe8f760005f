package logunit

import (
	"os"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SegmentHandle owns the three file channels backing one segment plus
// the in-memory address sets tracking its contents. A handle is created
// on first reference by the SegmentManager and lives until the engine
// closes or compaction rewrites its segment (a later access then opens a
// fresh handle); it is never reopened mid-life.
type SegmentHandle struct {
	basePath string

	// mu guards size observation and serializes data-file appends. It
	// does not guard reads: readers open their own read-only channel
	// and only take mu to sample the size.
	mu       sync.Mutex
	dataFile *os.File

	trimmedFile *os.File
	pendingFile *os.File

	// setsMu guards the three address sets. Individual inserts and
	// contains-checks are atomic under it; compound check-and-insert
	// predicates (Append's duplicate check) additionally hold mu so the
	// whole operation is serialized with concurrent appends to the same
	// segment.
	setsMu  sync.Mutex
	known   map[int64]struct{}
	trimmed map[int64]struct{}
	pending map[int64]struct{}
}

func newSegmentHandle(basePath string, dataFile, trimmedFile, pendingFile *os.File) *SegmentHandle {
	return &SegmentHandle{
		basePath:    basePath,
		dataFile:    dataFile,
		trimmedFile: trimmedFile,
		pendingFile: pendingFile,
		known:       make(map[int64]struct{}),
		trimmed:     make(map[int64]struct{}),
		pending:     make(map[int64]struct{}),
	}
}

// dataPath, trimmedPath, pendingPath are the three files sharing basePath.
func (h *SegmentHandle) dataPath() string    { return h.basePath + ".log" }
func (h *SegmentHandle) trimmedPath() string { return h.basePath + ".log.trimmed" }
func (h *SegmentHandle) pendingPath() string { return h.basePath + ".log.pending" }

// appendData appends already-framed bytes to the data file under mu.
func (h *SegmentHandle) appendData(b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.dataFile.Write(b)
	return err
}

// sizeData returns the current data-file size under mu, so callers only
// ever observe fully written records.
func (h *SegmentHandle) sizeData() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fileSize(h.dataFile)
}

func (h *SegmentHandle) sizeTrimmed() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fileSize(h.trimmedFile)
}

func (h *SegmentHandle) sizePending() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fileSize(h.pendingFile)
}

func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (h *SegmentHandle) hasKnown(addr int64) bool {
	h.setsMu.Lock()
	defer h.setsMu.Unlock()
	_, ok := h.known[addr]
	return ok
}

func (h *SegmentHandle) hasTrimmed(addr int64) bool {
	h.setsMu.Lock()
	defer h.setsMu.Unlock()
	_, ok := h.trimmed[addr]
	return ok
}

func (h *SegmentHandle) hasPending(addr int64) bool {
	h.setsMu.Lock()
	defer h.setsMu.Unlock()
	_, ok := h.pending[addr]
	return ok
}

func (h *SegmentHandle) addKnown(addr int64) {
	h.setsMu.Lock()
	defer h.setsMu.Unlock()
	h.known[addr] = struct{}{}
}

func (h *SegmentHandle) addTrimmed(addr int64) {
	h.setsMu.Lock()
	defer h.setsMu.Unlock()
	h.trimmed[addr] = struct{}{}
}

func (h *SegmentHandle) addPending(addr int64) {
	h.setsMu.Lock()
	defer h.setsMu.Unlock()
	h.pending[addr] = struct{}{}
}

// counts returns |known|, |trimmed|, |pending| in one snapshot, used by
// compact() to evaluate its predicates without racing individual
// contains-checks against each other.
func (h *SegmentHandle) counts() (known, trimmed, pending int) {
	h.setsMu.Lock()
	defer h.setsMu.Unlock()
	return len(h.known), len(h.trimmed), len(h.pending)
}

// pendingMinusTrimmed returns the pending addresses not yet reflected in
// trimmed, i.e. the newly trim-eligible set. The result is sorted so
// compaction rewrites and their .trimmed appends are reproducible across
// runs over the same on-disk state, rather than following Go's
// randomized map iteration order.
func (h *SegmentHandle) pendingMinusTrimmed() []int64 {
	h.setsMu.Lock()
	pending := maps.Keys(h.pending)
	out := make([]int64, 0, len(pending))
	for _, addr := range pending {
		if _, isTrimmed := h.trimmed[addr]; !isTrimmed {
			out = append(out, addr)
		}
	}
	h.setsMu.Unlock()

	slices.Sort(out)
	return out
}

// close force-flushes and closes all three channels and clears the
// in-memory sets.
func (h *SegmentHandle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for _, f := range []*os.File{h.dataFile, h.trimmedFile, h.pendingFile} {
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	h.setsMu.Lock()
	h.known = nil
	h.trimmed = nil
	h.pending = nil
	h.setsMu.Unlock()

	return firstErr
}
