package logunit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Archiver is the optional cold-tier hook a compacted segment is handed
// to once compaction has rewritten it. The storage core never depends
// on an Archiver being configured.
type Archiver interface {
	Archive(ctx context.Context, segmentPath string, data []byte) error
}

// Engine is the log engine: the public append/read/trim/compact/sync/
// close surface composed over the SegmentManager and SegmentHandle
// layers.
type Engine struct {
	cfg     EngineConfig
	manager *SegmentManager

	syncMu  sync.Mutex
	syncSet map[*SegmentHandle]struct{}

	closeMu sync.Mutex
	closed  bool

	archiver Archiver
}

// NewEngine constructs an Engine, running startup verification via the
// SegmentManager.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	manager, err := NewSegmentManager(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		manager: manager,
		syncSet: make(map[*SegmentHandle]struct{}),
	}, nil
}

// SetArchiver installs the optional cold-tier hook invoked after each
// successful compaction rewrite.
func (e *Engine) SetArchiver(a Archiver) {
	e.archiver = a
}

func (e *Engine) checkOpen() error {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

// checkStreamAllowed rejects a stream-tagged address when the engine's
// configuration has stream segments disabled.
func (e *Engine) checkStreamAllowed(addr LogAddress) error {
	if addr.Stream != nil && !e.cfg.StreamSegmentsEnabled {
		return ErrStreamSegmentsDisabled
	}
	return nil
}

// Append writes entry at addr. Preconditions: the caller has already
// set entry.GlobalAddress == addr.Address. No fsync is issued here;
// durability is deferred to Sync.
func (e *Engine) Append(addr LogAddress, entry LogEntry) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.checkStreamAllowed(addr); err != nil {
		return NewOpError("append").Address(addr).Cause(err).Err()
	}
	if entry.GlobalAddress != addr.Address {
		return NewOpError("append").Address(addr).
			Cause(fmt.Errorf("entry.GlobalAddress %d != address %d", entry.GlobalAddress, addr.Address)).Err()
	}

	h, err := e.manager.getOrOpen(addr)
	if err != nil {
		return NewOpError("append").Address(addr).Cause(err).Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// The compound "check known/trimmed, then write, then insert" must
	// be serialized against concurrent appends to this segment; holding
	// h.mu for the whole operation gives that. This relies on
	// single-writer-per-address discipline from the address allocator
	// layer above the engine to avoid a duplicate winning the race.
	if h.hasKnown(addr.Address) || h.hasTrimmed(addr.Address) {
		return NewOpError("append").Address(addr).Cause(ErrOverwrite).Err()
	}

	record := encodeLogRecord(entry)
	if _, err := h.dataFile.Write(record); err != nil {
		return NewOpError("append").Address(addr).Segment(h.dataPath()).Cause(err).Err()
	}

	e.registerForSync(h)
	h.addKnown(addr.Address)
	return nil
}

// Read scans the target segment linearly for addr, returning nil (no
// error) when no record matches.
func (e *Engine) Read(addr LogAddress) (*LogData, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := e.checkStreamAllowed(addr); err != nil {
		return nil, NewOpError("read").Address(addr).Cause(err).Err()
	}

	h, err := e.manager.getOrOpen(addr)
	if err != nil {
		return nil, NewOpError("read").Address(addr).Cause(err).Err()
	}

	size, err := h.sizeData()
	if err != nil {
		return nil, NewOpError("read").Address(addr).Segment(h.dataPath()).Cause(err).Err()
	}

	f, err := os.Open(h.dataPath())
	if err != nil {
		return nil, NewOpError("read").Address(addr).Segment(h.dataPath()).Cause(err).Err()
	}
	defer f.Close()

	// size was sampled under the handle lock, so every byte up to it is
	// a complete, already-flushed record (see SegmentHandle.sizeData);
	// lr.N plus whatever bufio has already buffered gives the exact
	// count of bytes remaining before that durable boundary at any
	// point in the scan, which readLogRecordBounded uses to tell a
	// malformed frame length apart from a legitimate torn tail.
	lr := &io.LimitedReader{R: f, N: size}
	r := bufio.NewReader(lr)
	if _, err := readFileHeader(r); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, NewOpError("read").Address(addr).Segment(h.dataPath()).Cause(err).Err()
	}

	verify := !e.cfg.NoVerify
	for {
		remaining := lr.N + int64(r.Buffered())
		entry, err := readLogRecordBounded(r, verify, remaining)
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			log.Printf("ERROR: logunit: corruption detected reading segment %s for address %s", h.dataPath(), addr)
			return nil, NewOpError("read").Address(addr).Segment(h.dataPath()).Cause(err).Err()
		}
		if entry.GlobalAddress == addr.Address {
			return &LogData{Address: addr, Entry: entry}, nil
		}
	}
}

// Trim records a logical-delete intent for addr. It is idempotent and
// best-effort: I/O failures are logged and swallowed rather than
// propagated.
func (e *Engine) Trim(addr LogAddress) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.checkStreamAllowed(addr); err != nil {
		return NewOpError("trim").Address(addr).Cause(err).Err()
	}

	h, err := e.manager.getOrOpen(addr)
	if err != nil {
		return NewOpError("trim").Address(addr).Cause(err).Err()
	}

	if h.hasPending(addr.Address) || h.hasTrimmed(addr.Address) {
		return nil
	}

	h.mu.Lock()
	err = writeTrimEntry(h.pendingFile, addr.Address)
	if err == nil {
		err = h.pendingFile.Sync()
	}
	h.mu.Unlock()

	if err != nil {
		log.Printf("WARNING: logunit: trim write failed for %s: %v", addr, err)
		return nil
	}

	// Flush-then-insert: the write above is already synced, so the
	// in-memory set only ever reflects durable trim intents.
	h.addPending(addr.Address)
	return nil
}

// Compact rewrites full segments to drop trimmed records under the
// predicate: rewrite when the garbage ratio exceeds the configured
// threshold, i.e. len(pending)*threshold >= known-trimmed.
func (e *Engine) Compact() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	for _, h := range e.manager.all() {
		known, trimmed, _ := h.counts()
		if int64(known+trimmed) != e.cfg.RecordsPerLogFile {
			continue
		}

		pending := h.pendingMinusTrimmed()
		if len(pending) == 0 {
			continue
		}

		live := known - trimmed
		garbage := len(pending)
		if int64(garbage)*e.cfg.CompactThreshold < int64(live) {
			continue
		}

		if err := e.rewriteSegment(h, pending); err != nil {
			log.Printf("ERROR: logunit: compact failed for %s: %v", h.dataPath(), err)
			continue
		}
	}
	return nil
}

func (e *Engine) rewriteSegment(h *SegmentHandle, pending []int64) error {
	pendingSet := make(map[int64]struct{}, len(pending))
	for _, a := range pending {
		pendingSet[a] = struct{}{}
	}

	entries, err := readAllRecords(h.dataPath(), !e.cfg.NoVerify)
	if err != nil {
		return fmt.Errorf("reading segment for compaction: %w", err)
	}

	copyPath := h.dataPath() + ".copy"
	copyFile, err := os.OpenFile(copyPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening compaction copy: %w", err)
	}

	verify := !e.cfg.NoVerify
	if err := writeFileHeader(copyFile, FileHeader{Version: e.cfg.Version, VerifyChecksum: verify}); err != nil {
		copyFile.Close()
		return err
	}

	var kept []byte
	for _, entry := range entries {
		if _, drop := pendingSet[entry.GlobalAddress]; drop {
			continue
		}
		kept = append(kept, encodeLogRecord(entry)...)
	}
	if _, err := copyFile.Write(kept); err != nil {
		copyFile.Close()
		return err
	}
	if err := copyFile.Sync(); err != nil {
		copyFile.Close()
		return err
	}
	var archiveData []byte
	if e.archiver != nil {
		if data, rerr := os.ReadFile(copyPath); rerr == nil {
			archiveData = data
		}
	}
	if err := copyFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(copyPath, h.dataPath()); err != nil {
		return fmt.Errorf("renaming compacted segment into place: %w", err)
	}

	for _, addr := range pending {
		if err := writeTrimEntry(h.trimmedFile, addr); err != nil {
			return fmt.Errorf("recording compacted address as trimmed: %w", err)
		}
	}
	if err := h.trimmedFile.Sync(); err != nil {
		return err
	}

	basePath := h.basePath
	e.manager.forget(basePath)
	e.unregisterForSync(h)
	if err := h.close(); err != nil {
		log.Printf("WARNING: logunit: error closing superseded segment handle for %s: %v", basePath, err)
	}

	if e.archiver != nil && archiveData != nil {
		if err := e.archiver.Archive(context.Background(), h.dataPath(), archiveData); err != nil {
			log.Printf("WARNING: logunit: cold-archive failed for %s: %v", h.dataPath(), err)
		}
	}

	return nil
}

// readAllRecords reads and decodes every LogEntry in a segment file
// after its header, used by compaction to rebuild the kept-record set.
func readAllRecords(path string, verify bool) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if _, err := readFileHeader(r); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var entries []LogEntry
	for {
		entry, err := readLogRecord(r, verify)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// registerForSync records h's data file as needing a durability barrier
// at the next Sync call.
func (e *Engine) registerForSync(h *SegmentHandle) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	e.syncSet[h] = struct{}{}
}

// unregisterForSync drops h from the pending sync set, used when a
// segment is superseded by compaction before it was ever synced.
func (e *Engine) unregisterForSync(h *SegmentHandle) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	delete(e.syncSet, h)
}

// Sync force-flushes every segment registered since the last Sync call.
func (e *Engine) Sync() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.syncMu.Lock()
	pending := e.syncSet
	e.syncSet = make(map[*SegmentHandle]struct{})
	e.syncMu.Unlock()

	var firstErr error
	for h := range pending {
		h.mu.Lock()
		err := h.dataFile.Sync()
		h.mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("logunit: sync failed for %s: %w", h.dataPath(), err)
		}
	}
	return firstErr
}

// Close force-flushes and closes every segment handle.
func (e *Engine) Close() error {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.manager.closeAll()
}

// Release is a reserved no-op hook: a future cache-eviction or
// reference-counting integration point.
func (e *Engine) Release(addr LogAddress, data *LogData) {
	_ = addr
	_ = data
}
