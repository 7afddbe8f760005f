package logunit

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/google/uuid"
)

// writeFileHeader writes the fresh FileHeader frame that opens every
// segment: header_meta || header_body, with no record delimiter.
func writeFileHeader(w io.Writer, h FileHeader) error {
	_, err := w.Write(encodeFrame(encodeFileHeaderBody(h)))
	return err
}

// readFileHeader reads and validates the FileHeader frame at the start
// of a segment, verifying its own checksum unconditionally (the header
// always carries a checksum regardless of the engine's no-verify mode,
// since we need to know noVerify's own state from the flag it records).
func readFileHeader(r io.Reader) (FileHeader, error) {
	body, err := decodeFrame(r, true)
	if err != nil {
		return FileHeader{}, err
	}
	return decodeFileHeaderBody(body)
}

// encodeLogRecord serializes a LogEntry into the on-disk LogRecord wire
// format: delimiter :: frame(serialize(entry)).
func encodeLogRecord(entry LogEntry) []byte {
	body := serializeLogEntry(entry)
	frame := encodeFrame(body)
	out := make([]byte, 2+len(frame))
	binary.BigEndian.PutUint16(out[0:2], RecordDelimiter)
	copy(out[2:], frame)
	return out
}

// readLogRecord reads one LogRecord from r: delimiter, metadata frame,
// then the LogEntry body. A short read or a bad delimiter both surface
// io.EOF so the scan loop treats them identically ("stop here") rather
// than reporting corruption. Used for unbounded scans (compaction,
// inspection, the scan when a segment is opened) where a torn final record is a
// legitimate, benign end-of-data condition.
func readLogRecord(r *bufio.Reader, verify bool) (LogEntry, error) {
	return readLogRecordBounded(r, verify, -1)
}

// readLogRecordBounded behaves like readLogRecord, but when remaining
// is non-negative it is the number of bytes left before a known-durable
// boundary (see Engine.Read). Within that boundary, a short read or an
// overrunning frame length can only mean corruption, not a torn tail,
// and reports ErrCorruption instead of io.EOF.
func readLogRecordBounded(r *bufio.Reader, verify bool, remaining int64) (LogEntry, error) {
	delimBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, delimBuf); err != nil {
		// remaining == 0 is a clean end of scan; any other positive
		// remaining means leftover bytes exist that don't even form a
		// full delimiter, inside a region that must be complete.
		if remaining > 0 {
			return LogEntry{}, ErrCorruption
		}
		return LogEntry{}, io.EOF
	}
	if binary.BigEndian.Uint16(delimBuf) != RecordDelimiter {
		return LogEntry{}, io.EOF
	}

	bodyRemaining := int64(-1)
	if remaining >= 0 {
		bodyRemaining = remaining - 2
	}
	body, err := decodeFrameBounded(r, verify, bodyRemaining)
	if err != nil {
		return LogEntry{}, err
	}

	entry, err := deserializeLogEntry(body)
	if err != nil {
		return LogEntry{}, ErrCorruption
	}
	return entry, nil
}

// readLogRecordWithRaw behaves like readLogRecord but additionally
// returns the exact on-disk bytes of the record (delimiter, frame
// header, and undecoded body), for tooling that wants to show a record
// as it actually sits on disk rather than its decoded fields.
func readLogRecordWithRaw(r *bufio.Reader, verify bool) (LogEntry, []byte, error) {
	delimBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, delimBuf); err != nil {
		return LogEntry{}, nil, io.EOF
	}
	if binary.BigEndian.Uint16(delimBuf) != RecordDelimiter {
		return LogEntry{}, nil, io.EOF
	}

	metaBuf, err := r.Peek(MetadataSize)
	if err != nil {
		return LogEntry{}, nil, io.EOF
	}
	meta := append([]byte(nil), metaBuf...)

	body, err := decodeFrame(r, verify)
	if err != nil {
		return LogEntry{}, nil, err
	}

	entry, err := deserializeLogEntry(body)
	if err != nil {
		return LogEntry{}, nil, ErrCorruption
	}

	raw := make([]byte, 0, 2+MetadataSize+len(body))
	raw = append(raw, delimBuf...)
	raw = append(raw, meta...)
	raw = append(raw, body...)
	return entry, raw, nil
}

// serializeLogEntry encodes a LogEntry deterministically:
//
//	dataType:1 | globalAddress:8 | rank:8 | commit:1 | payloadLen:4 | payload
//	| streamsCount:4 | streams: (uuid:16)*
//	| backpointersCount:4 | backpointers: (uuid:16, offset:8)*
//	| logicalAddrCount:4 | logicalAddrs: (uuid:16, offset:8)*
//
// New fields would be appended after this tail, keeping existing readers
// able to decode the prefix they understand.
func serializeLogEntry(e LogEntry) []byte {
	size := 1 + 8 + 8 + 1 + 4 + len(e.Payload) + 4 + len(e.Streams)*16 +
		4 + len(e.Backpointers)*24 + 4 + len(e.LogicalAddresses)*24
	buf := make([]byte, size)
	off := 0

	buf[off] = byte(e.DataType)
	off++
	binary.BigEndian.PutUint64(buf[off:], uint64(e.GlobalAddress))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(e.Rank))
	off += 8
	if e.Commit {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint32(buf[off:], uint32(len(e.Payload)))
	off += 4
	off += copy(buf[off:], e.Payload)

	binary.BigEndian.PutUint32(buf[off:], uint32(len(e.Streams)))
	off += 4
	for s := range e.Streams {
		copy(buf[off:], s[:])
		off += 16
	}

	binary.BigEndian.PutUint32(buf[off:], uint32(len(e.Backpointers)))
	off += 4
	for u, v := range e.Backpointers {
		copy(buf[off:], u[:])
		off += 16
		binary.BigEndian.PutUint64(buf[off:], uint64(v))
		off += 8
	}

	binary.BigEndian.PutUint32(buf[off:], uint32(len(e.LogicalAddresses)))
	off += 4
	for u, v := range e.LogicalAddresses {
		copy(buf[off:], u[:])
		off += 16
		binary.BigEndian.PutUint64(buf[off:], uint64(v))
		off += 8
	}

	return buf
}

func deserializeLogEntry(b []byte) (LogEntry, error) {
	var e LogEntry
	off := 0
	need := func(n int) bool { return off+n <= len(b) }

	if !need(1 + 8 + 8 + 1 + 4) {
		return e, io.ErrUnexpectedEOF
	}
	e.DataType = DataType(b[off])
	off++
	e.GlobalAddress = int64(binary.BigEndian.Uint64(b[off:]))
	off += 8
	e.Rank = int64(binary.BigEndian.Uint64(b[off:]))
	off += 8
	e.Commit = b[off] != 0
	off++
	payloadLen := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if !need(payloadLen) {
		return e, io.ErrUnexpectedEOF
	}
	e.Payload = append([]byte(nil), b[off:off+payloadLen]...)
	off += payloadLen

	if !need(4) {
		return e, io.ErrUnexpectedEOF
	}
	streamsCount := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if streamsCount > 0 {
		e.Streams = make(map[uuid.UUID]struct{}, streamsCount)
	}
	for i := 0; i < streamsCount; i++ {
		if !need(16) {
			return e, io.ErrUnexpectedEOF
		}
		var u uuid.UUID
		copy(u[:], b[off:off+16])
		off += 16
		e.Streams[u] = struct{}{}
	}

	if !need(4) {
		return e, io.ErrUnexpectedEOF
	}
	bpCount := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if bpCount > 0 {
		e.Backpointers = make(map[uuid.UUID]int64, bpCount)
	}
	for i := 0; i < bpCount; i++ {
		if !need(24) {
			return e, io.ErrUnexpectedEOF
		}
		var u uuid.UUID
		copy(u[:], b[off:off+16])
		off += 16
		v := int64(binary.BigEndian.Uint64(b[off:]))
		off += 8
		e.Backpointers[u] = v
	}

	if !need(4) {
		return e, io.ErrUnexpectedEOF
	}
	laCount := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if laCount > 0 {
		e.LogicalAddresses = make(map[uuid.UUID]int64, laCount)
	}
	for i := 0; i < laCount; i++ {
		if !need(24) {
			return e, io.ErrUnexpectedEOF
		}
		var u uuid.UUID
		copy(u[:], b[off:off+16])
		off += 16
		v := int64(binary.BigEndian.Uint64(b[off:]))
		off += 8
		e.LogicalAddresses[u] = v
	}

	return e, nil
}

// writeTrimEntry appends one length-delimited TrimEntry to w: a uvarint
// length prefix followed by the fixed {checksum:4, address:8} body.
func writeTrimEntry(w io.Writer, addr int64) error {
	body := make([]byte, 12)
	binary.BigEndian.PutUint32(body[0:4], checksumInt64(addr))
	binary.BigEndian.PutUint64(body[4:12], uint64(addr))

	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, uint64(len(body)))

	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readTrimEntry reads one length-delimited TrimEntry from r. io.EOF
// (clean, at a record boundary) signals the caller has drained the file.
func readTrimEntry(r *bufio.Reader) (TrimEntry, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return TrimEntry{}, io.EOF
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return TrimEntry{}, io.EOF
	}
	if len(body) < 12 {
		return TrimEntry{}, ErrCorruption
	}
	return TrimEntry{
		Checksum: binary.BigEndian.Uint32(body[0:4]),
		Address:  int64(binary.BigEndian.Uint64(body[4:12])),
	}, nil
}
