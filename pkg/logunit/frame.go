package logunit

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// MetadataSize is the compile-time constant serialized size of a
// FrameHeader: 4 bytes checksum + 4 bytes length.
const MetadataSize = 8

// RecordDelimiter is the big-endian 2-byte marker ("LE" in ASCII)
// prepended to every LogRecord frame on disk.
const RecordDelimiter uint16 = 0x4C45

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// checksumBytes computes the CRC32C (Castagnoli) checksum of b.
func checksumBytes(b []byte) uint32 {
	return crc32.Checksum(b, crc32cTable)
}

// checksumInt64 computes the CRC32C checksum of the big-endian encoding
// of n, used for TrimEntry checksums.
func checksumInt64(n int64) uint32 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return checksumBytes(buf[:])
}

// frameHeader is the fixed-size {checksum, length} metadata prefix
// wrapping every frame body. Its serialization is deterministic and
// forward-compatible: a future field would extend the tail of the
// struct without altering how existing readers decode Checksum/Length.
type frameHeader struct {
	Checksum uint32
	Length   uint32
}

func encodeFrameHeader(h frameHeader) []byte {
	buf := make([]byte, MetadataSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Checksum)
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
	return buf
}

func decodeFrameHeader(b []byte) frameHeader {
	return frameHeader{
		Checksum: binary.BigEndian.Uint32(b[0:4]),
		Length:   binary.BigEndian.Uint32(b[4:8]),
	}
}

// encodeFrame wraps body in checksum(body) :: len(body) :: body.
func encodeFrame(body []byte) []byte {
	h := frameHeader{Checksum: checksumBytes(body), Length: uint32(len(body))}
	out := make([]byte, 0, MetadataSize+len(body))
	out = append(out, encodeFrameHeader(h)...)
	out = append(out, body...)
	return out
}

// decodeFrame reads one metadata-prefixed frame body from r. verify
// controls whether the CRC32C is recomputed and checked. A short read
// (EOF before a full metadata header, or before length bytes) surfaces
// io.EOF so callers scanning a file that may still be mid-write of its
// last record can treat it as "scan ended"; a length that runs past the
// end of r is indistinguishable from such a short read and also surfaces
// io.EOF (decodeFrameBounded tells the two apart). A checksum mismatch
// surfaces ErrCorruption.
func decodeFrame(r io.Reader, verify bool) ([]byte, error) {
	return decodeFrameBounded(r, verify, -1)
}

// decodeFrameBounded behaves like decodeFrame, but when remaining is
// non-negative the caller is asserting that every byte up to remaining
// is part of an already-durable region (see Engine.Read, which bounds
// its reader to a size snapshot taken under the handle lock): within
// that region a frame whose claimed length overruns remaining, or a
// short read that occurs before remaining is exhausted, can only be a
// malformed frame, not a torn tail, and reports ErrCorruption instead
// of io.EOF.
func decodeFrameBounded(r io.Reader, verify bool, remaining int64) ([]byte, error) {
	metaBuf := make([]byte, MetadataSize)
	if _, err := io.ReadFull(r, metaBuf); err != nil {
		// remaining == 0 means the previous frame ended exactly on the
		// durable boundary: a clean end of scan. Any other positive
		// remaining means bytes exist inside the durable region that
		// don't form a full frame header.
		if remaining > 0 {
			return nil, ErrCorruption
		}
		return nil, io.EOF
	}
	meta := decodeFrameHeader(metaBuf)

	if remaining >= 0 && int64(meta.Length) > remaining-int64(MetadataSize) {
		return nil, ErrCorruption
	}

	body := make([]byte, meta.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		if remaining >= 0 {
			return nil, ErrCorruption
		}
		return nil, io.EOF
	}

	if verify {
		if checksumBytes(body) != meta.Checksum {
			return nil, ErrCorruption
		}
	}
	return body, nil
}

// FileHeader is the first record of every segment.
type FileHeader struct {
	Version        uint32
	VerifyChecksum bool
}

func encodeFileHeaderBody(h FileHeader) []byte {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf[0:4], h.Version)
	if h.VerifyChecksum {
		buf[4] = 1
	}
	return buf
}

func decodeFileHeaderBody(b []byte) (FileHeader, error) {
	if len(b) < 5 {
		return FileHeader{}, ErrCorruption
	}
	return FileHeader{
		Version:        binary.BigEndian.Uint32(b[0:4]),
		VerifyChecksum: b[4] != 0,
	}, nil
}
