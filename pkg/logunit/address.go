package logunit

import (
	"fmt"

	"github.com/google/uuid"
)

// LogAddress is the engine's primary key: a monotonic 64-bit address,
// optionally tagged with a stream identifier. Untagged addresses share
// one global namespace; a given stream ID partitions its own namespace,
// so two addresses with the same numeric value but different streams
// (or one tagged, one not) never collide.
type LogAddress struct {
	Stream  *uuid.UUID
	Address int64
}

// GlobalAddress builds an untagged LogAddress.
func GlobalAddress(address int64) LogAddress {
	return LogAddress{Address: address}
}

// StreamAddress builds a stream-tagged LogAddress.
func StreamAddress(stream uuid.UUID, address int64) LogAddress {
	return LogAddress{Stream: &stream, Address: address}
}

// SegmentNumber computes the deterministic segment a given address maps
// to. It is never stored on disk, always recomputed from the address
// and the configured RecordsPerLogFile.
func (a LogAddress) SegmentNumber(recordsPerLogFile int64) int64 {
	return a.Address / recordsPerLogFile
}

// segmentKey identifies one (optional stream, segment number) pair, used
// as the SegmentManager's map key.
type segmentKey struct {
	stream  uuid.UUID
	tagged  bool
	segment int64
}

func (a LogAddress) key(recordsPerLogFile int64) segmentKey {
	seg := a.SegmentNumber(recordsPerLogFile)
	if a.Stream == nil {
		return segmentKey{segment: seg}
	}
	return segmentKey{stream: *a.Stream, tagged: true, segment: seg}
}

// basePath derives the shared base path for a segment's three files
// (before the ".log"/".log.trimmed"/".log.pending" suffixes):
// "<dir>/<segment>", or "<dir>/<stream>-<segment>" when tagged.
func (k segmentKey) basePath(dir string) string {
	if !k.tagged {
		return fmt.Sprintf("%s/%d", dir, k.segment)
	}
	return fmt.Sprintf("%s/%s-%d", dir, k.stream.String(), k.segment)
}

func (a LogAddress) String() string {
	if a.Stream == nil {
		return fmt.Sprintf("%d", a.Address)
	}
	return fmt.Sprintf("%s/%d", a.Stream.String(), a.Address)
}
