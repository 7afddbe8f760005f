// Package coldarchive ships fully-compacted segments to cheaper storage
// once the log engine is done writing to them. The storage core never
// depends on an Archiver being configured; the default is NoopArchiver.
package coldarchive

import (
	"context"

	"github.com/golang/snappy"
)

// Archiver receives the bytes of a segment right after compaction has
// rewritten it in place, grounded on pkg/wal.CompressedWAL's snappy
// usage.
type Archiver interface {
	Archive(ctx context.Context, segmentPath string, data []byte) error
}

// NoopArchiver discards everything; it is the default when no cold-tier
// backend is configured.
type NoopArchiver struct{}

func (NoopArchiver) Archive(context.Context, string, []byte) error { return nil }

// compress snappy-encodes a segment's bytes before handoff to a backend,
// grounded directly on pkg/wal/compressed_wal.go's snappy.Encode call.
func compress(data []byte) []byte {
	return snappy.Encode(nil, data)
}
