package logunit

import "github.com/google/uuid"

// DataType tags the kind of payload a LogEntry carries. The engine
// itself never inspects it beyond storing and returning it; interpreting
// the payload is a concern of the caller layered above the engine.
type DataType uint8

const (
	DataTypeData DataType = iota
	DataTypeHole
	DataTypeTrimmed
	DataTypeEmpty
	DataTypeRank
)

// LogEntry is the on-disk record payload. It is opaque to the engine
// except GlobalAddress, which must equal the address the caller supplied
// to Append.
//
// Re-expressed per the redesign guidance as an explicit struct with
// optional fields (Streams/Backpointers/LogicalAddresses default to
// nil/empty), rather than a dynamic record with runtime reflection.
type LogEntry struct {
	DataType         DataType
	GlobalAddress    int64
	Payload          []byte
	Rank             int64
	Commit           bool
	Streams          map[uuid.UUID]struct{}
	Backpointers     map[uuid.UUID]int64
	LogicalAddresses map[uuid.UUID]int64
}

// LogData is what Engine.Read returns: the materialized entry plus the
// address it was found at.
type LogData struct {
	Address LogAddress
	Entry   LogEntry
}

// TrimEntry is the length-delimited record written to ".pending" and
// ".trimmed" trim files.
type TrimEntry struct {
	Checksum uint32
	Address  int64
}
