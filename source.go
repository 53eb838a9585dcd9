package remotedoc

// TextUnit selects the addressing scheme for a fetch.
type TextUnit int

const (
	// UnitUTF8 addresses the document by byte offset. Offsets must land on
	// UTF-8 boundaries.
	UnitUTF8 TextUnit = iota
	// UnitLine addresses the document by zero-based line number.
	UnitLine
)

// String implements fmt.Stringer.
func (u TextUnit) String() string {
	switch u {
	case UnitUTF8:
		return "utf8"
	case UnitLine:
		return "line"
	default:
		return "unknown"
	}
}

// Chunk is one fetch response: a contiguous piece of the remote document
// together with enough position metadata that the cache never has to
// re-derive where the piece came from.
//
// Both ends of Text are valid UTF-8 boundaries.
type Chunk struct {
	// Text is the fetched piece of the document.
	Text string
	// Offset is the absolute byte offset of the start of Text.
	Offset int
	// FirstLine is the zero-based number of the line containing Offset.
	FirstLine int
	// FirstLineOffset is the byte distance from the start of FirstLine to
	// Offset, 0 when the chunk starts exactly at a line boundary.
	FirstLineOffset int
}

// DataSource is the fetch primitive backing a cache; in the general case it
// is implemented by the remote host's RPC peer.
//
// GetData returns a chunk anchored at pos, interpreted according to unit:
// at the byte offset itself for [UnitUTF8], at the start of the line for
// [UnitLine]. The response is bounded by maxSize either way; callers extend
// with follow-up fetches when a chunk ends mid-line. rev identifies the
// document revision the request is made against, for correlation on the
// host side.
//
// Errors are returned to the cache's caller unmodified; the cache never
// retries a failed fetch.
type DataSource interface {
	GetData(pos int, unit TextUnit, maxSize int, rev uint64) (Chunk, error)
}

// Cache is the query surface shared by [ChunkCache] and [StateCache].
type Cache interface {
	// GetLine returns the content of the zero-indexed line, including the
	// trailing line break if present.
	GetLine(source DataSource, lineNum int) (string, error)

	// GetRegion returns the document content in the given byte interval,
	// clamped to the document bounds.
	GetRegion(source DataSource, iv Interval) (string, error)

	// GetDocument returns the entire document.
	GetDocument(source DataSource) (string, error)

	// OffsetOfLine returns the byte offset of the start of a line.
	OffsetOfLine(source DataSource, lineNum int) (int, error)

	// LineOfOffset returns the line number containing a byte offset.
	LineOfOffset(source DataSource, offset int) (int, error)

	// Update applies one host edit. Calls must arrive in the exact order
	// the host emits edits. A nil delta invalidates the cached window.
	Update(delta *Delta, newLen, numLines int, rev uint64)

	// Clear drops all cached data. Subsequent queries refetch from scratch.
	Clear()
}
