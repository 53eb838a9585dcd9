package remotedoc

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the fetch size used when no option overrides it.
const DefaultChunkSize = 1 << 20

// ChunkCache holds a single contiguous window of the remote document plus a
// line index over it. Queries that the window cannot answer trigger blocking
// fetches through the supplied [DataSource]; host edits are folded in via
// [ChunkCache.Update].
//
// The zero value is not usable; construct with [New]. A ChunkCache is
// exclusively owned by one document view and carries no locks.
type ChunkCache struct {
	// offset is the byte position of the window start in the document.
	offset int
	// contents is the cached window. Both ends are UTF-8 boundaries.
	contents []byte
	// firstLine is the zero-based number of the line containing offset.
	firstLine int
	// firstLineOffset is the byte distance from the start of firstLine to
	// offset, 0 when the window starts at a line boundary.
	firstLineOffset int
	// lineOffsets are window-relative positions of the first byte after
	// each line break in contents, strictly increasing.
	lineOffsets []int
	// bufSize is the total document length, refreshed on every Update.
	bufSize int
	// numLines is the total document line count.
	numLines int
	// rev is the host revision tag carried through to fetches.
	rev uint64

	chunkSize int
}

// Interface compliance.
var _ Cache = (*ChunkCache)(nil)

// Option configures a cache.
type Option func(*ChunkCache)

// WithChunkSize sets the fetch size used when extending or replacing the
// window. Smaller sizes are mainly useful in tests. Values < 1 are ignored.
func WithChunkSize(n int) Option {
	return func(c *ChunkCache) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// New creates an empty cache for a document of the given length, revision
// and line count, as reported by the host.
func New(bufSize int, rev uint64, numLines int, opts ...Option) *ChunkCache {
	c := &ChunkCache{
		bufSize:   bufSize,
		numLines:  numLines,
		rev:       rev,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Offset returns the byte position of the cached window's start.
func (c *ChunkCache) Offset() int { return c.offset }

// Size returns the total document length as of the last Update.
func (c *ChunkCache) Size() int { return c.bufSize }

// NumLines returns the total document line count as of the last Update.
func (c *ChunkCache) NumLines() int { return c.numLines }

// Rev returns the host revision tag the cache is tracking.
func (c *ChunkCache) Rev() uint64 { return c.rev }

// GetLine returns the content of the zero-indexed line, including the
// trailing line break if present. If the window does not already cover the
// line start, a line-addressed fetch replaces the window; the window is then
// extended chunk by chunk until the line end is known, trimming consumed
// data so memory stays near one chunk size even for oversized lines.
func (c *ChunkCache) GetLine(source DataSource, lineNum int) (string, error) {
	if lineNum >= c.numLines {
		return "", &OutOfRangeError{Requested: lineNum, Bound: c.numLines}
	}
	if len(c.contents) == 0 || lineNum < c.firstLine ||
		(lineNum == c.firstLine && c.firstLineOffset > 0) ||
		lineNum > c.firstLine+len(c.lineOffsets) {
		resp, err := source.GetData(lineNum, UnitLine, c.chunkSize, c.rev)
		if err != nil {
			return "", err
		}
		c.resetChunk(resp)
	}
	start, ok := c.cachedOffsetOfLine(lineNum)
	if !ok {
		return "", fmt.Errorf("remotedoc: fetched chunk does not cover line %d", lineNum)
	}
	startOff := start - c.offset
	for {
		if end, ok := c.cachedOffsetOfLine(lineNum + 1); ok {
			return string(c.contents[startOff : end-c.offset]), nil
		}
		if startOff != 0 {
			if err := c.clearUpTo(startOff); err != nil {
				return "", err
			}
			startOff = 0
		}
		chunkEnd := c.offset + len(c.contents)
		resp, err := source.GetData(chunkEnd, UnitUTF8, c.chunkSize, c.rev)
		if err != nil {
			return "", err
		}
		if resp.Text == "" {
			return "", fmt.Errorf("remotedoc: empty chunk at offset %d", chunkEnd)
		}
		c.appendChunk(resp)
	}
}

// GetRegion returns the document content in the given byte interval, clamped
// to the document bounds. Like GetLine it anchors the window at the region
// start if uncovered, then extends until the region end is cached.
func (c *ChunkCache) GetRegion(source DataSource, iv Interval) (string, error) {
	iv = iv.Clamp(c.bufSize)
	if len(c.contents) == 0 || iv.Start < c.offset || iv.Start >= c.offset+len(c.contents) {
		resp, err := source.GetData(iv.Start, UnitUTF8, c.chunkSize, c.rev)
		if err != nil {
			return "", err
		}
		c.resetChunk(resp)
	}
	for {
		startOff := iv.Start - c.offset
		endOff := iv.End - c.offset
		if endOff <= len(c.contents) {
			return string(c.contents[startOff:endOff]), nil
		}
		if startOff != 0 {
			if err := c.clearUpTo(startOff); err != nil {
				return "", err
			}
		}
		chunkEnd := c.offset + len(c.contents)
		resp, err := source.GetData(chunkEnd, UnitUTF8, c.chunkSize, c.rev)
		if err != nil {
			return "", err
		}
		if resp.Text == "" {
			return "", fmt.Errorf("remotedoc: empty chunk at offset %d", chunkEnd)
		}
		c.appendChunk(resp)
	}
}

// GetDocument returns the entire document. Whole-document reads are not a
// windowed access pattern, so the result is accumulated across fetches
// without preserving the line index.
func (c *ChunkCache) GetDocument(source DataSource) (string, error) {
	var result strings.Builder
	result.Grow(c.bufSize)
	curIdx := 0
	for curIdx < c.bufSize {
		if len(c.contents) == 0 || curIdx != c.offset {
			resp, err := source.GetData(curIdx, UnitUTF8, c.chunkSize, c.rev)
			if err != nil {
				return "", err
			}
			c.resetChunk(resp)
		}
		if len(c.contents) == 0 {
			return "", fmt.Errorf("remotedoc: empty chunk at offset %d", curIdx)
		}
		result.Write(c.contents)
		curIdx = c.offset + len(c.contents)
	}
	return result.String(), nil
}

// OffsetOfLine returns the byte offset of the start of a line. lineNum may
// equal the line count, in which case the document length is returned.
func (c *ChunkCache) OffsetOfLine(source DataSource, lineNum int) (int, error) {
	if lineNum > c.numLines {
		return 0, &OutOfRangeError{Requested: lineNum, Bound: c.numLines + 1}
	}
	if off, ok := c.cachedOffsetOfLine(lineNum); ok {
		return off, nil
	}
	resp, err := source.GetData(lineNum, UnitLine, c.chunkSize, c.rev)
	if err != nil {
		return 0, err
	}
	c.resetChunk(resp)
	off, ok := c.cachedOffsetOfLine(lineNum)
	if !ok {
		return 0, fmt.Errorf("remotedoc: fetched chunk does not cover line %d", lineNum)
	}
	return off, nil
}

// LineOfOffset returns the line number containing the given byte offset. An
// offset exactly at a line break boundary belongs to the following line.
func (c *ChunkCache) LineOfOffset(source DataSource, offset int) (int, error) {
	if offset > c.bufSize {
		return 0, &OutOfRangeError{Requested: offset, Bound: c.bufSize + 1}
	}
	if len(c.contents) == 0 || offset < c.offset || offset > c.offset+len(c.contents) {
		resp, err := source.GetData(offset, UnitUTF8, c.chunkSize, c.rev)
		if err != nil {
			return 0, err
		}
		c.resetChunk(resp)
	}
	relOffset := offset - c.offset
	ix, found := slices.BinarySearch(c.lineOffsets, relOffset)
	if found {
		return ix + c.firstLine + 1, nil
	}
	return ix + c.firstLine, nil
}

// Update applies one host edit. Simple insertions and deletions are patched
// in place; structurally richer but still window-local deltas go through a
// generalized reconstruction; everything else invalidates the window. The
// document length, line count and revision are refreshed unconditionally.
//
// Calls must arrive in the exact order the host emits edits. A nil delta
// invalidates the window.
func (c *ChunkCache) Update(delta *Delta, newLen, numLines int, rev uint64) {
	isEmpty := c.offset == 0 && len(c.contents) == 0
	if delta == nil || isEmpty {
		c.Clear()
	} else {
		c.applyDelta(delta)
	}
	c.bufSize = newLen
	c.numLines = numLines
	c.rev = rev
}

// Clear drops the window and index. The next query refetches from scratch.
func (c *ChunkCache) Clear() {
	c.contents = c.contents[:0]
	c.offset = 0
	c.lineOffsets = c.lineOffsets[:0]
	c.firstLine = 0
	c.firstLineOffset = 0
}

// applyDelta decides between patching the window in place and clearing it.
// The line index is patched against the pre-edit window, then the window
// itself is rebuilt.
func (c *ChunkCache) applyDelta(d *Delta) {
	iv, _ := d.Summary()
	switch {
	case iv.Start < c.offset || iv.Start > c.offset+len(c.contents):
		c.Clear()
	case d.IsSimpleDelete():
		end := min(iv.End, c.offset+len(c.contents))
		c.simpleDelete(iv.Start, end)
		c.updateChunk(d, false)
	default:
		if text, ok := d.AsSimpleInsert(); ok {
			c.simpleInsert(text, iv.Start)
			c.updateChunk(d, false)
		} else {
			c.updateChunk(d, true)
		}
	}
}

// cachedOffsetOfLine returns the absolute offset of the given line if the
// window can resolve it without I/O. There is an implicit line starting at
// the last offset of the document, resolvable when the window reaches EOF.
func (c *ChunkCache) cachedOffsetOfLine(lineNum int) (int, bool) {
	if lineNum < c.firstLine {
		return 0, false
	}
	relLineNum := lineNum - c.firstLine
	if relLineNum == 0 {
		return c.offset - c.firstLineOffset, true
	}
	if relLineNum <= len(c.lineOffsets) {
		return c.offset + c.lineOffsets[relLineNum-1], true
	}
	if lineNum == c.numLines && c.offset+len(c.contents) == c.bufSize {
		return c.offset + len(c.contents), true
	}
	return 0, false
}

// clearUpTo drops the window prefix up to the window-relative offset, which
// must be a UTF-8 boundary at or before the window end. The first-line
// bookkeeping is re-derived from the pre-trim index.
func (c *ChunkCache) clearUpTo(localOffset int) error {
	if localOffset > len(c.contents) {
		return &TrimError{Offset: localOffset, Len: len(c.contents)}
	}
	if localOffset < len(c.contents) && !utf8.RuneStart(c.contents[localOffset]) {
		return &TrimError{Offset: localOffset, Len: len(c.contents)}
	}

	ix, found := slices.BinarySearch(c.lineOffsets, localOffset)
	var newLine, newLineOff int
	switch {
	case found:
		newLine, newLineOff = c.firstLine+ix+1, 0
	case ix == 0:
		newLine, newLineOff = c.firstLine, c.firstLineOffset+localOffset
	default:
		newLine, newLineOff = c.firstLine+ix, localOffset-c.lineOffsets[ix-1]
	}

	kept := c.lineOffsets[:0]
	for _, off := range c.lineOffsets {
		if off > localOffset {
			kept = append(kept, off-localOffset)
		}
	}
	c.lineOffsets = kept
	c.contents = append([]byte(nil), c.contents[localOffset:]...)
	c.offset += localOffset
	c.firstLine = newLine
	c.firstLineOffset = newLineOff
	return nil
}

// resetChunk discards the window, starting again with the response data.
func (c *ChunkCache) resetChunk(data Chunk) {
	c.contents = append(c.contents[:0], data.Text...)
	c.offset = data.Offset
	c.firstLine = data.FirstLine
	c.firstLineOffset = data.FirstLineOffset
	c.recalculateLineOffsets()
}

// appendChunk extends the window in place, leaving existing data untouched.
func (c *ChunkCache) appendChunk(data Chunk) {
	c.contents = append(c.contents, data.Text...)
	c.recalculateLineOffsets()
}

func (c *ChunkCache) recalculateLineOffsets() {
	c.lineOffsets = appendNewlineOffsets(c.lineOffsets[:0], c.contents)
}

// simpleInsert patches the line index for a single contiguous insertion at
// the absolute offset insOffset, which lies within the window.
func (c *ChunkCache) simpleInsert(text string, insOffset int) {
	relOffset := insOffset - c.offset
	for i, off := range c.lineOffsets {
		if off > relOffset {
			c.lineOffsets[i] = off + len(text)
		}
	}
	if !strings.ContainsRune(text, '\n') {
		return
	}
	newOffsets := appendNewlineOffsets(nil, []byte(text))
	for i := range newOffsets {
		newOffsets[i] += relOffset
	}
	// The shift above vacated this slot.
	ix, _ := slices.BinarySearch(c.lineOffsets, newOffsets[0])
	c.lineOffsets = slices.Insert(c.lineOffsets, ix, newOffsets...)
}

// simpleDelete patches the line index for a single contiguous deletion of
// the absolute span [start, end), already clamped to the window end.
func (c *ChunkCache) simpleDelete(start, end int) {
	delSize := end - start
	relStart := start - c.offset
	relEnd := end - c.offset
	if bytes.IndexByte(c.contents[relStart:relEnd], '\n') >= 0 {
		kept := c.lineOffsets[:0]
		for _, off := range c.lineOffsets {
			switch {
			case off <= relStart:
				kept = append(kept, off)
			case off > relEnd:
				kept = append(kept, off-delSize)
			}
		}
		c.lineOffsets = kept
		return
	}
	// No line break in the span, so no tracked offset can lie inside it.
	for i, off := range c.lineOffsets {
		if off >= relEnd {
			c.lineOffsets[i] = off - delSize
		}
	}
}

// updateChunk rebuilds the window for a delta whose affected interval starts
// inside the window. Inserted and deleted bytes strictly before the window
// only re-anchor the offset; bytes overlapping the window are copied or
// appended into the rebuilt buffer. When reindex is set the line index is
// rescanned from the rebuilt window, since the delta may have added or
// removed line breaks that no simple patch accounted for.
func (c *ChunkCache) updateChunk(d *Delta, reindex bool) {
	chunkStart := c.offset
	chunkEnd := chunkStart + len(c.contents)
	newState := make([]byte, 0, len(c.contents))
	prevCopyEnd := 0
	delBefore := 0
	insBefore := 0
	for _, el := range d.Els {
		switch el := el.(type) {
		case Copy:
			if el.Start < chunkStart {
				delBefore += el.Start - prevCopyEnd
				if el.End >= chunkStart {
					cpEnd := min(el.End-chunkStart, len(c.contents))
					newState = append(newState, c.contents[:cpEnd]...)
				}
			} else if el.Start <= chunkEnd {
				if prevCopyEnd < chunkStart {
					delBefore += chunkStart - prevCopyEnd
				}
				cpStart := el.Start - chunkStart
				cpEnd := min(el.End-chunkStart, len(c.contents))
				if cpStart < cpEnd {
					newState = append(newState, c.contents[cpStart:cpEnd]...)
				}
			}
			prevCopyEnd = el.End
		case Insert:
			if prevCopyEnd < chunkStart {
				insBefore += len(el.Text)
			} else if prevCopyEnd <= chunkEnd {
				newState = append(newState, el.Text...)
			}
		}
	}
	c.offset += insBefore - delBefore
	c.contents = newState
	if reindex {
		c.recalculateLineOffsets()
	}
}

// appendNewlineOffsets appends the offsets of the first byte after each line
// break in text to dst, relative to the start of text.
func appendNewlineOffsets(dst []int, text []byte) []int {
	cur := 0
	for {
		idx := bytes.IndexByte(text[cur:], '\n')
		if idx < 0 {
			return dst
		}
		dst = append(dst, cur+idx+1)
		cur += idx + 1
	}
}
