package remotedoc

import (
	"bytes"
	"math/rand"
	"slices"
)

// defaultStateEntries bounds the number of per-line entries kept by a
// StateCache before eviction kicks in.
const defaultStateEntries = 1024

// numProbes is the number of random probes used by eviction.
const numProbes = 5

type stateEntry[S any] struct {
	lineNum int
	offset  int
	state   S
	valid   bool
}

// StateCache layers per-line user state on top of a [ChunkCache]. Entries
// are keyed by line number, kept sorted, patched incrementally as host edits
// arrive, and evicted under a fixed budget by probing for the entry whose
// removal leaves the smallest gap.
//
// The frontier tracks lines whose state still needs to be (re)computed; a
// typical user calls GetFrontier, does the work for that line, sets state
// for the next line, and then calls UpdateFrontier or CloseFrontier.
type StateCache[S any] struct {
	chunk      *ChunkCache
	entries    []stateEntry[S]
	frontier   []int
	maxEntries int
}

// NewStateCache creates an empty state cache for a document of the given
// length, revision and line count. Options configure the underlying chunk
// cache.
func NewStateCache[S any](bufSize int, rev uint64, numLines int, opts ...Option) *StateCache[S] {
	return &StateCache[S]{
		chunk:      New(bufSize, rev, numLines, opts...),
		maxEntries: defaultStateEntries,
	}
}

// GetLine returns the content of the zero-indexed line.
func (c *StateCache[S]) GetLine(source DataSource, lineNum int) (string, error) {
	return c.chunk.GetLine(source, lineNum)
}

// GetRegion returns the document content in the given byte interval.
func (c *StateCache[S]) GetRegion(source DataSource, iv Interval) (string, error) {
	return c.chunk.GetRegion(source, iv)
}

// GetDocument returns the entire document.
func (c *StateCache[S]) GetDocument(source DataSource) (string, error) {
	return c.chunk.GetDocument(source)
}

// OffsetOfLine returns the byte offset of the start of a line.
func (c *StateCache[S]) OffsetOfLine(source DataSource, lineNum int) (int, error) {
	return c.chunk.OffsetOfLine(source, lineNum)
}

// LineOfOffset returns the line number containing a byte offset.
func (c *StateCache[S]) LineOfOffset(source DataSource, offset int) (int, error) {
	return c.chunk.LineOfOffset(source, offset)
}

// Update applies one host edit to the line state and the underlying window.
func (c *StateCache[S]) Update(delta *Delta, newLen, numLines int, rev uint64) {
	if delta != nil {
		c.updateLineCache(delta)
	} else {
		c.clearToStart(0)
	}
	c.chunk.Update(delta, newLen, numLines, rev)
}

// Clear flushes all state held by the cache.
func (c *StateCache[S]) Clear() {
	c.truncateCache(0)
	c.chunk.Clear()
}

// Interface compliance.
var _ Cache = (*StateCache[int])(nil)

// findLine locates an entry by line number. found reports an exact match;
// otherwise ix is the insertion point.
func (c *StateCache[S]) findLine(lineNum int) (ix int, found bool) {
	return slices.BinarySearchFunc(c.entries, lineNum, func(e stateEntry[S], target int) int {
		return e.lineNum - target
	})
}

// FindOffset locates an entry by byte offset, like findLine.
func (c *StateCache[S]) FindOffset(offset int) (ix int, found bool) {
	return slices.BinarySearchFunc(c.entries, offset, func(e stateEntry[S], target int) int {
		return e.offset - target
	})
}

// GetPrev returns the state of the nearest entry at or before the given
// line number, along with that entry's line number and offset. Falls back
// to line 0 with the zero state.
func (c *StateCache[S]) GetPrev(lineNum int) (int, int, S) {
	var zero S
	if lineNum == 0 {
		return 0, 0, zero
	}
	ix, found := c.findLine(lineNum)
	if !found {
		if ix == 0 {
			return 0, 0, zero
		}
		ix--
	}
	for {
		entry := &c.entries[ix]
		if entry.valid {
			return entry.lineNum, entry.offset, entry.state
		}
		if ix == 0 {
			break
		}
		ix--
	}
	return 0, 0, zero
}

// Get returns the state at the given line number, if cached.
func (c *StateCache[S]) Get(lineNum int) (S, bool) {
	if ix, found := c.findLine(lineNum); found && c.entries[ix].valid {
		return c.entries[ix].state, true
	}
	var zero S
	return zero, false
}

// Set records state for the given line, creating the entry if necessary.
// Setting state for the implicit partial line at EOF is a no-op.
func (c *StateCache[S]) Set(source DataSource, lineNum int, s S) error {
	ix, found := c.findLine(lineNum)
	if !found {
		if lineNum == c.chunk.numLines {
			return nil
		}
		offset, err := c.chunk.OffsetOfLine(source, lineNum)
		if err != nil {
			return err
		}
		ix = c.insertEntry(lineNum, offset)
	}
	c.entries[ix].state = s
	c.entries[ix].valid = true
	return nil
}

// insertEntry adds a stateless entry, evicting first if the cache is full,
// and returns its index.
func (c *StateCache[S]) insertEntry(lineNum, offset int) int {
	if len(c.entries) >= c.maxEntries {
		c.evict()
	}
	ix, found := c.findLine(lineNum)
	if found {
		return ix
	}
	c.entries = slices.Insert(c.entries, ix, stateEntry[S]{lineNum: lineNum, offset: offset})
	return ix
}

func (c *StateCache[S]) evict() {
	ix := c.chooseVictim()
	c.entries = slices.Delete(c.entries, ix, ix+1)
}

// chooseVictim probes a handful of random entries and picks the one whose
// removal leaves the smallest gap between neighbors.
func (c *StateCache[S]) chooseVictim() int {
	bestIx := 0
	bestGap := -1
	for i := 0; i < numProbes; i++ {
		ix := rand.Intn(len(c.entries))
		gap := c.computeGap(ix)
		if bestGap < 0 || gap < bestGap {
			bestGap, bestIx = gap, ix
		}
	}
	return bestIx
}

// computeGap returns the gap that would result from deleting the entry.
func (c *StateCache[S]) computeGap(ix int) int {
	before := 0
	if ix > 0 {
		before = c.entries[ix-1].offset
	}
	after := c.chunk.bufSize
	if ix+1 < len(c.entries) {
		after = c.entries[ix+1].offset
	}
	return after - before
}

// truncateCache releases all state after the given offset.
func (c *StateCache[S]) truncateCache(offset int) {
	ix, found := c.FindOffset(offset)
	var lineNum int
	if found {
		lineNum = c.entries[ix].lineNum
		ix++
	} else if ix > 0 {
		lineNum = c.entries[ix-1].lineNum
	}
	c.truncateFrontier(lineNum)
	c.entries = c.entries[:ix]
}

func (c *StateCache[S]) truncateFrontier(lineNum int) {
	ix, found := slices.BinarySearch(c.frontier, lineNum)
	if found {
		c.frontier = c.frontier[:ix+1]
		return
	}
	c.frontier = append(c.frontier[:ix], lineNum)
}

// updateLineCache patches entries to reflect one delta.
func (c *StateCache[S]) updateLineCache(d *Delta) {
	iv, newLen := d.Summary()
	if text, ok := d.AsSimpleInsert(); ok {
		c.lineCacheSimpleInsert(iv.Start, newLen, bytes.Count([]byte(text), []byte{'\n'}))
	} else if d.IsSimpleDelete() {
		c.lineCacheSimpleDelete(iv.Start, iv.End)
	} else {
		c.clearToStart(iv.Start)
	}
}

func (c *StateCache[S]) lineCacheSimpleInsert(start, newLen, newlineCount int) {
	ix, found := c.FindOffset(start)
	if found {
		ix++
	}
	for i := ix; i < len(c.entries); i++ {
		c.entries[i].lineNum += newlineCount
		c.entries[i].offset += newLen
	}
	c.patchupFrontier(ix, newlineCount)
}

func (c *StateCache[S]) lineCacheSimpleDelete(start, end int) {
	off := c.chunk.offset
	chunkEnd := off + len(c.chunk.contents)
	if start < off || end > chunkEnd {
		c.clearToStart(start)
		return
	}
	delNewlines := bytes.Count(c.chunk.contents[start-off:end-off], []byte{'\n'})
	ix, found := c.FindOffset(start)
	if found {
		ix++
	}
	j := ix
	for j < len(c.entries) && c.entries[j].offset <= end {
		j++
	}
	c.entries = slices.Delete(c.entries, ix, j)
	for i := ix; i < len(c.entries); i++ {
		c.entries[i].lineNum -= delNewlines
		c.entries[i].offset -= end - start
	}
	c.patchupFrontier(ix, -delNewlines)
}

// patchupFrontier rewrites the frontier after entries at or beyond cacheIdx
// moved by nlCountDelta lines.
func (c *StateCache[S]) patchupFrontier(cacheIdx, nlCountDelta int) {
	lineNum := 0
	if cacheIdx > 0 {
		lineNum = c.entries[cacheIdx-1].lineNum
	}
	newFrontier := make([]int, 0, len(c.frontier)+1)
	needPush := true
	for _, oldLn := range c.frontier {
		if oldLn < lineNum {
			newFrontier = append(newFrontier, oldLn)
		} else if needPush {
			newFrontier = append(newFrontier, lineNum)
			needPush = false
			if cacheIdx < len(c.entries) && oldLn >= c.entries[cacheIdx].lineNum {
				newFrontier = append(newFrontier, oldLn+nlCountDelta)
			}
		}
	}
	if needPush {
		newFrontier = append(newFrontier, lineNum)
	}
	c.frontier = newFrontier
}

// clearToStart drops cached text and any line state at or after start.
func (c *StateCache[S]) clearToStart(start int) {
	c.truncateCache(start)
}

// GetFrontier returns the first line number with outstanding work.
func (c *StateCache[S]) GetFrontier() (int, bool) {
	if len(c.frontier) == 0 {
		return 0, false
	}
	return c.frontier[0], true
}

// UpdateFrontier moves the current frontier line. This can go backward, but
// most typically advances by one line.
func (c *StateCache[S]) UpdateFrontier(newFrontier int) {
	if len(c.frontier) == 0 {
		c.frontier = append(c.frontier, newFrontier)
		return
	}
	if len(c.frontier) > 1 && c.frontier[1] == newFrontier {
		c.frontier = c.frontier[1:]
		return
	}
	c.frontier[0] = newFrontier
}

// CloseFrontier retires the current frontier line; the correct choice at
// EOF.
func (c *StateCache[S]) CloseFrontier() {
	if len(c.frontier) > 0 {
		c.frontier = c.frontier[1:]
	}
}
