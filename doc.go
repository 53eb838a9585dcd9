// Package remotedoc provides a windowed, incrementally updated cache over a
// text document owned by a remote host.
//
// The cache is designed for out-of-process editor plugins: the plugin does
// not own the document and must fetch pieces of it over a request/response
// channel. [ChunkCache] keeps a single contiguous window of the document in
// memory together with a line index, extends the window on demand, and
// patches the window in place when the host applies simple edits, so that
// ordinary keystrokes do not cost a round trip.
//
// # Quick Start
//
// Open a document through a [DataSource] and read lines:
//
//	src, err := filesource.Open("notes.txt")
//	if err != nil {
//	    return err
//	}
//	cache := remotedoc.New(src.Size(), src.Rev(), src.NumLines())
//	line, err := cache.GetLine(src, 0)
//
// When the host applies an edit, feed the resulting [Delta] back into the
// cache to keep it consistent:
//
//	cache.Update(delta, newLen, newNumLines, newRev)
//
// # Per-line state
//
// [StateCache] layers user state (parse results, highlight state, ...) on
// top of the chunk cache, keyed by line number and patched incrementally as
// the document changes.
//
// A cache instance is exclusively owned by one document view and is not safe
// for concurrent use.
package remotedoc
