// Package filesource implements a remotedoc.DataSource backed by a local
// file. It doubles as an in-process fake host: Apply mutates the document
// and advances the revision, letting callers drive a cache through realistic
// edit sequences without a remote peer.
package filesource

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/remotedoc"
)

// Source serves chunks of a document held in memory.
type Source struct {
	text []byte
	// lineStarts holds the byte offset of the start of every line;
	// lineStarts[0] is always 0.
	lineStarts []int
	rev        uint64
	checksum   uint64
}

// Interface compliance.
var _ remotedoc.DataSource = (*Source)(nil)

// New creates a Source from document content. The content must be valid
// UTF-8.
func New(text string) *Source {
	s := &Source{}
	s.setText([]byte(text))
	return s
}

// Open loads a document from a file. Files with a .zst extension are
// decompressed transparently.
func Open(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress document: %w", err)
		}
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("document %s is not valid UTF-8", path)
	}
	s := &Source{}
	s.setText(data)
	return s, nil
}

// Size returns the document length in bytes.
func (s *Source) Size() int { return len(s.text) }

// NumLines returns the document line count. A document without a trailing
// line break still counts its final partial line.
func (s *Source) NumLines() int { return len(s.lineStarts) }

// Rev returns the current revision tag. It advances on every Apply.
func (s *Source) Rev() uint64 { return s.rev }

// Checksum returns an xxhash digest of the current content, usable as a
// stable identity for correlating caches across sessions.
func (s *Source) Checksum() uint64 { return s.checksum }

// Text returns the current document content.
func (s *Source) Text() string { return string(s.text) }

// Apply rewrites the document through the delta and advances the revision.
// The caller is expected to forward the same delta to its cache along with
// the new Size, NumLines and Rev.
func (s *Source) Apply(d *remotedoc.Delta) {
	s.setText([]byte(d.Apply(string(s.text))))
	s.rev++
}

// GetData implements remotedoc.DataSource.
func (s *Source) GetData(pos int, unit remotedoc.TextUnit, maxSize int, rev uint64) (remotedoc.Chunk, error) {
	if rev != s.rev {
		return remotedoc.Chunk{}, fmt.Errorf("filesource: fetch against revision %d, document at %d", rev, s.rev)
	}

	var offset int
	switch unit {
	case remotedoc.UnitLine:
		switch {
		case pos > len(s.lineStarts):
			return remotedoc.Chunk{}, fmt.Errorf("filesource: line %d beyond %d lines", pos, len(s.lineStarts))
		case pos == len(s.lineStarts):
			// The implicit line at EOF starts at the document end.
			offset = len(s.text)
		default:
			offset = s.lineStarts[pos]
		}
	case remotedoc.UnitUTF8:
		if pos > len(s.text) {
			return remotedoc.Chunk{}, fmt.Errorf("filesource: offset %d beyond length %d", pos, len(s.text))
		}
		offset = pos
	default:
		return remotedoc.Chunk{}, fmt.Errorf("filesource: unknown text unit %v", unit)
	}

	end := min(offset+maxSize, len(s.text))
	// Never split a rune at the chunk end.
	for end < len(s.text) && !utf8.RuneStart(s.text[end]) {
		end--
	}

	line, found := slices.BinarySearch(s.lineStarts, offset)
	if !found {
		line--
	}
	return remotedoc.Chunk{
		Text:            string(s.text[offset:end]),
		Offset:          offset,
		FirstLine:       line,
		FirstLineOffset: offset - s.lineStarts[line],
	}, nil
}

func (s *Source) setText(text []byte) {
	s.text = text
	s.lineStarts = s.lineStarts[:0]
	s.lineStarts = append(s.lineStarts, 0)
	for i, b := range text {
		if b == '\n' {
			s.lineStarts = append(s.lineStarts, i+1)
		}
	}
	s.checksum = xxhash.Sum64(text)
}
