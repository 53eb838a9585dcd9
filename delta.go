package remotedoc

import "strings"

// DeltaElement is one operation in a [Delta]: either a [Copy] of a span of
// the old document or an [Insert] of new text.
type DeltaElement interface {
	deltaElement()
}

// Copy carries the old document span [Start, End) into the new document.
type Copy struct {
	Start int
	End   int
}

// Insert places new text into the new document.
type Insert struct {
	Text string
}

func (Copy) deltaElement()   {}
func (Insert) deltaElement() {}

// Delta describes one host edit as an ordered list of Copy and Insert
// elements over a document of length BaseLen. Applying the elements in
// order produces the new document.
type Delta struct {
	Els     []DeltaElement
	BaseLen int
}

// SimpleEdit returns the delta replacing the interval iv of a document of
// length baseLen with text. An empty text makes it a pure deletion, an
// empty interval a pure insertion.
func SimpleEdit(iv Interval, text string, baseLen int) *Delta {
	var els []DeltaElement
	if iv.Start > 0 {
		els = append(els, Copy{Start: 0, End: iv.Start})
	}
	if text != "" {
		els = append(els, Insert{Text: text})
	}
	if iv.End < baseLen {
		els = append(els, Copy{Start: iv.End, End: baseLen})
	}
	return &Delta{Els: els, BaseLen: baseLen}
}

// Summary returns the affected interval of the old document and the length
// of the text replacing it.
func (d *Delta) Summary() (Interval, int) {
	els := d.Els
	ivStart := 0
	if len(els) > 0 {
		if c, ok := els[0].(Copy); ok && c.Start == 0 {
			ivStart = c.End
			els = els[1:]
		}
	}
	ivEnd := d.BaseLen
	if len(els) > 0 {
		if c, ok := els[len(els)-1].(Copy); ok && c.End == ivEnd {
			ivEnd = c.Start
			els = els[:len(els)-1]
		}
	}
	return Interval{Start: ivStart, End: ivEnd}, totalElementLen(els)
}

// NewDocumentLen returns the length of the document after applying the
// delta.
func (d *Delta) NewDocumentLen() int {
	return totalElementLen(d.Els)
}

// IsSimpleDelete reports whether the delta is a single contiguous deletion
// with no insertion. The trivial delta is not a simple delete, nor is a
// deletion from an empty document.
func (d *Delta) IsSimpleDelete() bool {
	if len(d.Els) == 0 {
		return d.BaseLen > 0
	}
	first, ok := d.Els[0].(Copy)
	if !ok {
		return false
	}
	if first.Start == 0 {
		if len(d.Els) == 1 {
			// Deletion at end.
			return first.End < d.BaseLen
		}
		second, ok := d.Els[1].(Copy)
		if !ok {
			return false
		}
		// Deletion in the middle.
		return len(d.Els) == 2 && first.End < second.Start && second.End == d.BaseLen
	}
	// Deletion at beginning.
	return first.End == d.BaseLen && len(d.Els) == 1
}

// AsSimpleInsert returns the inserted text if the delta is a single
// contiguous insertion with no deletion.
func (d *Delta) AsSimpleInsert() (string, bool) {
	els := d.Els
	i := 0
	if len(els) > 0 {
		if c, ok := els[0].(Copy); ok {
			if c.Start != 0 {
				return "", false
			}
			i = c.End
			els = els[1:]
		}
	}
	if len(els) == 0 {
		return "", false
	}
	ins, ok := els[0].(Insert)
	if !ok {
		return "", false
	}
	els = els[1:]
	if len(els) == 0 {
		if i == d.BaseLen {
			return ins.Text, true
		}
		return "", false
	}
	if c, ok := els[0].(Copy); ok {
		if i == c.Start && c.End == d.BaseLen && len(els) == 1 {
			return ins.Text, true
		}
	}
	return "", false
}

// Apply materializes the delta against the old document content. The
// document length must equal BaseLen.
func (d *Delta) Apply(base string) string {
	var b strings.Builder
	b.Grow(d.NewDocumentLen())
	for _, el := range d.Els {
		switch el := el.(type) {
		case Copy:
			b.WriteString(base[el.Start:el.End])
		case Insert:
			b.WriteString(el.Text)
		}
	}
	return b.String()
}

func totalElementLen(els []DeltaElement) int {
	total := 0
	for _, el := range els {
		switch el := el.(type) {
		case Copy:
			total += el.End - el.Start
		case Insert:
			total += len(el.Text)
		}
	}
	return total
}
