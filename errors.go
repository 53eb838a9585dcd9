package remotedoc

import "fmt"

// OutOfRangeError reports a query outside the currently known document
// bounds. It is fatal to the call that produced it and is never retried.
type OutOfRangeError struct {
	// Requested is the offending line number or byte offset.
	Requested int
	// Bound is the exclusive bound the request was checked against.
	Bound int
}

// Error implements the error interface.
func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("remotedoc: request %d outside document bound %d", e.Requested, e.Bound)
}

// TrimError reports an attempt to trim the cached window at an invalid
// position. It indicates a programming error in the caller or a data source
// that returned a chunk violating its boundary contract.
type TrimError struct {
	// Offset is the window-relative trim position.
	Offset int
	// Len is the window length at the time of the call.
	Len int
}

// Error implements the error interface.
func (e *TrimError) Error() string {
	if e.Offset > e.Len {
		return fmt.Sprintf("remotedoc: trim offset %d beyond window length %d", e.Offset, e.Len)
	}
	return fmt.Sprintf("remotedoc: trim offset %d not on a UTF-8 boundary", e.Offset)
}
