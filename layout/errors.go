package layout

import "errors"

var (
	// ErrMeasurementUnavailable is returned by an Oracle when a candidate
	// cannot be measured yet, typically because a dependent asset has not
	// finished loading. The paginator waits and retries rather than emitting
	// an incorrect page.
	ErrMeasurementUnavailable = errors.New("measurement unavailable")

	// ErrSplitNotFound means no fitting split point exists for the given
	// budget. Recovered locally by deferring the whole block to a new page.
	ErrSplitNotFound = errors.New("no fitting split point")

	// ErrSliceCoverage reports a gap or overlap in karaoke slice coverage.
	// Impossible by construction, so it is treated as a fatal pagination bug.
	ErrSliceCoverage = errors.New("karaoke slices do not tile narration text")
)
