// Package layout implements the adaptive pagination engine: a greedy,
// measurement driven layout algorithm with boundary aware text splitting,
// footnote space reservation and karaoke slicing for narrated blocks.
package layout

import (
	"github.com/tianBreznik/overstimulata-sub000/book"
)

// StyleContext carries the page-level inputs a measurement depends on.
type StyleContext struct {
	PageWidth       float64
	HasHeading      bool
	AvailableHeight float64
}

// Oracle measures candidate content. Implementations must be deterministic
// for identical inputs and monotonic in content length; the paginator calls
// them sequentially, never concurrently.
type Oracle interface {
	// Measure returns the rendered height of the fragments stacked in order.
	// Returns ErrMeasurementUnavailable when a dependent asset is not ready.
	Measure(frags []Fragment, sc StyleContext) (float64, error)

	// FootnoteHeight returns the height the given footnotes occupy rendered
	// stacked under a divider at the bottom of a page.
	FootnoteHeight(notes []*book.Footnote) float64

	// AvailableHeight returns the content budget of a page given the space
	// already reserved for its footnote list, its heading reserve and the
	// extra reserve of a chapter's opening page.
	AvailableHeight(reservedFootnoteHeight float64, hasHeading, firstPageOfChapter bool) float64
}
