package layout

import (
	"slices"

	"github.com/tianBreznik/overstimulata-sub000/book"
)

// Footnote space reservation. The paginator reserves room at the bottom of a
// page for every footnote referenced from it before committing content, using
// a tentative set (already-committed footnotes plus the candidate block's) so
// later blocks on the same page see the correct budget.

// MeasureFootnoteList resolves global numbers against the book index and
// returns the height their rendered list occupies, stacked under a divider.
func MeasureFootnoteList(numbers []int, index *book.Footnotes, o Oracle) float64 {
	if len(numbers) == 0 {
		return 0
	}
	notes := make([]*book.Footnote, 0, len(numbers))
	for _, n := range numbers {
		if fn, ok := index.ByNumber(n); ok {
			notes = append(notes, fn)
		}
	}
	return o.FootnoteHeight(notes)
}

// mergeNumbers folds new footnote numbers into an existing sorted set.
func mergeNumbers(into []int, add []int) []int {
	for _, n := range add {
		if !slices.Contains(into, n) {
			into = append(into, n)
		}
	}
	slices.Sort(into)
	return into
}

// fragmentNoteNumbers returns global numbers of footnotes referenced within
// the fragment's own markup range. For split fragments only the markers that
// actually landed in the range count, so a footnote is reported on exactly
// one page.
func fragmentNoteNumbers(f *Fragment, index *book.Footnotes) []int {
	if f.Slice != nil || f.Markup == nil {
		return nil
	}
	return index.Numbers(book.ExtractNoteRefs(f.Markup))
}
