package layout

import (
	"hash/fnv"

	"github.com/beevik/etree"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// Fragment is one rendered unit on a page: a whole block or a split/sliced
// part of one. Start and End are rune offsets into the block's plain-text
// projection.
type Fragment struct {
	Block *book.Block
	Start int
	End   int

	// Markup is the rich markup covering [Start, End). For whole-block
	// fragments it aliases the source block's markup.
	Markup *etree.Element

	// Slice is set for narration fragments only.
	Slice *narration.Slice
}

// Text returns the plain text covered by the fragment.
func (f *Fragment) Text() string {
	runes := []rune(f.Block.Text)
	if f.Start <= 0 && f.End >= len(runes) {
		return f.Block.Text
	}
	return string(runes[f.Start:f.End])
}

// Whole reports whether the fragment covers its entire source block.
func (f *Fragment) Whole() bool {
	return f.Start == 0 && f.End == len([]rune(f.Block.Text))
}

// Key identifies a page in the arena independent of object identity.
type Key struct {
	Chapter int
	Page    int
	Hash    uint64
}

// Page is the unit of presentation. Immutable once emitted by the paginator.
type Page struct {
	ChapterID    string
	SubchapterID string

	// Index is the ordinal within the chapter, starting at 0.
	Index int

	Fragments  []Fragment
	HasHeading bool

	// Footnotes holds global numbers of footnotes referenced on this page.
	Footnotes []int

	Key Key
}

// contentHash digests fragment text so renderer caches keyed by Key survive
// re-pagination only when the page content is actually unchanged.
func contentHash(frags []Fragment) uint64 {
	h := fnv.New64a()
	for i := range frags {
		_, _ = h.Write([]byte(frags[i].Text()))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Result is the complete pagination output for a book.
type Result struct {
	Pages []Page

	// Slices keys karaoke slices by narration id, ordered by CharStart.
	Slices map[string][]narration.Slice

	// PageCount records the total page count per chapter id.
	PageCount map[string]int

	// FirstPage maps a chapter id, or "chapterID/subchapterID", to the
	// position of its first page within Pages.
	FirstPage map[string]int
}

// ChapterPages returns the pages of one chapter in order.
func (r *Result) ChapterPages(chapterID string) []Page {
	first, ok := r.FirstPage[chapterID]
	if !ok {
		return nil
	}
	return r.Pages[first : first+r.PageCount[chapterID]]
}

// SliceAt returns the slice of the given narration containing the rune
// offset pos, located by character range.
func (r *Result) SliceAt(narrationID string, pos int) (narration.Slice, bool) {
	for _, s := range r.Slices[narrationID] {
		if pos >= s.CharStart && pos < s.CharEnd {
			return s, true
		}
	}
	return narration.Slice{}, false
}
