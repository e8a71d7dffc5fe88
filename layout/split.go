package layout

import (
	"unicode"

	"go.uber.org/zap"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/book/text"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// Splitter finds the best page break inside a splittable block: binary search
// over rune offsets of the plain-text projection, trying sentence boundaries
// first and falling back to word boundaries. A boundary immediately before
// sentence or clause punctuation is rejected so trailing punctuation is never
// orphaned at the top of a new page.
type Splitter struct {
	sentences *text.Splitter
	log       *zap.Logger
}

func NewSplitter(sentences *text.Splitter, log *zap.Logger) *Splitter {
	return &Splitter{sentences: sentences, log: log}
}

func isClausePunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?':
		return true
	}
	return false
}

// Split finds the largest prefix of blk starting at rune offset from that
// fits heightBudget. second is nil when the whole remainder fits, and
// ErrSplitNotFound is returned when no non-empty prefix fits.
func (s *Splitter) Split(blk *book.Block, from int, budget float64, o Oracle, sc StyleContext) (first, second *Fragment, err error) {
	runes := []rune(blk.Text)
	total := len(runes)
	if from < 0 || from >= total || budget <= 0 {
		return nil, nil, ErrSplitNotFound
	}

	cut := from
	if cands := s.sentenceBounds(runes, from); len(cands) > 0 {
		cut, err = s.largestFitting(blk, from, cands, budget, o, sc)
		if err != nil {
			return nil, nil, err
		}
	}
	if cut <= from {
		// no usable sentence split, fall back to word boundaries
		cut, err = s.largestFitting(blk, from, s.wordBounds(runes, from), budget, o, sc)
		if err != nil {
			return nil, nil, err
		}
	}
	if cut <= from {
		return nil, nil, ErrSplitNotFound
	}

	first = makeFragment(blk, from, cut)
	if cut < total {
		second = makeFragment(blk, cut, total)
	}
	return first, second, nil
}

// WordPrefix returns the largest word boundary cut past from whose fragment
// fits budget. Returns from when not even one word fits. Used by the karaoke
// slicer, which cuts narration text at word boundaries only.
func (s *Splitter) WordPrefix(blk *book.Block, from int, budget float64, o Oracle, sc StyleContext) (int, error) {
	runes := []rune(blk.Text)
	if from >= len(runes) || budget <= 0 {
		return from, nil
	}
	return s.largestFitting(blk, from, s.wordBounds(runes, from), budget, o, sc)
}

// sentenceBounds returns valid sentence-start offsets past from, ending with
// the total length so the search can discover that everything fits.
func (s *Splitter) sentenceBounds(runes []rune, from int) []int {
	var out []int
	for _, st := range s.sentences.SentenceStarts(string(runes[from:])) {
		b := from + st
		if b > from && !isClausePunct(runes[b]) {
			out = append(out, b)
		}
	}
	return append(out, len(runes))
}

func (s *Splitter) wordBounds(runes []rune, from int) []int {
	var out []int
	for b := from + 1; b < len(runes); b++ {
		if unicode.IsSpace(runes[b-1]) && !unicode.IsSpace(runes[b]) && !isClausePunct(runes[b]) {
			out = append(out, b)
		}
	}
	return append(out, len(runes))
}

// largestFitting binary-searches the sorted candidate cuts for the largest
// one whose fragment measures within budget. Returns from when none fits.
func (s *Splitter) largestFitting(blk *book.Block, from int, cands []int, budget float64, o Oracle, sc StyleContext) (int, error) {
	lo, hi, best := 0, len(cands)-1, from
	for lo <= hi {
		mid := (lo + hi) / 2
		frag := makeFragment(blk, from, cands[mid])
		h, err := o.Measure([]Fragment{*frag}, sc)
		if err != nil {
			return from, err
		}
		if h <= budget {
			best = cands[mid]
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, nil
}

// makeFragment builds a fragment over [start, end), cloning markup for
// partial ranges. Narration markup is a payload carrier with no per-range
// structure, so it is aliased whole.
func makeFragment(blk *book.Block, start, end int) *Fragment {
	f := &Fragment{Block: blk, Start: start, End: end}
	switch {
	case blk.Markup == nil || blk.Type == book.BlockNarration:
		f.Markup = blk.Markup
	case start == 0 && end == len([]rune(blk.Text)):
		f.Markup = blk.Markup
	default:
		f.Markup = book.CloneRange(blk.Markup, start, end)
	}
	return f
}

// sliceFragment builds a narration fragment carrying its karaoke slice.
func sliceFragment(blk *book.Block, sl narration.Slice) Fragment {
	f := makeFragment(blk, sl.CharStart, sl.CharEnd)
	f.Slice = &sl
	return *f
}
