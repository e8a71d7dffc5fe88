package layout

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/config"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// AssetWaiter blocks until all in-flight asset loads settle. Waiting is the
// paginator's only suspension point, cancellation during the wait tears the
// run down cleanly.
type AssetWaiter interface {
	Wait(ctx context.Context) error
}

// Paginator transforms the content flow model into ordered pages, greedily
// filling each page and consulting the oracle for every candidate.
type Paginator struct {
	cfg    *config.Config
	oracle Oracle
	split  *Splitter
	assets AssetWaiter
	log    *zap.Logger
}

func New(cfg *config.Config, o Oracle, s *Splitter, assets AssetWaiter, log *zap.Logger) *Paginator {
	return &Paginator{cfg: cfg, oracle: o, split: s, assets: assets, log: log.Named("layout")}
}

// Paginate lays out all chapters of the book in order. Within a chapter the
// chapter's own blocks come first, then each subchapter's blocks. The result
// is immutable, re-pagination produces a fresh Result and the old one is
// discarded wholesale.
func (p *Paginator) Paginate(ctx context.Context, b *book.Book) (*Result, error) {
	r := &run{
		p:   p,
		bk:  b,
		thr: p.cfg.Layout.Thresholds,
		res: &Result{
			Slices:    make(map[string][]narration.Slice),
			PageCount: make(map[string]int),
			FirstPage: make(map[string]int),
		},
	}
	for ci := range b.Chapters {
		if err := r.chapter(ctx, &b.Chapters[ci], ci); err != nil {
			return nil, err
		}
	}
	return r.res, nil
}

type run struct {
	p   *Paginator
	bk  *book.Book
	res *Result
	thr config.ThresholdsConfig

	chapterIdx int
	chapterID  string
	subID      string
	pageIdx    int
	cur        *Page
}

func (r *run) chapter(ctx context.Context, ch *book.Chapter, ci int) error {
	r.chapterIdx, r.chapterID, r.subID = ci, ch.ID, ""
	r.pageIdx = 0
	r.cur = r.blankPage()

	for bi := range ch.Blocks {
		if err := r.block(ctx, &ch.Blocks[bi]); err != nil {
			return err
		}
	}
	for si := range ch.Subchapters {
		sub := &ch.Subchapters[si]
		r.subID = sub.ID
		if si == 0 && len(ch.Blocks) == 0 && sub.Title != "" {
			// chapter opens directly with a subchapter, lead with its title
			heading := book.Block{Type: book.BlockHeading, ID: sub.ID + "-title", Text: sub.Title}
			if err := r.block(ctx, &heading); err != nil {
				return err
			}
		}
		for bi := range sub.Blocks {
			if err := r.block(ctx, &sub.Blocks[bi]); err != nil {
				return err
			}
		}
	}
	r.finalize()
	r.res.PageCount[ch.ID] = r.pageIdx
	return nil
}

func (r *run) block(ctx context.Context, blk *book.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if blk.Type == book.BlockVideo && blk.Video != nil && blk.Video.Background {
		// painted behind the page by the renderer, not part of the flow
		return nil
	}
	if blk.Type == book.BlockNarration {
		return r.narration(ctx, blk)
	}
	if blk.Type.Atomic() {
		return r.atomic(ctx, blk)
	}
	return r.splittable(ctx, blk)
}

// budget queries the page content budget for the tentative footnote set:
// footnotes already on the page plus the candidate's own.
func (r *run) budget(candidateNotes []int) float64 {
	tentative := mergeNumbers(slices.Clone(r.cur.Footnotes), candidateNotes)
	reserved := MeasureFootnoteList(tentative, r.bk.Footnotes, r.p.oracle)
	return r.p.oracle.AvailableHeight(reserved, r.cur.HasHeading, r.pageIdx == 0)
}

func (r *run) style(budget float64) StyleContext {
	return StyleContext{
		PageWidth:       r.p.cfg.Layout.Page.Width,
		HasHeading:      r.cur.HasHeading,
		AvailableHeight: budget,
	}
}

// measure wraps the oracle, waiting out asset loads when measurement is not
// available yet. A second failure after a settled wait is a real error.
func (r *run) measure(ctx context.Context, frags []Fragment, sc StyleContext) (float64, error) {
	for attempt := 0; ; attempt++ {
		h, err := r.p.oracle.Measure(frags, sc)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrMeasurementUnavailable) || r.p.assets == nil || attempt > 0 {
			return 0, err
		}
		if werr := r.p.assets.Wait(ctx); werr != nil {
			return 0, werr
		}
	}
}

func (r *run) atomic(ctx context.Context, blk *book.Block) error {
	frag := *makeFragment(blk, 0, len([]rune(blk.Text)))
	nums := fragmentNoteNumbers(&frag, r.bk.Footnotes)
	budget := r.budget(nums)
	sc := r.style(budget)

	h, err := r.measure(ctx, append(slices.Clone(r.cur.Fragments), frag), sc)
	if err != nil {
		return err
	}
	if h > budget+r.thr.OverflowTolerance && len(r.cur.Fragments) > 0 {
		r.finalize()
	}
	// atomic content opens the next page whole, it is never dropped partially
	r.commit(frag)
	return nil
}

func (r *run) splittable(ctx context.Context, blk *book.Block) error {
	total := len([]rune(blk.Text))
	from := 0
	for from < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		frag := *makeFragment(blk, from, total)
		nums := fragmentNoteNumbers(&frag, r.bk.Footnotes)
		budget := r.budget(nums)
		sc := r.style(budget)

		committed, err := r.measure(ctx, r.cur.Fragments, sc)
		if err != nil {
			return err
		}
		whole, err := r.measure(ctx, append(slices.Clone(r.cur.Fragments), frag), sc)
		if err != nil {
			return err
		}
		remaining := budget - committed

		if whole <= budget {
			if budget-whole < r.thr.SmallRemainingSpace && total-from >= r.thr.LongBlockLength {
				// nominally full page looks cramped, prefer a split that
				// gives the next block a cleaner start
				ok, err := r.trySplit(ctx, blk, &from, remaining-r.thr.SmallRemainingSpace, sc)
				if err != nil {
					return err
				}
				if ok {
					continue
				}
			}
			r.commit(frag)
			return nil
		}

		ok, err := r.trySplit(ctx, blk, &from, remaining, sc)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if len(r.cur.Fragments) == 0 {
			// nothing fits even on an empty page, keep the text anyway
			r.p.log.Warn("Block exceeds empty page budget, committing whole",
				zap.String("chapter", r.chapterID), zap.Int("pos", blk.Pos))
			r.commit(frag)
			return nil
		}
		r.finalize()
	}
	return nil
}

// trySplit attempts to place a prefix of blk starting at *from within
// splitBudget. On success the prefix is committed (and the page finalized
// when a remainder exists), *from advances and true is returned. A rejected
// split leaves the state untouched.
func (r *run) trySplit(ctx context.Context, blk *book.Block, from *int, splitBudget float64, sc StyleContext) (bool, error) {
	if splitBudget <= 0 {
		return false, nil
	}
	first, second, err := r.p.split.Split(blk, *from, splitBudget, r.p.oracle, sc)
	switch {
	case errors.Is(err, ErrSplitNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	if second == nil {
		r.commit(*first)
		*from = first.End
		return true, nil
	}
	if len(strings.Fields(first.Text())) < r.thr.MinSplitWords {
		// trivial first part looks like an awkward orphan
		return false, nil
	}
	h, err := r.measure(ctx, []Fragment{*first}, sc)
	if err != nil {
		return false, err
	}
	if splitBudget-h > r.thr.SmallRemainingSpace+r.thr.SkipSplitSlack {
		// the fitting prefix leaves so much slack the whole block should
		// just move to the next page
		return false, nil
	}
	r.commit(*first)
	r.finalize()
	*from = second.Start
	return true, nil
}

// commit appends a fragment to the current page and folds its footnote
// references in immediately, later blocks on the same page must see the
// correct reserved footnote height.
func (r *run) commit(frag Fragment) {
	if frag.Block.Type == book.BlockHeading {
		r.cur.HasHeading = true
	}
	r.cur.Fragments = append(r.cur.Fragments, frag)
	r.cur.Footnotes = mergeNumbers(r.cur.Footnotes, fragmentNoteNumbers(&frag, r.bk.Footnotes))
	r.noteFirst()
}

// noteFirst records chapter and subchapter entry points the first time
// content lands on a page of theirs. The current page's eventual position is
// the number of pages emitted so far.
func (r *run) noteFirst() {
	pos := len(r.res.Pages)
	if _, ok := r.res.FirstPage[r.chapterID]; !ok {
		r.res.FirstPage[r.chapterID] = pos
	}
	if r.subID != "" {
		key := r.chapterID + "/" + r.subID
		if _, ok := r.res.FirstPage[key]; !ok {
			r.res.FirstPage[key] = pos
		}
	}
}

// finalize emits the current page, if non-empty, and starts a fresh one.
// Emitted pages are immutable.
func (r *run) finalize() {
	if len(r.cur.Fragments) == 0 {
		return
	}
	r.cur.Index = r.pageIdx
	r.cur.Key = Key{Chapter: r.chapterIdx, Page: r.pageIdx, Hash: contentHash(r.cur.Fragments)}
	r.res.Pages = append(r.res.Pages, *r.cur)
	r.pageIdx++
	r.cur = r.blankPage()
}

func (r *run) blankPage() *Page {
	return &Page{ChapterID: r.chapterID, SubchapterID: r.subID}
}
