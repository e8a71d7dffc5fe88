package layout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// Karaoke slicing. A narration block behaves like an atomic element that is
// allowed to leak across pages: it is cut at word boundaries into slices,
// each assigned to exactly one page, and the ordered slices exactly tile the
// narration text.

// narration walks a cursor over the narration text, fitting as many words as
// the current page allows, finalizing and retrying on a fresh page when
// nothing fits, and forcing a minimal fixed-size chunk in the pathological
// case where nothing fits even on an empty page.
func (r *run) narration(ctx context.Context, blk *book.Block) error {
	total := len([]rune(blk.Text))
	if total == 0 {
		r.p.log.Warn("Narration block without text, skipping", zap.String("id", blk.ID))
		return nil
	}
	if len(r.res.Slices[blk.ID]) > 0 {
		r.p.log.Warn("Narration appears more than once, skipping repeat", zap.String("id", blk.ID))
		return nil
	}

	cursor := 0
	for cursor < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		budget := r.budget(nil)
		sc := r.style(budget)
		committed, err := r.measure(ctx, r.cur.Fragments, sc)
		if err != nil {
			return err
		}

		cut, err := r.p.split.WordPrefix(blk, cursor, budget-committed, r.p.oracle, sc)
		if err != nil {
			return err
		}
		if cut <= cursor {
			if len(r.cur.Fragments) > 0 {
				r.finalize()
				continue
			}
			// not even one word fits an empty page, force progress
			cut = min(cursor+r.thr.MinKaraokeChunk, total)
			r.p.log.Warn("Forcing minimal karaoke chunk",
				zap.String("id", blk.ID), zap.Int("cursor", cursor), zap.Int("cut", cut))
		}

		sl := narration.Slice{NarrationID: blk.ID, CharStart: cursor, CharEnd: cut}
		r.commit(sliceFragment(blk, sl))
		r.res.Slices[blk.ID] = append(r.res.Slices[blk.ID], sl)

		cursor = cut
		if cursor < total {
			r.finalize()
		}
	}
	return verifyTiling(r.res.Slices[blk.ID], blk.ID, total)
}

// verifyTiling checks the slice coverage invariant. A violation here is a
// pagination bug and fails loudly.
func verifyTiling(slices []narration.Slice, id string, total int) error {
	if len(slices) == 0 {
		return fmt.Errorf("%w: narration %s produced no slices", ErrSliceCoverage, id)
	}
	if slices[0].CharStart != 0 {
		return fmt.Errorf("%w: narration %s starts at %d", ErrSliceCoverage, id, slices[0].CharStart)
	}
	for i := 0; i < len(slices)-1; i++ {
		if slices[i].CharEnd != slices[i+1].CharStart {
			return fmt.Errorf("%w: narration %s gap between %d and %d",
				ErrSliceCoverage, id, slices[i].CharEnd, slices[i+1].CharStart)
		}
	}
	if last := slices[len(slices)-1].CharEnd; last != total {
		return fmt.Errorf("%w: narration %s ends at %d of %d", ErrSliceCoverage, id, last, total)
	}
	return nil
}
