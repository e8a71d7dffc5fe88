package paginate

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/layout"
	"github.com/tianBreznik/overstimulata-sub000/utils/debug"
)

// debugTree returns a readable tree of the whole pagination result. It exists
// solely for manual inspection during debugging.
func debugTree(bk *book.Book, result *layout.Result) string {
	tw := debug.NewTreeWriter()

	tw.Line(0, "Book[%q] %q chapters[%d] pages[%d] footnotes[%d]",
		bk.ID, bk.Title, len(bk.Chapters), len(result.Pages), bk.Footnotes.Len())

	for i := range result.Pages {
		p := &result.Pages[i]
		tw.Line(1, "Page[%d] chapter[%q] sub[%q] index[%d] heading[%v] hash[%016x]",
			i, p.ChapterID, p.SubchapterID, p.Index, p.HasHeading, p.Key.Hash)
		for j := range p.Fragments {
			f := &p.Fragments[j]
			tw.Line(2, "Fragment[%s] block[%q] range[%d,%d)", f.Block.Type, f.Block.ID, f.Start, f.End)
			if f.Slice != nil {
				tw.Line(3, "Slice range[%d,%d)", f.Slice.CharStart, f.Slice.CharEnd)
			}
			tw.ClippedBlock(3, "text", f.Text(), 80)
		}
		if len(p.Footnotes) > 0 {
			tw.Line(2, "Footnotes: %v", p.Footnotes)
		}
	}

	if len(result.Slices) > 0 {
		ids := slices.Collect(maps.Keys(result.Slices))
		sort.Sort(natural.StringSlice(ids))
		tw.Line(0, "Narrations: %d", len(ids))
		for _, id := range ids {
			tw.Line(1, "Narration[%q] slices[%d]", id, len(result.Slices[id]))
			for _, s := range result.Slices[id] {
				tw.Line(2, "Slice range[%d,%d)", s.CharStart, s.CharEnd)
			}
		}
	}
	return tw.String()
}
