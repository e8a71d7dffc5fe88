package layout

import (
	"context"
	"strings"
	"testing"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/config"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// one line of 16 characters per page, so only "The quick brown " fits
func narrowConfig() *config.Config {
	cfg := testConfig()
	cfg.Layout.Page = config.PageConfig{Width: 160, Height: 20, LineHeight: 20, CharWidth: 10}
	return cfg
}

func narrationBook(text string) *book.Book {
	blk := book.Block{
		Type: book.BlockNarration,
		ID:   "n1",
		Text: text,
		Narration: &narration.Payload{
			ID:   "n1",
			Text: text,
		},
	}
	return singleChapter(blk)
}

func TestKaraokeTwoSlices(t *testing.T) {
	cfg := narrowConfig()
	o := NewMetricsOracle(cfg.Layout.Page, cfg.Document.Footnotes, nil)
	p := newTestPaginator(t, cfg, o, nil)

	res, err := p.Paginate(context.Background(), narrationBook("The quick brown fox jumps"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slices := res.Slices["n1"]
	if len(slices) != 2 {
		t.Fatalf("expected 2 slices, got %d: %+v", len(slices), slices)
	}
	if slices[0].CharStart != 0 || slices[0].CharEnd != 16 {
		t.Errorf("first slice: %+v", slices[0])
	}
	if slices[1].CharStart != 16 || slices[1].CharEnd != 25 {
		t.Errorf("second slice: %+v", slices[1])
	}
	if len(res.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(res.Pages))
	}
	for i, pg := range res.Pages {
		frag := pg.Fragments[0]
		if frag.Slice == nil {
			t.Fatalf("page %d fragment carries no slice", i)
		}
		if frag.Slice.NarrationID != "n1" {
			t.Errorf("page %d: wrong narration id %q", i, frag.Slice.NarrationID)
		}
	}
	if got := res.Pages[0].Fragments[0].Text(); got != "The quick brown " {
		t.Errorf("first slice text: %q", got)
	}
	if got := res.Pages[1].Fragments[0].Text(); got != "fox jumps" {
		t.Errorf("second slice text: %q", got)
	}
}

func TestKaraokeSliceTiling(t *testing.T) {
	cfg := narrowConfig()
	o := NewMetricsOracle(cfg.Layout.Page, cfg.Document.Footnotes, nil)
	p := newTestPaginator(t, cfg, o, nil)

	text := strings.Repeat("alpha beta gamma delta ", 8)
	res, err := p.Paginate(context.Background(), narrationBook(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slices := res.Slices["n1"]
	if len(slices) < 2 {
		t.Fatalf("expected multiple slices, got %d", len(slices))
	}
	if slices[0].CharStart != 0 {
		t.Errorf("first slice starts at %d", slices[0].CharStart)
	}
	for i := 0; i < len(slices)-1; i++ {
		if slices[i].CharEnd != slices[i+1].CharStart {
			t.Errorf("gap between slice %d and %d", i, i+1)
		}
	}
	if last := slices[len(slices)-1].CharEnd; last != len([]rune(text)) {
		t.Errorf("last slice ends at %d of %d", last, len([]rune(text)))
	}

	var all strings.Builder
	for _, pg := range res.Pages {
		for i := range pg.Fragments {
			all.WriteString(pg.Fragments[i].Text())
		}
	}
	if all.String() != text {
		t.Error("slices do not reproduce the narration text")
	}
}

// a page too short for even one line still makes progress through the
// minimal forced chunk
func TestKaraokeForcedChunk(t *testing.T) {
	cfg := narrowConfig()
	cfg.Layout.Page.Height = 10
	o := NewMetricsOracle(cfg.Layout.Page, cfg.Document.Footnotes, nil)
	p := newTestPaginator(t, cfg, o, nil)

	res, err := p.Paginate(context.Background(), narrationBook("The quick brown fox jumps"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slices := res.Slices["n1"]
	if len(slices) != 1 {
		t.Fatalf("expected 1 forced slice, got %d", len(slices))
	}
	if slices[0].CharStart != 0 || slices[0].CharEnd != 25 {
		t.Errorf("forced slice: %+v", slices[0])
	}
}
