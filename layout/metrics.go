package layout

import (
	"math"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/config"
)

// Sizer reports intrinsic pixel dimensions of a loaded media asset. Assets
// still being fetched report ok == false.
type Sizer interface {
	Size(href string) (width, height int, ok bool)
}

// MetricsOracle is the built-in measurement oracle: a deterministic
// character-count model over page geometry from configuration, optionally
// adjusted by a reader stylesheet. It satisfies the Oracle contract without
// any rendering surface, which keeps pagination reproducible across hosts.
type MetricsOracle struct {
	page      config.PageConfig
	footnotes config.FootnotesConfig
	sizer     Sizer
}

func NewMetricsOracle(page config.PageConfig, footnotes config.FootnotesConfig, sizer Sizer) *MetricsOracle {
	return &MetricsOracle{page: page, footnotes: footnotes, sizer: sizer}
}

func (o *MetricsOracle) Measure(frags []Fragment, sc StyleContext) (float64, error) {
	width := sc.PageWidth
	if width <= 0 {
		width = o.page.Width
	}
	var total float64
	for i := range frags {
		h, err := o.measureOne(&frags[i], width)
		if err != nil {
			return 0, err
		}
		total += h
	}
	return total, nil
}

func (o *MetricsOracle) measureOne(f *Fragment, width float64) (float64, error) {
	blk := f.Block
	switch blk.Type {
	case book.BlockImage, book.BlockVideo:
		ref := blk.Image
		if ref == nil {
			ref = blk.Video
		}
		if ref == nil || ref.Href == "" {
			return o.page.LineHeight, nil
		}
		if o.sizer == nil {
			// no asset loader attached, reserve a third of the page
			return o.page.Height / 3, nil
		}
		w, h, ok := o.sizer.Size(ref.Href)
		if !ok {
			return 0, ErrMeasurementUnavailable
		}
		if w <= 0 || h <= 0 {
			return o.page.LineHeight, nil
		}
		scaled := float64(h) * width / float64(w)
		return math.Min(scaled, o.page.Height), nil
	case book.BlockHeading:
		return o.textHeight(f.Text(), width) + o.page.LineHeight, nil
	default:
		return o.textHeight(f.Text(), width), nil
	}
}

func (o *MetricsOracle) textHeight(text string, width float64) float64 {
	runes := len([]rune(text))
	if runes == 0 {
		return 0
	}
	perLine := int(width / o.page.CharWidth)
	if perLine < 1 {
		perLine = 1
	}
	lines := (runes + perLine - 1) / perLine
	return float64(lines) * o.page.LineHeight
}

func (o *MetricsOracle) FootnoteHeight(notes []*book.Footnote) float64 {
	if len(notes) == 0 {
		return 0
	}
	total := o.footnotes.DividerHeight
	for _, fn := range notes {
		total += o.textHeight(fn.Text, o.page.Width) + o.footnotes.EntrySpacing
	}
	return total
}

func (o *MetricsOracle) AvailableHeight(reservedFootnoteHeight float64, hasHeading, firstPageOfChapter bool) float64 {
	h := o.page.Height - reservedFootnoteHeight
	if hasHeading {
		h -= o.page.HeadingReserve
	}
	if firstPageOfChapter {
		h -= o.page.ChapterStartReserve
	}
	if h < 0 {
		h = 0
	}
	return h
}

// PageWidth exposes the effective page width for style contexts.
func (o *MetricsOracle) PageWidth() float64 {
	return o.page.Width
}
