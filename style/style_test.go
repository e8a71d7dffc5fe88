package style

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tianBreznik/overstimulata-sub000/config"
)

func basePage() config.PageConfig {
	return config.PageConfig{
		Width: 600, Height: 900, LineHeight: 24, CharWidth: 9,
		HeadingReserve: 96, ChapterStartReserve: 48,
	}
}

func TestApplyOverridesGeometry(t *testing.T) {
	sheet := Parse([]byte(`
page {
	width: 400px;
	height: 500px;
	--heading-reserve: 50;
}
body {
	line-height: 20px;
	--char-width: 10;
	color: #333;
}
h1, h2 { font-weight: bold; }
`), zaptest.NewLogger(t))

	page := sheet.Apply(basePage())
	if page.Width != 400 || page.Height != 500 {
		t.Errorf("geometry: %v x %v", page.Width, page.Height)
	}
	if page.LineHeight != 20 || page.CharWidth != 10 {
		t.Errorf("type metrics: %v / %v", page.LineHeight, page.CharWidth)
	}
	if page.HeadingReserve != 50 {
		t.Errorf("heading reserve: %v", page.HeadingReserve)
	}
	// untouched by the sheet
	if page.ChapterStartReserve != 48 {
		t.Errorf("chapter start reserve: %v", page.ChapterStartReserve)
	}
}

func TestApplyIgnoresBadValues(t *testing.T) {
	sheet := Parse([]byte(`page { width: wide; height: -10px; }`), zaptest.NewLogger(t))
	page := sheet.Apply(basePage())
	if page.Width != 600 || page.Height != 900 {
		t.Errorf("bad values overrode defaults: %v x %v", page.Width, page.Height)
	}
}

func TestEmptySheet(t *testing.T) {
	var sheet Sheet
	page := sheet.Apply(basePage())
	if page != basePage() {
		t.Error("empty sheet changed page metrics")
	}
	if _, ok := sheet.Value("width"); ok {
		t.Error("empty sheet reports values")
	}
}

func TestAtRulesSkipped(t *testing.T) {
	sheet := Parse([]byte(`
@media print { page { width: 100px; } }
page { width: 300px; }
`), zaptest.NewLogger(t))
	page := sheet.Apply(basePage())
	if page.Width != 300 {
		t.Errorf("width: %v", page.Width)
	}
}
