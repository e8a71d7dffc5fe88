package layout

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/text/language"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/book/text"
	"github.com/tianBreznik/overstimulata-sub000/config"
)

// page geometry used throughout layout tests: 40 chars per line, 20 lines
// per page, so roughly 800 characters fit one page
func testPage() config.PageConfig {
	return config.PageConfig{
		Width:          400,
		Height:         400,
		LineHeight:     20,
		CharWidth:      10,
		HeadingReserve: 40,
	}
}

func testFootnotes() config.FootnotesConfig {
	return config.FootnotesConfig{BodyNames: []string{"notes"}, DividerHeight: 12, EntrySpacing: 4}
}

func testThresholds() config.ThresholdsConfig {
	return config.ThresholdsConfig{
		SmallRemainingSpace: 30,
		SkipSplitSlack:      20,
		OverflowTolerance:   10,
		LongBlockLength:     600,
		MinSplitWords:       2,
		MinKaraokeChunk:     80,
	}
}

func testOracle() *MetricsOracle {
	return NewMetricsOracle(testPage(), testFootnotes(), nil)
}

func testSplitter(t *testing.T) *Splitter {
	t.Helper()
	log := zaptest.NewLogger(t)
	return NewSplitter(text.NewSplitter(language.English, log), log)
}

func paragraph(t string) *book.Block {
	return &book.Block{Type: book.BlockParagraph, Text: t}
}

func TestSplitWholeFits(t *testing.T) {
	s := testSplitter(t)
	o := testOracle()

	blk := paragraph("short text that fits easily")
	first, second, err := s.Split(blk, 0, 400, o, StyleContext{PageWidth: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != nil {
		t.Fatal("expected no remainder for fitting text")
	}
	if first.Text() != blk.Text {
		t.Errorf("first fragment text: %q", first.Text())
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	s := testSplitter(t)
	o := testOracle()

	// one line holds 40 chars; budget of two lines cuts inside the second
	// sentence, the splitter must back off to its start
	blk := paragraph("First sentence ends here. Second sentence is quite a bit longer than the first one.")
	first, second, err := s.Split(blk, 0, 40, o, StyleContext{PageWidth: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == nil {
		t.Fatal("expected a split")
	}
	if got := first.Text(); got != "First sentence ends here. " {
		t.Errorf("first part: %q", got)
	}
	if got := second.Text(); !strings.HasPrefix(got, "Second") {
		t.Errorf("second part does not start a sentence: %q", got)
	}
	if first.Text()+second.Text() != blk.Text {
		t.Error("split lost or duplicated text")
	}
}

func TestSplitWordFallback(t *testing.T) {
	s := testSplitter(t)
	o := testOracle()

	// a single long sentence offers no sentence boundary, so the cut lands
	// on a word boundary
	blk := paragraph("alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron")
	first, second, err := s.Split(blk, 0, 20, o, StyleContext{PageWidth: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == nil {
		t.Fatal("expected a split")
	}
	firstText := first.Text()
	if len([]rune(firstText)) > 40 {
		t.Errorf("first part exceeds one line: %q", firstText)
	}
	if !strings.HasSuffix(firstText, " ") {
		t.Errorf("cut not at a word boundary: %q", firstText)
	}
	if first.Text()+second.Text() != blk.Text {
		t.Error("split lost or duplicated text")
	}
}

func TestSplitNeverOrphansPunctuation(t *testing.T) {
	s := testSplitter(t)
	o := testOracle()

	// candidate boundaries landing on the dash-less clause punctuation must
	// be rejected in favor of an earlier word boundary
	blk := paragraph("one two , three four five six seven eight nine ten eleven twelve thirteen fourteen")
	for budget := 20.0; budget <= 40; budget += 20 {
		_, second, err := s.Split(blk, 0, budget, o, StyleContext{PageWidth: 400})
		if err != nil {
			t.Fatalf("budget %v: %v", budget, err)
		}
		if second == nil {
			continue
		}
		lead := []rune(second.Text())[0]
		if isClausePunct(lead) {
			t.Errorf("budget %v: second part starts with punctuation: %q", budget, second.Text())
		}
	}
}

func TestSplitNothingFits(t *testing.T) {
	s := testSplitter(t)
	o := testOracle()

	blk := paragraph("some words here")
	_, _, err := s.Split(blk, 0, 0, o, StyleContext{PageWidth: 400})
	if !errors.Is(err, ErrSplitNotFound) {
		t.Fatalf("expected ErrSplitNotFound, got %v", err)
	}
}

func TestSplitFromOffset(t *testing.T) {
	s := testSplitter(t)
	o := testOracle()

	blk := paragraph("alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi pi rho")
	first, _, err := s.Split(blk, 11, 20, o, StyleContext{PageWidth: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Start != 11 {
		t.Errorf("first fragment start: %d", first.Start)
	}
	if !strings.HasPrefix(first.Text(), "gamma") {
		t.Errorf("first fragment text: %q", first.Text())
	}
}
