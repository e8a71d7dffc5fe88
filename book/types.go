// Package book holds the typed content flow model the paginator consumes: an
// ordered sequence of typed blocks per chapter and subchapter, with footnote
// and narration indexes built at parse time.
package book

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/language"

	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// BlockType determines how the paginator may break a block across pages.
type BlockType int

const (
	BlockParagraph BlockType = iota
	BlockHeading
	BlockImage
	BlockVideo
	BlockNarration
	BlockPoetry
)

var blockTypeNames = [...]string{"paragraph", "heading", "image", "video", "narration", "poetry"}

func (t BlockType) String() string {
	if t < 0 || int(t) >= len(blockTypeNames) {
		return "unknown"
	}
	return blockTypeNames[t]
}

// Atomic reports whether the block must never be split by ordinary text
// splitting. Narration is atomic here - it has its own slicing mechanism.
func (t BlockType) Atomic() bool {
	switch t {
	case BlockHeading, BlockImage, BlockVideo, BlockNarration:
		return true
	}
	return false
}

// MediaRef points at an externally stored asset. Background media is excluded
// from the paginated content stream and painted behind the page instead.
type MediaRef struct {
	Href       string
	Alt        string
	Background bool
}

// Block is one content unit of a chapter or subchapter.
type Block struct {
	Type BlockType
	ID   string
	Pos  int

	// Text is the plain-text projection of Markup: every character of body
	// text in order, with embedded footnote bodies excluded. All layout
	// offsets are rune offsets into Text.
	Text   string
	Markup *etree.Element

	Image     *MediaRef
	Video     *MediaRef
	Narration *narration.Payload

	// NoteRefs lists ids of footnotes referenced from this block in document
	// order.
	NoteRefs []string
}

// Words returns the number of whitespace separated words in the block text.
func (b *Block) Words() int {
	return len(strings.Fields(b.Text))
}

type Subchapter struct {
	ID     string
	Title  string
	Blocks []Block
}

type Chapter struct {
	ID          string
	Title       string
	Blocks      []Block
	Subchapters []Subchapter
}

// Footnote is one footnote definition with its globally assigned number.
type Footnote struct {
	ID     string
	Number int
	Text   string
	Markup *etree.Element
}

// Footnotes keeps all footnote definitions with contiguous global numbering
// starting at 1, assigned in document order of first reference.
type Footnotes struct {
	byID    map[string]*Footnote
	ordered []*Footnote
}

func (f *Footnotes) ByID(id string) (*Footnote, bool) {
	if f == nil {
		return nil, false
	}
	fn, ok := f.byID[id]
	return fn, ok
}

func (f *Footnotes) ByNumber(n int) (*Footnote, bool) {
	if f == nil || n < 1 || n > len(f.ordered) {
		return nil, false
	}
	return f.ordered[n-1], true
}

// All returns footnotes in numbering order.
func (f *Footnotes) All() []*Footnote {
	if f == nil {
		return nil
	}
	return f.ordered
}

func (f *Footnotes) Len() int {
	if f == nil {
		return 0
	}
	return len(f.ordered)
}

// Numbers resolves footnote ids into their global numbers, dropping unknown
// ids.
func (f *Footnotes) Numbers(ids []string) []int {
	var result []int
	for _, id := range ids {
		if fn, ok := f.ByID(id); ok {
			result = append(result, fn.Number)
		}
	}
	return result
}

// Book is the parsed content flow model.
type Book struct {
	ID       string
	Title    string
	Lang     language.Tag
	Chapters []Chapter

	Footnotes  *Footnotes
	Narrations map[string]*narration.Source
}
