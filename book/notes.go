package book

import (
	"fmt"
	"regexp"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Footnote reference collection. Two historical marker encodings are in use
// and both must be recognized transparently: a plain-text bracket marker
// ("see [12]") referencing a definition in a footnotes body, and a rich-text
// superscript with the footnote content embedded (<sup><note id="...">).

var bracketMarker = regexp.MustCompile(`\[(\d+)\]`)

// ExtractNoteRefs returns footnote ids referenced from the element in
// document order. References inside embedded footnote bodies do not count.
func ExtractNoteRefs(el *etree.Element) []string {
	var refs []string
	seen := make(map[string]bool)
	walkNoteRefs(el, func(id string) {
		if !seen[id] {
			seen[id] = true
			refs = append(refs, id)
		}
	})
	return refs
}

func walkNoteRefs(el *etree.Element, emit func(string)) {
	for _, child := range el.Child {
		switch node := child.(type) {
		case *etree.CharData:
			for _, m := range bracketMarker.FindAllStringSubmatch(node.Data, -1) {
				emit(m[1])
			}
		case *etree.Element:
			if node.Tag == "note" {
				if id := node.SelectAttrValue("id", ""); id != "" {
					emit(id)
				}
				// do not descend - bracket markers inside a footnote body are
				// part of that footnote, not of the referencing block
				continue
			}
			walkNoteRefs(node, emit)
		}
	}
}

// collectFootnotes assigns global numbers: contiguous starting at 1, in
// document order of first reference. Definitions never referenced from
// content are numbered after all referenced ones, in definition order.
func collectFootnotes(chapters []Chapter, defs []*Footnote, log *zap.Logger) *Footnotes {
	result := &Footnotes{byID: make(map[string]*Footnote)}

	defsByID := make(map[string]*Footnote, len(defs))
	for _, d := range defs {
		if _, exists := defsByID[d.ID]; exists {
			log.Debug("Duplicate footnote ID detected during index building, skipping", zap.String("id", d.ID))
			continue
		}
		defsByID[d.ID] = d
	}

	assign := func(fn *Footnote) {
		fn.Number = len(result.ordered) + 1
		result.ordered = append(result.ordered, fn)
		result.byID[fn.ID] = fn
	}

	resolve := func(blk *Block, id string) *Footnote {
		if d, ok := defsByID[id]; ok {
			return d
		}
		if blk.Markup != nil {
			if note := blk.Markup.FindElement(fmt.Sprintf(".//note[@id='%s']", id)); note != nil {
				return &Footnote{ID: id, Text: plainText(note), Markup: note}
			}
		}
		return nil
	}

	walk := func(blocks []Block) {
		for i := range blocks {
			for _, id := range blocks[i].NoteRefs {
				if _, done := result.byID[id]; done {
					continue
				}
				fn := resolve(&blocks[i], id)
				if fn == nil {
					log.Warn("Footnote reference without definition", zap.String("id", id))
					continue
				}
				assign(fn)
			}
		}
	}

	for ci := range chapters {
		walk(chapters[ci].Blocks)
		for si := range chapters[ci].Subchapters {
			walk(chapters[ci].Subchapters[si].Blocks)
		}
	}

	for _, d := range defs {
		if _, done := result.byID[d.ID]; !done {
			assign(d)
		}
	}
	return result
}
