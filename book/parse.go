package book

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"

	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// XML parsing for the book source format. We want exhaustive parsing - it is
// not very effective but ensures full correctness and gives us detailed debug
// output.

// Parse reads a book source document and constructs the content flow model:
// typed blocks per chapter/subchapter, the globally numbered footnote index
// and aligned narration sources. bodyNames selects which <footnotes> bodies
// hold definitions for bracket markers.
func Parse(ctx context.Context, r io.Reader, srcName string, bodyNames []string, log *zap.Logger) (*Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to read book source %q: %w", srcName, err)
	}
	return ParseBookXML(doc, bodyNames, log)
}

// ParseBookXML walks the etree DOM and constructs the typed book model.
func ParseBookXML(doc *etree.Document, bodyNames []string, log *zap.Logger) (*Book, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	if root.Tag != "book" {
		return nil, fmt.Errorf("unexpected root element %q", root.Tag)
	}

	b := &Book{
		ID:         root.SelectAttrValue("id", ""),
		Title:      root.SelectAttrValue("title", ""),
		Lang:       parseBookLang(root.SelectAttrValue("lang", ""), log),
		Narrations: make(map[string]*narration.Source),
	}

	// Make sure book ID is not empty and is valid UUID
	if _, err := uuid.Parse(b.ID); err != nil {
		refID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("unable to generate new book UUID: %w", err)
		}
		if b.ID != "" {
			log.Warn("Book has invalid ID, correcting", zap.String("old_id", b.ID), zap.Stringer("new_id", refID))
		}
		b.ID = refID.String()
	}

	p := &parser{log: log}
	var defs []*Footnote

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "chapter":
			b.Chapters = append(b.Chapters, p.parseChapter(child))
		case "footnotes":
			name := child.SelectAttrValue("name", "")
			if !matchesBodyName(name, bodyNames) {
				log.Debug("Skipping footnotes body", zap.String("name", name))
				continue
			}
			for _, fn := range child.ChildElements() {
				if fn.Tag != "footnote" {
					log.Warn("Unexpected tag in footnotes body, ignoring", zap.String("tag", fn.Tag))
					continue
				}
				id := fn.SelectAttrValue("id", "")
				if id == "" {
					log.Debug("Footnote definition without ID, skipping")
					continue
				}
				defs = append(defs, &Footnote{ID: id, Text: plainText(fn), Markup: fn})
			}
		default:
			log.Warn("Unexpected tag in book, ignoring", zap.String("parent", root.Tag), zap.String("tag", child.Tag))
		}
	}

	b.Footnotes = collectFootnotes(b.Chapters, defs, log)

	for ci := range b.Chapters {
		p.collectNarrations(b, &b.Chapters[ci])
	}
	return b, nil
}

type parser struct {
	log      *zap.Logger
	autoNote int
}

func (p *parser) parseChapter(el *etree.Element) Chapter {
	ch := Chapter{
		ID:    el.SelectAttrValue("id", ""),
		Title: strings.TrimSpace(el.SelectAttrValue("title", "")),
	}
	if ch.ID == "" {
		ch.ID = slug.Make(ch.Title)
	}
	for _, child := range el.ChildElements() {
		if child.Tag == "subchapter" {
			sub := Subchapter{
				ID:    child.SelectAttrValue("id", ""),
				Title: strings.TrimSpace(child.SelectAttrValue("title", "")),
			}
			if sub.ID == "" {
				sub.ID = slug.Make(sub.Title)
			}
			sub.Blocks = p.parseBlocks(child)
			ch.Subchapters = append(ch.Subchapters, sub)
			continue
		}
		if blk, ok := p.parseBlock(child, len(ch.Blocks)); ok {
			ch.Blocks = append(ch.Blocks, blk)
		}
	}
	return ch
}

func (p *parser) parseBlocks(el *etree.Element) []Block {
	var blocks []Block
	for _, child := range el.ChildElements() {
		if blk, ok := p.parseBlock(child, len(blocks)); ok {
			blocks = append(blocks, blk)
		}
	}
	return blocks
}

func (p *parser) parseBlock(el *etree.Element, pos int) (Block, bool) {
	blk := Block{ID: el.SelectAttrValue("id", ""), Pos: pos, Markup: el}

	switch el.Tag {
	case "p":
		blk.Type = BlockParagraph
	case "subtitle", "h1", "h2", "h3":
		blk.Type = BlockHeading
	case "poem":
		blk.Type = BlockPoetry
	case "image":
		blk.Type = BlockImage
		blk.Image = parseMediaRef(el)
		return blk, true
	case "video":
		blk.Type = BlockVideo
		blk.Video = parseMediaRef(el)
		return blk, true
	case "narration":
		return p.parseNarration(el, pos)
	case "empty-line":
		return Block{}, false
	default:
		p.log.Warn("Unexpected block tag, treating as paragraph", zap.String("tag", el.Tag))
		blk.Type = BlockParagraph
	}

	p.assignNoteIDs(el)
	blk.Text = plainText(el)
	blk.NoteRefs = ExtractNoteRefs(el)
	return blk, true
}

func (p *parser) parseNarration(el *etree.Element, pos int) (Block, bool) {
	var payload narration.Payload
	raw := strings.TrimSpace(el.Text())
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		p.log.Warn("Malformed narration payload, skipping block", zap.Error(err))
		return Block{}, false
	}
	if payload.ID == "" {
		payload.ID = el.SelectAttrValue("id", "")
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.Audio == "" {
		payload.Audio = el.SelectAttrValue("audio", "")
	}
	return Block{
		Type:      BlockNarration,
		ID:        payload.ID,
		Pos:       pos,
		Text:      payload.Text,
		Markup:    el,
		Narration: &payload,
	}, true
}

// assignNoteIDs gives embedded notes without explicit id a stable identity
// derived from their position in the source document.
func (p *parser) assignNoteIDs(el *etree.Element) {
	for _, note := range el.FindElements(".//note") {
		if note.SelectAttrValue("id", "") == "" {
			p.autoNote++
			note.CreateAttr("id", fmt.Sprintf("note-%d", p.autoNote))
		}
	}
	if el.Tag == "note" && el.SelectAttrValue("id", "") == "" {
		p.autoNote++
		el.CreateAttr("id", fmt.Sprintf("note-%d", p.autoNote))
	}
}

func (p *parser) collectNarrations(b *Book, ch *Chapter) {
	add := func(blocks []Block) {
		for i := range blocks {
			if blocks[i].Type != BlockNarration || blocks[i].Narration == nil {
				continue
			}
			if _, exists := b.Narrations[blocks[i].ID]; exists {
				p.log.Warn("Duplicate narration ID, keeping first", zap.String("id", blocks[i].ID))
				continue
			}
			b.Narrations[blocks[i].ID] = narration.NewSource(*blocks[i].Narration, p.log)
		}
	}
	add(ch.Blocks)
	for i := range ch.Subchapters {
		add(ch.Subchapters[i].Blocks)
	}
}

func parseMediaRef(el *etree.Element) *MediaRef {
	bg := el.SelectAttrValue("background", "")
	return &MediaRef{
		Href:       el.SelectAttrValue("href", ""),
		Alt:        el.SelectAttrValue("alt", ""),
		Background: strings.EqualFold(bg, "yes") || strings.EqualFold(bg, "true"),
	}
}

func parseBookLang(in string, log *zap.Logger) language.Tag {
	if in == "" {
		return language.English
	}
	tag, err := language.Parse(in)
	if err != nil {
		log.Warn("Unable to parse book language, assuming English", zap.String("lang", in), zap.Error(err))
		return language.English
	}
	return tag
}

func matchesBodyName(name string, bodyNames []string) bool {
	if name == "" {
		return true
	}
	for _, n := range bodyNames {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}

// plainText returns the plain-text projection of a block element: all
// character data in document order with embedded footnote bodies excluded.
func plainText(el *etree.Element) string {
	var b strings.Builder
	writePlainText(&b, el)
	return b.String()
}

func writePlainText(b *strings.Builder, el *etree.Element) {
	for _, child := range el.Child {
		switch node := child.(type) {
		case *etree.CharData:
			b.WriteString(node.Data)
		case *etree.Element:
			if node.Tag == "note" {
				// footnote body is rendered at the bottom of a page, not inline
				continue
			}
			writePlainText(b, node)
		}
	}
}
