package book

import (
	"github.com/beevik/etree"
)

// Markup range cloning. The text splitter works on the plain-text projection
// of a block, the renderer needs rich markup back. CloneRange rebuilds the
// markup tree for a character range, dividing inline elements that span the
// cut and carrying embedded footnote bodies with the fragment that contains
// their anchor position.

// CloneRange returns a copy of the block markup restricted to the plain text
// range [start, end) of rune offsets into the block's projection. Passing the
// full range returns a deep copy equivalent to the source.
func CloneRange(el *etree.Element, start, end int) *etree.Element {
	c := &rangeCloner{start: start, end: end, total: len([]rune(plainText(el)))}
	out := c.copyElement(el)
	if out == nil {
		// nothing of the element falls into the range, produce an empty shell
		// so callers always get markup of the block's own tag
		out = shallowCopy(el)
	}
	return out
}

type rangeCloner struct {
	start, end, total int
	cursor            int
}

func (c *rangeCloner) copyElement(el *etree.Element) *etree.Element {
	dup := shallowCopy(el)
	empty := true

	for _, child := range el.Child {
		switch node := child.(type) {
		case *etree.CharData:
			runes := []rune(node.Data)
			segStart := c.cursor
			c.cursor += len(runes)
			lo, hi := max(c.start, segStart), min(c.end, c.cursor)
			if lo < hi {
				dup.CreateText(string(runes[lo-segStart : hi-segStart]))
				empty = false
			}
		case *etree.Element:
			if node.Tag == "note" {
				// zero width anchor, travels with the fragment containing its
				// position; a trailing note goes with the final fragment
				pos := c.cursor
				if pos >= c.start && (pos < c.end || (pos == c.end && c.end == c.total)) {
					dup.AddChild(node.Copy())
					empty = false
				}
				continue
			}
			if inner := c.copyElement(node); inner != nil {
				dup.AddChild(inner)
				empty = false
			}
		}
	}

	if empty {
		return nil
	}
	return dup
}

func shallowCopy(el *etree.Element) *etree.Element {
	dup := etree.NewElement(el.Tag)
	for _, a := range el.Attr {
		if a.Space != "" {
			dup.CreateAttr(a.Space+":"+a.Key, a.Value)
		} else {
			dup.CreateAttr(a.Key, a.Value)
		}
	}
	return dup
}
