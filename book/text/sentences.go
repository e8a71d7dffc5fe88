// Package text provides sentence and word tokenization used by the layout
// splitter to pick page break points.
package text

import (
	"iter"
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter prepares sentence tokenizer for the requested language. Only
// English training data is shipped with the program, for other languages
// sentence-level splitting is turned off and callers fall back to word
// boundaries.
func NewSplitter(lang language.Tag, log *zap.Logger) *Splitter {
	base, confidence := lang.Base()
	if confidence == language.No {
		log.Warn("Unable to determine language base, turning off sentence splitting", zap.Stringer("tag", lang))
		return nil
	}
	if base.String() != "en" {
		log.Warn("No sentence tokenizer model for language, turning off sentence splitting", zap.Stringer("language", lang))
		return nil
	}
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer data", zap.Stringer("tag", lang), zap.Error(err))
		return nil
	}
	return &Splitter{tokenizer}
}

// Split returns slice of sentences.
// For memory-efficient streaming, use Sentences iterator instead.
func (s *Splitter) Split(in string) []string {

	var result []string
	if s == nil {
		// sentenses tokenizer is off
		return append(result, in)
	}

	for _, sentence := range s.Tokenize(in) {
		result = append(result, sentence.Text)
	}

	// Sentences tokenizer has a funny way of working - sentence trailing
	// spaces belong to the next sentence. That breaks offset arithmetic when
	// page fragments are reassembled, so move leading spaces of every sentence
	// to the end of the previous one.

	for i := range len(result) - 1 {
		for idx, sym := range result[i+1] {
			if !unicode.IsSpace(sym) {
				result[i] = result[i] + result[i+1][0:idx]
				result[i+1] = result[i+1][idx:]
				break
			}
		}
	}
	return result
}

// Sentences returns an iterator over sentences with the same space-trimming
// logic as Split.
func (s *Splitter) Sentences(in string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == nil {
			yield(in)
			return
		}

		tokenized := s.Tokenize(in)
		if len(tokenized) == 0 {
			return
		}

		for i := 0; i < len(tokenized)-1; i++ {
			text := tokenized[i].Text

			nextText := tokenized[i+1].Text
			for idx, sym := range nextText {
				if !unicode.IsSpace(sym) {
					text = text + nextText[0:idx]
					tokenized[i+1].Text = nextText[idx:]
					break
				}
			}
			if !yield(text) {
				return
			}
		}
		yield(tokenized[len(tokenized)-1].Text)
	}
}

// SentenceStarts returns rune offsets (into in) at which sentences begin,
// always including 0 for non-empty input. Offsets are computed from the
// tokenizer output so that in[starts[i]:starts[i+1]] is exactly one sentence
// with its trailing spaces.
func (s *Splitter) SentenceStarts(in string) []int {
	if len(in) == 0 {
		return nil
	}
	total := len([]rune(in))
	starts := []int{0}
	offset := 0
	for sentence := range s.Sentences(in) {
		offset += len([]rune(sentence))
		if offset < total {
			starts = append(starts, offset)
		}
	}
	return starts
}

// SplitWords returns slice of words.
// For memory-efficient streaming, use Words iterator instead.
func (*Splitter) SplitWords(in string, ignoreNBSP bool) []string {
	var (
		result = []string{}
		word   strings.Builder
	)
	for _, sym := range in {
		if isSeparator(sym, ignoreNBSP) {
			result = append(result, word.String())
			word.Reset()
			continue
		}
		word.WriteRune(sym)
	}
	return append(result, word.String())
}

// Words returns an iterator over words.
// The ignoreNBSP parameter determines whether NBSP (0xA0) is treated as a separator.
func (*Splitter) Words(in string, ignoreNBSP bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		var word strings.Builder
		for _, sym := range in {
			if isSeparator(sym, ignoreNBSP) {
				if !yield(word.String()) {
					return
				}
				word.Reset()
				continue
			}
			word.WriteRune(sym)
		}
		yield(word.String())
	}
}

func isSeparator(r rune, ignoreNBSP bool) bool {
	if uint32(r) <= unicode.MaxLatin1 {
		switch r {
		// exclude NBSP from the list of white space separators for latin1 symbols
		case '\t', '\n', '\v', '\f', '\r', ' ', 0x85:
			return true
		case 0xA0: // NBSP
			return ignoreNBSP
		}
		return false
	}
	return unicode.IsSpace(r)
}
