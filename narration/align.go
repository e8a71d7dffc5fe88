package narration

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Alignment of external word timings to displayed text. This is best effort:
// narration audio and displayed text are produced independently and drift
// between them is expected and tolerated. A timing entry that cannot be
// matched leaves its word without highlight instead of failing.

type token struct {
	text      string
	charStart int
	charEnd   int
}

// Align matches timing entries against text tokens in document order and
// spreads every matched word's audio window linearly over its characters.
// Returned letter timings have one entry per rune of text.
func Align(text string, words []Word, log *zap.Logger) ([]LetterTiming, []WordRange) {
	textRunes := []rune(text)
	letters := make([]LetterTiming, len(textRunes))

	tokens := tokenize(textRunes)
	ranges := make([]WordRange, len(tokens))
	for i, tk := range tokens {
		ranges[i] = WordRange{Index: i, CharStart: tk.charStart, CharEnd: tk.charEnd}
	}

	var matched, dropped int
	cursor := 0
	for _, w := range words {
		want := normalizeToken(w.Text)
		if want == "" {
			dropped++
			continue
		}
		found := -1
		for j := cursor; j < len(tokens); j++ {
			if normalizeToken(tokens[j].text) == want {
				found = j
				break
			}
		}
		if found < 0 {
			// word has no counterpart in displayed text - no highlight for it
			dropped++
			continue
		}
		ranges[found].Start, ranges[found].End, ranges[found].Valid = w.Start, w.End, true
		matched++
		cursor = found + 1
	}

	for _, r := range ranges {
		if !r.Valid {
			continue
		}
		n := r.CharEnd - r.CharStart
		if n <= 0 {
			continue
		}
		span := r.End - r.Start
		for k := 0; k < n; k++ {
			letters[r.CharStart+k] = LetterTiming{
				Start: r.Start + span*float64(k)/float64(n),
				End:   r.Start + span*float64(k+1)/float64(n),
				Valid: true,
			}
		}
	}

	if dropped > 0 && log != nil {
		log.Debug("Narration alignment incomplete",
			zap.Int("timings", len(words)), zap.Int("matched", matched), zap.Int("dropped", dropped))
	}
	return letters, ranges
}

// tokenize splits text into words on Unicode letter/number runs, keeping
// apostrophes inside words so contractions stay whole.
func tokenize(textRunes []rune) []token {
	var tokens []token
	start := -1
	for i, r := range textRunes {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if tk, ok := makeToken(textRunes, start, i); ok {
				tokens = append(tokens, tk)
			}
			start = -1
		}
	}
	if start >= 0 {
		if tk, ok := makeToken(textRunes, start, len(textRunes)); ok {
			tokens = append(tokens, tk)
		}
	}
	return tokens
}

// makeToken trims apostrophes that merely surround the word (quotes), keeps
// internal ones.
func makeToken(textRunes []rune, start, end int) (token, bool) {
	for start < end && isApostrophe(textRunes[start]) {
		start++
	}
	for end > start && isApostrophe(textRunes[end-1]) {
		end--
	}
	if start >= end {
		return token{}, false
	}
	return token{text: string(textRunes[start:end]), charStart: start, charEnd: end}, true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || isApostrophe(r)
}

func isApostrophe(r rune) bool {
	switch r {
	case '\'', '’', 'ʼ', '`', '´':
		return true
	}
	return false
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeToken prepares a word for matching: Unicode decomposition with
// diacritic stripping, lowercasing, apostrophe normalization and removal of
// anything that is not a letter or number.
func normalizeToken(in string) string {
	stripped, _, err := transform.String(diacriticStripper, in)
	if err != nil {
		stripped = in
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	for _, r := range stripped {
		switch {
		case isApostrophe(r):
			b.WriteRune('\'')
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
