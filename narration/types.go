// Package narration models narrated text: externally supplied word timings
// aligned to the displayed text, and character-range slices the paginator
// cuts the text into.
package narration

import (
	"fmt"

	"go.uber.org/zap"
)

// Word is a single externally supplied timing entry. Start and End are in
// seconds from the beginning of the audio resource.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Payload is the narration marker content embedded in book markup.
type Payload struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Audio string `json:"audio"`
	Words []Word `json:"wordTimings"`
}

// LetterTiming is the audio window of a single character of narration text.
// Characters of words with no matched timing entry have Valid false.
type LetterTiming struct {
	Start float64
	End   float64
	Valid bool
}

// WordRange is the character extent and audio window of one word of the
// narration text. Index is the word's position in the text token stream.
type WordRange struct {
	Index     int
	CharStart int
	CharEnd   int
	Start     float64
	End       float64
	Valid     bool
}

// Slice is a contiguous [CharStart, CharEnd) character range of a narration
// source assigned to exactly one page. For a given source the ordered slices
// exactly partition the text.
type Slice struct {
	NarrationID string `json:"narration_id" yaml:"narration_id"`
	CharStart   int    `json:"char_start" yaml:"char_start"`
	CharEnd     int    `json:"char_end" yaml:"char_end"`
}

// Source holds one narration object with its alignment, built once and never
// mutated afterwards. All character offsets are rune offsets into Text.
type Source struct {
	ID    string
	Text  string
	Audio string
	Words []Word

	Letters []LetterTiming
	Ranges  []WordRange
}

// NewSource builds the aligned narration source from the raw payload.
func NewSource(p Payload, log *zap.Logger) *Source {
	letters, ranges := Align(p.Text, p.Words, log)
	return &Source{
		ID:      p.ID,
		Text:    p.Text,
		Audio:   p.Audio,
		Words:   p.Words,
		Letters: letters,
		Ranges:  ranges,
	}
}

// Len returns narration text length in characters.
func (s *Source) Len() int {
	return len([]rune(s.Text))
}

// SliceText returns the text covered by the slice.
func (s *Source) SliceText(sl Slice) string {
	runes := []rune(s.Text)
	if sl.CharStart < 0 || sl.CharEnd > len(runes) || sl.CharStart > sl.CharEnd {
		return ""
	}
	return string(runes[sl.CharStart:sl.CharEnd])
}

// WordsIn returns word ranges that overlap the slice.
func (s *Source) WordsIn(sl Slice) []WordRange {
	var result []WordRange
	for _, r := range s.Ranges {
		if r.CharStart < sl.CharEnd && r.CharEnd > sl.CharStart {
			result = append(result, r)
		}
	}
	return result
}

// SliceStartTime returns the audio time of the first timed character within
// the slice, ok is false when the slice has no timed characters at all.
func (s *Source) SliceStartTime(sl Slice) (float64, bool) {
	for i := sl.CharStart; i < sl.CharEnd && i < len(s.Letters); i++ {
		if s.Letters[i].Valid {
			return s.Letters[i].Start, true
		}
	}
	return 0, false
}

// SliceEndTime returns the audio time of the last timed character within the
// slice, ok is false when the slice has no timed characters at all.
func (s *Source) SliceEndTime(sl Slice) (float64, bool) {
	for i := min(sl.CharEnd, len(s.Letters)) - 1; i >= sl.CharStart && i >= 0; i-- {
		if s.Letters[i].Valid {
			return s.Letters[i].End, true
		}
	}
	return 0, false
}

// WordProgress reports highlight fill for a word at audio time t: 1 when the
// word has completed, linear 0..1 inside the word's window, 0 before it.
// Untimed words never progress.
func (s *Source) WordProgress(index int, t float64) float64 {
	if index < 0 || index >= len(s.Ranges) || !s.Ranges[index].Valid {
		return 0
	}
	r := s.Ranges[index]
	switch {
	case t >= r.End:
		return 1
	case t < r.Start:
		return 0
	case r.End <= r.Start:
		return 1
	default:
		return (t - r.Start) / (r.End - r.Start)
	}
}

// CurrentWordIndex returns the currently sounding or most recently completed
// word at audio time t, -1 when nothing has started yet.
func (s *Source) CurrentWordIndex(t float64) int {
	current := -1
	for _, r := range s.Ranges {
		if !r.Valid {
			continue
		}
		if r.Start <= t {
			current = r.Index
		} else {
			break
		}
	}
	return current
}

// FirstUnstartedWord returns the first timed word whose window has not opened
// at audio time t, -1 when all words have started.
func (s *Source) FirstUnstartedWord(t float64) int {
	for _, r := range s.Ranges {
		if r.Valid && r.Start > t {
			return r.Index
		}
	}
	return -1
}

// SliceForWord locates the slice containing the word's first character. Words
// may not align with page numbering, so lookup is by character range.
func (s *Source) SliceForWord(slices []Slice, wordIndex int) (int, error) {
	if wordIndex < 0 || wordIndex >= len(s.Ranges) {
		return 0, fmt.Errorf("word index %d out of range", wordIndex)
	}
	pos := s.Ranges[wordIndex].CharStart
	for i, sl := range slices {
		if pos >= sl.CharStart && pos < sl.CharEnd {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no slice covers character %d of narration %s", pos, s.ID)
}
