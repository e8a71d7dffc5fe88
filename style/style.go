// Package style reads the reader stylesheet: a small CSS subset that lets a
// book override page geometry and type metrics used by the built-in
// measurement oracle.
package style

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"github.com/tianBreznik/overstimulata-sub000/config"
)

// Sheet holds declarations keyed by selector. Only the "page" and "body"
// selectors participate in metrics, everything else is carried through for
// the renderer untouched.
type Sheet struct {
	rules map[string]map[string]string
}

// Load reads and parses a stylesheet file. An empty path yields an empty
// sheet, geometry then comes from configuration alone.
func Load(path string, log *zap.Logger) (*Sheet, error) {
	if path == "" {
		return &Sheet{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read stylesheet %q: %w", path, err)
	}
	return Parse(data, log), nil
}

// Parse tokenizes CSS grammar, collecting declarations per selector. Parse
// never fails, unsupported constructs are skipped with a debug note.
func Parse(data []byte, log *zap.Logger) *Sheet {
	sheet := &Sheet{rules: make(map[string]map[string]string)}
	p := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)

	var selectors, pending []string
	for {
		gt, _, tok := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && err.Error() != "EOF" {
				log.Debug("Stylesheet parse stopped", zap.Error(err))
			}
			return sheet
		case css.QualifiedRuleGrammar:
			// one comma-separated selector of a ruleset still being read
			pending = append(pending, selectorNames(tok, p.Values())...)
		case css.BeginRulesetGrammar:
			selectors = append(pending, selectorNames(tok, p.Values())...)
			pending = nil
		case css.DeclarationGrammar:
			val := tokensValue(p.Values())
			for _, sel := range selectors {
				sheet.set(sel, string(tok), val)
			}
		case css.EndRulesetGrammar:
			selectors = nil
		case css.BeginAtRuleGrammar, css.AtRuleGrammar:
			log.Debug("Skipping at-rule in reader stylesheet", zap.String("rule", string(tok)))
		}
	}
}

func (s *Sheet) set(selector, property, value string) {
	if s.rules == nil {
		s.rules = make(map[string]map[string]string)
	}
	if s.rules[selector] == nil {
		s.rules[selector] = make(map[string]string)
	}
	s.rules[selector][property] = value
}

// Value returns the declaration for the property, consulting the page
// selector first, then body.
func (s *Sheet) Value(property string) (string, bool) {
	for _, sel := range []string{"page", "body"} {
		if v, ok := s.rules[sel][property]; ok {
			return v, true
		}
	}
	return "", false
}

// Apply overlays stylesheet geometry on top of configured page metrics.
func (s *Sheet) Apply(page config.PageConfig) config.PageConfig {
	page.Width = s.length("width", page.Width)
	page.Height = s.length("height", page.Height)
	page.LineHeight = s.length("line-height", page.LineHeight)
	page.CharWidth = s.length("--char-width", page.CharWidth)
	page.HeadingReserve = s.length("--heading-reserve", page.HeadingReserve)
	page.ChapterStartReserve = s.length("--chapter-start-reserve", page.ChapterStartReserve)
	return page
}

func (s *Sheet) length(property string, fallback float64) float64 {
	raw, ok := s.Value(property)
	if !ok {
		return fallback
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "px")
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func selectorNames(first []byte, values []css.Token) []string {
	var b strings.Builder
	b.Write(first)
	for _, t := range values {
		b.Write(t.Data)
	}
	var out []string
	for _, sel := range strings.Split(b.String(), ",") {
		if sel = strings.ToLower(strings.TrimSpace(sel)); sel != "" {
			out = append(out, sel)
		}
	}
	return out
}

func tokensValue(values []css.Token) string {
	var b strings.Builder
	for _, t := range values {
		b.Write(t.Data)
	}
	return strings.TrimSpace(b.String())
}
