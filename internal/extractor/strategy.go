package extractor

import (
	"fmt"
	"regexp"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
)

// maxCandidates bounds how many matches of one selector are inspected.
const maxCandidates = 5

// Strategy is one way of locating a field value. TryExtract returns the first
// candidate accept approves; every driver error counts as "no value".
type Strategy interface {
	Name() string
	TryExtract(scope browser.Scope, accept Validator) (string, bool)
}

// SelectorText reads the text of elements matched by Sel.
type SelectorText struct {
	Sel browser.Selector
}

func (s SelectorText) Name() string { return "text " + s.Sel.String() }

func (s SelectorText) TryExtract(scope browser.Scope, accept Validator) (string, bool) {
	elems, err := scope.FindElements(s.Sel)
	if err != nil {
		return "", false
	}
	for i, el := range elems {
		if i == maxCandidates {
			break
		}
		text := browser.TextOf(el)
		if text == "" {
			continue
		}
		if v, ok := accept(text); ok {
			return v, true
		}
	}
	return "", false
}

// SelectorAttr reads an attribute of elements matched by Sel.
type SelectorAttr struct {
	Sel  browser.Selector
	Attr string
}

func (s SelectorAttr) Name() string { return fmt.Sprintf("@%s %s", s.Attr, s.Sel.String()) }

func (s SelectorAttr) TryExtract(scope browser.Scope, accept Validator) (string, bool) {
	elems, err := scope.FindElements(s.Sel)
	if err != nil {
		return "", false
	}
	for i, el := range elems {
		if i == maxCandidates {
			break
		}
		value, ok, err := el.Attribute(s.Attr)
		if err != nil || !ok || value == "" {
			continue
		}
		if v, ok := accept(value); ok {
			return v, true
		}
	}
	return "", false
}

// Own reads an attribute of the scope element itself.
type Own struct {
	Attr string
}

func (o Own) Name() string { return "@" + o.Attr }

func (o Own) TryExtract(scope browser.Scope, accept Validator) (string, bool) {
	el, ok := scope.(browser.Element)
	if !ok {
		return "", false
	}
	value, ok, err := el.Attribute(o.Attr)
	if err != nil || !ok {
		return "", false
	}
	return accept(value)
}

type TextSource int

const (
	// FromText scans rendered text: the element's, or the page body's.
	FromText TextSource = iota
	// FromSource scans the raw page markup.
	FromSource
)

// PagePattern scans free text with a regular expression. The first capture
// group is the candidate when present, else the whole match.
type PagePattern struct {
	Pattern *regexp.Regexp
	Source  TextSource
}

func (p PagePattern) Name() string { return "pattern " + p.Pattern.String() }

func (p PagePattern) TryExtract(scope browser.Scope, accept Validator) (string, bool) {
	content, ok := contentOf(scope, p.Source)
	if !ok {
		return "", false
	}
	for _, m := range p.Pattern.FindAllStringSubmatch(content, maxCandidates) {
		candidate := m[0]
		if len(m) > 1 {
			candidate = m[1]
		}
		if v, ok := accept(candidate); ok {
			return v, true
		}
	}
	return "", false
}

// LongestLineOf takes the longest line of the scope element's text. It is the
// last resort for review bodies without a dedicated container.
type LongestLineOf struct{}

func (LongestLineOf) Name() string { return "longest line" }

func (LongestLineOf) TryExtract(scope browser.Scope, accept Validator) (string, bool) {
	content, ok := contentOf(scope, FromText)
	if !ok {
		return "", false
	}
	line := LongestLine(content)
	if line == "" {
		return "", false
	}
	return accept(line)
}

type pageSourcer interface {
	PageSource() (string, error)
}

func contentOf(scope browser.Scope, source TextSource) (string, bool) {
	if source == FromSource {
		if ps, ok := scope.(pageSourcer); ok {
			content, err := ps.PageSource()
			return content, err == nil
		}
	}
	if el, ok := scope.(browser.Element); ok {
		text, err := el.Text()
		return text, err == nil
	}
	body, err := scope.FindElement(browser.ByCSS("body"))
	if err != nil {
		return "", false
	}
	text, err := body.Text()
	return text, err == nil
}

func textOf(sels []browser.Selector) []Strategy {
	out := make([]Strategy, len(sels))
	for i, s := range sels {
		out[i] = SelectorText{Sel: s}
	}
	return out
}

// attrOrText probes an attribute first and the element text second, for each
// selector in turn.
func attrOrText(attr string, sels []browser.Selector) []Strategy {
	out := make([]Strategy, 0, 2*len(sels))
	for _, s := range sels {
		out = append(out, SelectorAttr{Sel: s, Attr: attr}, SelectorText{Sel: s})
	}
	return out
}
