package browser

import (
	"errors"
	"strings"
)

var (
	ErrNoSuchElement = errors.New("no such element")
	ErrClosed        = errors.New("browser driver is closed")
)

type SelectorKind int

const (
	CSS SelectorKind = iota
	XPath
)

// Selector is a locator expression in one of the languages the driver understands.
type Selector struct {
	Kind SelectorKind
	Expr string
}

func ByCSS(expr string) Selector {
	return Selector{Kind: CSS, Expr: expr}
}

func ByXPath(expr string) Selector {
	return Selector{Kind: XPath, Expr: expr}
}

// String renders the selector in playwright's engine-prefixed form.
func (s Selector) String() string {
	if s.Kind == XPath {
		return "xpath=" + s.Expr
	}
	return s.Expr
}

// ParseSelector accepts the "xpath=" and "css=" prefixes; a bare expression
// starting with "//" is treated as XPath.
func ParseSelector(raw string) Selector {
	switch {
	case strings.HasPrefix(raw, "xpath="):
		return ByXPath(strings.TrimPrefix(raw, "xpath="))
	case strings.HasPrefix(raw, "css="):
		return ByCSS(strings.TrimPrefix(raw, "css="))
	case strings.HasPrefix(raw, "//"), strings.HasPrefix(raw, "(//"):
		return ByXPath(raw)
	default:
		return ByCSS(raw)
	}
}

// Scope is anything elements can be searched from: a page or an element.
type Scope interface {
	FindElement(sel Selector) (Element, error)
	FindElements(sel Selector) ([]Element, error)
}

type Element interface {
	Scope
	Text() (string, error)
	// Attribute reports ok=false when the attribute is not set.
	Attribute(name string) (value string, ok bool, err error)
	Click() error
	SendKeys(text string) error
	Clear() error
	// Submit presses Enter on the element.
	Submit() error
	IsDisplayed() (bool, error)
	IsEnabled() (bool, error)
	ScrollIntoView() error
}

// Driver is a single browser tab owned by one scrape session. After Quit every
// call returns ErrClosed.
type Driver interface {
	Scope
	Navigate(url string) error
	CurrentLocation() (string, error)
	PageTitle() (string, error)
	PageSource() (string, error)
	Refresh() error
	Quit() error
}

// FirstDisplayed returns the first element matched by any of the selectors that
// is visible, trying selectors in order.
func FirstDisplayed(scope Scope, sels []Selector, requireEnabled bool) (Element, Selector, bool) {
	for _, sel := range sels {
		elems, err := scope.FindElements(sel)
		if err != nil {
			continue
		}
		for _, el := range elems {
			visible, err := el.IsDisplayed()
			if err != nil || !visible {
				continue
			}
			if requireEnabled {
				enabled, err := el.IsEnabled()
				if err != nil || !enabled {
					continue
				}
			}
			return el, sel, true
		}
	}
	return nil, Selector{}, false
}

// Exists reports whether any selector matches at least one element.
func Exists(scope Scope, sels ...Selector) bool {
	for _, sel := range sels {
		elems, err := scope.FindElements(sel)
		if err == nil && len(elems) > 0 {
			return true
		}
	}
	return false
}

// TextOf returns trimmed text, treating every driver error as empty.
func TextOf(el Element) string {
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
