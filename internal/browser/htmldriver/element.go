package htmldriver

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
)

type element struct {
	driver *Driver
	node   *html.Node
	gen    int
}

// check must be called with driver.mu held.
func (e *element) check() error {
	if e.driver.closed {
		return browser.ErrClosed
	}
	if e.gen != e.driver.gen {
		return ErrStaleElement
	}
	return nil
}

func (e *element) FindElement(sel browser.Selector) (browser.Element, error) {
	elems, err := e.FindElements(sel)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, browser.ErrNoSuchElement
	}
	return elems[0], nil
}

func (e *element) FindElements(sel browser.Selector) ([]browser.Element, error) {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.driver.query(e.node, sel)
}

func (e *element) Text() (string, error) {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return "", err
	}
	return renderText(e.node), nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return "", false, err
	}
	if name == "value" {
		v := e.driver.valueOf(e.node)
		return v, v != "", nil
	}
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

// Click follows the enclosing link or submits the enclosing form for submit
// controls. Other elements accept the click without effect.
func (e *element) Click() error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}

	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == "a" {
			if target, ok := e.driver.resolve(attr(n, "href")); ok {
				return e.driver.load(target)
			}
			return nil
		}
	}

	if isSubmitControl(e.node) {
		if form := enclosingForm(e.node); form != nil {
			return e.driver.submit(form, e.node)
		}
	}
	return nil
}

func (e *element) SendKeys(text string) error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	e.driver.values[e.node] = e.driver.valueOf(e.node) + text
	return nil
}

func (e *element) Clear() error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	e.driver.values[e.node] = ""
	return nil
}

func (e *element) Submit() error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	if form := enclosingForm(e.node); form != nil {
		return e.driver.submit(form, nil)
	}
	return nil
}

func (e *element) IsDisplayed() (bool, error) {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return false, err
	}
	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") {
			return false, nil
		}
		if n.Data == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
			return false, nil
		}
		style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

func (e *element) IsEnabled() (bool, error) {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if err := e.check(); err != nil {
		return false, err
	}
	return !hasAttr(e.node, "disabled"), nil
}

func (e *element) ScrollIntoView() error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	return e.check()
}

func isSubmitControl(n *html.Node) bool {
	kind := strings.ToLower(attr(n, "type"))
	switch n.Data {
	case "button":
		return kind == "" || kind == "submit"
	case "input":
		return kind == "submit" || kind == "image"
	}
	return false
}

func enclosingForm(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
