// Package htmldriver implements browser.Driver over static HTML documents.
// Pages are registered by URL; clicking links and submitting forms navigates
// between them. It backs the offline tests and the replay command.
package htmldriver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
)

var ErrStaleElement = errors.New("stale element reference")

const notFoundPage = `<html><head><title>Page Not Found</title></head><body><p>Sorry! We couldn't find that page.</p></body></html>`

// Submission is one form post or get the driver performed.
type Submission struct {
	Action string
	Method string
	Values url.Values
}

type Driver struct {
	mu          sync.Mutex
	pages       map[string]string
	redirects   map[string]string
	history     []string
	submissions []Submission

	location string
	source   string
	doc      *goquery.Document
	gen      int
	values   map[*html.Node]string
	closed   bool
}

func New() *Driver {
	return &Driver{
		pages:     make(map[string]string),
		redirects: make(map[string]string),
		values:    make(map[*html.Node]string),
	}
}

// SetPage registers or replaces the document served for rawURL.
func (d *Driver) SetPage(rawURL, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[normalize(rawURL)] = body
}

// Redirect makes navigation to from land on to.
func (d *Driver) Redirect(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.redirects[normalize(from)] = to
}

func (d *Driver) RemoveRedirect(from string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.redirects, normalize(from))
}

// History lists every URL that was loaded, after redirects.
func (d *Driver) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

// Submissions lists every submitted form in order.
func (d *Driver) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Submission(nil), d.submissions...)
}

// Closed reports whether Quit has been called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) Navigate(rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrClosed
	}
	return d.load(rawURL)
}

func (d *Driver) CurrentLocation() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrClosed
	}
	return d.location, nil
}

func (d *Driver) PageTitle() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrClosed
	}
	if d.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
}

func (d *Driver) PageSource() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrClosed
	}
	return d.source, nil
}

func (d *Driver) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrClosed
	}
	if d.location == "" {
		return nil
	}
	return d.load(d.location)
}

func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.doc = nil
	return nil
}

func (d *Driver) FindElement(sel browser.Selector) (browser.Element, error) {
	elems, err := d.FindElements(sel)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, browser.ErrNoSuchElement
	}
	return elems[0], nil
}

func (d *Driver) FindElements(sel browser.Selector) ([]browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, browser.ErrClosed
	}
	if d.doc == nil {
		return nil, nil
	}
	return d.query(d.doc.Nodes[0], sel)
}

func (d *Driver) query(root *html.Node, sel browser.Selector) ([]browser.Element, error) {
	var nodes []*html.Node
	switch sel.Kind {
	case browser.XPath:
		found, err := htmlquery.QueryAll(root, sel.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", sel.Expr, err)
		}
		for _, n := range found {
			if n.Type == html.ElementNode {
				nodes = append(nodes, n)
			}
		}
	default:
		nodes = goquery.NewDocumentFromNode(root).Find(sel.Expr).Nodes
	}

	elems := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, &element{driver: d, node: n, gen: d.gen})
	}
	return elems, nil
}

// load must be called with d.mu held.
func (d *Driver) load(rawURL string) error {
	target := rawURL
	for i := 0; i < 10; i++ {
		to, ok := d.redirects[normalize(target)]
		if !ok {
			break
		}
		target = to
	}

	body, ok := d.pages[normalize(target)]
	if !ok {
		body, ok = d.pages[stripQuery(target)]
	}
	if !ok {
		body = notFoundPage
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", target, err)
	}

	d.location = target
	d.source = body
	d.doc = doc
	d.gen++
	d.values = make(map[*html.Node]string)
	d.history = append(d.history, target)
	return nil
}

// resolve must be called with d.mu held.
func (d *Driver) resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "javascript:") {
		return "", false
	}
	base, err := url.Parse(d.location)
	if err != nil {
		return ref, true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(u).String(), true
}

// submit must be called with d.mu held.
func (d *Driver) submit(form *html.Node, clicked *html.Node) error {
	action, ok := d.resolve(attr(form, "action"))
	if !ok {
		action = d.location
	}

	params := url.Values{}
	walk(form, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		name := attr(n, "name")
		if name == "" {
			return true
		}
		switch n.Data {
		case "input", "textarea", "select":
			kind := strings.ToLower(attr(n, "type"))
			if (kind == "submit" || kind == "image") && n != clicked {
				return true
			}
			params.Set(name, d.valueOf(n))
		case "button":
			if n == clicked {
				params.Set(name, attr(n, "value"))
			}
		}
		return true
	})

	if strings.EqualFold(attr(form, "method"), "post") {
		d.submissions = append(d.submissions, Submission{Action: action, Method: "POST", Values: params})
		return d.load(action)
	}
	d.submissions = append(d.submissions, Submission{Action: action, Method: "GET", Values: params})

	u, err := url.Parse(action)
	if err != nil {
		return d.load(action)
	}
	u.RawQuery = params.Encode()
	return d.load(u.String())
}

// valueOf must be called with d.mu held.
func (d *Driver) valueOf(n *html.Node) string {
	if v, ok := d.values[n]; ok {
		return v
	}
	return attr(n, "value")
}

func normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	return u.String()
}

func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawQuery = ""
	return u.String()
}
