package dom

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Event is a change notification dispatched on a surface element
type Event struct {
	Type    string `json:"type"`
	Target  string `json:"target"`
	Bubbles bool   `json:"bubbles"`
}

// Document is an editable HTML page. It is not safe for concurrent use;
// the page agent owning it is its only writer.
type Document struct {
	doc       *goquery.Document
	events    []Event
	listeners []func(Event)
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an HTML document held in a string
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Load parses the HTML file at path
func Load(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Save renders the document to path
func (d *Document) Save(path string) error {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

// Render writes the whole document as HTML
func (d *Document) Render(w io.Writer) error {
	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("failed to render HTML: %w", err)
		}
	}
	return nil
}

// Find runs a CSS selector against the document
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// OnEvent registers a listener for dispatched notifications
func (d *Document) OnEvent(fn func(Event)) {
	d.listeners = append(d.listeners, fn)
}

// Events returns every notification dispatched so far
func (d *Document) Events() []Event {
	return append([]Event(nil), d.events...)
}

// ResetEvents clears the recorded notifications
func (d *Document) ResetEvents() {
	d.events = nil
}

func (d *Document) dispatch(n *html.Node, types ...string) {
	target := describe(n)
	for _, typ := range types {
		ev := Event{Type: typ, Target: target, Bubbles: true}
		d.events = append(d.events, ev)
		for _, fn := range d.listeners {
			fn(ev)
		}
	}
}

// describe names an element by its id, or by its position below the
// closest ancestor that has one.
func describe(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if id := attr(cur, "id"); id != "" {
			parts = append(parts, "#"+id)
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", cur.Data, childIndex(cur)))
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func childIndex(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			idx++
		}
	}
	return idx
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

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
