package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/raaihank/regex-relay/internal/surface"
)

// inputField exposes the value attribute of an <input>
type inputField struct {
	doc  *Document
	node *html.Node
}

func (f *inputField) Text() string {
	return attr(f.node, "value")
}

func (f *inputField) SetText(s string) {
	setAttr(f.node, "value", s)
}

func (f *inputField) NotifyChanged() {
	f.doc.dispatch(f.node, surface.EventInput, surface.EventChange)
}

// textareaField exposes the text content of a <textarea>
type textareaField struct {
	doc  *Document
	node *html.Node
}

func (f *textareaField) Text() string {
	var b strings.Builder
	for c := f.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func (f *textareaField) SetText(s string) {
	for c := f.node.FirstChild; c != nil; {
		next := c.NextSibling
		f.node.RemoveChild(c)
		c = next
	}
	f.node.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

func (f *textareaField) NotifyChanged() {
	f.doc.dispatch(f.node, surface.EventInput, surface.EventChange)
}

// container is a contenteditable host
type container struct {
	doc  *Document
	node *html.Node
}

// Leaves collects text nodes in document order. Textareas are skipped
// because their text belongs to the textarea's own value surface.
func (c *container) Leaves() []surface.TextLeaf {
	var leaves []surface.TextLeaf

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch {
			case child.Type == html.TextNode:
				leaves = append(leaves, textLeaf{node: child})
			case child.Type == html.ElementNode && child.DataAtom == atom.Textarea:
			default:
				walk(child)
			}
		}
	}
	walk(c.node)

	return leaves
}

func (c *container) NotifyChanged() {
	c.doc.dispatch(c.node, surface.EventInput, surface.EventChange)
}

type textLeaf struct {
	node *html.Node
}

func (l textLeaf) Text() string      { return l.node.Data }
func (l textLeaf) SetText(s string) { l.node.Data = s }
