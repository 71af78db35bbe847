package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/raaihank/regex-relay/internal/surface"
)

const editableSelector = "input, textarea, [contenteditable]"

// text-entry input types; a missing type means text
var textInputTypes = map[string]bool{
	"":         true,
	"text":     true,
	"search":   true,
	"email":    true,
	"url":      true,
	"tel":      true,
	"password": true,
	"number":   true,
}

// Locate returns the editable surfaces of the document in document order.
// Containers nested inside another container are skipped so every piece of
// text has exactly one owner.
func (d *Document) Locate() []surface.Surface {
	var surfaces []surface.Surface

	d.doc.Find(editableSelector).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)

		switch {
		case n.DataAtom == atom.Textarea:
			surfaces = append(surfaces, surface.FieldSurface(&textareaField{doc: d, node: n}))
		case n.DataAtom == atom.Input:
			if textInputTypes[strings.ToLower(strings.TrimSpace(attr(n, "type")))] {
				surfaces = append(surfaces, surface.FieldSurface(&inputField{doc: d, node: n}))
			}
		case isContainer(n) && !hasContainerAncestor(n):
			surfaces = append(surfaces, surface.ContainerSurface(&container{doc: d, node: n}))
		}
	})

	return surfaces
}

func isContainer(n *html.Node) bool {
	return n.Type == html.ElementNode &&
		hasAttr(n, "contenteditable") &&
		strings.ToLower(attr(n, "contenteditable")) != "false"
}

func hasContainerAncestor(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if isContainer(p) {
			return true
		}
	}
	return false
}
