package dom

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/regex-relay/internal/surface"
)

const page = `<!DOCTYPE html>
<html><body>
  <input id="name" value="foo foo">
  <input id="agree" type="checkbox" value="foo">
  <input id="mail" type="EMAIL" value="foo@example.com">
  <textarea id="notes">foo</textarea>
  <div id="outer" contenteditable="true"><p>foo</p><div id="inner" contenteditable><b>foo</b></div></div>
  <div id="off" contenteditable="false"><span>foo</span></div>
  <section id="plain" contenteditable=""><i>x</i></section>
</body></html>`

func TestLocate(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	surfaces := doc.Locate()
	require.Len(t, surfaces, 5)

	kinds := make([]surface.Kind, len(surfaces))
	for i, s := range surfaces {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []surface.Kind{
		surface.KindValueField,
		surface.KindValueField,
		surface.KindValueField,
		surface.KindContainer,
		surface.KindContainer,
	}, kinds)

	assert.Equal(t, "foo foo", surfaces[0].Field.Text())
	assert.Equal(t, "foo@example.com", surfaces[1].Field.Text())
	assert.Equal(t, "foo", surfaces[2].Field.Text())

	leaves := surfaces[3].Container.Leaves()
	require.Len(t, leaves, 2, "inner container text belongs to the outer host")
	assert.Equal(t, "foo", leaves[0].Text())
	assert.Equal(t, "foo", leaves[1].Text())
}

func TestSurfaceWrites(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	surfaces := doc.Locate()

	surfaces[0].Field.SetText("bar")
	surfaces[0].Field.NotifyChanged()
	val, _ := doc.Find("#name").Attr("value")
	assert.Equal(t, "bar", val)

	surfaces[2].Field.SetText("a < b")
	assert.Equal(t, "a < b", doc.Find("#notes").Text())

	leaves := surfaces[3].Container.Leaves()
	leaves[0].SetText("bar")
	html, err := doc.Find("#outer").Html()
	require.NoError(t, err)
	assert.Equal(t, `<p>bar</p><div id="inner" contenteditable=""><b>foo</b></div>`, html)

	assert.Equal(t, []Event{
		{Type: surface.EventInput, Target: "#name", Bubbles: true},
		{Type: surface.EventChange, Target: "#name", Bubbles: true},
	}, doc.Events())
}

func TestContainerSkipsTextarea(t *testing.T) {
	doc, err := ParseString(`<div contenteditable="true">a<textarea>b</textarea>c</div>`)
	require.NoError(t, err)

	surfaces := doc.Locate()
	require.Len(t, surfaces, 2)
	assert.Equal(t, surface.KindContainer, surfaces[0].Kind)
	assert.Equal(t, surface.KindValueField, surfaces[1].Kind)

	var texts []string
	for _, l := range surfaces[0].Container.Leaves() {
		texts = append(texts, l.Text())
	}
	assert.Equal(t, []string{"a", "c"}, texts)
}

func TestDescribeWithoutID(t *testing.T) {
	doc, err := ParseString(`<div id="root"><span>x</span><input value="y"></div>`)
	require.NoError(t, err)

	surfaces := doc.Locate()
	require.Len(t, surfaces, 1)
	surfaces[0].Field.NotifyChanged()

	events := doc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "#root > input:nth-child(2)", events[0].Target)
}

func TestListenersAndReset(t *testing.T) {
	doc, err := ParseString(`<input id="a" value="x">`)
	require.NoError(t, err)

	var seen []string
	doc.OnEvent(func(ev Event) { seen = append(seen, ev.Type) })

	doc.Locate()[0].Field.NotifyChanged()
	assert.Equal(t, []string{"input", "change"}, seen)

	doc.ResetEvents()
	assert.Empty(t, doc.Events())
}

func TestSaveAndLoad(t *testing.T) {
	doc, err := ParseString(`<div contenteditable="true"><p>foo</p></div>`)
	require.NoError(t, err)
	doc.Locate()[0].Container.Leaves()[0].SetText("bar")

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, doc.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bar", loaded.Find("p").Text())

	var buf bytes.Buffer
	require.NoError(t, loaded.Render(&buf))
	assert.Contains(t, buf.String(), "<p>bar</p>")
}
