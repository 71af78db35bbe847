package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/regex-relay/internal/dom"
	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/surface"
)

func newEngine() *Engine {
	return New(logger.Nop())
}

func rule(pattern, replacement, flags string) rules.RunRule {
	return rules.RunRule{Pattern: pattern, Replacement: replacement, Flags: flags, Enabled: true}
}

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	require.NoError(t, err)
	return doc
}

func eventsFor(doc *dom.Document, target string) []string {
	var types []string
	for _, ev := range doc.Events() {
		if ev.Target == target {
			types = append(types, ev.Type)
		}
	}
	return types
}

func TestValueField(t *testing.T) {
	doc := parse(t, `<input id="f" value="foo foo">`)

	result := newEngine().Run([]rules.RunGroup{{Name: "G", Rules: []rules.RunRule{rule("foo", "bar", "g")}}}, doc)

	val, _ := doc.Find("#f").Attr("value")
	assert.Equal(t, "bar bar", val)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.GroupResults[0].RuleResults[0].Replacements)
	assert.Equal(t, []string{"input", "change"}, eventsFor(doc, "#f"))
}

func TestValueFieldNotifiedPerChangingRule(t *testing.T) {
	doc := parse(t, `<textarea id="t">a b</textarea>`)

	newEngine().Run([]rules.RunGroup{{Name: "G", Rules: []rules.RunRule{
		rule("a", "x", "g"),
		rule("zzz", "y", "g"),
		rule("b", "y", "g"),
	}}}, doc)

	assert.Equal(t, "x y", doc.Find("#t").Text())
	assert.Equal(t, []string{"input", "change", "input", "change"}, eventsFor(doc, "#t"))
}

func TestContainerSingleNotification(t *testing.T) {
	doc := parse(t, `<div id="ed" contenteditable="true"><p>foo</p><p>foo</p></div>`)

	result := newEngine().Run([]rules.RunGroup{
		{Name: "G1", Rules: []rules.RunRule{rule("foo", "bar", "g"), rule("bar", "baz", "g")}},
		{Name: "G2", Rules: []rules.RunRule{rule("baz", "bar", "g")}},
	}, doc)

	html, err := doc.Find("#ed").Html()
	require.NoError(t, err)
	assert.Equal(t, "<p>bar</p><p>bar</p>", html)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, []string{"input", "change"}, eventsFor(doc, "#ed"))
}

func TestContainerMarkupPreserved(t *testing.T) {
	doc := parse(t, `<div id="ed" contenteditable="true"><p>foo</p><p>foo</p></div>`)

	result := newEngine().Run([]rules.RunGroup{{Name: "G", Rules: []rules.RunRule{rule("foo", "bar", "g")}}}, doc)

	html, err := doc.Find("#ed").Html()
	require.NoError(t, err)
	assert.Equal(t, "<p>bar</p><p>bar</p>", html)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, doc.Events(), 2)
}

func TestNestedContainersRewrittenOnce(t *testing.T) {
	doc := parse(t, `<div id="a" contenteditable="true">x<div id="b" contenteditable="true">x</div></div>`)

	result := newEngine().Run([]rules.RunGroup{{Name: "G", Rules: []rules.RunRule{rule("x", "xx", "g")}}}, doc)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "xx", doc.Find("#b").Text())
	assert.Empty(t, eventsFor(doc, "#b"))
	assert.Equal(t, []string{"input", "change"}, eventsFor(doc, "#a"))
}

func TestInvalidRuleIsolated(t *testing.T) {
	doc := parse(t, `<input id="f" value="foo">`)

	result := newEngine().Run([]rules.RunGroup{
		{Name: "G1", Rules: []rules.RunRule{rule("(", "x", "g"), rule("foo", "bar", "g")}},
		{Name: "G2", Rules: []rules.RunRule{rule("bar", "baz", "g")}},
	}, doc)

	require.Len(t, result.GroupResults, 2)
	bad := result.GroupResults[0].RuleResults[0]
	assert.Equal(t, RuleResult{Pattern: "(", Flags: "g", Replacements: 0, Error: "invalid regex"}, bad)
	assert.Equal(t, 1, result.GroupResults[0].RuleResults[1].Replacements)
	assert.Equal(t, 1, result.GroupResults[1].Replacements)

	val, _ := doc.Find("#f").Attr("value")
	assert.Equal(t, "baz", val)
}

func TestEmptyPatternLeavesContentAlone(t *testing.T) {
	doc := parse(t, `<input id="f" value="abc"><div contenteditable="true">abc</div>`)

	result := newEngine().Run([]rules.RunGroup{{Name: "G", Rules: []rules.RunRule{rule("", "x", "g")}}}, doc)

	val, _ := doc.Find("#f").Attr("value")
	assert.Equal(t, "abc", val)
	assert.Equal(t, "abc", doc.Find("div").Text())
	require.Len(t, result.GroupResults[0].RuleResults, 1)
	assert.Equal(t, RuleResult{Pattern: "", Flags: "g"}, result.GroupResults[0].RuleResults[0])
	assert.Empty(t, doc.Events())
}

func TestOrderPreserved(t *testing.T) {
	doc := parse(t, `<input value="only r2">`)

	result := newEngine().Run([]rules.RunGroup{
		{Name: "G1", Rules: []rules.RunRule{rule("r1", "-", "g"), rule("r2", "-", "g")}},
		{Name: "G2", Rules: []rules.RunRule{rule("r1", "-", "g"), rule("r2", "-", "g")}},
	}, doc)

	require.Len(t, result.GroupResults, 2)
	assert.Equal(t, "G1", result.GroupResults[0].Name)
	assert.Equal(t, "G2", result.GroupResults[1].Name)
	for _, gr := range result.GroupResults {
		require.Len(t, gr.RuleResults, 2)
		assert.Equal(t, "r1", gr.RuleResults[0].Pattern)
		assert.Equal(t, "r2", gr.RuleResults[1].Pattern)
	}
	assert.Equal(t, 0, result.GroupResults[0].RuleResults[0].Replacements)
	assert.Equal(t, 1, result.GroupResults[0].RuleResults[1].Replacements)
}

func TestSumInvariants(t *testing.T) {
	doc := parse(t, `<input value="aaa bbb"><textarea>ab</textarea><div contenteditable="true"><i>a</i>b</div>`)

	result := newEngine().Run([]rules.RunGroup{
		{Name: "A", Rules: []rules.RunRule{rule("a", "c", "g"), rule("[", "", "g")}},
		{Name: "B", Rules: []rules.RunRule{rule("b", "d", ""), rule("c", "e", "g")}},
	}, doc)

	total := 0
	for _, gr := range result.GroupResults {
		sum := 0
		for _, rr := range gr.RuleResults {
			sum += rr.Replacements
		}
		assert.Equal(t, gr.Replacements, sum)
		total += gr.Replacements
	}
	assert.Equal(t, result.Total, total)
	// a: 3 + 1 + 1, b non-global: one per surface, c: every former a
	assert.Equal(t, 5, result.GroupResults[0].Replacements)
	assert.Equal(t, 3+5, result.GroupResults[1].Replacements)
}

func TestIdempotentSecondRun(t *testing.T) {
	doc := parse(t, `<input value="foo"><div contenteditable="true">foo</div>`)
	groups := []rules.RunGroup{{Name: "G", Rules: []rules.RunRule{rule("foo", "bar", "g")}}}

	e := newEngine()
	require.Equal(t, 2, e.Run(groups, doc).Total)

	doc.ResetEvents()
	assert.Equal(t, 0, e.Run(groups, doc).Total)
	assert.Empty(t, doc.Events())
}

func TestBackReferences(t *testing.T) {
	doc := parse(t, `<input id="f" value="2024-01-31">`)

	newEngine().Run([]rules.RunGroup{{Name: "G", Rules: []rules.RunRule{
		rule(`(\d+)-(\d+)-(\d+)`, "$3/$2/$1", "g"),
	}}}, doc)

	val, _ := doc.Find("#f").Attr("value")
	assert.Equal(t, "31/01/2024", val)
}

type fakeContainer struct {
	leaves   []surface.TextLeaf
	notified int
}

func (c *fakeContainer) Leaves() []surface.TextLeaf { return c.leaves }
func (c *fakeContainer) NotifyChanged()             { c.notified++ }

type fakeLeaf struct{ text string }

func (l *fakeLeaf) Text() string      { return l.text }
func (l *fakeLeaf) SetText(s string) { l.text = s }

func TestApplyWithCapabilityInterfaces(t *testing.T) {
	c := &fakeContainer{leaves: []surface.TextLeaf{&fakeLeaf{"x"}, &fakeLeaf{"x"}}}

	result := newEngine().Apply(
		[]rules.RunGroup{{Name: "G", Rules: []rules.RunRule{rule("x", "y", "g"), rule("y", "z", "g")}}},
		[]surface.Surface{surface.ContainerSurface(c)},
	)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 1, c.notified)
}

func TestNoGroups(t *testing.T) {
	result := newEngine().Apply(nil, nil)
	assert.Equal(t, 0, result.Total)
	assert.NotNil(t, result.GroupResults)
	assert.Empty(t, result.GroupResults)
}
