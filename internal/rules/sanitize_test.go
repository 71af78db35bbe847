package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFlags(t *testing.T) {
	assert.Equal(t, "gi", SanitizeFlags("gig"))
	assert.Equal(t, "gimsuyd", SanitizeFlags("gimsuyd"))
	assert.Equal(t, "m", SanitizeFlags("xmz!"))
	assert.Equal(t, "", SanitizeFlags(""))
}

func TestNewGroup(t *testing.T) {
	g := NewGroup()
	assert.Len(t, g.ID, 8)
	assert.Equal(t, "Group", g.Name)
	assert.True(t, g.Enabled)
	require.Len(t, g.Rules, 1)
	assert.Equal(t, "g", g.Rules[0].Flags)
	assert.Empty(t, g.Rules[0].Pattern)
	assert.NotEqual(t, g.ID, NewGroup().ID)
}

func TestSanitizeAny(t *testing.T) {
	raw := `[
		{"id": "g1", "name": "Typos", "enabled": false, "extra": 1,
		 "rules": [{"pattern": "teh", "replacement": "the", "flags": "ggxi"},
		           {"id": "r2", "pattern": "", "enabled": false}]},
		{"name": 42, "rules": []},
		"not an object"
	]`

	var items []any
	require.NoError(t, json.Unmarshal([]byte(raw), &items))

	groups := SanitizeAny(items)
	require.Len(t, groups, 3)

	g := groups[0]
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, "Typos", g.Name)
	assert.False(t, g.Enabled)
	require.Len(t, g.Rules, 2)
	assert.NotEmpty(t, g.Rules[0].ID)
	assert.Equal(t, "gi", g.Rules[0].Flags)
	assert.True(t, g.Rules[0].Enabled)
	assert.Equal(t, "r2", g.Rules[1].ID)
	assert.Equal(t, "g", g.Rules[1].Flags)
	assert.False(t, g.Rules[1].Enabled)

	assert.Equal(t, "42", groups[1].Name)
	assert.True(t, groups[1].Enabled)
	require.Len(t, groups[1].Rules, 1, "empty rule lists get a placeholder")

	assert.Equal(t, "Group", groups[2].Name)
	require.Len(t, groups[2].Rules, 1)
}

func TestSanitize(t *testing.T) {
	groups := Sanitize([]RuleGroup{
		{Name: "", Rules: nil},
		{ID: "keep", Name: "x", Rules: []Rule{{Pattern: "a", Flags: "iig"}}},
	})

	require.Len(t, groups, 2)
	assert.NotEmpty(t, groups[0].ID)
	assert.Equal(t, "Group", groups[0].Name)
	assert.Len(t, groups[0].Rules, 1)
	assert.Equal(t, "keep", groups[1].ID)
	assert.Equal(t, "ig", groups[1].Rules[0].Flags)
	assert.NotEmpty(t, groups[1].Rules[0].ID)
}

func TestRunRequestFilters(t *testing.T) {
	g := RuleGroup{Name: "G", Rules: []Rule{
		{Pattern: "a", Replacement: "b", Flags: "g", Enabled: true},
		{Pattern: "", Enabled: true},
		{Pattern: "c", Enabled: false},
	}}

	run := g.RunRequest()
	assert.Equal(t, "G", run.Name)
	require.Len(t, run.Rules, 1)
	assert.Equal(t, RunRule{Pattern: "a", Replacement: "b", Flags: "g", Enabled: true}, run.Rules[0])
}
