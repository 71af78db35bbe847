package transfer

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/regex-relay/internal/rules"
)

func sampleGroups() []rules.RuleGroup {
	return []rules.RuleGroup{
		{ID: "g1", Name: "Typos", Enabled: true, Rules: []rules.Rule{
			{ID: "r1", Pattern: "teh", Replacement: "the", Flags: "gi", Enabled: true},
			{ID: "r2", Pattern: "recieve", Replacement: "receive", Flags: "g", Enabled: false},
		}},
		{ID: "g2", Name: "Dates", Enabled: true, Rules: []rules.Rule{
			{ID: "r3", Pattern: `(\d+)/(\d+)`, Replacement: "$2-$1", Flags: "g", Enabled: true},
		}},
	}
}

// shape drops ids, which tabular formats do not carry
func shape(groups []rules.RuleGroup) []rules.RuleGroup {
	out := make([]rules.RuleGroup, len(groups))
	for i, g := range groups {
		g = g.Clone()
		g.ID = ""
		for j := range g.Rules {
			g.Rules[j].ID = ""
		}
		out[i] = g
	}
	return out
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"rules.json":    FormatJSON,
		"rules.YAML":    FormatYAML,
		"rules.yml":     FormatYAML,
		"rules.csv":     FormatCSV,
		"rules.parquet": FormatParquet,
		"rules":         FormatJSON,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImportJSONRootMustBeArray(t *testing.T) {
	_, err := Import(strings.NewReader(`{"name":"x"}`), FormatJSON)
	assert.ErrorIs(t, err, ErrInvalidRoot)
	assert.EqualError(t, err, "Invalid JSON root (expected array)")

	_, err = Import(strings.NewReader(`[{`), FormatJSON)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRoot)
	assert.Contains(t, err.Error(), "failed to parse JSON")
}

func TestImportJSONSanitizes(t *testing.T) {
	src := `[
		{"name": "A", "extra": 1, "rules": [{"pattern": "x", "flags": "gxg", "enabled": false}]},
		{"id": "keep", "enabled": false, "rules": []},
		"junk"
	]`

	groups, err := Import(strings.NewReader(src), FormatJSON)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.NotEmpty(t, groups[0].ID)
	assert.True(t, groups[0].Enabled)
	assert.Equal(t, "g", groups[0].Rules[0].Flags)
	assert.False(t, groups[0].Rules[0].Enabled)
	assert.NotEmpty(t, groups[0].Rules[0].ID)

	assert.Equal(t, "keep", groups[1].ID)
	assert.Equal(t, "Group", groups[1].Name)
	assert.False(t, groups[1].Enabled)
	require.Len(t, groups[1].Rules, 1)
	assert.Empty(t, groups[1].Rules[0].Pattern)

	assert.Equal(t, "Group", groups[2].Name)
	assert.Len(t, groups[2].Rules, 1)
}

func TestJSONRoundTripKeepsIDs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleGroups(), FormatJSON))
	assert.Contains(t, buf.String(), "\n  {")

	groups, err := Import(&buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, sampleGroups(), groups)
}

func TestYAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleGroups(), FormatYAML))
	assert.Contains(t, buf.String(), "name: Typos")

	groups, err := Import(&buf, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, sampleGroups(), groups)

	_, err = Import(strings.NewReader("name: x\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleGroups(), FormatCSV))

	want := "group,pattern,replacement,flags,enabled\n" +
		"Typos,teh,the,gi,true\n" +
		"Typos,recieve,receive,g,false\n" +
		"Dates,(\\d+)/(\\d+),$2-$1,g,true\n"
	assert.Equal(t, want, buf.String())

	groups, err := Import(&buf, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, shape(sampleGroups()), shape(groups))
}

func TestCSVImportGroupsInFirstSeenOrder(t *testing.T) {
	src := "pattern,group,enabled\n" +
		"a,Second,\n" +
		"b,First,0\n" +
		"c,Second,yes\n"

	groups, err := Import(strings.NewReader(src), FormatCSV)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "Second", groups[0].Name)
	require.Len(t, groups[0].Rules, 2)
	assert.Equal(t, "a", groups[0].Rules[0].Pattern)
	assert.Equal(t, "c", groups[0].Rules[1].Pattern)
	assert.Equal(t, "g", groups[0].Rules[0].Flags)
	assert.True(t, groups[0].Rules[0].Enabled)

	assert.Equal(t, "First", groups[1].Name)
	assert.False(t, groups[1].Rules[0].Enabled)
}

func TestCSVImportRequiresPatternColumn(t *testing.T) {
	_, err := Import(strings.NewReader("group,flags\nA,g\n"), FormatCSV)
	assert.Error(t, err)
}

func TestParquetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleGroups(), FormatParquet))

	groups, err := Import(bytes.NewReader(buf.Bytes()), FormatParquet)
	require.NoError(t, err)
	assert.Equal(t, shape(sampleGroups()), shape(groups))
}

func TestParquetRejectsGarbage(t *testing.T) {
	_, err := Import(strings.NewReader("definitely not parquet"), FormatParquet)
	assert.Error(t, err)
}

func TestFileHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")

	format, err := ExportFile(path, sampleGroups())
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, format)

	groups, format, err := ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, format)
	assert.Equal(t, sampleGroups(), groups)

	_, _, err = ImportFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := Import(strings.NewReader("[]"), Format("xml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, Export(&bytes.Buffer{}, nil, Format("xml")), ErrUnsupportedFormat)
}
