package transfer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidRoot is returned when an import document is not a list of groups
	ErrInvalidRoot = errors.New("Invalid JSON root (expected array)")
	// ErrUnsupportedFormat is returned for unknown format names
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Format represents a supported import/export encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// RuleRecord is one rule flattened with its group name, as stored in
// tabular formats
type RuleRecord struct {
	Group       string `csv:"group" parquet:"group" json:"group"`
	Pattern     string `csv:"pattern" parquet:"pattern" json:"pattern"`
	Replacement string `csv:"replacement" parquet:"replacement" json:"replacement"`
	Flags       string `csv:"flags" parquet:"flags" json:"flags"`
	Enabled     bool   `csv:"enabled" parquet:"enabled" json:"enabled"`
}

var csvHeader = []string{"group", "pattern", "replacement", "flags", "enabled"}

// DetectFormat detects the format from a file extension, defaulting to JSON
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	default:
		return FormatJSON
	}
}

// ParseFormat validates a format name. An empty name selects JSON.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatJSON, nil
	case "yml":
		return FormatYAML, nil
	case FormatJSON, FormatYAML, FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ContentType returns the MIME type used when serving an export
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/json"
	}
}

// Filename returns the default export file name for the format
func (f Format) Filename() string {
	return "find-replace-rules." + string(f)
}
