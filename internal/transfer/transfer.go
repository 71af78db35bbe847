package transfer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/raaihank/regex-relay/internal/rules"
)

// Import decodes groups in the given format. Every path ends in
// rules.SanitizeAny, so missing fields are defaulted and unknown ones
// dropped.
func Import(r io.Reader, format Format) ([]rules.RuleGroup, error) {
	var (
		items []any
		err   error
	)

	switch format {
	case FormatJSON:
		items, err = decodeJSON(r)
	case FormatYAML:
		items, err = decodeYAML(r)
	case FormatCSV:
		items, err = decodeCSV(r)
	case FormatParquet:
		items, err = decodeParquet(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return rules.SanitizeAny(items), nil
}

// Export encodes groups in the given format
func Export(w io.Writer, groups []rules.RuleGroup, format Format) error {
	if groups == nil {
		groups = []rules.RuleGroup{}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(groups); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return encodeCSV(w, Flatten(groups))
	case FormatParquet:
		return encodeParquet(w, Flatten(groups))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ImportFile reads groups from a file, detecting the format from its name
func ImportFile(path string) ([]rules.RuleGroup, Format, error) {
	format := DetectFormat(path)

	file, err := os.Open(path)
	if err != nil {
		return nil, format, fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()

	groups, err := Import(file, format)
	return groups, format, err
}

// ExportFile writes groups to a file, detecting the format from its name
func ExportFile(path string, groups []rules.RuleGroup) (Format, error) {
	format := DetectFormat(path)

	file, err := os.Create(path)
	if err != nil {
		return format, fmt.Errorf("failed to create export file: %w", err)
	}

	if err := Export(file, groups, format); err != nil {
		file.Close()
		return format, err
	}
	return format, file.Close()
}

// Flatten turns groups into one record per rule, in order
func Flatten(groups []rules.RuleGroup) []RuleRecord {
	var records []RuleRecord
	for _, g := range groups {
		for _, r := range g.Rules {
			records = append(records, RuleRecord{
				Group:       g.Name,
				Pattern:     r.Pattern,
				Replacement: r.Replacement,
				Flags:       r.Flags,
				Enabled:     r.Enabled,
			})
		}
	}
	return records
}

// Unflatten groups records by group name in first-seen order, producing
// the loose form accepted by rules.SanitizeAny
func Unflatten(records []RuleRecord) []any {
	var (
		items []any
		index = make(map[string]int)
	)

	for _, rec := range records {
		i, ok := index[rec.Group]
		if !ok {
			i = len(items)
			index[rec.Group] = i
			items = append(items, map[string]any{
				"name":    rec.Group,
				"enabled": true,
				"rules":   []any{},
			})
		}

		group := items[i].(map[string]any)
		group["rules"] = append(group["rules"].([]any), map[string]any{
			"pattern":     rec.Pattern,
			"replacement": rec.Replacement,
			"flags":       rec.Flags,
			"enabled":     rec.Enabled,
		})
	}

	return items
}

func decodeJSON(r io.Reader) ([]any, error) {
	var root any
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	items, ok := root.([]any)
	if !ok {
		return nil, ErrInvalidRoot
	}
	return items, nil
}

func decodeYAML(r io.Reader) ([]any, error) {
	var root any
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrInvalidRoot
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	items, ok := root.([]any)
	if !ok {
		return nil, ErrInvalidRoot
	}
	return items, nil
}

func decodeCSV(r io.Reader) ([]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["pattern"]; !ok {
		return nil, fmt.Errorf("CSV header has no pattern column: %v", header)
	}

	field := func(row []string, name string) (string, bool) {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	var records []RuleRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}

		rec := RuleRecord{Enabled: true}
		rec.Group, _ = field(row, "group")
		rec.Pattern, _ = field(row, "pattern")
		rec.Replacement, _ = field(row, "replacement")
		rec.Flags, _ = field(row, "flags")
		if v, ok := field(row, "enabled"); ok {
			rec.Enabled = parseEnabled(v)
		}
		records = append(records, rec)
	}

	return Unflatten(records), nil
}

func encodeCSV(w io.Writer, records []RuleRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Group, rec.Pattern, rec.Replacement, rec.Flags, strconv.FormatBool(rec.Enabled)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func decodeParquet(r io.Reader) ([]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet data: %w", err)
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet data: %w", err)
	}

	reader := parquet.NewReader(file)
	defer reader.Close()

	var records []RuleRecord
	for {
		var rec RuleRecord
		err := reader.Read(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record: %w", err)
		}
		records = append(records, rec)
	}

	return Unflatten(records), nil
}

func encodeParquet(w io.Writer, records []RuleRecord) error {
	writer := parquet.NewWriter(w, parquet.SchemaOf(new(RuleRecord)))

	for i := range records {
		if err := writer.Write(&records[i]); err != nil {
			return fmt.Errorf("failed to write Parquet record: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish Parquet data: %w", err)
	}
	return nil
}

// parseEnabled treats only explicit false values as disabled
func parseEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
