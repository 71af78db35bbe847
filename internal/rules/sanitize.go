package rules

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AllowedFlags is the set of flag characters a rule may carry
const AllowedFlags = "gimsuyd"

const (
	defaultGroupName = "Group"
	defaultFlags     = "g"
)

// NewID returns a short random identifier for groups and rules
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewRule returns the placeholder rule used for new and emptied groups
func NewRule() Rule {
	return Rule{ID: NewID(), Flags: defaultFlags, Enabled: true}
}

// NewGroup returns an enabled group holding one placeholder rule
func NewGroup() RuleGroup {
	return RuleGroup{ID: NewID(), Name: defaultGroupName, Enabled: true, Rules: []Rule{NewRule()}}
}

// SanitizeFlags strips characters outside AllowedFlags and removes duplicates,
// keeping first-occurrence order.
func SanitizeFlags(flags string) string {
	var b strings.Builder
	seen := make(map[rune]bool, len(AllowedFlags))
	for _, c := range flags {
		if !strings.ContainsRune(AllowedFlags, c) || seen[c] {
			continue
		}
		seen[c] = true
		b.WriteRune(c)
	}
	return b.String()
}

// Sanitize normalizes typed groups: missing ids are generated, flags are
// cleaned and empty rule lists get a placeholder rule.
func Sanitize(groups []RuleGroup) []RuleGroup {
	out := make([]RuleGroup, 0, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			g.ID = NewID()
		}
		if g.Name == "" {
			g.Name = defaultGroupName
		}
		if len(g.Rules) == 0 {
			g.Rules = []Rule{NewRule()}
		} else {
			g.Rules = append([]Rule(nil), g.Rules...)
			for i := range g.Rules {
				if g.Rules[i].ID == "" {
					g.Rules[i].ID = NewID()
				}
				if g.Rules[i].Flags == "" {
					g.Rules[i].Flags = defaultFlags
				}
				g.Rules[i].Flags = SanitizeFlags(g.Rules[i].Flags)
			}
		}
		out = append(out, g)
	}
	return out
}

// SanitizeAny converts loosely typed decoded data (JSON or YAML) into groups.
// Unknown fields are dropped, missing fields defaulted, and non-object
// entries are treated as empty groups.
func SanitizeAny(items []any) []RuleGroup {
	out := make([]RuleGroup, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		g := RuleGroup{
			ID:      stringOr(m["id"], ""),
			Name:    stringOr(m["name"], defaultGroupName),
			Enabled: notFalse(m["enabled"]),
		}
		if g.ID == "" {
			g.ID = NewID()
		}

		if raw, ok := m["rules"].([]any); ok {
			for _, r := range raw {
				rm := asMap(r)
				rule := Rule{
					ID:          stringOr(rm["id"], ""),
					Pattern:     stringOr(rm["pattern"], ""),
					Replacement: stringOr(rm["replacement"], ""),
					Flags:       SanitizeFlags(stringOr(rm["flags"], defaultFlags)),
					Enabled:     notFalse(rm["enabled"]),
				}
				if rule.ID == "" {
					rule.ID = NewID()
				}
				g.Rules = append(g.Rules, rule)
			}
		}
		if len(g.Rules) == 0 {
			g.Rules = []Rule{NewRule()}
		}
		out = append(out, g)
	}
	return out
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out
	default:
		return map[string]any{}
	}
}

// stringOr mirrors loose string coercion: nil, false, zero and "" fall back to def
func stringOr(v any, def string) string {
	switch s := v.(type) {
	case nil:
		return def
	case string:
		if s == "" {
			return def
		}
		return s
	case bool:
		if !s {
			return def
		}
		return "true"
	case float64:
		if s == 0 {
			return def
		}
		return fmt.Sprint(s)
	case int:
		if s == 0 {
			return def
		}
		return fmt.Sprint(s)
	default:
		return fmt.Sprint(s)
	}
}

func notFalse(v any) bool {
	b, ok := v.(bool)
	return !ok || b
}
