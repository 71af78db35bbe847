package engine

import (
	"fmt"
	"strings"
)

// RuleResult is the outcome of one rule
type RuleResult struct {
	Pattern      string `json:"pattern"`
	Flags        string `json:"flags"`
	Replacements int    `json:"replacements"`
	Error        string `json:"error,omitempty"`
}

// GroupResult is the outcome of one group, rules in request order
type GroupResult struct {
	Name         string       `json:"name"`
	Replacements int          `json:"replacements"`
	RuleResults  []RuleResult `json:"ruleResults"`
}

// RunResult is the outcome of one run, groups in request order
type RunResult struct {
	Total        int           `json:"total"`
	GroupResults []GroupResult `json:"groupResults"`
}

// RuleTally holds the counters collected for one rule during a run
type RuleTally struct {
	Pattern string
	Flags   string
	Count   int
	Err     error
}

// GroupTally holds the counters collected for one group during a run
type GroupTally struct {
	Name  string
	Rules []RuleTally
}

// Aggregate builds a RunResult from collected tallies. Every rule keeps an
// entry, including ones that matched nothing or failed to compile.
func Aggregate(groups []GroupTally) *RunResult {
	result := &RunResult{GroupResults: make([]GroupResult, 0, len(groups))}

	for _, g := range groups {
		gr := GroupResult{Name: g.Name, RuleResults: make([]RuleResult, 0, len(g.Rules))}
		for _, r := range g.Rules {
			rr := RuleResult{Pattern: r.Pattern, Flags: r.Flags, Replacements: r.Count}
			if r.Err != nil {
				rr.Replacements = 0
				rr.Error = errorLabel
			}
			gr.Replacements += rr.Replacements
			gr.RuleResults = append(gr.RuleResults, rr)
		}
		result.Total += gr.Replacements
		result.GroupResults = append(result.GroupResults, gr)
	}

	return result
}

// Summary renders the result as the human readable run report
func (r *RunResult) Summary() string {
	if r == nil {
		return "No response (content script not injected?)"
	}

	lines := []string{"Replacements:"}
	for _, gr := range r.GroupResults {
		lines = append(lines, fmt.Sprintf("- %s: %d replacement(s)", gr.Name, gr.Replacements))
		for _, rr := range gr.RuleResults {
			line := fmt.Sprintf("   · /%s/%s -> %d", rr.Pattern, rr.Flags, rr.Replacements)
			if rr.Error != "" {
				line += " (" + rr.Error + ")"
			}
			lines = append(lines, line)
		}
	}
	lines = append(lines, fmt.Sprintf("Total: %d", r.Total))

	return strings.Join(lines, "\n")
}

// RuleSummary renders the single-rule report used when one rule is run alone
func (r *RunResult) RuleSummary(pattern, flags string) string {
	if r == nil {
		return "No response."
	}

	count := 0
	if len(r.GroupResults) > 0 && len(r.GroupResults[0].RuleResults) > 0 {
		rr := r.GroupResults[0].RuleResults[0]
		if rr.Pattern != "" {
			pattern = rr.Pattern
		}
		if rr.Flags != "" {
			flags = rr.Flags
		}
		count = rr.Replacements
	}

	return fmt.Sprintf("/%s/%s -> %d", pattern, flags, count)
}
