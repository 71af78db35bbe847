package rules

// Rule is one pattern -> replacement transformation
type Rule struct {
	ID          string `json:"id" yaml:"id"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
	Flags       string `json:"flags" yaml:"flags"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

// RuleGroup is a named, independently enabled, ordered collection of rules.
// A persisted group always holds at least one rule.
type RuleGroup struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// RunRule is the wire form of a rule inside a run request
type RunRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Flags       string `json:"flags"`
	Enabled     bool   `json:"enabled"`
}

// RunGroup is one entry of a run request
type RunGroup struct {
	Name  string    `json:"name"`
	Rules []RunRule `json:"rules"`
}

// Runnable reports whether the rule takes part in a run
func (r Rule) Runnable() bool {
	return r.Enabled && r.Pattern != ""
}

// ToRun converts a rule to its wire form
func (r Rule) ToRun() RunRule {
	return RunRule{
		Pattern:     r.Pattern,
		Replacement: r.Replacement,
		Flags:       r.Flags,
		Enabled:     r.Enabled,
	}
}

// RunRequest builds the run entry for the group, keeping only enabled
// rules with a pattern. The result may hold zero rules.
func (g RuleGroup) RunRequest() RunGroup {
	run := RunGroup{Name: g.Name, Rules: make([]RunRule, 0, len(g.Rules))}
	for _, r := range g.Rules {
		if r.Runnable() {
			run.Rules = append(run.Rules, r.ToRun())
		}
	}
	return run
}

// Clone returns a deep copy of the group
func (g RuleGroup) Clone() RuleGroup {
	c := g
	c.Rules = append([]Rule(nil), g.Rules...)
	return c
}
