package engine

import (
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/surface"
)

const errorLabel = "invalid regex"

// Engine applies rule groups to editable surfaces. It keeps no state
// between runs.
type Engine struct {
	logger *logger.Logger
}

// New creates a rule engine
func New(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{logger: log}
}

// Run locates the surfaces of a page and applies groups to them
func (e *Engine) Run(groups []rules.RunGroup, locator surface.Locator) *RunResult {
	return e.Apply(groups, locator.Locate())
}

// Apply applies every rule of every group, in order, to every surface.
// Value fields are notified each time a rule changes them; containers are
// notified once after the whole run if any rule changed them.
func (e *Engine) Apply(groups []rules.RunGroup, surfaces []surface.Surface) *RunResult {
	tallies := make([]GroupTally, 0, len(groups))

	var changed []surface.Container
	seen := make(map[surface.Container]bool)

	for _, g := range groups {
		gt := GroupTally{Name: g.Name, Rules: make([]RuleTally, 0, len(g.Rules))}

		for _, r := range g.Rules {
			rt := RuleTally{Pattern: r.Pattern, Flags: r.Flags}

			// An empty pattern would match between every character
			if r.Pattern == "" {
				gt.Rules = append(gt.Rules, rt)
				continue
			}

			pattern, err := rules.Compile(r.Pattern, r.Flags)
			if err != nil {
				rt.Err = err
				gt.Rules = append(gt.Rules, rt)
				e.logger.Debug("Rule skipped",
					zap.String("group", g.Name),
					zap.String("pattern", r.Pattern),
					zap.String("flags", r.Flags),
					zap.Error(err),
				)
				continue
			}

			count := func() { rt.Count++ }
			for _, s := range surfaces {
				switch s.Kind {
				case surface.KindValueField:
					surface.ReplaceValue(s.Field, pattern, r.Replacement, count)
				case surface.KindContainer:
					if surface.RewriteLeaves(s.Container, pattern, r.Replacement, count) && !seen[s.Container] {
						seen[s.Container] = true
						changed = append(changed, s.Container)
					}
				}
			}

			gt.Rules = append(gt.Rules, rt)
		}

		tallies = append(tallies, gt)
	}

	for _, c := range changed {
		c.NotifyChanged()
	}

	result := Aggregate(tallies)
	e.logResult(result, len(surfaces), len(changed))
	return result
}

func (e *Engine) logResult(result *RunResult, surfaces, containers int) {
	e.logger.Info("Run applied",
		zap.Int("total", result.Total),
		zap.Int("groups", len(result.GroupResults)),
		zap.Int("surfaces", surfaces),
		zap.Int("containers_changed", containers),
	)

	for _, gr := range result.GroupResults {
		for _, rr := range gr.RuleResults {
			e.logger.Debug("Rule applied",
				zap.String("group", gr.Name),
				zap.String("pattern", rr.Pattern),
				zap.String("flags", rr.Flags),
				zap.Int("replacements", rr.Replacements),
				zap.String("error", rr.Error),
			)
		}
	}
}
