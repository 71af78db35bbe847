package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raaihank/regex-relay/internal/dom"
	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/transfer"
)

var errNoGroups = errors.New("no enabled group with runnable rules")

func newApplyCmd(opts *rootOpts) *cobra.Command {
	var (
		pagePath  string
		outPath   string
		rulesPath string
		groupName string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply rule groups to an HTML page offline",
		Long: `Apply runs rule groups against the editable fields of an HTML page
without a server. Rules come from --rules (json, yaml, csv or parquet) or,
when omitted, from the configured storage. The rewritten page goes to --out,
or to stdout when --out is not set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var groups []rules.RuleGroup
			if rulesPath != "" {
				imported, _, err := transfer.ImportFile(rulesPath)
				if err != nil {
					return err
				}
				groups = imported
			} else {
				sess, _, closeFn, err := opts.openSession(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()
				groups = sess.Export()
			}

			run, err := selectGroups(groups, groupName)
			if err != nil {
				return err
			}

			doc, err := dom.Load(pagePath)
			if err != nil {
				return err
			}

			result := engine.New(opts.logger.WithComponent("engine")).Run(run, doc)

			if outPath != "" {
				if err := doc.Save(outPath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
				return nil
			}

			if err := doc.Render(cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), result.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "HTML page to rewrite")
	cmd.Flags().StringVar(&outPath, "out", "", "write the rewritten page here instead of stdout")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules file (json, yaml, csv or parquet)")
	cmd.Flags().StringVar(&groupName, "group", "", "run only the group with this name or id")
	cmd.MarkFlagRequired("page")

	return cmd
}

// selectGroups builds the run request. A named group must exist and be
// enabled; otherwise every enabled group with runnable rules takes part.
func selectGroups(groups []rules.RuleGroup, name string) ([]rules.RunGroup, error) {
	if name != "" {
		for _, g := range groups {
			if g.Name != name && g.ID != name {
				continue
			}
			if !g.Enabled {
				return nil, fmt.Errorf("group %q is disabled", name)
			}
			run := g.RunRequest()
			if len(run.Rules) == 0 {
				return nil, fmt.Errorf("group %q has no enabled rules with patterns", name)
			}
			return []rules.RunGroup{run}, nil
		}
		return nil, fmt.Errorf("group %q not found", name)
	}

	var out []rules.RunGroup
	for _, g := range groups {
		if !g.Enabled {
			continue
		}
		if run := g.RunRequest(); len(run.Rules) > 0 {
			out = append(out, run)
		}
	}
	if len(out) == 0 {
		return nil, errNoGroups
	}
	return out, nil
}

// writeOutput writes data to path, or to w when path is empty
func writeOutput(w io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(w)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
