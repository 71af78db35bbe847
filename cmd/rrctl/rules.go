package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/session"
	"github.com/raaihank/regex-relay/internal/store"
	"github.com/raaihank/regex-relay/internal/transfer"
)

func newImportCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the stored rule groups with the contents of FILE",
		Long: `Import reads rule groups from a json, yaml, csv or parquet file, chosen by
extension, and replaces every stored group with them. Imported data is
sanitized: unknown fields are dropped, missing ones defaulted and invalid
flag characters stripped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, format, err := transfer.ImportFile(args[0])
			if err != nil {
				return err
			}

			sess, _, closeFn, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := sess.Import(cmd.Context(), groups); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d group(s) from %s (%s)\n", len(groups), args[0], format)
			return nil
		},
	}
}

func newExportCmd(opts *rootOpts) *cobra.Command {
	var (
		formatName string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored rule groups to stdout or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			format := transfer.DetectFormat(outPath)
			if formatName != "" || outPath == "" {
				f, err := transfer.ParseFormat(formatName)
				if err != nil {
					return err
				}
				format = f
			}

			sess, _, closeFn, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			groups := sess.Export()
			return writeOutput(cmd.OutOrStdout(), outPath, func(w io.Writer) error {
				return transfer.Export(w, groups, format)
			})
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "", "json, yaml, csv or parquet (defaults to the --out extension, then json)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (defaults to stdout)")

	return cmd
}

func newSlotCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage hotkey slot assignments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "assign GROUP SLOT",
		Short: "Bind a group, by name or id, to hotkey slot 1-10 (0 clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid slot %q: %w", args[1], err)
			}

			sess, _, closeFn, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			g, err := findGroup(sess.Groups(), args[0])
			if err != nil {
				return err
			}
			if err := sess.AssignSlot(cmd.Context(), g.ID, slot); err != nil {
				return err
			}

			if slot == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared hotkey slot of %q\n", g.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Bound %q to run_group_slot_%d\n", g.Name, slot)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the group bound to each hotkey slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, closeFn, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			names := make(map[string]string)
			for _, g := range sess.Groups() {
				names[g.ID] = g.Name
			}

			slots := sess.Slots()
			for slot := store.MinSlot; slot <= store.MaxSlot; slot++ {
				name := "-"
				if id, ok := slots[slot]; ok {
					name = names[id]
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", slot, name)
			}
			return nil
		},
	})

	return cmd
}

// findGroup matches a group by id first, then by name
func findGroup(groups []rules.RuleGroup, ref string) (rules.RuleGroup, error) {
	for _, g := range groups {
		if g.ID == ref {
			return g, nil
		}
	}
	for _, g := range groups {
		if g.Name == ref {
			return g, nil
		}
	}
	return rules.RuleGroup{}, fmt.Errorf("%w: %s", session.ErrGroupNotFound, ref)
}
