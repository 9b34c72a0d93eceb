package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [parent...]",
		Short: "Run sync, link, progress, notebooks and notebook-links in order",
		Long: `Run performs a full pass over one tracker session: children are created
first so that the outline passes and notebooks see them. A failing stage is
logged and the remaining stages still run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parseNumbers(args)
			if err != nil {
				return err
			}
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			var failures []string
			fail := func(stage string, err error) {
				a.logger.Error("stage failed", zap.String("stage", stage), zap.Error(err))
				failures = append(failures, stage)
			}

			report, err := runSync(cmd, s, numbers)
			if err != nil {
				return err
			}
			printSyncReport(out, report)
			if report.Failed() {
				failures = append(failures, "sync")
			}

			if res, err := runLink(cmd, s); err != nil {
				fail("link", err)
			} else {
				fmt.Fprintf(out, "link: linked=%d marks_changed=%d changed=%t\n", res.Linked, res.MarksChanged, res.Changed)
			}

			if res, err := runProgress(cmd, s); err != nil {
				fail("progress", err)
			} else {
				fmt.Fprintf(out, "progress: annotated=%d stripped=%d changed=%t\n", res.Annotated, res.Stripped, res.Changed)
			}

			results, err := runNotebooks(cmd, s)
			if err != nil {
				fail("notebooks", err)
			}
			for _, r := range results {
				fmt.Fprintf(out, "notebook #%d %s: %s\n", r.Parent, r.Path, r.Outcome)
			}

			links, err := runNotebookLinks(cmd, s)
			if err != nil {
				fail("notebook-links", err)
			}
			for _, l := range links {
				fmt.Fprintf(out, "notebook link #%d: %s\n", l.Parent, l.Outcome)
			}

			if len(failures) > 0 {
				return sysError(fmt.Errorf("stages with failures: %v", failures))
			}
			return nil
		},
	}
	addSyncFlags(cmd)
	addOutlineFlag(cmd)
	f := cmd.Flags()
	f.Bool("show-zero", false, "annotate parents without children as (0/0 • 0%)")
	f.String("notebook-root", ".", "directory notebook paths are relative to")
	f.Bool("placeholders", false, "add a code cell after each child section")
	f.Int("max-children", 0, "maximum child sections per notebook (0 = no limit)")
	f.Bool("refresh-header", false, "rewrite the header cell even when it matches")
	f.String("section-header", types.DefaultNotebookSection, "parent body section holding notebook links")
	return cmd
}
