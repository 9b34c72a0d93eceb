package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storysync/internal/syncer"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [parent...]",
		Short: "Create missing child issues for parent stories",
		Long: `Sync fans parent stories out into child issues. Without arguments the
parents are the issues on the configured project board that are not
themselves generated children. Children whose derived title already exists
are skipped, so running sync again writes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parseNumbers(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := runSync(cmd, s, numbers)
			if err != nil {
				return err
			}
			if a.flagJSON {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printSyncReport(cmd.OutOrStdout(), report)
			}
			if report.Failed() {
				return sysError(fmt.Errorf("sync finished with failures"))
			}
			return nil
		},
	}
	addSyncFlags(cmd)
	return cmd
}

func addSyncFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("template", types.DefaultTitleTemplate, "child title template; {parent} and {title} are replaced")
	f.Duration("rate-delay", types.DefaultRateDelay, "minimum delay between tracker writes")
	f.Bool("skip-if-has-children", false, "skip parents that already have children")
	f.IntSlice("only", nil, "only process these parent numbers")
	f.Int("start-at", 0, "skip parents numbered below this")
	f.Int("max-parents", 0, "stop after this many parents (0 = no limit)")
	addDecomposeFlags(cmd)
}

// runSync runs the engine for explicit parents or discovered ones.
func runSync(cmd *cobra.Command, s *session, numbers []int) (*syncer.Report, error) {
	ctx := cmd.Context()
	dec, err := s.decomposer(ctx)
	if err != nil {
		return nil, err
	}
	eng := syncer.NewEngine(s.tracker, dec, syncer.Config{
		TitleTemplate:     s.cfg.Sync.TitleTemplate,
		SkipIfHasChildren: s.cfg.Sync.SkipIfHasChildren,
		MaxParents:        s.cfg.Sync.MaxParents,
		Selected:          s.cfg.Sync.Selected,
		Cache:             s.cache(),
		Regenerate:        s.cfg.Decompose.Regenerate,
		DryRun:            s.cfg.DryRun,
	}, s.logger)
	return eng.Run(ctx, numbers)
}

func printSyncReport(w io.Writer, r *syncer.Report) {
	for _, p := range r.Parents {
		fmt.Fprintf(w, "#%d %s: %s (created=%d existing=%d failed=%d)\n",
			p.Parent, p.Title, p.Phase(),
			p.Count(syncer.ItemCreated), p.Count(syncer.ItemExists), p.Count(syncer.ItemFailed))
		if p.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", p.Error)
		}
	}
	t := r.Totals()
	suffix := ""
	if r.DryRun {
		suffix = " (dry run)"
	}
	fmt.Fprintf(w, "parents=%d created=%d existing=%d failed=%d skipped=%d%s\n",
		len(r.Parents), t[syncer.ItemCreated], t[syncer.ItemExists], t[syncer.ItemFailed], t[syncer.ItemSkipped], suffix)
}
