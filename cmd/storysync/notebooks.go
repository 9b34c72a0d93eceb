package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storysync/internal/notebook"
	"github.com/mesh-intelligence/storysync/internal/outline"
	"github.com/mesh-intelligence/storysync/internal/syncer"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

func newNotebooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notebooks",
		Short: "Create or merge the notebook of every linked outline node",
		Long: `Notebooks builds a notebook for each outline node that is linked to an
issue and names a notebook path. Existing notebooks are merged: missing
child sections are appended and user cells are never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := runNotebooks(cmd, s)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), notebookJSON(results))
			}
			failed := false
			for _, r := range results {
				line := fmt.Sprintf("#%d %s: %s", r.Parent, r.Path, r.Outcome)
				if r.Err != nil {
					line += " (" + r.Err.Error() + ")"
					failed = true
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if failed {
				return sysError(fmt.Errorf("some notebooks were skipped"))
			}
			return nil
		},
	}
	addOutlineFlag(cmd)
	f := cmd.Flags()
	f.String("notebook-root", ".", "directory notebook paths are relative to")
	f.Bool("overwrite", false, "rebuild existing notebooks from scratch")
	f.Bool("placeholders", false, "add a code cell after each child section")
	f.Int("max-children", 0, "maximum child sections per notebook (0 = no limit)")
	f.Bool("refresh-header", false, "rewrite the header cell even when it matches")
	f.String("section-header", types.DefaultNotebookSection, "parent body section holding notebook links")
	f.IntSlice("only", nil, "only process these parent numbers")
	return cmd
}

func runNotebooks(cmd *cobra.Command, s *session) ([]notebook.Result, error) {
	text, err := readOutline(s.cfg.Outline.File)
	if err != nil {
		return nil, err
	}
	nodes := outline.Parse(text).TaskNodes()
	gen := notebook.NewGenerator(s.tracker, notebook.GeneratorConfig{
		Root:        s.cfg.Notebook.Root,
		MaxChildren: s.cfg.Notebook.MaxChildren,
		DryRun:      s.cfg.DryRun,
		Selected:    s.cfg.Sync.Selected,
		Options: notebook.Options{
			Overwrite:       s.cfg.Notebook.Overwrite,
			Placeholders:    s.cfg.Notebook.Placeholders,
			RefreshHeader:   s.cfg.Notebook.RefreshHeader,
			NotebookSection: s.cfg.Notebook.SectionHeader,
		},
	}, s.logger)
	return gen.Run(cmd.Context(), nodes), nil
}

func notebookJSON(results []notebook.Result) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		m := map[string]any{
			"parent":           r.Parent,
			"path":             r.Path,
			"outcome":          r.Outcome,
			"sections_added":   r.SectionsAdded,
			"ids_added":        r.IDsAdded,
			"header_rewritten": r.HeaderRewritten,
			"repaired":         r.Repaired,
		}
		if r.Err != nil {
			m["error"] = r.Err.Error()
		}
		out = append(out, m)
	}
	return out
}

func newNotebookLinksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notebook-links",
		Short: "Add notebook links to parent issue bodies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := runNotebookLinks(cmd, s)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), results)
			}
			failed := false
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s: %s\n", r.Parent, r.NotebookPath, r.Outcome)
				failed = failed || r.Outcome == syncer.LinkFailed
			}
			if failed {
				return sysError(fmt.Errorf("some notebook links could not be written"))
			}
			return nil
		},
	}
	addOutlineFlag(cmd)
	cmd.Flags().String("section-header", types.DefaultNotebookSection, "parent body section holding notebook links")
	return cmd
}

func runNotebookLinks(cmd *cobra.Command, s *session) ([]syncer.LinkResult, error) {
	text, err := readOutline(s.cfg.Outline.File)
	if err != nil {
		return nil, err
	}
	nodes := outline.Parse(text).TaskNodes()
	return syncer.NotebookLinks(cmd.Context(), s.tracker, nodes, s.cfg.Notebook.SectionHeader, s.logger), nil
}
