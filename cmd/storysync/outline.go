package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storysync/internal/outline"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

func addOutlineFlag(cmd *cobra.Command) {
	cmd.Flags().String("outline", types.DefaultOutlineFile, "outline file")
}

func newLinkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link outline nodes to issues by exact title",
		Long: `Link resolves plain outline node titles to tracker issues by exact title,
sets each linked node's checkbox from the issue state and regenerates the
diagram click directives. The outline is only rewritten when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := runLink(cmd, s)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"linked":             res.Linked,
					"marks_changed":      res.MarksChanged,
					"directives_changed": res.DirectivesChanged,
					"unresolved":         res.Unresolved,
					"changed":            res.Changed,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked=%d marks_changed=%d unresolved=%d changed=%t\n",
				res.Linked, res.MarksChanged, len(res.Unresolved), res.Changed)
			return nil
		},
	}
	addOutlineFlag(cmd)
	return cmd
}

func runLink(cmd *cobra.Command, s *session) (outline.LinkResult, error) {
	text, err := readOutline(s.cfg.Outline.File)
	if err != nil {
		return outline.LinkResult{}, err
	}
	issues, err := s.liveIssues(cmd.Context())
	if err != nil {
		return outline.LinkResult{}, err
	}
	res := outline.NewLinker(s.logger).Link(text, issues)
	return res, finishOutline(cmd.OutOrStdout(), s, res.Text, res.Changed, linkPreviewLines)
}

func newProgressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Annotate linked outline nodes with child completion",
		Long: `Progress counts each linked parent's checklist children that are closed
and writes "(closed/total • percent%)" after the node title, replacing any
earlier annotation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := runProgress(cmd, s)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"annotated": res.Annotated,
					"stripped":  res.Stripped,
					"changed":   res.Changed,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "annotated=%d stripped=%d changed=%t\n", res.Annotated, res.Stripped, res.Changed)
			return nil
		},
	}
	addOutlineFlag(cmd)
	cmd.Flags().Bool("show-zero", false, "annotate parents without children as (0/0 • 0%)")
	return cmd
}

func runProgress(cmd *cobra.Command, s *session) (outline.ProgressResult, error) {
	text, err := readOutline(s.cfg.Outline.File)
	if err != nil {
		return outline.ProgressResult{}, err
	}
	issues, err := s.liveIssues(cmd.Context())
	if err != nil {
		return outline.ProgressResult{}, err
	}
	lookup := outline.MapLookup(types.IndexByNumber(issues))
	res := outline.NewAnnotator(s.cfg.Outline.ShowZero, s.logger).Annotate(text, lookup)
	return res, finishOutline(cmd.OutOrStdout(), s, res.Text, res.Changed, progressPreviewLines)
}
