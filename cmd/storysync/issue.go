package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

func newIssueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Inspect and edit tracker issues",
		Long: `Issue gives direct access to the configured tracker. It is mostly useful
with the local backend, where it is the only way to author stories and to
close or reopen children.`,
	}
	cmd.AddCommand(newIssueCreateCmd(a))
	cmd.AddCommand(newIssueListCmd(a))
	cmd.AddCommand(newIssueShowCmd(a))
	cmd.AddCommand(newIssueStateCmd(a, "close", types.StateClosed))
	cmd.AddCommand(newIssueStateCmd(a, "reopen", types.StateOpen))
	return cmd
}

func newIssueCreateCmd(a *app) *cobra.Command {
	var title, body string
	var group bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := s.tracker.CreateIssue(ctx, title, body)
			if err != nil {
				return err
			}
			if group {
				groupID, err := s.tracker.GroupID(ctx)
				if err != nil {
					return err
				}
				if err := s.tracker.AddToGroup(ctx, groupID, created.StableID); err != nil {
					return err
				}
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n", created.Number, created.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "issue title (required)")
	cmd.Flags().StringVar(&body, "body", "", "issue body")
	cmd.Flags().BoolVar(&group, "group", false, "add the issue to the project board")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newIssueListCmd(a *app) *cobra.Command {
	var state string
	var group bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch state {
			case types.FilterAll, types.FilterOpen, types.FilterClosed:
			default:
				return fmt.Errorf("%w: %q", types.ErrInvalidState, state)
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			issues, err := s.tracker.ListIssues(ctx, types.IssueFilter{State: state, InGroup: group})
			if err != nil {
				return err
			}
			if a.flagJSON {
				if issues == nil {
					issues = []types.TrackerIssue{}
				}
				return printJSON(cmd.OutOrStdout(), issues)
			}
			printIssueTable(cmd.OutOrStdout(), issues)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", types.FilterOpen, "open, closed or all")
	cmd.Flags().BoolVar(&group, "group", false, "only issues on the project board")
	return cmd
}

func newIssueShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number>",
		Short: "Show one issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseNumbers(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			issue, err := s.tracker.GetIssue(ctx, nums[0])
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), issue)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "#%d %s [%s]\n%s\n", issue.Number, issue.Title, issue.State, issue.URL)
			if issue.Body != "" {
				fmt.Fprintf(w, "\n%s\n", strings.TrimRight(issue.Body, "\n"))
			}
			return nil
		},
	}
}

// newIssueStateCmd builds close and reopen. Only the local backend supports
// state changes; on GitHub they are made in the web UI.
func newIssueStateCmd(a *app, use, state string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <number>...",
		Short: fmt.Sprintf("Mark local issues %s", state),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseNumbers(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.local == nil {
				return fmt.Errorf("%w: %s is only supported by the local backend", types.ErrFatalConfig, use)
			}
			for _, n := range nums {
				if _, err := s.tracker.GetIssue(ctx, n); err != nil {
					return err
				}
				if s.cfg.DryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "dry run: would mark #%d %s\n", n, state)
					continue
				}
				if err := s.local.SetState(ctx, n, state); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n", n, state)
			}
			return nil
		},
	}
}

func printIssueTable(w io.Writer, issues []types.TrackerIssue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "no issues")
		return
	}
	for _, is := range issues {
		fmt.Fprintf(w, "#%-5d %-6s %s\n", is.Number, is.State, is.Title)
	}
}
