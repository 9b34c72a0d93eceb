package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

func newDecomposeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompose <parent>",
		Short: "Print the task descriptors for a parent story",
		Long: `Decompose asks the model to split a parent story into tasks and prints
them as a JSON array. Nothing is written to the tracker. With the cache
enabled, cached descriptors are printed instead unless --regenerate is set,
and a fresh answer is stored.`,
		Args: cobra.ExactArgs(1),
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

			parent, err := s.tracker.GetIssue(ctx, nums[0])
			if err != nil {
				return err
			}

			cache := s.cache()
			if cache != nil && !s.cfg.Decompose.Regenerate {
				if descs, ok := cache.Load(parent.Number); ok && len(descs) > 0 {
					a.logger.Info("loaded cached tasks", zap.Int("parent", parent.Number), zap.Int("count", len(descs)))
					return printJSON(cmd.OutOrStdout(), descs)
				}
			}

			if err := s.cfg.ValidateDecompose(); err != nil {
				return err
			}
			dec, err := s.decomposer(ctx)
			if err != nil {
				return err
			}
			descs, err := dec.Decompose(ctx, parent.Title, parent.Body)
			if err != nil {
				return err
			}
			if cache != nil && len(descs) > 0 {
				if err := cache.Store(parent.Number, descs); err != nil {
					a.logger.Warn("failed to write task cache", zap.Int("parent", parent.Number), zap.Error(err))
				}
			}
			if descs == nil {
				descs = []types.ChildDescriptor{}
			}
			return printJSON(cmd.OutOrStdout(), descs)
		},
	}
	addDecomposeFlags(cmd)
	return cmd
}

func addDecomposeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("cache", false, "use the descriptor cache")
	f.String("cache-dir", "", "descriptor cache directory (default: $(CWD)/.story_decomp_cache)")
	f.Bool("regenerate", false, "ignore cached descriptors and ask the model again")
	f.Int("max-tasks", types.DefaultMaxTasks, "maximum descriptors per parent")
	f.String("model", types.DefaultModel, "model name")
}
