package ledgerctl

import (
	"fmt"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/spf13/cobra"
)

func newRebuildCmd(opts *options) *cobra.Command {
	var (
		account  int64
		from, to string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Replay mirrored ledger records and add missing attendance entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseOptionalDate("from", from)
			if err != nil {
				return err
			}
			end, err := parseOptionalDate("to", to)
			if err != nil {
				return err
			}
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.engine.Rebuild(cmd.Context(), autoattend.RebuildInput{
				AccountID: account,
				Within:    civil.Range{Start: start, End: end},
				DryRun:    dryRun,
			})
			if err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}
			if !dryRun && result.Added > 0 {
				if _, err := rt.summaries.Invalidate(cmd.Context(), account, nil); err != nil {
					return fmt.Errorf("invalidate summaries: %w", err)
				}
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int64Var(&account, "account", 0, "account id (required)")
	cmd.Flags().StringVar(&from, "from", "", "first record date to replay (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last record date to replay (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count missing entries without writing")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newPurgeCmd(opts *options) *cobra.Command {
	var (
		target autoattend.Target
		reason string
		actor  string
	)
	cmd := &cobra.Command{
		Use:   "purge-logs",
		Short: "Delete the whole attendance log of one identity on one site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			removed, err := rt.engine.Purge(cmd.Context(), autoattend.PurgeInput{
				Target: target,
				Reason: reason,
				Actor:  actor,
			})
			if err != nil {
				return fmt.Errorf("purge logs: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"removed": removed})
		},
	}
	targetFlags(cmd, &target)
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	cmd.Flags().StringVar(&actor, "actor", "ledgerctl", "operator recorded in the audit log")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var target autoattend.Target
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the attendance streak and monthly totals of one identity on one site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			stats, err := rt.engine.Stats(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
	targetFlags(cmd, &target)
	return cmd
}

func targetFlags(cmd *cobra.Command, target *autoattend.Target) {
	cmd.Flags().Int64Var(&target.AccountID, "account", 0, "account id (required)")
	cmd.Flags().StringVar(&target.Site, "site", "", "site name (required)")
	cmd.Flags().StringVar(&target.Identity, "identity", "", "identity name (required)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("identity")
}
