package ledgerctl

import (
	"fmt"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/spf13/cobra"
)

func newInvalidateCmd(opts *options) *cobra.Command {
	var (
		account int64
		office  int64
		date    string
	)
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached daily summaries for an account or an office",
		RunE: func(cmd *cobra.Command, _ []string) error {
			byOffice := cmd.Flags().Changed("office")
			if (account > 0) == byOffice {
				return fmt.Errorf("exactly one of --account or --office is required")
			}
			day, err := parseOptionalDate("date", date)
			if err != nil {
				return err
			}
			if byOffice && !day.IsZero() {
				return fmt.Errorf("--date applies to --account only")
			}
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			var removed int
			if byOffice {
				removed, err = rt.summaries.InvalidateOffice(cmd.Context(), office)
			} else {
				var at *civil.Date
				if !day.IsZero() {
					at = &day
				}
				removed, err = rt.summaries.Invalidate(cmd.Context(), account, at)
			}
			if err != nil {
				return fmt.Errorf("invalidate: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"removed": removed})
		},
	}
	cmd.Flags().Int64Var(&account, "account", 0, "account whose summaries are dropped")
	cmd.Flags().Int64Var(&office, "office", 0, "office whose accounts are dropped (0 means every account)")
	cmd.Flags().StringVar(&date, "date", "", "only drop summaries affected by this date (YYYY-MM-DD)")
	return cmd
}
