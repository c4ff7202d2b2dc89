package ledgerctl

import (
	"fmt"
	"os"

	"github.com/louisbranch/siteledger/internal/services/attendance/siteconfig"
	"github.com/spf13/cobra"
)

func newImportSitesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import-sites <file>",
		Short: "Import site configs from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := siteconfig.LoadFile(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			offices := map[int64]struct{}{}
			for _, record := range records {
				if err := rt.store.PutSiteConfig(cmd.Context(), record); err != nil {
					return fmt.Errorf("store site config %s: %w", record.SiteName, err)
				}
				offices[record.OfficeID] = struct{}{}
			}
			invalidated := 0
			for office := range offices {
				removed, err := rt.summaries.InvalidateOffice(cmd.Context(), office)
				if err != nil {
					return fmt.Errorf("invalidate office %d: %w", office, err)
				}
				invalidated += removed
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{
				"imported":    len(records),
				"invalidated": invalidated,
			})
		},
	}
}

func newExportSitesCmd(opts *options) *cobra.Command {
	var (
		office int64
		output string
	)
	cmd := &cobra.Command{
		Use:   "export-sites",
		Short: "Export the site configs of one office as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			records, err := rt.store.ListSiteConfigs(cmd.Context(), office)
			if err != nil {
				return fmt.Errorf("list site configs: %w", err)
			}
			data, err := siteconfig.Encode(records)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&office, "office", 0, "office id (0 is the shared default)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	return cmd
}
