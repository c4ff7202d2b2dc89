package ledgerctl

import (
	"fmt"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/siteledger/internal/platform/grpc"
	"github.com/louisbranch/siteledger/internal/platform/timeouts"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the attendance service gRPC health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := discovery.OrDefaultGRPCAddr(addr, discovery.ServiceAttendance)
			if err := platformgrpc.Probe(cmd.Context(), target, service, timeout, nil); err != nil {
				return fmt.Errorf("attendance is not healthy: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"addr": target, "status": "SERVING"})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "attendance gRPC address (defaults to the service convention)")
	cmd.Flags().StringVar(&service, "service", "", "health service name (empty checks the whole server)")
	cmd.Flags().DurationVar(&timeout, "timeout", timeouts.GRPCDial, "dial and health check timeout")
	return cmd
}
