// Package ledgerctl implements the operator CLI for attendance maintenance.
package ledgerctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	entrypoint "github.com/louisbranch/siteledger/internal/platform/cmd"
	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/platform/logging"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage/sqlite"
	"github.com/louisbranch/siteledger/internal/services/attendance/summary"
	"github.com/spf13/cobra"
)

// Config holds environment defaults for the CLI.
type Config struct {
	DBPath   string `env:"SITELEDGER_ATTENDANCE_DB_PATH" envDefault:"data/attendance.db"`
	Timezone string `env:"SITELEDGER_TIMEZONE"           envDefault:"Asia/Seoul"`
	LogLevel string `env:"SITELEDGER_LOG_LEVEL"          envDefault:"warn"`
}

type options struct {
	dbPath   string
	timezone string
	logLevel string
}

// deps bundles what a subcommand needs; close releases the store.
type deps struct {
	store     *sqlite.Store
	engine    *autoattend.Engine
	summaries *summary.Service
	logger    *slog.Logger
}

func (r *deps) close() {
	if err := r.store.Close(); err != nil {
		r.logger.Warn("close attendance store", "error", err)
	}
}

// NewRootCommand builds the ledgerctl command tree with defaults from cfg.
func NewRootCommand(cfg Config) *cobra.Command {
	opts := &options{dbPath: cfg.DBPath, timezone: cfg.Timezone, logLevel: cfg.LogLevel}
	root := &cobra.Command{
		Use:           entrypoint.ServiceLedgerCtl,
		Short:         "Attendance ledger maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db-path", opts.dbPath, "attendance SQLite database path")
	root.PersistentFlags().StringVar(&opts.timezone, "timezone", opts.timezone, "reference time zone for calendar dates")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newRebuildCmd(opts),
		newPurgeCmd(opts),
		newInvalidateCmd(opts),
		newStatsCmd(opts),
		newImportSitesCmd(opts),
		newExportSitesCmd(opts),
		newHealthCmd(),
	)
	return root
}

// Execute parses the environment and runs the CLI with args.
func Execute(ctx context.Context, args []string) error {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return err
	}
	root := NewRootCommand(cfg)
	root.SetArgs(args)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedgerCtl, func(ctx context.Context) error {
		return root.ExecuteContext(ctx)
	})
}

func (o *options) open(cmd *cobra.Command) (*deps, error) {
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), logging.Config{Level: o.logLevel})
	civil.SetZone(civil.LoadZone(o.timezone))

	path := strings.TrimSpace(o.dbPath)
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attendance sqlite store: %w", err)
	}
	return &deps{
		store:     store,
		engine:    autoattend.NewEngine(store, autoattend.WithLogger(logger)),
		summaries: summary.NewService(store, summary.WithLogger(logger)),
		logger:    logger,
	}, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func parseOptionalDate(flag, value string) (civil.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return civil.Date{}, nil
	}
	date, err := civil.Parse(value)
	if err != nil {
		return civil.Date{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return date, nil
}
