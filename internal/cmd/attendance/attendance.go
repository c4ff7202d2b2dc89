// Package attendance parses attendance command flags and composes the
// service entrypoint.
package attendance

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/siteledger/internal/platform/cmd"
	"github.com/louisbranch/siteledger/internal/platform/discovery"
	"github.com/louisbranch/siteledger/internal/platform/logging"
	server "github.com/louisbranch/siteledger/internal/services/attendance/app"
)

// Config holds attendance command configuration.
type Config struct {
	HTTPAddr        string        `env:"SITELEDGER_ATTENDANCE_HTTP_ADDR"`
	GRPCAddr        string        `env:"SITELEDGER_ATTENDANCE_GRPC_ADDR"`
	DBPath          string        `env:"SITELEDGER_ATTENDANCE_DB_PATH"          envDefault:"data/attendance.db"`
	Timezone        string        `env:"SITELEDGER_TIMEZONE"                    envDefault:"Asia/Seoul"`
	CacheEnabled    bool          `env:"SITELEDGER_SUMMARY_CACHE"               envDefault:"true"`
	MCPEnabled      bool          `env:"SITELEDGER_MCP_ENABLED"                 envDefault:"true"`
	ShutdownTimeout time.Duration `env:"SITELEDGER_ATTENDANCE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Logging         logging.Config
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = discovery.ListenAddr(discovery.ServiceAttendance, false)
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = discovery.ListenAddr(discovery.ServiceAttendance, true)
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "attendance HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "attendance SQLite database path")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "reference time zone for calendar dates")
	fs.BoolVar(&cfg.CacheEnabled, "summary-cache", cfg.CacheEnabled, "cache daily summaries for past dates")
	fs.BoolVar(&cfg.MCPEnabled, "mcp", cfg.MCPEnabled, "serve MCP tools at /mcp")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level (debug, info, warn, error)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the attendance app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	logger := logging.New(cfg.Logging)
	options := entrypoint.RunOptions{ShutdownTimeout: cfg.ShutdownTimeout, Logger: logger}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceAttendance, options, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:        cfg.HTTPAddr,
			GRPCAddr:        cfg.GRPCAddr,
			DBPath:          cfg.DBPath,
			Timezone:        cfg.Timezone,
			CacheEnabled:    cfg.CacheEnabled,
			MCPEnabled:      cfg.MCPEnabled,
			Logger:          logger,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}); err != nil {
			return fmt.Errorf("serve attendance: %w", err)
		}
		return nil
	})
}
