// Package timeouts defines shared timeout constants used across siteledger
// processes so the HTTP, MCP and health surfaces agree on their limits.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps the time a single API request may spend in storage and
// derivation work.
const Request = 15 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// ToolCall caps one MCP tool invocation.
const ToolCall = 10 * time.Second

// GRPCDial caps dialing a gRPC endpoint and waiting for its health check.
const GRPCDial = 2 * time.Second
