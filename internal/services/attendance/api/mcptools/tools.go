// Package mcptools exposes read-only attendance and summary queries as MCP
// tools.
package mcptools

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/platform/id"
	"github.com/louisbranch/siteledger/internal/platform/timeouts"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/summary"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "siteledger-attendance"
	serverVersion = "v1"

	// InvocationIDKey is the result metadata key carrying the per-call id.
	InvocationIDKey = "x-invocation-id"
)

// resultWithInvocation tags a tool result with a fresh invocation id.
func resultWithInvocation() *mcp.CallToolResult {
	result := &mcp.CallToolResult{Meta: map[string]any{}}
	if invocationID, err := id.NewID(); err == nil {
		result.Meta[InvocationIDKey] = invocationID
	}
	return result
}

// NewServer builds an MCP server with the attendance tools registered.
func NewServer(engine *autoattend.Engine, summaries *summary.Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, DailySummaryTool(), DailySummaryHandler(summaries))
	mcp.AddTool(server, AttendanceStatsTool(), AttendanceStatsHandler(engine))
	mcp.AddTool(server, AttendanceLogsTool(), AttendanceLogsHandler(engine))
	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

// DailySummaryInput represents the MCP tool input for a daily summary.
type DailySummaryInput struct {
	AccountID int64  `json:"account_id" jsonschema:"account identifier"`
	Date      string `json:"date" jsonschema:"summary date (YYYY-MM-DD)"`
	OfficeID  *int64 `json:"office_id,omitempty" jsonschema:"optional office used for site config resolution"`
}

// PaybackView is one payback entry with amounts rendered in 만 units.
type PaybackView struct {
	Identity      string            `json:"identity"`
	Site          string            `json:"site"`
	PaybackType   string            `json:"payback_type"`
	Amounts       map[string]string `json:"payback_amounts" jsonschema:"payback amount per weekday label or same-day key"`
	WeeklyNet     string            `json:"weekly_net"`
	TodayNet      string            `json:"today_net"`
	WeekStartDate string            `json:"week_start_date"`
	Cleared       bool              `json:"cleared"`
}

// BannerView is one settlement banner.
type BannerView struct {
	Identity     string `json:"identity"`
	Site         string `json:"site"`
	StartDate    string `json:"start_date"`
	Days         int    `json:"days"`
	TotalTarget  string `json:"total_target"`
	TotalCharge  string `json:"total_charge"`
	PointDisplay string `json:"point_display"`
}

// DailySummaryResult represents the MCP tool output for a daily summary.
type DailySummaryResult struct {
	SummaryDate string        `json:"summary_date"`
	FromCache   bool          `json:"from_cache"`
	IsPartial   bool          `json:"is_partial" jsonschema:"true when the date is today or later"`
	Paybacks    []PaybackView `json:"paybacks"`
	Settlements []BannerView  `json:"settlement_banners"`
}

// DailySummaryTool defines the MCP tool schema for daily summaries.
func DailySummaryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "daily_summary",
		Description: "Returns payback eligibility and settlement banners for one account on one date.",
	}
}

// DailySummaryHandler executes a daily summary request.
func DailySummaryHandler(summaries *summary.Service) mcp.ToolHandlerFor[DailySummaryInput, DailySummaryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DailySummaryInput) (*mcp.CallToolResult, DailySummaryResult, error) {
		ctx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		date, err := civil.Parse(input.Date)
		if err != nil {
			return nil, DailySummaryResult{}, fmt.Errorf("invalid date %q", input.Date)
		}
		result, err := summaries.GetDaily(ctx, summary.Request{
			AccountID: input.AccountID,
			Date:      date,
			OfficeID:  input.OfficeID,
		})
		if err != nil {
			return nil, DailySummaryResult{}, fmt.Errorf("daily summary failed: %w", err)
		}
		out := DailySummaryResult{
			SummaryDate: result.Date.String(),
			FromCache:   result.FromCache,
			IsPartial:   result.IsPartial,
			Paybacks:    make([]PaybackView, 0, len(result.Paybacks)),
			Settlements: make([]BannerView, 0, len(result.Settlements)),
		}
		for _, entry := range result.Paybacks {
			out.Paybacks = append(out.Paybacks, paybackView(entry))
		}
		for _, banner := range result.Settlements {
			out.Settlements = append(out.Settlements, BannerView{
				Identity:     banner.Identity,
				Site:         banner.Site,
				StartDate:    banner.StartDate.String(),
				Days:         banner.Days,
				TotalTarget:  banner.TotalTarget.String(),
				TotalCharge:  banner.TotalCharge.String(),
				PointDisplay: banner.PointDisplay,
			})
		}
		return resultWithInvocation(), out, nil
	}
}

func paybackView(entry domain.PaybackEntry) PaybackView {
	amounts := make(map[string]string, len(entry.Amounts))
	for key, amount := range entry.Amounts {
		amounts[key] = amount.String()
	}
	return PaybackView{
		Identity:      entry.Identity,
		Site:          entry.Site,
		PaybackType:   entry.PaybackType,
		Amounts:       amounts,
		WeeklyNet:     entry.WeeklyNet.String(),
		TodayNet:      entry.TodayNet.String(),
		WeekStartDate: entry.WeekStartDate.String(),
		Cleared:       entry.Cleared,
	}
}

// AttendanceStatsInput represents the MCP tool input for attendance stats.
type AttendanceStatsInput struct {
	AccountID int64  `json:"account_id" jsonschema:"account identifier"`
	Site      string `json:"site" jsonschema:"site name"`
	Identity  string `json:"identity" jsonschema:"identity name"`
}

// AttendanceStatsResult represents the MCP tool output for attendance stats.
type AttendanceStatsResult struct {
	ConsecutiveDays    int      `json:"consecutive_days"`
	TotalDaysThisMonth int      `json:"total_days_this_month"`
	LastAttendanceDate string   `json:"last_attendance_date,omitempty"`
	RecentDates        []string `json:"recent_dates" jsonschema:"up to seven most recent dates this month, newest first"`
}

// AttendanceStatsTool defines the MCP tool schema for attendance stats.
func AttendanceStatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "attendance_stats",
		Description: "Returns the consecutive-day streak and monthly totals for one identity on one site.",
	}
}

// AttendanceStatsHandler executes an attendance stats request.
func AttendanceStatsHandler(engine *autoattend.Engine) mcp.ToolHandlerFor[AttendanceStatsInput, AttendanceStatsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AttendanceStatsInput) (*mcp.CallToolResult, AttendanceStatsResult, error) {
		ctx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		stats, err := engine.Stats(ctx, autoattend.Target{AccountID: input.AccountID, Site: input.Site, Identity: input.Identity})
		if err != nil {
			return nil, AttendanceStatsResult{}, fmt.Errorf("attendance stats failed: %w", err)
		}
		out := AttendanceStatsResult{
			ConsecutiveDays:    stats.ConsecutiveDays,
			TotalDaysThisMonth: stats.TotalDaysThisMonth,
			RecentDates:        dateStrings(stats.RecentDates),
		}
		if !stats.LastAttendanceDate.IsZero() {
			out.LastAttendanceDate = stats.LastAttendanceDate.String()
		}
		return resultWithInvocation(), out, nil
	}
}

// AttendanceLogsInput represents the MCP tool input for attendance logs.
type AttendanceLogsInput struct {
	AccountID int64  `json:"account_id" jsonschema:"account identifier"`
	Site      string `json:"site" jsonschema:"site name"`
	Identity  string `json:"identity" jsonschema:"identity name"`
	Month     string `json:"month,omitempty" jsonschema:"optional month filter (YYYY-MM)"`
}

// AttendanceLogsResult represents the MCP tool output for attendance logs.
type AttendanceLogsResult struct {
	Dates []string `json:"dates" jsonschema:"logged dates, newest first"`
}

// AttendanceLogsTool defines the MCP tool schema for attendance logs.
func AttendanceLogsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "attendance_logs",
		Description: "Lists logged attendance dates for one identity on one site.",
	}
}

// AttendanceLogsHandler executes an attendance logs request.
func AttendanceLogsHandler(engine *autoattend.Engine) mcp.ToolHandlerFor[AttendanceLogsInput, AttendanceLogsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AttendanceLogsInput) (*mcp.CallToolResult, AttendanceLogsResult, error) {
		ctx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		dates, err := engine.Logs(ctx, autoattend.Target{AccountID: input.AccountID, Site: input.Site, Identity: input.Identity}, input.Month)
		if err != nil {
			return nil, AttendanceLogsResult{}, fmt.Errorf("attendance logs failed: %w", err)
		}
		out := dateStrings(dates)
		sort.Sort(sort.Reverse(sort.StringSlice(out)))
		return resultWithInvocation(), AttendanceLogsResult{Dates: out}, nil
	}
}

func dateStrings(dates []civil.Date) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}
