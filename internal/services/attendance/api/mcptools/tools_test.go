package mcptools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/platform/logging"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage/sqlite"
	"github.com/louisbranch/siteledger/internal/services/attendance/summary"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testNow = time.Date(2025, 2, 20, 3, 0, 0, 0, time.UTC)

func newServices(t *testing.T) (*autoattend.Engine, *summary.Service) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	clock := func() time.Time { return testNow }
	logger := logging.Discard()
	engine := autoattend.NewEngine(store, autoattend.WithLogger(logger), autoattend.WithClock(clock))
	summaries := summary.NewService(store, summary.WithLogger(logger), summary.WithClock(clock))
	return engine, summaries
}

func seedPast(t *testing.T, engine *autoattend.Engine, dates ...string) {
	t.Helper()
	for _, value := range dates {
		_, err := engine.AddPast(context.Background(), autoattend.PastInput{
			Target: autoattend.Target{AccountID: 7, Site: "alpha", Identity: "kim"},
			Date:   civil.MustParse(value),
			Reason: "missed upload",
		})
		if err != nil {
			t.Fatalf("add past %s: %v", value, err)
		}
	}
}

func TestAttendanceHandlers(t *testing.T) {
	t.Parallel()
	engine, _ := newServices(t)
	seedPast(t, engine, "2025-02-18", "2025-02-19", "2025-01-30")
	ctx := context.Background()

	toolResult, stats, err := AttendanceStatsHandler(engine)(ctx, nil, AttendanceStatsInput{AccountID: 7, Site: "alpha", Identity: "kim"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if toolResult == nil || toolResult.Meta[InvocationIDKey] == "" {
		t.Fatalf("expected invocation metadata, got %+v", toolResult)
	}
	if stats.ConsecutiveDays != 2 || stats.TotalDaysThisMonth != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.LastAttendanceDate != "2025-02-19" {
		t.Fatalf("last attendance = %q", stats.LastAttendanceDate)
	}

	_, logs, err := AttendanceLogsHandler(engine)(ctx, nil, AttendanceLogsInput{AccountID: 7, Site: "alpha", Identity: "kim"})
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if want := []string{"2025-02-19", "2025-02-18", "2025-01-30"}; !slices.Equal(logs.Dates, want) {
		t.Fatalf("logs = %v, want %v", logs.Dates, want)
	}

	_, feb, err := AttendanceLogsHandler(engine)(ctx, nil, AttendanceLogsInput{AccountID: 7, Site: "alpha", Identity: "kim", Month: "2025-01"})
	if err != nil {
		t.Fatalf("logs by month: %v", err)
	}
	if want := []string{"2025-01-30"}; !slices.Equal(feb.Dates, want) {
		t.Fatalf("january logs = %v, want %v", feb.Dates, want)
	}

	if _, _, err := AttendanceLogsHandler(engine)(ctx, nil, AttendanceLogsInput{AccountID: 7, Site: "alpha", Identity: "kim", Month: "2025-13"}); err == nil {
		t.Fatal("expected error for invalid month")
	}
	if _, _, err := AttendanceStatsHandler(engine)(ctx, nil, AttendanceStatsInput{AccountID: 7, Identity: "kim"}); err == nil {
		t.Fatal("expected error for missing site")
	}
}

func TestDailySummaryHandler(t *testing.T) {
	t.Parallel()
	_, summaries := newServices(t)
	handler := DailySummaryHandler(summaries)

	t.Run("empty ledger", func(t *testing.T) {
		_, out, err := handler(context.Background(), nil, DailySummaryInput{AccountID: 7, Date: "2025-02-12"})
		if err != nil {
			t.Fatalf("daily summary: %v", err)
		}
		if out.SummaryDate != "2025-02-12" || out.IsPartial {
			t.Fatalf("summary = %+v", out)
		}
		if out.Paybacks == nil || out.Settlements == nil {
			t.Fatal("expected empty, non-nil slices")
		}
	})

	t.Run("today is partial", func(t *testing.T) {
		_, out, err := handler(context.Background(), nil, DailySummaryInput{AccountID: 7, Date: "2025-02-20"})
		if err != nil {
			t.Fatalf("daily summary: %v", err)
		}
		if !out.IsPartial || out.FromCache {
			t.Fatalf("summary = %+v", out)
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		if _, _, err := handler(context.Background(), nil, DailySummaryInput{AccountID: 7, Date: "02/12"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestServerOverInMemoryTransport(t *testing.T) {
	t.Parallel()
	engine, summaries := newServices(t)
	seedPast(t, engine, "2025-02-19")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewServer(engine, summaries).Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	if want := []string{"attendance_logs", "attendance_stats", "daily_summary"}; !slices.Equal(names, want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "attendance_logs",
		Arguments: map[string]any{"account_id": 7, "site": "alpha", "identity": "kim"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result.Content)
	}
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var logs AttendanceLogsResult
	if err := json.Unmarshal(raw, &logs); err != nil {
		t.Fatalf("decode structured content: %v", err)
	}
	if want := []string{"2025-02-19"}; !slices.Equal(logs.Dates, want) {
		t.Fatalf("logs = %v, want %v", logs.Dates, want)
	}

	failed, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "daily_summary",
		Arguments: map[string]any{"account_id": 7, "date": "not-a-date"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if !failed.IsError {
		t.Fatal("expected tool error for invalid date")
	}
}
