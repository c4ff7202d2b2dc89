// Package httpapi exposes the attendance and summary services as a JSON
// HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/logging"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"github.com/louisbranch/siteledger/internal/services/attendance/summary"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Store is the persistence surface the handlers use directly.
type Store interface {
	storage.LedgerStore
	storage.SiteConfigStore
	storage.OfficeStore
	storage.EntityStore
	storage.AuditStore
}

// Deps collects handler dependencies.
type Deps struct {
	Store     Store
	Engine    *autoattend.Engine
	Summaries *summary.Service
	Logger    *slog.Logger
	// Probe reports storage health for /healthz. Nil always reports ok.
	Probe func(context.Context) error
}

type handlers struct {
	store     Store
	engine    *autoattend.Engine
	summaries *summary.Service
	logger    *slog.Logger
	probe     func(context.Context) error
}

// NewHandler wires the HTTP routes.
func NewHandler(deps Deps) http.Handler {
	h := &handlers{
		store:     deps.Store,
		engine:    deps.Engine,
		summaries: deps.Summaries,
		logger:    logging.OrDefault(deps.Logger),
		probe:     deps.Probe,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.healthz)

	mux.HandleFunc("POST /v1/accounts/{account}/records:changed", h.recordChanged)
	mux.HandleFunc("GET /v1/accounts/{account}/summary/{date}", h.getSummary)
	mux.HandleFunc("DELETE /v1/accounts/{account}/summary", h.invalidateSummary)
	mux.HandleFunc("DELETE /v1/accounts/{account}/summary/{date}", h.invalidateSummary)

	mux.HandleFunc("GET /v1/accounts/{account}/attendance/logs", h.attendanceLogs)
	mux.HandleFunc("GET /v1/accounts/{account}/attendance/stats", h.attendanceStats)
	mux.HandleFunc("POST /v1/accounts/{account}/attendance/stats:batch", h.attendanceStatsBatch)
	mux.HandleFunc("POST /v1/accounts/{account}/attendance/toggle", h.toggle)
	mux.HandleFunc("POST /v1/accounts/{account}/attendance/past", h.addPast)
	mux.HandleFunc("POST /v1/accounts/{account}/attendance/bulk", h.bulkAdd)
	mux.HandleFunc("POST /v1/accounts/{account}/attendance/purge", h.purge)
	mux.HandleFunc("GET /v1/accounts/{account}/attendance/audit", h.audit)

	mux.HandleFunc("PUT /v1/accounts/{account}/payback-cleared", h.setPaybackCleared(true))
	mux.HandleFunc("DELETE /v1/accounts/{account}/payback-cleared", h.setPaybackCleared(false))
	mux.HandleFunc("PUT /v1/accounts/{account}/settlement-paid", h.setSettlementPaid(true))
	mux.HandleFunc("DELETE /v1/accounts/{account}/settlement-paid", h.setSettlementPaid(false))

	mux.HandleFunc("PUT /v1/accounts/{account}/office", h.setOffice)
	mux.HandleFunc("PUT /v1/accounts/{account}/site-status", h.setSiteStatus)
	mux.HandleFunc("GET /v1/site-configs/{office}/{site}", h.getSiteConfig)
	mux.HandleFunc("PUT /v1/site-configs/{office}/{site}", h.putSiteConfig)
	mux.HandleFunc("POST /v1/site-configs:import", h.importSiteConfigs)

	return loggingMiddleware(h.logger, mux)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := map[string]any{"status": "ok"}
	if h.probe != nil {
		if err := h.probe(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health probe failed", "error", err)
			status = http.StatusServiceUnavailable
			payload["status"] = "degraded"
		}
	}
	respondJSON(w, status, payload)
}
