package httpapi

import (
	"fmt"
	"net/http"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/summary"
)

type recordChangedRequest struct {
	Old     *domain.Record `json:"old"`
	New     *domain.Record `json:"new"`
	Date    civil.Date     `json:"date"`
	OldDate civil.Date     `json:"oldDate"`
}

// recordChanged mirrors one ledger write, derives attendance from it and
// invalidates the affected summaries. Mirror and derivation failures are
// reported as warnings; the ledger write itself already happened upstream.
func (h *handlers) recordChanged(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req recordChangedRequest
	if err := decodeJSON(r, w, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ctx := r.Context()
	for _, rec := range []*domain.Record{req.Old, req.New} {
		if rec != nil {
			rec.AccountID = account
		}
	}
	if req.New != nil && req.New.Date.IsZero() {
		req.New.Date = req.Date
	}
	if req.Old != nil && req.Old.Date.IsZero() {
		req.Old.Date = req.OldDate
	}

	var warnings []string
	switch {
	case req.New != nil:
		if err := h.store.PutRecord(ctx, *req.New); err != nil {
			warnings = append(warnings, h.mirrorFailed(r, account, err))
		}
		if req.Old != nil && req.Old.ID != req.New.ID {
			if err := h.store.DeleteRecord(ctx, account, req.Old.ID); err != nil {
				warnings = append(warnings, h.mirrorFailed(r, account, err))
			}
		}
	case req.Old != nil:
		if err := h.store.DeleteRecord(ctx, account, req.Old.ID); err != nil {
			warnings = append(warnings, h.mirrorFailed(r, account, err))
		}
	}

	result := h.engine.RecordChanged(ctx, autoattend.Change{
		AccountID: account,
		Old:       req.Old,
		New:       req.New,
		Date:      req.Date,
		OldDate:   req.OldDate,
	})
	result.Warnings = append(warnings, result.Warnings...)

	var records []domain.Record
	for _, rec := range []*domain.Record{req.Old, req.New} {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	if _, err := h.summaries.InvalidateLedgerChange(ctx, account, records, changedDates(req)); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) mirrorFailed(r *http.Request, account int64, err error) string {
	h.logger.WarnContext(r.Context(), "ledger mirror write failed", "account_id", account, "error", err)
	return fmt.Sprintf("ledger mirror write failed: %v", err)
}

// changedDates lists the distinct record dates a change touches.
func changedDates(req recordChangedRequest) []civil.Date {
	var out []civil.Date
	add := func(d civil.Date) {
		if d.IsZero() {
			return
		}
		for _, seen := range out {
			if seen == d {
				return
			}
		}
		out = append(out, d)
	}
	add(req.Date)
	add(req.OldDate)
	if req.New != nil {
		add(req.New.Date)
	}
	if req.Old != nil {
		add(req.Old.Date)
	}
	return out
}

func (h *handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	date, err := parseDate(r.PathValue("date"), "date")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	req := summary.Request{AccountID: account, Date: date}
	if raw := r.URL.Query().Get("office"); raw != "" {
		office, err := parseOffice(raw)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		req.OfficeID = &office
	}
	result, err := h.summaries.GetDaily(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) invalidateSummary(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var date *civil.Date
	if raw := r.PathValue("date"); raw != "" {
		d, err := parseDate(raw, "date")
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		date = &d
	}
	removed, err := h.summaries.Invalidate(r.Context(), account, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
