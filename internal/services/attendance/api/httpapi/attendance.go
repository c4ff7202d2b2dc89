package httpapi

import (
	"net/http"
	"strconv"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	apperrors "github.com/louisbranch/siteledger/internal/platform/errors"
	"github.com/louisbranch/siteledger/internal/platform/pagination"
	"github.com/louisbranch/siteledger/internal/platform/requestctx"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
)

var auditPage = pagination.PageSizeConfig{Default: 50, Max: 500}

type pairBody struct {
	Site     string `json:"siteName"`
	Identity string `json:"identityName"`
}

func (p pairBody) target(account int64) autoattend.Target {
	return autoattend.Target{AccountID: account, Site: p.Site, Identity: p.Identity}
}

func queryTarget(r *http.Request, account int64) autoattend.Target {
	q := r.URL.Query()
	return autoattend.Target{AccountID: account, Site: q.Get("site"), Identity: q.Get("identity")}
}

func (h *handlers) attendanceLogs(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	dates, err := h.engine.Logs(r.Context(), queryTarget(r, account), r.URL.Query().Get("month"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]civil.Date{"dates": dates})
}

func (h *handlers) attendanceStats(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	stats, err := h.engine.Stats(r.Context(), queryTarget(r, account))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *handlers) attendanceStatsBatch(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var body struct {
		Pairs []pairBody `json:"pairs"`
	}
	if err := decodeJSON(r, w, &body); err != nil {
		h.respondError(w, r, err)
		return
	}
	pairs := make([]domain.Pair, 0, len(body.Pairs))
	for _, p := range body.Pairs {
		pairs = append(pairs, domain.Pair{Identity: p.Identity, Site: p.Site})
	}
	stats, err := h.engine.StatsBatch(r.Context(), account, pairs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]map[string]domain.Stats{"stats": stats})
}

func (h *handlers) toggle(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var body struct {
		pairBody
		Date    civil.Date `json:"attendanceDate"`
		Desired *bool      `json:"desiredState"`
	}
	if err := decodeJSON(r, w, &body); err != nil {
		h.respondError(w, r, err)
		return
	}
	result, err := h.engine.Toggle(r.Context(), autoattend.ToggleInput{
		Target:  body.target(account),
		Date:    body.Date,
		Desired: body.Desired,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) addPast(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var body struct {
		pairBody
		Date   civil.Date `json:"attendanceDate"`
		Reason string     `json:"reason"`
		Actor  string     `json:"actor"`
	}
	if err := decodeJSON(r, w, &body); err != nil {
		h.respondError(w, r, err)
		return
	}
	stats, err := h.engine.AddPast(r.Context(), autoattend.PastInput{
		Target: body.target(account),
		Date:   body.Date,
		Reason: body.Reason,
		Actor:  requestctx.ActorOr(r.Context(), body.Actor),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]domain.Stats{"stats": stats})
}

func (h *handlers) bulkAdd(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var body struct {
		pairBody
		Start  civil.Date `json:"startDate"`
		End    civil.Date `json:"endDate"`
		Reason string     `json:"reason"`
		Actor  string     `json:"actor"`
	}
	if err := decodeJSON(r, w, &body); err != nil {
		h.respondError(w, r, err)
		return
	}
	result, err := h.engine.BulkAdd(r.Context(), autoattend.BulkInput{
		Target: body.target(account),
		Start:  body.Start,
		End:    body.End,
		Reason: body.Reason,
		Actor:  requestctx.ActorOr(r.Context(), body.Actor),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) purge(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var body struct {
		pairBody
		Reason string `json:"reason"`
		Actor  string `json:"actor"`
	}
	if err := decodeJSON(r, w, &body); err != nil {
		h.respondError(w, r, err)
		return
	}
	removed, err := h.engine.Purge(r.Context(), autoattend.PurgeInput{
		Target: body.target(account),
		Reason: body.Reason,
		Actor:  requestctx.ActorOr(r.Context(), body.Actor),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

type auditEntry struct {
	ID        string `json:"id"`
	Actor     string `json:"actor,omitempty"`
	Action    string `json:"action"`
	Site      string `json:"siteName"`
	Identity  string `json:"identityName"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"createdAt"`
}

func (h *handlers) audit(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	requested := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, r, apperrors.WithMetadata(apperrors.CodeValidationFailed, "invalid limit",
				map[string]string{"field": "limit", "value": raw}))
			return
		}
		requested = n
	}
	limit := pagination.ClampPageSize(requested, auditPage)
	records, err := h.store.ListAudit(r.Context(), account, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]auditEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, auditEntry{
			ID:        rec.ID,
			Actor:     rec.Actor,
			Action:    rec.Action,
			Site:      rec.Site,
			Identity:  rec.Identity,
			Detail:    rec.Detail,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	respondJSON(w, http.StatusOK, map[string][]auditEntry{"audit": out})
}
