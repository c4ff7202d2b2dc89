package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	apperrors "github.com/louisbranch/siteledger/internal/platform/errors"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/siteconfig"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

func (h *handlers) setPaybackCleared(cleared bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountID(r)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		var body struct {
			pairBody
			WeekStart civil.Date `json:"weekStartDate"`
		}
		if err := decodeJSON(r, w, &body); err != nil {
			h.respondError(w, r, err)
			return
		}
		err = h.summaries.SetPaybackCleared(r.Context(), storage.PaybackClearedKey{
			AccountID:     account,
			Pair:          domain.Pair{Identity: body.Identity, Site: body.Site},
			WeekStartDate: body.WeekStart,
		}, cleared)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
	}
}

func (h *handlers) setSettlementPaid(paid bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountID(r)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		var body pairBody
		if err := decodeJSON(r, w, &body); err != nil {
			h.respondError(w, r, err)
			return
		}
		err = h.summaries.SetSettlementPaid(r.Context(), storage.SettlementPaidKey{
			AccountID: account,
			Pair:      domain.Pair{Identity: body.Identity, Site: body.Site},
		}, paid)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"paid": paid})
	}
}

func (h *handlers) setOffice(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var body struct {
		OfficeID int64 `json:"officeId"`
	}
	if err := decodeJSON(r, w, &body); err != nil {
		h.respondError(w, r, err)
		return
	}
	if body.OfficeID < 0 {
		h.respondError(w, r, apperrors.WithMetadata(apperrors.CodeValidationFailed, "invalid office",
			map[string]string{"field": "officeId"}))
		return
	}
	if err := h.store.SetAccountOffice(r.Context(), account, body.OfficeID); err != nil {
		h.respondError(w, r, err)
		return
	}
	if _, err := h.summaries.Invalidate(r.Context(), account, nil); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"officeId": body.OfficeID})
}

// setSiteStatus replaces the status history of a site account. Approval
// gates weekly payback on every date, so the whole account cache is dropped.
func (h *handlers) setSiteStatus(w http.ResponseWriter, r *http.Request) {
	account, err := accountID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var body struct {
		pairBody
		Status string `json:"status"`
	}
	if err := decodeJSON(r, w, &body); err != nil {
		h.respondError(w, r, err)
		return
	}
	pair := domain.NewPair(body.Identity, body.Site)
	if !pair.Valid() {
		h.respondError(w, r, apperrors.WithMetadata(apperrors.CodeValidationFailed, "site and identity are required",
			map[string]string{"field": "siteName"}))
		return
	}
	if err := h.store.SetSiteStatus(r.Context(), account, pair, strings.TrimSpace(body.Status)); err != nil {
		h.respondError(w, r, err)
		return
	}
	if _, err := h.summaries.Invalidate(r.Context(), account, nil); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   body.Status,
		"approved": domain.IsApprovedStatus(body.Status),
	})
}

type siteConfigBody struct {
	SiteName  string            `json:"siteName"`
	OfficeID  int64             `json:"officeId"`
	Config    domain.SiteConfig `json:"config"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

func parseOffice(raw string) (int64, error) {
	office, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || office < 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeValidationFailed, "invalid office",
			map[string]string{"field": "office", "value": raw})
	}
	return office, nil
}

func (h *handlers) getSiteConfig(w http.ResponseWriter, r *http.Request) {
	office, err := parseOffice(r.PathValue("office"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	site := domain.NormalizeName(r.PathValue("site"))
	record, err := h.store.GetSiteConfig(r.Context(), site, office)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		record = storage.SiteConfigRecord{SiteName: site, Config: domain.DefaultSiteConfig()}
	case err != nil:
		h.respondError(w, r, err)
		return
	}
	out := siteConfigBody{SiteName: record.SiteName, OfficeID: record.OfficeID, Config: record.Config}
	if !record.UpdatedAt.IsZero() {
		out.UpdatedAt = record.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	respondJSON(w, http.StatusOK, out)
}

// putSiteConfig stores one site config. The rollover flag is validated here;
// stored values are trusted by readers.
func (h *handlers) putSiteConfig(w http.ResponseWriter, r *http.Request) {
	office, err := parseOffice(r.PathValue("office"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	site := domain.NormalizeName(r.PathValue("site"))
	if site == "" {
		h.respondError(w, r, apperrors.WithMetadata(apperrors.CodeValidationFailed, "site is required",
			map[string]string{"field": "siteName"}))
		return
	}
	var cfg domain.SiteConfig
	if err := decodeJSON(r, w, &cfg); err != nil {
		h.respondError(w, r, err)
		return
	}
	rollover, err := siteconfig.ParseRollover(string(cfg.Rollover))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cfg.Rollover = rollover
	record := storage.SiteConfigRecord{SiteName: site, OfficeID: office, Config: cfg.Normalize()}
	if err := h.store.PutSiteConfig(r.Context(), record); err != nil {
		h.respondError(w, r, err)
		return
	}
	if _, err := h.summaries.InvalidateOffice(r.Context(), office); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, siteConfigBody{SiteName: site, OfficeID: office, Config: record.Config})
}

// importSiteConfigs stores every site of a YAML site config document.
func (h *handlers) importSiteConfigs(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, r, apperrors.WithMetadata(apperrors.CodeValidationFailed, "read body: "+err.Error(),
			map[string]string{"field": "body"}))
		return
	}
	records, err := siteconfig.Parse(data)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	offices := make(map[int64]bool)
	for _, record := range records {
		if err := h.store.PutSiteConfig(r.Context(), record); err != nil {
			h.respondError(w, r, err)
			return
		}
		offices[record.OfficeID] = true
	}
	for office := range offices {
		if _, err := h.summaries.InvalidateOffice(r.Context(), office); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]int{"imported": len(records)})
}
