package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	apperrors "github.com/louisbranch/siteledger/internal/platform/errors"
	"github.com/louisbranch/siteledger/internal/platform/errors/i18n"
	"github.com/louisbranch/siteledger/internal/platform/requestctx"
	"github.com/louisbranch/siteledger/internal/platform/timeouts"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps err onto a coded, localized error response.
func (h *handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := classify(err)
	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	locale := requestLocale(r)
	respondJSON(w, status, map[string]errorBody{"error": {
		Code:     string(appErr.Code),
		Message:  i18n.GetCatalog(locale).Format(string(appErr.Code), appErr.Metadata),
		Metadata: appErr.Metadata,
	}})
}

func classify(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, domain.ErrMissingKey):
		field := ""
		if i := strings.LastIndex(err.Error(), ": "); i >= 0 {
			field = err.Error()[i+2:]
		}
		return apperrors.WithMetadata(apperrors.CodeValidationFailed, err.Error(), map[string]string{"field": field})
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, err.Error(), err)
	default:
		return apperrors.Wrap(apperrors.CodeUnknown, err.Error(), err)
	}
}

func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return &apperrors.Error{
			Code:     apperrors.CodeValidationFailed,
			Message:  "decode request body: " + err.Error(),
			Metadata: map[string]string{"field": "body"},
			Cause:    err,
		}
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeValidationFailed, "invalid "+name,
			map[string]string{"field": name, "value": raw})
	}
	return n, nil
}

func accountID(r *http.Request) (int64, error) {
	id, err := pathInt(r, "account")
	if err == nil && id == 0 {
		err = apperrors.WithMetadata(apperrors.CodeValidationFailed, "account is required",
			map[string]string{"field": "account"})
	}
	return id, err
}

func parseDate(raw string, field string) (civil.Date, error) {
	d, err := civil.Parse(strings.TrimSpace(raw))
	if err != nil {
		return civil.Date{}, apperrors.WithMetadata(apperrors.CodeInvalidDate, "invalid "+field,
			map[string]string{"field": field, "value": raw})
	}
	return d, nil
}

// requestLocale prefers an explicit ?lang= over Accept-Language.
func requestLocale(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return i18n.ResolveLocale(lang)
	}
	return i18n.ResolveLocale(r.Header.Get("Accept-Language"))
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Request)
		defer cancel()
		ctx = requestctx.WithActor(ctx, r.Header.Get(requestctx.ActorHeader))
		r = r.WithContext(ctx)
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
