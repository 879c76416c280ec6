package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/cache"
	"github.com/sells-group/county-api/internal/county"
	"github.com/sells-group/county-api/internal/resilience"
)

func handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the County Data API"})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *router) handleCounty(w http.ResponseWriter, r *http.Request) {
	rec, err := rt.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *router) handleCountyGeoJSON(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := rt.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(county.Feature(id, rec)); err != nil {
		zap.L().Warn("httpapi: encode geojson", zap.String("id", id), zap.Error(err))
	}
}

func (rt *router) handleListCounties(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.ListCounties(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (rt *router) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	st, err := rt.svc.Status(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (rt *router) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *router) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Clear(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors to status codes. Unexpected errors
// are logged and reported with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, county.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid county id")
	case errors.Is(err, county.ErrNotFound):
		writeError(w, http.StatusNotFound, "county not found")
	case errors.Is(err, county.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, "not implemented")
	case errors.Is(err, resilience.ErrOpen):
		writeError(w, http.StatusServiceUnavailable, "upstream unavailable")
	case errors.Is(err, cache.ErrUnavailable):
		zap.L().Error("httpapi: cache unavailable",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
	default:
		zap.L().Error("httpapi: request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "An error occurred while fetching county data")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("httpapi: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
