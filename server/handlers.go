package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evlocate/foundation/errors"
	"github.com/evlocate/foundation/health"
	"github.com/evlocate/foundation/version"
)

// handleHealth reports process liveness plus build info
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	info := version.Get()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    info.Version,
		"commit":     info.Short(),
		"build_time": info.BuildTime,
		"sources":    s.registry.Len(),
	})
}

// handleSourcesHealth returns the windowed health rollup for every
// registered source
func (s *Server) handleSourcesHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	healths, err := s.aggregator.SourcesHealth(r.Context(), window)
	if err != nil {
		s.serverError(w, "computing sources health", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"window":  window.String(),
		"sources": healths,
	})
}

// handleSource serves per-source sub-resources:
//
//	GET /api/sources/{id}/health
//	GET /api/sources/{id}/recent?limit=N
func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/sources/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	sourceID, resource := parts[0], parts[1]

	switch resource {
	case "health":
		window, err := parseWindow(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sourceHealth, err := s.aggregator.SourceHealth(r.Context(), sourceID, window)
		if err != nil {
			if errors.IsUnknownSourceError(err) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			s.serverError(w, "computing source health", err)
			return
		}
		writeJSON(w, http.StatusOK, sourceHealth)

	case "recent":
		if _, err := s.registry.Lookup(sourceID); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 500 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
				return
			}
			limit = parsed
		}
		records, err := s.store.QueryRecent(r.Context(), sourceID, limit)
		if err != nil {
			s.serverError(w, "querying recent records", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"source_id": sourceID,
			"count":     len(records),
			"records":   records,
		})

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// handleDashboard returns the aggregate quality overview
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dashboard, err := s.aggregator.Dashboard(r.Context(), window)
	if err != nil {
		s.serverError(w, "building dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// parseWindow reads the optional window query parameter, e.g. window=6h
func parseWindow(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return health.DefaultWindow, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil || window <= 0 {
		return 0, errors.Newf("invalid window %q", raw)
	}
	return window, nil
}

func (s *Server) serverError(w http.ResponseWriter, action string, err error) {
	if s.log != nil {
		s.log.Errorw("request failed", "action", action, "error", err)
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
