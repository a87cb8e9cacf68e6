package api

import (
	"net/http"
	"strconv"

	"github.com/hwts/hwts-core/internal/recorder"
)

// handleListHistory returns recorded timestamps, newest first.
//
// Query parameters: device, label, limit, offset.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter := recorder.HistoryFilter{
		Device: r.URL.Query().Get("device"),
		Label:  r.URL.Query().Get("label"),
	}

	var ok bool
	if filter.Limit, ok = parseIntParam(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = parseIntParam(w, r, "offset"); !ok {
		return
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing timestamp history", "error", err)
		writeInternalError(w, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListAudit returns channel lifecycle audit entries, newest first.
//
// Query parameters: device, event, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit trail not configured")
		return
	}

	filter := recorder.AuditFilter{
		Device: r.URL.Query().Get("device"),
		Event:  r.URL.Query().Get("event"),
	}

	var ok bool
	if filter.Limit, ok = parseIntParam(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = parseIntParam(w, r, "offset"); !ok {
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing channel audit trail", "error", err)
		writeInternalError(w, "failed to load audit trail")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseIntParam reads a non-negative integer query parameter, writing a 400
// response on failure. A missing parameter yields zero.
func parseIntParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}
