package api

import (
	"net/http"
	"strconv"

	"github.com/home-sentry/core/internal/audit"
)

// handleListAudit returns a filtered, paginated slice of the audit trail.
// Supported query parameters: table, action, recordId, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		TableName: q.Get("table"),
		Action:    q.Get("action"),
		RecordID:  q.Get("recordId"),
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid limit parameter")
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid offset parameter")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to list audit records")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
