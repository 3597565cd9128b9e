package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/skyroute/internal/dispatch"
	"github.com/nerrad567/skyroute/internal/journal"
)

// handleListFailures returns paginated delivery failures, newest first.
//
// Query parameters:
//   - subscriber: filter by subscriber ID
//   - kind: filter by failure kind (decode, invocation)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	if s.failures == nil {
		writeNotFound(w, "failure journal not enabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Subscriber: q.Get("subscriber"),
		Kind:       q.Get("kind"),
	}
	switch filter.Kind {
	case "", dispatch.FailureDecode, dispatch.FailureHandler:
	default:
		writeBadRequest(w, "kind must be decode or invocation")
		return
	}

	var ok bool
	if filter.Limit, ok = intParam(q.Get("limit")); !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, ok = intParam(q.Get("offset")); !ok {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.failures.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list delivery failures", "error", err)
		writeInternalError(w, "failed to list delivery failures")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional non-negative query parameter; "" yields 0.
func intParam(v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
