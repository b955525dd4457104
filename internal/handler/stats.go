package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/memberhub/internal/service"
)

// StatsHandler serves aggregate counts over the member base.
type StatsHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(users *service.UserService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{users: users, logger: logger}
}

// HandleUserCount answers "how many members ...?" queries.
//
// HTTP: GET /api/stats/users with EXACTLY ONE of:
//
//	?zips=10001,10002         → members in any of these zip codes
//	?states=NY,NJ             → members in any of these states
//	?near=40.74,-73.99        → members within 20 miles of the coordinate
//	?near=40.74,-73.99&radius=50  → ... within 50 miles
//
// RESPONSE: {"count": 42}
//
// WHY EXACTLY ONE FILTER?
// Combining filters raises questions with no obvious answer (intersection?
// union?), and no caller has needed it. Requiring one keeps the semantics
// unambiguous; passing two is a 400, not a silent pick-one.
func (h *StatsHandler) HandleUserCount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := 0
	for _, name := range []string{"zips", "states", "near"} {
		if q.Get(name) != "" {
			filters++
		}
	}
	if filters != 1 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "exactly one of zips, states, or near is required",
		})
		return
	}

	switch {
	case q.Get("zips") != "":
		count, err := h.users.CountByZipCodes(r.Context(), q.Get("zips"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Count: count})

	case q.Get("states") != "":
		count, err := h.users.CountByStates(r.Context(), q.Get("states"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Count: count})

	default: // near
		lat, lng, ok := parseCoordinate(q.Get("near"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "near must be \"lat,lng\", e.g. near=40.74,-73.99",
			})
			return
		}

		// radius is optional; 0 tells the service to use its default.
		var radius float64
		if rad := q.Get("radius"); rad != "" {
			var err error
			radius, err = strconv.ParseFloat(rad, 64)
			if err != nil || radius <= 0 {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{
					Error:   "validation_error",
					Message: "radius must be a positive number of miles",
				})
				return
			}
		}

		count, err := h.users.CountNear(r.Context(), lat, lng, radius)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Count: count})
	}
}

// parseCoordinate parses "lat,lng" into two floats.
func parseCoordinate(s string) (lat, lng float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}

	return lat, lng, true
}
