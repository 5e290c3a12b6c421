package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dkadlec/presence/internal/ledger"
)

// AttendanceHandler handles the attendance report endpoints.
type AttendanceHandler struct {
	deps Deps
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps Deps) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// Day returns one day's attendance records, optionally filtered by the
// subject query parameter. The date path segment is YYYY-MM-DD.
func (h *AttendanceHandler) Day(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "date"), time.Local)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	records, err := h.deps.Ledger.ReadDay(day, r.URL.Query().Get("subject"))
	if err != nil {
		log.Printf("attendance day report: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":    day.Format("2006-01-02"),
		"records": records,
		"count":   len(records),
	})
}

// Calendar returns one identity's month: the days they attended with the
// subjects, plus the non-working days (Sundays and holidays).
func (h *AttendanceHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	now := time.Now()
	year := now.Year()
	month := now.Month()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			respondError(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = time.Month(n)
	}

	attended, err := h.deps.Ledger.MonthFor(name, year, month)
	if err != nil {
		log.Printf("attendance calendar for %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"name":        name,
		"year":        year,
		"month":       int(month),
		"attended":    attended,
		"non_working": ledger.NonWorkingDays(year, month),
	})
}
