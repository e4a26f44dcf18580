package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

func handleUpcoming(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", 7, 90)
		summaries, err := deps.Reporter.UpcomingAppointments(days)
		if err != nil {
			writeError(w, err)
			return
		}
		if summaries == nil {
			summaries = []scheduling.StaffingSummary{}
		}
		writeData(w, summaries)
	}
}

func handleMonth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := strconv.Atoi(chi.URLParam(r, "year"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid year: %v", err)
			return
		}
		month, err := strconv.Atoi(chi.URLParam(r, "month"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid month: %v", err)
			return
		}

		cal, err := deps.Reporter.MonthlyCalendar(year, month)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, cal)
	}
}

func handleOptimalDates(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", 30, 365)
		perDay := parseIntParam(r, "maxPerDay", 2, 20)
		dates, err := deps.Reporter.FindOptimalDates(days, perDay)
		if err != nil {
			writeError(w, err)
			return
		}
		if dates == nil {
			dates = []scheduling.OptimalDate{}
		}
		writeData(w, dates)
	}
}

func handleWorkload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", 30, 365)
		workload, err := deps.Reporter.WorkloadAnalysis(days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, workload)
	}
}

func handleAvailability(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		date := chi.URLParam(r, "date")
		avail, err := deps.Reporter.CheckAvailability(id, date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, avail)
	}
}

func handleAvailableVolunteers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		role := r.URL.Query().Get("role")
		volunteers, err := deps.Reporter.AvailableVolunteers(date, role)
		if err != nil {
			writeError(w, err)
			return
		}
		if volunteers == nil {
			volunteers = []storage.Volunteer{}
		}
		writeData(w, volunteers)
	}
}
