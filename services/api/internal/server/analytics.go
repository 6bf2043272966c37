package server

import (
	"net/http"

	"termfolio/services/api/internal/app"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	d, err := s.app.Dashboard(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	rng, err := s.app.ParseDateRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	period, err := app.ParsePeriod(q.Get("period"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	summary, err := s.app.Summary(r.Context(), rng, period)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

func (s *Server) handleCommandAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	rng, err := s.app.ParseDateRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	limit, err := app.ParseLimit(q.Get("limit"), 10)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	report, err := s.app.CommandAnalytics(r.Context(), rng, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *Server) handleUserAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	rng, err := s.app.ParseDateRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	limit, err := app.ParseLimit(q.Get("limit"), 50)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	report, err := s.app.UserAnalytics(r.Context(), rng, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	days, err := app.ParseDays(r.URL.Query().Get("days"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	e, err := s.app.Engagement(r.Context(), days)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, e)
}

func (s *Server) handleDailyRollups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	rng, err := s.app.ParseDateRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	rollups, err := s.app.DailyRollups(r.Context(), rng)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"range": rng, "rollups": rollups})
}
