package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/dashboard"
	"github.com/sells-group/hitrate-cli/internal/ingest"
	"github.com/sells-group/hitrate-cli/internal/reconcile"
)

const defaultRunsLimit = 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// loaded returns the current state or answers 503.
func (s *Server) loaded(w http.ResponseWriter) (*dashboard.State, bool) {
	st, err := s.svc.State()
	if err != nil {
		if errors.Is(err, dashboard.ErrNotLoaded) {
			writeError(w, http.StatusServiceUnavailable, "no data loaded")
		} else {
			writeError(w, http.StatusInternalServerError, "state unavailable")
		}
		return nil, false
	}
	return st, true
}

// parseFilter reads the dashboard filter from query parameters.
func parseFilter(r *http.Request) (dashboard.Filter, error) {
	q := r.URL.Query()
	f := dashboard.Filter{
		Country: q.Get("country"),
		Region:  q.Get("region"),
		Type:    q.Get("type"),
		Company: q.Get("company"),
	}
	if v := q.Get("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, errors.New("min_score must be a number")
		}
		f.MinScore = score
	}
	if v := q.Get("matched"); v != "" {
		matched, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("matched must be true or false")
		}
		f.MatchedOnly = matched
	}
	return f, nil
}

// rows answers with 400/503 itself and returns ok=false on failure.
func (s *Server) rows(w http.ResponseWriter, r *http.Request) ([]dashboard.Row, bool) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	st, ok := s.loaded(w)
	if !ok {
		return nil, false
	}
	return st.Rows(f, s.svc.Now()), true
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok", "loaded": false}
	if st, err := s.svc.State(); err == nil {
		resp["loaded"] = true
		resp["version"] = st.Snapshot.Version
		resp["reloaded_at"] = st.ReloadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) filters(w http.ResponseWriter, _ *http.Request) {
	st, ok := s.loaded(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Options(st.Snapshot))
}

func (s *Server) equipment(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.rows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) equipmentGeoJSON(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.rows(w, r)
	if !ok {
		return
	}
	data, err := json.Marshal(dashboard.GeoJSON(rows))
	if err != nil {
		zap.L().Error("api: encode geojson", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encode geojson")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) companies(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.rows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Companies(rows))
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.rows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Summarize(rows))
}

// mappings lists the name mapping, optionally narrowed by ?status= and ?tier=.
func (s *Server) mappings(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loaded(w)
	if !ok {
		return
	}
	status := strings.ToLower(r.URL.Query().Get("status"))
	tier := r.URL.Query().Get("tier")

	out := make([]reconcile.Match, 0, len(st.Result.Matches))
	for _, m := range st.Result.Matches {
		if status != "" && string(m.Status) != status {
			continue
		}
		if tier != "" && !strings.EqualFold(string(m.Tier), tier) {
			continue
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) quality(w http.ResponseWriter, _ *http.Request) {
	st, ok := s.loaded(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Quality)
}

func (s *Server) ingestReport(w http.ResponseWriter, _ *http.Request) {
	st, ok := s.loaded(w)
	if !ok {
		return
	}
	rep := st.Report
	if rep == nil {
		rep = &ingest.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report": rep,
		"counts": rep.Counts(),
	})
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.svc.Runs(r.Context(), limit)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReloadTimeout)
	defer cancel()

	st, err := s.svc.Reload(ctx)
	if err != nil {
		zap.L().Error("api: reload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      st.RunID,
		"version":     st.Snapshot.Version,
		"reloaded_at": st.ReloadedAt.Format(time.RFC3339),
		"quality":     st.Quality,
	})
}
