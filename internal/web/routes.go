package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.health)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1/identities", func(r chi.Router) {
		r.Get("/", s.listIdentities)
		r.Post("/", s.enrollIdentity)
		r.Put("/{label}", s.renameIdentity)
		r.Delete("/{label}", s.deleteIdentity)
	})
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status            string     `json:"status"`
	Rows              int        `json:"rows"`
	KnownIdentities   int        `json:"known_identities"`
	UnknownIdentities int        `json:"unknown_identities"`
	LastSavedAt       *time.Time `json:"last_saved_at,omitempty"`
}

// health answers 503 while the index holds changes that could not be saved.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st := s.faces.Stats()
	resp := HealthResponse{
		Status:            "ok",
		Rows:              st.Rows,
		KnownIdentities:   st.KnownIdentities,
		UnknownIdentities: st.UnknownIdentities,
	}
	if !st.LastSavedAt.IsZero() {
		resp.LastSavedAt = &st.LastSavedAt
	}

	status := http.StatusOK
	if st.Dirty {
		resp.Status = "unsaved changes"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Debug().Err(err).Msg("Failed to write response")
		}
	}
}
