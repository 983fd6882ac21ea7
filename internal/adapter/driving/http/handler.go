package http

import (
	"encoding/json"
	"net/http"

	"github.com/Wyydra/callcore/internal/adapter/driven/call/memory"
	"github.com/Wyydra/callcore/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/callcore/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Calls    *service.CallService
	Launcher *service.Launcher
	Monitor  *service.Monitor
	Hub      *ws.Hub
	// Backend enables the /backend debug routes when set.
	Backend *memory.Backend
}

func NewHandler(calls *service.CallService, launcher *service.Launcher, monitor *service.Monitor, hub *ws.Hub, backend *memory.Backend) *Handler {
	return &Handler{
		Calls:    calls,
		Launcher: launcher,
		Monitor:  monitor,
		Hub:      hub,
		Backend:  backend,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/calls", func(r chi.Router) {
		r.Post("/", h.CreateCall)
		r.Get("/current", h.CurrentCall)
		r.Post("/current/actions", h.PostAction)
		r.Post("/current/refresh", h.Refresh)
	})
	r.Get("/ws", h.ServeWS)

	if h.Backend != nil {
		r.Route("/backend", func(r chi.Router) {
			r.Post("/remote/{event}", h.RemoteEvent)
			r.Post("/endpoint", h.SetEndpoint)
			r.Post("/mute", h.SetMuted)
			r.Post("/fail", h.FailNext)
		})
	}

	return r
}

type errorDTO struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error writing response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorDTO{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
