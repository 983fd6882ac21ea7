package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Wyydra/callcore/internal/adapter/driven/call/memory"
	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/go-chi/chi/v5"
)

type causeDTO struct {
	Cause string `json:"cause"`
}

type endpointDTO struct {
	EndpointID string `json:"endpoint_id"`
}

type muteDTO struct {
	Muted bool `json:"muted"`
}

type failDTO struct {
	Op   string `json:"op"`
	Code int    `json:"code"`
}

func (h *Handler) session(w http.ResponseWriter) (*memory.Session, bool) {
	s, ok := h.Backend.Session()
	if !ok {
		writeError(w, http.StatusNotFound, memory.ErrNoSession)
	}
	return s, ok
}

// RemoteEvent plays the far end of the call: answer, active, inactive or
// disconnect.
func (h *Handler) RemoteEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}

	switch event := chi.URLParam(r, "event"); event {
	case "answer":
		s.RemoteAnswer()
	case "active":
		s.RemoteActive()
	case "inactive":
		s.RemoteInactive()
	case "disconnect":
		cause := domain.CauseRemote
		if r.ContentLength > 0 {
			var req causeDTO
			if err := decode(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
				return
			}
			if req.Cause != "" {
				parsed, err := domain.ParseDisconnectCause(req.Cause)
				if err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				cause = parsed
			}
		}
		s.RemoteDisconnect(cause)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown remote event %q", event))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetEndpoint reports a route change made outside the call, e.g. a headset
// being plugged in. The endpoint must be one the call already knows.
func (h *Handler) SetEndpoint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	var req endpointDTO
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	id, err := domain.ParseEndpointID(req.EndpointID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	call, ok := h.Calls.Current().(domain.RegisteredCall)
	if !ok {
		writeError(w, http.StatusNotFound, errNoCall)
		return
	}
	endpoint, ok := call.FindEndpoint(id)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown endpoint"))
		return
	}
	s.SetCurrentEndpoint(endpoint)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetMuted(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	var req muteDTO
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	s.SetMuted(req.Muted)
	w.WriteHeader(http.StatusNoContent)
}

// FailNext scripts the next control operation of the given kind to fail.
func (h *Handler) FailNext(w http.ResponseWriter, r *http.Request) {
	var req failDTO
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	op := memory.Op(req.Op)
	switch op {
	case memory.OpAnswer, memory.OpSetActive, memory.OpSetInactive, memory.OpDisconnect, memory.OpEndpointChange:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown operation %q", req.Op))
		return
	}
	h.Backend.FailNext(op, req.Code)
	w.WriteHeader(http.StatusNoContent)
}
