package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Wyydra/callcore/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/rs/zerolog/log"
)

var (
	errNoCall      = errors.New("no call registered")
	errStaleAction = errors.New("call has ended")
)

type createCallDTO struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Incoming bool   `json:"incoming"`
}

type actionDTO struct {
	Type       string `json:"type"`
	Cause      string `json:"cause,omitempty"`
	EndpointID string `json:"endpoint_id,omitempty"`
}

func (h *Handler) CreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallDTO
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, errors.New("address is required"))
		return
	}
	if req.Name == "" {
		req.Name = req.Address
	}

	if err := h.Launcher.Launch(req.Name, req.Address, req.Incoming); err != nil {
		if errors.Is(err, domain.ErrAlreadyActive) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Info().Str("name", req.Name).Bool("incoming", req.Incoming).Msg("Call launch requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "launching"})
}

func (h *Handler) CurrentCall(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.NewCallView(h.Calls.Current()))
}

func (h *Handler) PostAction(w http.ResponseWriter, r *http.Request) {
	var req actionDTO
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	action, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch err := h.dispatch(action); {
	case errors.Is(err, errNoCall):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, errStaleAction):
		writeError(w, http.StatusGone, err)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.Monitor.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

func (a actionDTO) parse() (domain.CallAction, error) {
	return domain.ParseAction(strings.ToLower(a.Type), a.Cause, a.EndpointID)
}

// dispatch hands action to the current call. Without one, the notifier is
// refreshed so whatever sent the action redraws.
func (h *Handler) dispatch(action domain.CallAction) error {
	call, ok := h.Calls.Current().(domain.RegisteredCall)
	if !ok {
		h.Monitor.Refresh()
		return errNoCall
	}
	if !call.Dispatch(action) {
		return errStaleAction
	}
	return nil
}
