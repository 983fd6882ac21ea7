package ws

import (
	"github.com/Wyydra/callcore/internal/core/domain"
)

const (
	StateNone         = "none"
	StateRegistered   = "registered"
	StateUnregistered = "unregistered"
)

type EndpointView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// OfferedAction is a button the UI should show. Type and Cause are sent back
// unchanged as a call action.
type OfferedAction struct {
	Label string `json:"label"`
	Type  string `json:"type"`
	Cause string `json:"cause,omitempty"`
}

type CallView struct {
	State              string          `json:"state"`
	ID                 string          `json:"id,omitempty"`
	Name               string          `json:"name,omitempty"`
	Address            string          `json:"address,omitempty"`
	Direction          string          `json:"direction,omitempty"`
	Active             bool            `json:"active"`
	OnHold             bool            `json:"on_hold"`
	Muted              bool            `json:"muted"`
	ErrorCode          *int            `json:"error_code,omitempty"`
	Cause              string          `json:"cause,omitempty"`
	CurrentEndpoint    *EndpointView   `json:"current_endpoint,omitempty"`
	AvailableEndpoints []EndpointView  `json:"available_endpoints,omitempty"`
	Actions            []OfferedAction `json:"actions,omitempty"`
}

// CallEvent is the envelope pushed to websocket clients.
type CallEvent struct {
	Event string   `json:"event"`
	Call  CallView `json:"call"`
}

func NewCallEvent(record domain.CallRecord) CallEvent {
	return CallEvent{Event: "call_state", Call: NewCallView(record)}
}

func NewCallView(record domain.CallRecord) CallView {
	switch r := record.(type) {
	case domain.RegisteredCall:
		v := CallView{
			State:     StateRegistered,
			ID:        r.ID.String(),
			Name:      r.Attributes.DisplayName,
			Address:   r.Attributes.Address,
			Direction: r.Attributes.Direction.String(),
			Active:    r.IsActive,
			OnHold:    r.IsOnHold,
			Muted:     r.IsMuted,
			ErrorCode: r.ErrorCode,
			Actions:   offeredActions(r),
		}
		if r.CurrentEndpoint != nil {
			e := newEndpointView(*r.CurrentEndpoint)
			v.CurrentEndpoint = &e
		}
		for _, e := range r.AvailableEndpoints {
			v.AvailableEndpoints = append(v.AvailableEndpoints, newEndpointView(e))
		}
		return v
	case domain.UnregisteredCall:
		return CallView{
			State:     StateUnregistered,
			ID:        r.ID.String(),
			Name:      r.Attributes.DisplayName,
			Address:   r.Attributes.Address,
			Direction: r.Attributes.Direction.String(),
			Cause:     r.Cause.String(),
		}
	default:
		return CallView{State: StateNone}
	}
}

func newEndpointView(e domain.Endpoint) EndpointView {
	return EndpointView{ID: e.ID.String(), Name: e.Name, Type: e.Type.String()}
}

// offeredActions: a ringing incoming call can be answered or rejected, anything
// else can be hung up, and a held call can also be resumed.
func offeredActions(call domain.RegisteredCall) []OfferedAction {
	if call.IsIncoming() && !call.IsActive {
		return []OfferedAction{
			{Label: "Answer", Type: string(domain.ActionAnswer)},
			{Label: "Reject", Type: string(domain.ActionDisconnect), Cause: domain.CauseRejected.String()},
		}
	}
	actions := []OfferedAction{
		{Label: "Hang up", Type: string(domain.ActionDisconnect), Cause: domain.CauseLocal.String()},
	}
	if call.IsOnHold {
		actions = append(actions, OfferedAction{Label: "Resume", Type: string(domain.ActionActivate)})
	}
	return actions
}
