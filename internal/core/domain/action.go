package domain

import (
	"context"
	"fmt"

	"github.com/Wyydra/callcore/internal/queue"
)

type ActionKind string

const (
	ActionAnswer              ActionKind = "answer"
	ActionDisconnect          ActionKind = "disconnect"
	ActionHold                ActionKind = "hold"
	ActionActivate            ActionKind = "activate"
	ActionToggleMute          ActionKind = "toggle_mute"
	ActionSwitchAudioEndpoint ActionKind = "switch_audio_endpoint"
	ActionTransferCall        ActionKind = "transfer_call"
)

// CallAction is a control request against the current call.
type CallAction interface {
	Kind() ActionKind
}

type Answer struct{}

type Disconnect struct {
	Cause DisconnectCause
}

type Hold struct{}

type Activate struct{}

type ToggleMute struct{}

type SwitchAudioEndpoint struct {
	EndpointID EndpointID
}

type TransferCall struct {
	EndpointID EndpointID
}

func (Answer) Kind() ActionKind              { return ActionAnswer }
func (Disconnect) Kind() ActionKind          { return ActionDisconnect }
func (Hold) Kind() ActionKind                { return ActionHold }
func (Activate) Kind() ActionKind            { return ActionActivate }
func (ToggleMute) Kind() ActionKind          { return ActionToggleMute }
func (SwitchAudioEndpoint) Kind() ActionKind { return ActionSwitchAudioEndpoint }
func (TransferCall) Kind() ActionKind        { return ActionTransferCall }

// ParseAction builds a CallAction from its wire name. cause is only read for
// disconnect and endpointID only for endpoint actions.
func ParseAction(kind, cause, endpointID string) (CallAction, error) {
	switch ActionKind(kind) {
	case ActionAnswer:
		return Answer{}, nil
	case ActionHold:
		return Hold{}, nil
	case ActionActivate:
		return Activate{}, nil
	case ActionToggleMute:
		return ToggleMute{}, nil
	case ActionDisconnect:
		c := CauseLocal
		if cause != "" {
			parsed, err := ParseDisconnectCause(cause)
			if err != nil {
				return nil, err
			}
			c = parsed
		}
		return Disconnect{Cause: c}, nil
	case ActionSwitchAudioEndpoint, ActionTransferCall:
		id, err := ParseEndpointID(endpointID)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint id %q: %w", endpointID, err)
		}
		if ActionKind(kind) == ActionTransferCall {
			return TransferCall{EndpointID: id}, nil
		}
		return SwitchAudioEndpoint{EndpointID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
}

// ActionChannel carries actions from any number of producers to the single
// loop applying them to one call. Send never blocks; once the channel is
// closed it silently drops what it is given.
type ActionChannel struct {
	q *queue.Queue[CallAction]
}

func NewActionChannel() *ActionChannel {
	return &ActionChannel{q: queue.New[CallAction]()}
}

// Send reports whether action was accepted. Producers must not assume it
// will be applied.
func (c *ActionChannel) Send(action CallAction) bool {
	return c.q.Push(action)
}

func (c *ActionChannel) Receive(ctx context.Context) (CallAction, bool) {
	return c.q.Pop(ctx)
}

func (c *ActionChannel) Close() {
	c.q.Close()
}
