package domain

import (
	"fmt"
	"slices"
)

type CallDirection int

const (
	DirectionIncoming CallDirection = iota
	DirectionOutgoing
)

func (d CallDirection) String() string {
	switch d {
	case DirectionIncoming:
		return "incoming"
	case DirectionOutgoing:
		return "outgoing"
	default:
		return fmt.Sprintf("unknown(%d)", d)
	}
}

type CallType int

const (
	CallTypeAudio CallType = iota + 1
	CallTypeVideo
)

func (t CallType) String() string {
	switch t {
	case CallTypeAudio:
		return "audio"
	case CallTypeVideo:
		return "video"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// CallCapability is a bit set of what the backend may do with the call.
type CallCapability uint8

const (
	SupportsSetInactive CallCapability = 1 << iota
	SupportsStream
	SupportsTransfer
)

func (c CallCapability) Has(flag CallCapability) bool {
	return c&flag == flag
}

// CallAttributes never change for the lifetime of a call.
type CallAttributes struct {
	DisplayName  string
	Address      string
	Direction    CallDirection
	CallType     CallType
	Capabilities CallCapability
}

func NewCallAttributes(displayName, address string, incoming bool) CallAttributes {
	direction := DirectionOutgoing
	if incoming {
		direction = DirectionIncoming
	}
	return CallAttributes{
		DisplayName:  displayName,
		Address:      address,
		Direction:    direction,
		CallType:     CallTypeAudio,
		Capabilities: SupportsSetInactive | SupportsStream | SupportsTransfer,
	}
}

// CallRecord is one of NoCall, RegisteredCall or UnregisteredCall.
type CallRecord interface {
	isCallRecord()
}

type NoCall struct{}

// RegisteredCall is a live call. Values are never mutated in place: every
// change goes through one of the With* methods, which return a modified copy.
type RegisteredCall struct {
	ID                 CallID
	Attributes         CallAttributes
	IsActive           bool
	IsOnHold           bool
	IsMuted            bool
	ErrorCode          *int
	CurrentEndpoint    *Endpoint
	AvailableEndpoints []Endpoint

	// Actions is the only way to enqueue work against this call.
	Actions *ActionChannel
}

type UnregisteredCall struct {
	ID         CallID
	Attributes CallAttributes
	Cause      DisconnectCause
}

func (NoCall) isCallRecord()           {}
func (RegisteredCall) isCallRecord()   {}
func (UnregisteredCall) isCallRecord() {}

func NewRegisteredCall(id CallID, attrs CallAttributes, actions *ActionChannel) RegisteredCall {
	return RegisteredCall{
		ID:                 id,
		Attributes:         attrs,
		AvailableEndpoints: []Endpoint{},
		Actions:            actions,
	}
}

func (c RegisteredCall) IsIncoming() bool {
	return c.Attributes.Direction == DirectionIncoming
}

// Dispatch enqueues action for this call. It reports false when the call has
// already ended; callers are free to ignore the result.
func (c RegisteredCall) Dispatch(action CallAction) bool {
	if c.Actions == nil {
		return false
	}
	return c.Actions.Send(action)
}

func (c RegisteredCall) FindEndpoint(id EndpointID) (Endpoint, bool) {
	for _, e := range c.AvailableEndpoints {
		if e.ID == id {
			return e, true
		}
	}
	return Endpoint{}, false
}

func (c RegisteredCall) WithActive() RegisteredCall {
	c.IsActive = true
	c.IsOnHold = false
	c.ErrorCode = nil
	return c
}

// WithInactive puts the call on hold. IsActive is left as it was.
func (c RegisteredCall) WithInactive() RegisteredCall {
	c.IsOnHold = true
	c.ErrorCode = nil
	return c
}

func (c RegisteredCall) WithAnswered() RegisteredCall {
	c.IsActive = true
	c.IsOnHold = false
	return c
}

func (c RegisteredCall) WithError(code int) RegisteredCall {
	c.ErrorCode = &code
	return c
}

func (c RegisteredCall) WithMuted(muted bool) RegisteredCall {
	c.IsMuted = muted
	return c
}

func (c RegisteredCall) WithCurrentEndpoint(e *Endpoint) RegisteredCall {
	if e != nil {
		cp := *e
		e = &cp
	}
	c.CurrentEndpoint = e
	return c
}

func (c RegisteredCall) WithAvailableEndpoints(endpoints []Endpoint) RegisteredCall {
	if endpoints == nil {
		endpoints = []Endpoint{}
	}
	c.AvailableEndpoints = slices.Clone(endpoints)
	return c
}

func (c RegisteredCall) Ended(cause DisconnectCause) UnregisteredCall {
	return UnregisteredCall{
		ID:         c.ID,
		Attributes: c.Attributes,
		Cause:      cause,
	}
}
