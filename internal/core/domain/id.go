package domain

import (
	"github.com/google/uuid"
)

type CallID uuid.UUID
type EndpointID uuid.UUID

func NewCallID() CallID {
	return CallID(uuid.New())
}

func NewEndpointID() EndpointID {
	return EndpointID(uuid.New())
}

func ParseEndpointID(s string) (EndpointID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EndpointID{}, err
	}
	return EndpointID(id), nil
}

func (id CallID) String() string {
	return uuid.UUID(id).String()
}

func (id EndpointID) String() string {
	return uuid.UUID(id).String()
}
