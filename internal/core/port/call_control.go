package port

import (
	"context"

	"github.com/Wyydra/callcore/internal/core/domain"
)

// CallControl is the capability a backend hands out while a call session is
// open. Every operation may block on the backend; the returned error is the
// only truth about whether it happened. Rejections are *domain.ControlError.
type CallControl interface {
	ID() domain.CallID

	Answer(ctx context.Context, callType domain.CallType) error
	SetActive(ctx context.Context) error
	SetInactive(ctx context.Context) error
	Disconnect(ctx context.Context, cause domain.DisconnectCause) error
	RequestEndpointChange(ctx context.Context, endpoint domain.Endpoint) error

	// Fact streams. Each call returns a fresh subscription that first yields
	// the current value, if the backend has one. Channels are closed when the
	// session ends.
	CurrentEndpoint() <-chan domain.Endpoint
	AvailableEndpoints() <-chan []domain.Endpoint
	Muted() <-chan bool
}

// CallEvents receives the backend's asynchronous state callbacks. They may
// fire at any time while the session is open, concurrently with control
// operations.
type CallEvents interface {
	OnAnswered(ctx context.Context, callType domain.CallType)
	OnActive(ctx context.Context)
	OnInactive(ctx context.Context)
	OnDisconnected(ctx context.Context, cause domain.DisconnectCause)
}

// CallBackend opens call sessions. It is the only component that knows about
// the underlying telephony stack.
type CallBackend interface {
	// AddCall registers a call and, once the session is open, runs scope with
	// a context that is canceled when the session ends. scope runs before
	// AddCall returns and must not block. AddCall itself blocks until the
	// session is over.
	AddCall(ctx context.Context, attrs domain.CallAttributes, events CallEvents, scope func(ctx context.Context, control CallControl)) error
}
