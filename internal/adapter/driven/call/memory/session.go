package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/Wyydra/callcore/internal/queue"
)

// Session is one open call. Besides port.CallControl it exposes the
// backend-originated side of a call (remote hangup, route changes, mute) so
// tests and the debug API can drive it.
type Session struct {
	id      domain.CallID
	attrs   domain.CallAttributes
	backend *Backend
	events  port.CallEvents

	ctx    context.Context
	cancel context.CancelFunc

	current   *fact[domain.Endpoint]
	available *fact[[]domain.Endpoint]
	muted     *fact[bool]

	mu  sync.Mutex
	ops []Op
}

var _ port.CallControl = (*Session)(nil)

func newSession(parent context.Context, b *Backend, attrs domain.CallAttributes, events port.CallEvents) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:        domain.NewCallID(),
		attrs:     attrs,
		backend:   b,
		events:    events,
		ctx:       ctx,
		cancel:    cancel,
		current:   newFact[domain.Endpoint](),
		available: newFact[[]domain.Endpoint](),
		muted:     newFact[bool](),
	}
	if len(b.opts.Endpoints) > 0 {
		s.available.publish(slices.Clone(b.opts.Endpoints))
		if i := b.opts.InitialEndpoint; i >= 0 && i < len(b.opts.Endpoints) {
			s.current.publish(b.opts.Endpoints[i])
		}
	}
	return s
}

func (s *Session) ID() domain.CallID {
	return s.id
}

func (s *Session) Attributes() domain.CallAttributes {
	return s.attrs
}

// Ops lists the control operations that reached the backend, in order.
func (s *Session) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ops)
}

func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) Answer(ctx context.Context, callType domain.CallType) error {
	return s.do(ctx, OpAnswer)
}

func (s *Session) SetActive(ctx context.Context) error {
	return s.do(ctx, OpSetActive)
}

func (s *Session) SetInactive(ctx context.Context) error {
	return s.do(ctx, OpSetInactive)
}

// Disconnect always ends the session, even when a failure was scripted.
func (s *Session) Disconnect(ctx context.Context, cause domain.DisconnectCause) error {
	err := s.do(ctx, OpDisconnect)
	s.cancel()
	return err
}

func (s *Session) RequestEndpointChange(ctx context.Context, endpoint domain.Endpoint) error {
	if err := s.do(ctx, OpEndpointChange); err != nil {
		return err
	}
	s.current.publish(endpoint)
	return nil
}

func (s *Session) CurrentEndpoint() <-chan domain.Endpoint {
	return s.current.subscribe(s.ctx)
}

func (s *Session) AvailableEndpoints() <-chan []domain.Endpoint {
	return s.available.subscribe(s.ctx)
}

func (s *Session) Muted() <-chan bool {
	return s.muted.subscribe(s.ctx)
}

func (s *Session) RemoteAnswer() {
	s.events.OnAnswered(s.ctx, domain.CallTypeAudio)
}

func (s *Session) RemoteActive() {
	s.events.OnActive(s.ctx)
}

func (s *Session) RemoteInactive() {
	s.events.OnInactive(s.ctx)
}

// RemoteDisconnect reports a hangup from the far end and closes the session.
func (s *Session) RemoteDisconnect(cause domain.DisconnectCause) {
	s.events.OnDisconnected(s.ctx, cause)
	s.cancel()
}

func (s *Session) SetCurrentEndpoint(e domain.Endpoint) {
	s.current.publish(e)
}

func (s *Session) SetAvailableEndpoints(endpoints []domain.Endpoint) {
	s.available.publish(slices.Clone(endpoints))
}

func (s *Session) SetMuted(muted bool) {
	s.muted.publish(muted)
}

func (s *Session) do(ctx context.Context, op Op) error {
	if lat := s.backend.opts.Latency; lat > 0 {
		t := time.NewTimer(lat)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return domain.ErrSessionClosed
		}
	}
	if s.ctx.Err() != nil {
		return domain.ErrSessionClosed
	}

	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()

	if code, fail := s.backend.nextFailure(op); fail {
		return &domain.ControlError{Code: code}
	}
	return nil
}

func (s *Session) close() {
	s.cancel()
	s.current.close()
	s.available.close()
	s.muted.close()
}

// fact is a value with replay-last subscriptions.
type fact[T any] struct {
	mu     sync.Mutex
	value  T
	set    bool
	closed bool
	subs   []*queue.Queue[T]
}

func newFact[T any]() *fact[T] {
	return &fact[T]{}
}

func (f *fact[T]) publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.value = v
	f.set = true
	for _, q := range f.subs {
		q.Push(v)
	}
}

func (f *fact[T]) subscribe(ctx context.Context) <-chan T {
	q := queue.New[T]()
	f.mu.Lock()
	if f.set {
		q.Push(f.value)
	}
	if f.closed {
		q.Close()
	} else {
		f.subs = append(f.subs, q)
	}
	f.mu.Unlock()

	out := make(chan T)
	go func() {
		defer close(out)
		for {
			v, ok := q.Pop(ctx)
			if !ok {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *fact[T]) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for _, q := range f.subs {
		q.Close()
	}
	f.subs = nil
}
