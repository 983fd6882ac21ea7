package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// CallService owns the single live call: it registers it with the backend,
// applies queued actions one at a time and folds backend notifications into
// the store.
type CallService struct {
	backend port.CallBackend
	store   *CallStore

	// active is held from the start of RegisterCall until the store is back
	// to NoCall, so two registrations can never race past the store check.
	active atomic.Bool
}

func NewCallService(backend port.CallBackend, store *CallStore) *CallService {
	return &CallService{
		backend: backend,
		store:   store,
	}
}

func (s *CallService) Current() domain.CallRecord {
	return s.store.Current()
}

func (s *CallService) Subscribe(ctx context.Context) <-chan domain.CallRecord {
	return s.store.Subscribe(ctx)
}

// Dispatch enqueues action on the current call. It reports false when no
// call is registered or the call has already ended.
func (s *CallService) Dispatch(action domain.CallAction) bool {
	call, ok := s.store.Current().(domain.RegisteredCall)
	if !ok {
		return false
	}
	return call.Dispatch(action)
}

// RegisterCall registers a new call and blocks for as long as its backend
// session lasts. Whatever ends the session, the store is back to NoCall when
// it returns.
func (s *CallService) RegisterCall(ctx context.Context, displayName, address string, incoming bool) error {
	return s.registerCall(ctx, displayName, address, incoming, nil)
}

// registerCall is RegisterCall with a hook that receives the first record
// written for the call. The hook runs inside the session scope and must not
// block.
func (s *CallService) registerCall(ctx context.Context, displayName, address string, incoming bool, registered func(domain.RegisteredCall)) error {
	if _, ok := s.store.Current().(domain.RegisteredCall); ok {
		return domain.ErrAlreadyActive
	}
	if !s.active.CompareAndSwap(false, true) {
		return domain.ErrAlreadyActive
	}
	defer func() {
		s.store.Set(domain.NoCall{})
		s.active.Store(false)
	}()

	attrs := domain.NewCallAttributes(displayName, address, incoming)
	sess := &callSession{svc: s, attrs: attrs, actions: domain.NewActionChannel(), registered: registered}
	defer sess.actions.Close()

	l := log.With().Str("name", displayName).Str("direction", attrs.Direction.String()).Logger()
	l.Info().Msg("Registering call")

	err := s.backend.AddCall(ctx, attrs, sess, sess.open)
	sess.wait()
	if err != nil {
		l.Error().Err(err).Msg("Call session failed")
		return fmt.Errorf("register call: %w", err)
	}
	l.Info().Msg("Call session ended")
	return nil
}

// callSession is the per-registration state shared by the backend callbacks
// and the tasks started when the session opens.
type callSession struct {
	svc     *CallService
	attrs   domain.CallAttributes
	actions *domain.ActionChannel

	registered func(domain.RegisteredCall)

	id atomic.Pointer[domain.CallID]

	mu    sync.Mutex
	group *errgroup.Group
}

var _ port.CallEvents = (*callSession)(nil)

func (c *callSession) open(ctx context.Context, control port.CallControl) {
	id := control.ID()
	c.id.Store(&id)

	call := domain.NewRegisteredCall(id, c.attrs, c.actions)
	c.svc.store.Set(call)
	log.Info().Str("call_id", id.String()).Msg("Call registered")
	if c.registered != nil {
		c.registered(call)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.processActions(gctx, control)
		return nil
	})
	g.Go(func() error {
		collect(gctx, control.CurrentEndpoint(), func(e domain.Endpoint) {
			c.update(func(call domain.RegisteredCall) domain.CallRecord {
				return call.WithCurrentEndpoint(&e)
			})
		})
		return nil
	})
	g.Go(func() error {
		collect(gctx, control.AvailableEndpoints(), func(endpoints []domain.Endpoint) {
			c.update(func(call domain.RegisteredCall) domain.CallRecord {
				return call.WithAvailableEndpoints(endpoints)
			})
		})
		return nil
	})
	g.Go(func() error {
		collect(gctx, control.Muted(), func(muted bool) {
			c.update(func(call domain.RegisteredCall) domain.CallRecord {
				return call.WithMuted(muted)
			})
		})
		return nil
	})

	c.mu.Lock()
	c.group = g
	c.mu.Unlock()
}

func (c *callSession) wait() {
	c.mu.Lock()
	g := c.group
	c.mu.Unlock()
	if g != nil {
		_ = g.Wait()
	}
}

// update folds fn into the store if the current record is still this call.
func (c *callSession) update(fn func(domain.RegisteredCall) domain.CallRecord) bool {
	id := c.id.Load()
	if id == nil {
		return false
	}
	return c.svc.store.Update(func(cur domain.CallRecord) (domain.CallRecord, bool) {
		call, ok := cur.(domain.RegisteredCall)
		if !ok || call.ID != *id {
			return cur, false
		}
		next := fn(call)
		log.Debug().Str("call_id", id.String()).Str("record", describe(next)).Msg("Call updated")
		return next, true
	})
}

// live returns the current record if it is still this call.
func (c *callSession) live() (domain.RegisteredCall, bool) {
	id := c.id.Load()
	call, ok := c.svc.store.Current().(domain.RegisteredCall)
	if !ok || id == nil || call.ID != *id {
		return domain.RegisteredCall{}, false
	}
	return call, true
}

// end moves the call to Unregistered and stops accepting actions. A call
// that already ended keeps its first cause.
func (c *callSession) end(cause domain.DisconnectCause) {
	c.update(func(call domain.RegisteredCall) domain.CallRecord {
		return call.Ended(cause)
	})
	c.actions.Close()
}

func (c *callSession) OnAnswered(ctx context.Context, callType domain.CallType) {
	c.update(func(call domain.RegisteredCall) domain.CallRecord {
		return call.WithAnswered()
	})
}

func (c *callSession) OnActive(ctx context.Context) {
	c.update(func(call domain.RegisteredCall) domain.CallRecord {
		return call.WithActive()
	})
}

func (c *callSession) OnInactive(ctx context.Context) {
	c.update(func(call domain.RegisteredCall) domain.CallRecord {
		return call.WithInactive()
	})
}

func (c *callSession) OnDisconnected(ctx context.Context, cause domain.DisconnectCause) {
	log.Info().Str("cause", cause.String()).Msg("Backend disconnected call")
	c.end(cause)
}

func collect[T any](ctx context.Context, ch <-chan T, apply func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			apply(v)
		}
	}
}

func describe(record domain.CallRecord) string {
	switch r := record.(type) {
	case domain.NoCall:
		return "none"
	case domain.RegisteredCall:
		return fmt.Sprintf("registered(active=%t hold=%t muted=%t)", r.IsActive, r.IsOnHold, r.IsMuted)
	case domain.UnregisteredCall:
		return "unregistered(" + r.Cause.String() + ")"
	default:
		return fmt.Sprintf("%T", record)
	}
}
