package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/rs/zerolog/log"
)

// Op names a control operation so failures can be scripted per operation.
type Op string

const (
	OpAnswer         Op = "answer"
	OpSetActive      Op = "set_active"
	OpSetInactive    Op = "set_inactive"
	OpDisconnect     Op = "disconnect"
	OpEndpointChange Op = "endpoint_change"
)

var ErrNoSession = errors.New("no open call session")

type Options struct {
	// Endpoints is what every new session reports as available.
	Endpoints []domain.Endpoint
	// InitialEndpoint is the index in Endpoints of the starting route, or -1
	// for none.
	InitialEndpoint int
	// Latency is applied to every control operation.
	Latency time.Duration
}

// Backend is an in-process call backend. Sessions behave like a real
// telephony stack that accepts every operation, unless a failure has been
// scripted with FailNext.
type Backend struct {
	opts Options

	mu          sync.Mutex
	session     *Session
	waiters     []chan *Session
	failures    map[Op][]int
	registerErr error
}

var _ port.CallBackend = (*Backend)(nil)

func NewBackend(opts Options) *Backend {
	return &Backend{
		opts:     opts,
		failures: make(map[Op][]int),
	}
}

// FailNext makes the next call of op fail with code.
func (b *Backend) FailNext(op Op, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], code)
}

// FailRegistration makes the next AddCall fail with err before any session
// is opened.
func (b *Backend) FailRegistration(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registerErr = err
}

func (b *Backend) Session() (*Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, b.session != nil
}

// WaitSession blocks until a session is open.
func (b *Backend) WaitSession(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	if b.session != nil {
		s := b.session
		b.mu.Unlock()
		return s, nil
	}
	ch := make(chan *Session, 1)
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()

	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Backend) AddCall(ctx context.Context, attrs domain.CallAttributes, events port.CallEvents, scope func(ctx context.Context, control port.CallControl)) error {
	b.mu.Lock()
	if err := b.registerErr; err != nil {
		b.registerErr = nil
		b.mu.Unlock()
		return fmt.Errorf("add call: %w", err)
	}
	if b.session != nil {
		b.mu.Unlock()
		return fmt.Errorf("add call: %w", domain.ErrAlreadyActive)
	}
	s := newSession(ctx, b, attrs, events)
	b.session = s
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	l := log.With().Str("call_id", s.id.String()).Logger()
	l.Info().Str("address", attrs.Address).Msg("Session opened")

	scope(s.ctx, s)
	for _, w := range waiters {
		w <- s
	}

	<-s.ctx.Done()
	s.close()

	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()

	l.Info().Msg("Session closed")
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session torn down: %w", err)
	}
	return nil
}

func (b *Backend) nextFailure(op Op) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	codes := b.failures[op]
	if len(codes) == 0 {
		return 0, false
	}
	b.failures[op] = codes[1:]
	return codes[0], true
}
