package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// LaunchPolicy holds the artificial setup delays applied around registration.
type LaunchPolicy struct {
	// IncomingDelay is waited before an incoming call is registered.
	IncomingDelay time.Duration
	// OutgoingActivateDelay is waited after an outgoing call is registered
	// before it is activated.
	OutgoingActivateDelay time.Duration
}

func DefaultLaunchPolicy() LaunchPolicy {
	return LaunchPolicy{
		IncomingDelay:         2 * time.Second,
		OutgoingActivateDelay: 2 * time.Second,
	}
}

// Launcher starts calls in the background on behalf of callers that cannot
// block for the lifetime of a call.
type Launcher struct {
	ctx    context.Context
	calls  *CallService
	policy LaunchPolicy
	wg     sync.WaitGroup
}

func NewLauncher(ctx context.Context, calls *CallService, policy LaunchPolicy) *Launcher {
	return &Launcher{
		ctx:    ctx,
		calls:  calls,
		policy: policy,
	}
}

// Launch returns domain.ErrAlreadyActive when a call is registered. Otherwise
// registration happens asynchronously and later failures are only logged.
// Two launches inside the incoming delay both return nil; the later one is
// rejected once its delay runs out.
func (l *Launcher) Launch(displayName, address string, incoming bool) error {
	if _, ok := l.calls.Current().(domain.RegisteredCall); ok {
		return domain.ErrAlreadyActive
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		if incoming && !sleep(l.ctx, l.policy.IncomingDelay) {
			return
		}

		registered := make(chan domain.RegisteredCall, 1)
		finished := make(chan struct{})
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer close(finished)
			err := l.calls.registerCall(l.ctx, displayName, address, incoming, func(call domain.RegisteredCall) {
				registered <- call
			})
			if errors.Is(err, domain.ErrAlreadyActive) {
				log.Warn().Str("name", displayName).Msg("Call rejected, another call is active")
			}
		}()

		if incoming {
			return
		}
		var call domain.RegisteredCall
		select {
		case call = <-registered:
		case <-finished:
			return
		case <-l.ctx.Done():
			return
		}
		if !sleep(l.ctx, l.policy.OutgoingActivateDelay) {
			return
		}
		l.activate(call)
	}()
	return nil
}

// activate sends Activate to call only while it is still the current record.
func (l *Launcher) activate(call domain.RegisteredCall) {
	cur, ok := l.calls.Current().(domain.RegisteredCall)
	if !ok || cur.ID != call.ID || !call.Dispatch(domain.Activate{}) {
		log.Debug().Str("call_id", call.ID.String()).Msg("Outgoing call gone before activation")
	}
}

// Wait blocks until every launched call has ended.
func (l *Launcher) Wait() {
	l.wg.Wait()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
