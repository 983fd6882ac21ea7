package service

import (
	"context"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// processActions applies this call's actions strictly in arrival order until
// the channel is closed or the session ends. A failed control call never
// stops the loop.
func (c *callSession) processActions(ctx context.Context, control port.CallControl) {
	for {
		action, ok := c.actions.Receive(ctx)
		if !ok {
			return
		}
		if _, live := c.live(); !live {
			log.Debug().Str("action", string(action.Kind())).Msg("Dropping action for ended call")
			continue
		}
		c.apply(ctx, control, action)
	}
}

func (c *callSession) apply(ctx context.Context, control port.CallControl, action domain.CallAction) {
	l := log.With().Str("call_id", control.ID().String()).Str("action", string(action.Kind())).Logger()
	l.Debug().Msg("Applying action")

	switch a := action.(type) {
	case domain.Answer:
		if err := control.Answer(ctx, domain.CallTypeAudio); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.Warn().Err(err).Int("code", domain.ControlErrorCode(err)).Msg("Answer failed")
			c.end(domain.CauseBusy)
			if err := control.Disconnect(ctx, domain.CauseBusy); err != nil {
				l.Warn().Err(err).Msg("Disconnect after failed answer")
			}
			return
		}
		c.update(func(call domain.RegisteredCall) domain.CallRecord {
			return call.WithActive()
		})

	case domain.Disconnect:
		if err := control.Disconnect(ctx, a.Cause); err != nil {
			l.Warn().Err(err).Msg("Disconnect returned an error")
		}
		c.end(a.Cause)

	case domain.Hold:
		if err := control.SetInactive(ctx); err != nil {
			c.fail(ctx, l, err)
			return
		}
		c.update(func(call domain.RegisteredCall) domain.CallRecord {
			return call.WithInactive()
		})

	case domain.Activate:
		if err := control.SetActive(ctx); err != nil {
			c.fail(ctx, l, err)
			return
		}
		c.update(func(call domain.RegisteredCall) domain.CallRecord {
			return call.WithActive()
		})

	case domain.ToggleMute:
		c.update(func(call domain.RegisteredCall) domain.CallRecord {
			return call.WithMuted(!call.IsMuted)
		})

	case domain.SwitchAudioEndpoint:
		c.changeEndpoint(ctx, control, l, a.EndpointID)

	case domain.TransferCall:
		c.changeEndpoint(ctx, control, l, a.EndpointID)

	default:
		l.Warn().Msg("Unknown action")
	}
}

// changeEndpoint only asks for the route change. The record picks up the new
// endpoint when the backend reports it.
func (c *callSession) changeEndpoint(ctx context.Context, control port.CallControl, l zerolog.Logger, id domain.EndpointID) {
	call, ok := c.live()
	if !ok {
		return
	}
	endpoint, ok := call.FindEndpoint(id)
	if !ok {
		l.Debug().Str("endpoint_id", id.String()).Msg("No such endpoint")
		return
	}
	if err := control.RequestEndpointChange(ctx, endpoint); err != nil {
		c.fail(ctx, l, err)
		return
	}
	l.Debug().Str("endpoint", endpoint.Name).Msg("Endpoint change requested")
}

func (c *callSession) fail(ctx context.Context, l zerolog.Logger, err error) {
	if ctx.Err() != nil {
		return
	}
	code := domain.ControlErrorCode(err)
	l.Warn().Err(err).Int("code", code).Msg("Call control failed")
	c.update(func(call domain.RegisteredCall) domain.CallRecord {
		return call.WithError(code)
	})
}
