package service

import (
	"context"
	"errors"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/rs/zerolog/log"
)

// Monitor follows the call store: it forwards every record to the notifier
// and keeps the audio loop running exactly while the call is active, not on
// hold, not muted and the microphone may be used.
type Monitor struct {
	calls    *CallService
	notifier port.CallNotifier
	audio    port.AudioLoop
	mic      port.MicPermission

	refresh chan struct{}
	task    *audioTask
}

type audioTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *audioTask) running() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// NewMonitor accepts a nil audio loop or permission; without both the audio
// gate never opens.
func NewMonitor(calls *CallService, notifier port.CallNotifier, audio port.AudioLoop, mic port.MicPermission) *Monitor {
	return &Monitor{
		calls:    calls,
		notifier: notifier,
		audio:    audio,
		mic:      mic,
		refresh:  make(chan struct{}, 1),
	}
}

// Refresh re-sends the current record to the notifier without changing it.
func (m *Monitor) Refresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.stopAudio()

	records := m.calls.Subscribe(ctx)
	var permission <-chan bool
	if m.mic != nil {
		permission = m.mic.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping call monitor")
			return nil

		case record, ok := <-records:
			if !ok {
				return nil
			}
			m.handle(ctx, record)

		case _, ok := <-permission:
			if !ok {
				permission = nil
				continue
			}
			m.gate(ctx, m.calls.Current())

		case <-m.refresh:
			m.handle(ctx, m.calls.Current())
		}
	}
}

func (m *Monitor) handle(ctx context.Context, record domain.CallRecord) {
	if m.notifier != nil {
		if err := m.notifier.NotifyCall(ctx, record); err != nil {
			log.Error().Err(err).Msg("Error notifying call state")
		}
	}
	m.gate(ctx, record)
}

func (m *Monitor) gate(ctx context.Context, record domain.CallRecord) {
	call, ok := record.(domain.RegisteredCall)
	if ok && call.IsActive && !call.IsOnHold && !call.IsMuted && m.micGranted() {
		m.startAudio(ctx)
		return
	}
	m.stopAudio()
}

func (m *Monitor) micGranted() bool {
	return m.audio != nil && m.mic != nil && m.mic.Granted()
}

func (m *Monitor) startAudio(ctx context.Context) {
	if m.task != nil && m.task.running() {
		return
	}
	actx, cancel := context.WithCancel(ctx)
	task := &audioTask{cancel: cancel, done: make(chan struct{})}
	m.task = task

	log.Info().Msg("Starting audio loop")
	go func() {
		defer close(task.done)
		if err := m.audio.Run(actx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Audio loop failed")
		}
	}()
}

func (m *Monitor) stopAudio() {
	if m.task == nil {
		return
	}
	m.task.cancel()
	<-m.task.done
	m.task = nil
	log.Info().Msg("Audio loop stopped")
}
