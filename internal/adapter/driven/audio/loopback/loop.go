package loopback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/rs/zerolog/log"
	"github.com/zaf/g711"
)

const (
	DefaultSampleRate = 48000
	DefaultFrameSize  = 960 // 20ms at 48kHz
)

type Options struct {
	SampleRate int
	// FrameSize is the number of 16-bit samples moved per tick.
	FrameSize int
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.FrameSize <= 0 {
		o.FrameSize = DefaultFrameSize
	}
	return o
}

func (o Options) interval() time.Duration {
	return time.Duration(o.FrameSize) * time.Second / time.Duration(o.SampleRate)
}

// Loop copies microphone frames to the speaker, passing every frame through a
// G.711 u-law encode/decode the way a narrowband telephony leg would.
type Loop struct {
	mic     io.Reader
	speaker io.Writer
	opts    Options

	frames atomic.Uint64
}

var _ port.AudioLoop = (*Loop)(nil)

func New(mic io.Reader, speaker io.Writer, opts Options) *Loop {
	return &Loop{
		mic:     mic,
		speaker: speaker,
		opts:    opts.withDefaults(),
	}
}

// Frames counts frames written to the speaker since the loop was created.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

func (l *Loop) Run(ctx context.Context) error {
	pcm := make([]byte, l.opts.FrameSize*2)
	ticker := time.NewTicker(l.opts.interval())
	defer ticker.Stop()

	log.Debug().Int("sample_rate", l.opts.SampleRate).Int("frame_size", l.opts.FrameSize).Msg("Audio loop running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := io.ReadFull(l.mic, pcm); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read microphone: %w", err)
		}
		out := g711.DecodeUlaw(g711.EncodeUlaw(pcm))
		if _, err := l.speaker.Write(out); err != nil {
			return fmt.Errorf("write speaker: %w", err)
		}
		l.frames.Add(1)
	}
}
