package loopback

import (
	"encoding/binary"
	"math"
)

// Tone is an endless microphone stand-in producing a 16-bit little-endian
// sine wave.
type Tone struct {
	step  float64
	phase float64
	amp   float64
}

func NewTone(freq float64, sampleRate int) *Tone {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Tone{
		step: 2 * math.Pi * freq / float64(sampleRate),
		amp:  math.MaxInt16 / 4,
	}
}

func (t *Tone) Read(p []byte) (int, error) {
	n := len(p) &^ 1
	for i := 0; i < n; i += 2 {
		sample := int16(t.amp * math.Sin(t.phase))
		binary.LittleEndian.PutUint16(p[i:], uint16(sample))
		t.phase += t.step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return n, nil
}
