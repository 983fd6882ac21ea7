package port

import "context"

// AudioLoop loops microphone input back to the active audio route. Run blocks
// until ctx is canceled or the loop fails.
type AudioLoop interface {
	Run(ctx context.Context) error
}

// MicPermission reports whether the microphone may be used. Changes fires
// whenever the answer may have flipped; it may return nil if it never does.
type MicPermission interface {
	Granted() bool
	Changes() <-chan bool
}
