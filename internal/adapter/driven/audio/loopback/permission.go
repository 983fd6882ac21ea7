package loopback

import (
	"sync/atomic"

	"github.com/Wyydra/callcore/internal/core/port"
)

// Permission is a switchable microphone grant.
type Permission struct {
	granted atomic.Bool
	changes chan bool
}

var _ port.MicPermission = (*Permission)(nil)

func NewPermission(granted bool) *Permission {
	p := &Permission{changes: make(chan bool, 1)}
	p.granted.Store(granted)
	return p
}

func (p *Permission) Granted() bool {
	return p.granted.Load()
}

func (p *Permission) Changes() <-chan bool {
	return p.changes
}

// Set never blocks. Readers that fall behind only see the latest value.
func (p *Permission) Set(granted bool) {
	if p.granted.Swap(granted) == granted {
		return
	}
	select {
	case <-p.changes:
	default:
	}
	select {
	case p.changes <- granted:
	default:
	}
}
