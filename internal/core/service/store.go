package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/Wyydra/callcore/internal/queue"
)

type snapshot struct {
	record  domain.CallRecord
	version uint64
}

// CallStore holds the one process-wide call record. Reads are lock-free loads
// of an immutable snapshot. Writes are serialized so that every update is a
// function of the value immediately before it, and every subscriber sees
// writes in the same order.
type CallStore struct {
	current atomic.Pointer[snapshot]

	mu   sync.Mutex
	subs map[*queue.Queue[domain.CallRecord]]struct{}
}

func NewCallStore() *CallStore {
	s := &CallStore{
		subs: make(map[*queue.Queue[domain.CallRecord]]struct{}),
	}
	s.current.Store(&snapshot{record: domain.NoCall{}})
	return s
}

func (s *CallStore) Current() domain.CallRecord {
	return s.current.Load().record
}

// Version counts successful writes.
func (s *CallStore) Version() uint64 {
	return s.current.Load().version
}

func (s *CallStore) Set(record domain.CallRecord) {
	s.Update(func(domain.CallRecord) (domain.CallRecord, bool) {
		return record, true
	})
}

// Update publishes fn(current) when fn reports ok. fn runs under the write
// lock and must not call back into the store.
func (s *CallStore) Update(fn func(current domain.CallRecord) (domain.CallRecord, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	next, ok := fn(prev.record)
	if !ok {
		return false
	}
	s.current.Store(&snapshot{record: next, version: prev.version + 1})
	for q := range s.subs {
		q.Push(next)
	}
	return true
}

// Subscribe yields the current record followed by every later write until
// ctx is done, at which point the channel is closed. Slow readers never hold
// up writers.
func (s *CallStore) Subscribe(ctx context.Context) <-chan domain.CallRecord {
	q := queue.New[domain.CallRecord]()

	s.mu.Lock()
	q.Push(s.current.Load().record)
	s.subs[q] = struct{}{}
	s.mu.Unlock()

	out := make(chan domain.CallRecord)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, q)
			s.mu.Unlock()
			q.Close()
		}()

		for {
			record, ok := q.Pop(ctx)
			if !ok {
				return
			}
			select {
			case out <- record:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
