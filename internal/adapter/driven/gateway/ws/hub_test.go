package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/callcore/internal/core/domain"
)

type fakeClient struct {
	id      string
	fail    bool
	mu      sync.Mutex
	events  []CallEvent
	closed  bool
	arrived chan struct{}
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id, arrived: make(chan struct{}, 16)}
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) SendCall(event CallEvent) error {
	if c.fail {
		return errors.New("broken pipe")
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.arrived <- struct{}{}
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) next(t *testing.T) CallEvent {
	t.Helper()
	select {
	case <-c.arrived:
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s got nothing", c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func registered(incoming bool) domain.RegisteredCall {
	attrs := domain.NewCallAttributes("Alice", "tel:123", incoming)
	return domain.NewRegisteredCall(domain.NewCallID(), attrs, domain.NewActionChannel())
}

func TestHub_BroadcastsToEveryClient(t *testing.T) {
	h := runHub(t)
	a, b := newFakeClient("a"), newFakeClient("b")
	h.Register(a)
	h.Register(b)

	call := registered(true)
	if err := h.NotifyCall(context.Background(), call); err != nil {
		t.Fatalf("NotifyCall: %v", err)
	}
	for _, c := range []*fakeClient{a, b} {
		ev := c.next(t)
		if ev.Event != "call_state" || ev.Call.ID != call.ID.String() {
			t.Fatalf("client %s got %+v", c.id, ev)
		}
	}
}

func TestHub_ReplaysLatestToNewClient(t *testing.T) {
	h := runHub(t)
	if err := h.NotifyCall(context.Background(), domain.NoCall{}); err != nil {
		t.Fatalf("NotifyCall: %v", err)
	}
	call := registered(false)
	if err := h.NotifyCall(context.Background(), call); err != nil {
		t.Fatalf("NotifyCall: %v", err)
	}

	c := newFakeClient("late")
	h.Register(c)
	if ev := c.next(t); ev.Call.State != StateRegistered {
		t.Fatalf("late client got %+v", ev.Call)
	}
}

func TestHub_DropsFailingClient(t *testing.T) {
	h := runHub(t)
	bad := newFakeClient("bad")
	bad.fail = true
	good := newFakeClient("good")
	h.Register(bad)
	h.Register(good)

	h.NotifyCall(context.Background(), domain.NoCall{})
	good.next(t)
	h.NotifyCall(context.Background(), registered(true))
	good.next(t)

	bad.mu.Lock()
	defer bad.mu.Unlock()
	if !bad.closed {
		t.Fatalf("failing client not closed")
	}
}

func TestHub_NotifyAfterStop(t *testing.T) {
	h := NewHub()
	h.Stop()
	if err := h.NotifyCall(context.Background(), domain.NoCall{}); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("NotifyCall = %v, want ErrHubStopped", err)
	}
}

func TestNewCallView(t *testing.T) {
	speaker := domain.Endpoint{ID: domain.NewEndpointID(), Name: "Speaker", Type: domain.EndpointSpeaker}
	ringing := registered(true)
	ongoing := registered(false).WithActive().WithCurrentEndpoint(&speaker).WithAvailableEndpoints([]domain.Endpoint{speaker})
	held := ongoing.WithInactive()

	tests := []struct {
		name    string
		record  domain.CallRecord
		state   string
		actions []string
	}{
		{"none", domain.NoCall{}, StateNone, nil},
		{"ringing incoming", ringing, StateRegistered, []string{"answer", "disconnect:REJECTED"}},
		{"ongoing", ongoing, StateRegistered, []string{"disconnect:LOCAL"}},
		{"on hold", held, StateRegistered, []string{"disconnect:LOCAL", "activate"}},
		{"ended", ongoing.Ended(domain.CauseRemote), StateUnregistered, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewCallView(tt.record)
			if v.State != tt.state {
				t.Fatalf("State = %q, want %q", v.State, tt.state)
			}
			var got []string
			for _, a := range v.Actions {
				s := a.Type
				if a.Cause != "" {
					s += ":" + a.Cause
				}
				got = append(got, s)
			}
			if len(got) != len(tt.actions) {
				t.Fatalf("actions = %v, want %v", got, tt.actions)
			}
			for i := range got {
				if got[i] != tt.actions[i] {
					t.Fatalf("actions = %v, want %v", got, tt.actions)
				}
			}
		})
	}

	v := NewCallView(ongoing)
	if v.CurrentEndpoint == nil || v.CurrentEndpoint.Type != "speaker" || len(v.AvailableEndpoints) != 1 {
		t.Fatalf("endpoint data = %+v", v)
	}
	if ended := NewCallView(ongoing.Ended(domain.CauseRemote)); ended.Cause != "REMOTE" {
		t.Fatalf("Cause = %q", ended.Cause)
	}
}
