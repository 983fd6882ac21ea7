package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/callcore/internal/adapter/driven/call/memory"
	"github.com/Wyydra/callcore/internal/core/domain"
)

type harness struct {
	t       *testing.T
	ctx     context.Context
	cancel  context.CancelFunc
	backend *memory.Backend
	store   *CallStore
	svc     *CallService
	records <-chan domain.CallRecord
	done    chan error
}

func newHarness(t *testing.T, opts memory.Options) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	backend := memory.NewBackend(opts)
	store := NewCallStore()
	h := &harness{
		t:       t,
		ctx:     ctx,
		cancel:  cancel,
		backend: backend,
		store:   store,
		svc:     NewCallService(backend, store),
		records: store.Subscribe(ctx),
		done:    make(chan error, 1),
	}
	if _, ok := h.next().(domain.NoCall); !ok {
		t.Fatalf("store did not start empty")
	}
	return h
}

// register starts a call and waits for its Registered record.
func (h *harness) register(incoming bool) (*memory.Session, domain.RegisteredCall) {
	h.t.Helper()
	go func() {
		h.done <- h.svc.RegisterCall(h.ctx, "Alice", "tel:123", incoming)
	}()
	sess, err := h.backend.WaitSession(h.ctx)
	if err != nil {
		h.t.Fatalf("WaitSession: %v", err)
	}
	call := h.nextRegistered()
	if call.ID != sess.ID() {
		h.t.Fatalf("registered id %s, session id %s", call.ID, sess.ID())
	}
	return sess, call
}

func (h *harness) next() domain.CallRecord {
	h.t.Helper()
	select {
	case r, ok := <-h.records:
		if !ok {
			h.t.Fatalf("subscription closed")
		}
		return r
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for a store write")
	}
	return nil
}

func (h *harness) nextRegistered() domain.RegisteredCall {
	h.t.Helper()
	r := h.next()
	call, ok := r.(domain.RegisteredCall)
	if !ok {
		h.t.Fatalf("record = %#v, want RegisteredCall", r)
	}
	return call
}

func (h *harness) expectEnd(cause domain.DisconnectCause) {
	h.t.Helper()
	r := h.next()
	ended, ok := r.(domain.UnregisteredCall)
	if !ok {
		h.t.Fatalf("record = %#v, want UnregisteredCall", r)
	}
	if ended.Cause != cause {
		h.t.Fatalf("cause = %s, want %s", ended.Cause, cause)
	}
	if _, ok := h.next().(domain.NoCall); !ok {
		h.t.Fatalf("store did not return to NoCall")
	}
	select {
	case err := <-h.done:
		if err != nil {
			h.t.Fatalf("RegisterCall returned %v", err)
		}
	case <-time.After(2 * time.Second):
		h.t.Fatalf("RegisterCall did not return")
	}
}

func (h *harness) expectQuiet() {
	h.t.Helper()
	select {
	case r := <-h.records:
		h.t.Fatalf("unexpected store write %#v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterCall_PublishesFreshRecord(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	_, call := h.register(false)

	if call.IsActive || call.IsOnHold || call.IsMuted || call.ErrorCode != nil {
		t.Fatalf("fresh record = %+v", call)
	}
	if call.CurrentEndpoint != nil || len(call.AvailableEndpoints) != 0 {
		t.Fatalf("fresh record has endpoint data: %+v", call)
	}
	if call.Attributes.DisplayName != "Alice" || call.Attributes.Address != "tel:123" || call.IsIncoming() {
		t.Fatalf("attributes = %+v", call.Attributes)
	}
}

func TestRegisterCall_RejectsSecondCall(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	h.register(true)

	before := h.store.Version()
	err := h.svc.RegisterCall(h.ctx, "Bob", "tel:456", false)
	if !errors.Is(err, domain.ErrAlreadyActive) {
		t.Fatalf("second RegisterCall = %v, want ErrAlreadyActive", err)
	}
	if h.store.Version() != before {
		t.Fatalf("store written by rejected registration")
	}
	h.expectQuiet()
}

func TestRegisterCall_ConcurrentRegistrationsOpenOneSession(t *testing.T) {
	backend := memory.NewBackend(memory.Options{InitialEndpoint: -1})
	store := NewCallStore()
	svc := NewCallService(backend, store)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.RegisterCall(ctx, "Alice", "tel:123", true)
		}()
	}

	sess, err := backend.WaitSession(ctx)
	if err != nil {
		t.Fatalf("WaitSession: %v", err)
	}

	rejected := 0
	for rejected < n-1 {
		select {
		case err := <-errs:
			if !errors.Is(err, domain.ErrAlreadyActive) {
				t.Fatalf("RegisterCall = %v, want ErrAlreadyActive", err)
			}
			rejected++
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d registrations rejected", rejected)
		}
	}

	sess.RemoteDisconnect(domain.CauseRemote)
	wg.Wait()
	if err := <-errs; err != nil {
		t.Fatalf("winning RegisterCall = %v", err)
	}
	if _, ok := store.Current().(domain.NoCall); !ok {
		t.Fatalf("store = %#v after call ended", store.Current())
	}
}

func TestAnswer_Success(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	sess, call := h.register(true)

	call.Dispatch(domain.Answer{})
	got := h.nextRegistered()
	if !got.IsActive || got.IsOnHold || got.ErrorCode != nil {
		t.Fatalf("after answer = %+v", got)
	}
	if ops := sess.Ops(); len(ops) != 1 || ops[0] != memory.OpAnswer {
		t.Fatalf("backend ops = %v", ops)
	}
}

func TestAnswer_FailureEndsCallAsBusy(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	h.backend.FailNext(memory.OpAnswer, 7)
	_, call := h.register(true)

	call.Dispatch(domain.Answer{})
	h.expectEnd(domain.CauseBusy)
}

func TestHoldThenActivate(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	_, call := h.register(false)

	call.Dispatch(domain.Hold{})
	call.Dispatch(domain.Activate{})

	held := h.nextRegistered()
	if !held.IsOnHold || held.ErrorCode != nil {
		t.Fatalf("after hold = %+v", held)
	}
	if held.IsActive {
		t.Fatalf("hold changed IsActive")
	}
	active := h.nextRegistered()
	if !active.IsActive || active.IsOnHold {
		t.Fatalf("after activate = %+v", active)
	}
	h.expectQuiet()
}

func TestHold_FailureRecordsCodeOnly(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	h.backend.FailNext(memory.OpSetInactive, 4)
	_, call := h.register(false)

	call.Dispatch(domain.Hold{})
	got := h.nextRegistered()
	if got.ErrorCode == nil || *got.ErrorCode != 4 {
		t.Fatalf("ErrorCode = %v, want 4", got.ErrorCode)
	}
	if got.IsOnHold || got.IsActive {
		t.Fatalf("failed hold changed state: %+v", got)
	}

	call.Dispatch(domain.Activate{})
	got = h.nextRegistered()
	if got.ErrorCode != nil || !got.IsActive {
		t.Fatalf("activate after failure = %+v", got)
	}
}

func TestActivate_Failure(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	h.backend.FailNext(memory.OpSetActive, 9)
	_, call := h.register(false)

	call.Dispatch(domain.Activate{})
	got := h.nextRegistered()
	if got.ErrorCode == nil || *got.ErrorCode != 9 || got.IsActive {
		t.Fatalf("after failed activate = %+v", got)
	}
}

func TestToggleMute_IsLocal(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	sess, call := h.register(false)

	call.Dispatch(domain.ToggleMute{})
	call.Dispatch(domain.ToggleMute{})
	if !h.nextRegistered().IsMuted {
		t.Fatalf("first toggle did not mute")
	}
	if h.nextRegistered().IsMuted {
		t.Fatalf("second toggle did not unmute")
	}
	if ops := sess.Ops(); len(ops) != 0 {
		t.Fatalf("toggle reached backend: %v", ops)
	}
}

func TestDisconnect_WhileOnHold(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	sess, call := h.register(false)

	call.Dispatch(domain.Hold{})
	h.nextRegistered()
	call.Dispatch(domain.Disconnect{Cause: domain.CauseLocal})
	h.expectEnd(domain.CauseLocal)

	before := h.store.Version()
	if call.Dispatch(domain.Activate{}) {
		t.Fatalf("Dispatch on ended call accepted")
	}
	if h.svc.Dispatch(domain.Answer{}) {
		t.Fatalf("service Dispatch without call accepted")
	}
	h.expectQuiet()
	if h.store.Version() != before {
		t.Fatalf("stale action wrote to the store")
	}
	ops := sess.Ops()
	if len(ops) != 2 || ops[1] != memory.OpDisconnect {
		t.Fatalf("backend ops = %v", ops)
	}
}

func TestActionsApplyInSendOrder(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1, Latency: time.Millisecond})
	sess, call := h.register(false)

	sequence := []domain.CallAction{
		domain.Hold{}, domain.Activate{}, domain.ToggleMute{}, domain.Hold{}, domain.ToggleMute{}, domain.Activate{},
	}
	for _, a := range sequence {
		if !call.Dispatch(a) {
			t.Fatalf("Dispatch(%s) rejected", a.Kind())
		}
	}

	type state struct{ active, hold, muted bool }
	want := []state{
		{false, true, false},
		{true, false, false},
		{true, false, true},
		{true, true, true},
		{true, true, false},
		{true, false, false},
	}
	for i, w := range want {
		got := h.nextRegistered()
		if (state{got.IsActive, got.IsOnHold, got.IsMuted}) != w {
			t.Fatalf("write %d (%s) = %+v, want %+v", i, sequence[i].Kind(), got, w)
		}
	}

	ops := sess.Ops()
	wantOps := []memory.Op{memory.OpSetInactive, memory.OpSetActive, memory.OpSetInactive, memory.OpSetActive}
	if len(ops) != len(wantOps) {
		t.Fatalf("backend ops = %v, want %v", ops, wantOps)
	}
	for i := range ops {
		if ops[i] != wantOps[i] {
			t.Fatalf("backend ops = %v, want %v", ops, wantOps)
		}
	}
}

func TestSwitchEndpoint_UnknownIsNoop(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	h.backend.FailNext(memory.OpSetActive, 2)
	sess, call := h.register(false)

	call.Dispatch(domain.Activate{})
	withErr := h.nextRegistered()

	call.Dispatch(domain.SwitchAudioEndpoint{EndpointID: domain.NewEndpointID()})
	call.Dispatch(domain.TransferCall{EndpointID: domain.NewEndpointID()})
	call.Dispatch(domain.ToggleMute{})

	got := h.nextRegistered()
	if !got.IsMuted {
		t.Fatalf("next write was not the mute toggle: %+v", got)
	}
	if got.ErrorCode == nil || *got.ErrorCode != *withErr.ErrorCode {
		t.Fatalf("error code changed: %v", got.ErrorCode)
	}
	for _, op := range sess.Ops() {
		if op == memory.OpEndpointChange {
			t.Fatalf("endpoint change reached backend")
		}
	}
}

func TestSwitchEndpoint_UpdatesFromBackendFact(t *testing.T) {
	earpiece := domain.Endpoint{ID: domain.NewEndpointID(), Name: "Earpiece", Type: domain.EndpointEarpiece}
	speaker := domain.Endpoint{ID: domain.NewEndpointID(), Name: "Speaker", Type: domain.EndpointSpeaker}
	h := newHarness(t, memory.Options{Endpoints: []domain.Endpoint{earpiece, speaker}, InitialEndpoint: 0})
	_, call := h.register(false)

	// Both facts are folded in, in either order.
	var latest domain.RegisteredCall
	for i := 0; i < 2; i++ {
		latest = h.nextRegistered()
	}
	if latest.CurrentEndpoint == nil || *latest.CurrentEndpoint != earpiece || len(latest.AvailableEndpoints) != 2 {
		t.Fatalf("facts not folded: %+v", latest)
	}

	call.Dispatch(domain.SwitchAudioEndpoint{EndpointID: speaker.ID})
	got := h.nextRegistered()
	if got.CurrentEndpoint == nil || *got.CurrentEndpoint != speaker {
		t.Fatalf("CurrentEndpoint = %v, want speaker", got.CurrentEndpoint)
	}
	if len(got.AvailableEndpoints) != 2 {
		t.Fatalf("endpoint change clobbered available endpoints")
	}

	call.Dispatch(domain.TransferCall{EndpointID: earpiece.ID})
	got = h.nextRegistered()
	if got.CurrentEndpoint == nil || *got.CurrentEndpoint != earpiece {
		t.Fatalf("CurrentEndpoint = %v, want earpiece", got.CurrentEndpoint)
	}
}

func TestSwitchEndpoint_FailureRecordsCode(t *testing.T) {
	speaker := domain.Endpoint{ID: domain.NewEndpointID(), Name: "Speaker", Type: domain.EndpointSpeaker}
	h := newHarness(t, memory.Options{Endpoints: []domain.Endpoint{speaker}, InitialEndpoint: -1})
	h.backend.FailNext(memory.OpEndpointChange, 11)
	_, call := h.register(false)
	h.nextRegistered() // available endpoints

	call.Dispatch(domain.SwitchAudioEndpoint{EndpointID: speaker.ID})
	got := h.nextRegistered()
	if got.ErrorCode == nil || *got.ErrorCode != 11 || got.CurrentEndpoint != nil {
		t.Fatalf("after failed switch = %+v", got)
	}
}

func TestBackendCallbacks(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	sess, _ := h.register(true)

	sess.RemoteAnswer()
	if got := h.nextRegistered(); !got.IsActive || got.IsOnHold {
		t.Fatalf("after remote answer = %+v", got)
	}
	sess.RemoteInactive()
	if got := h.nextRegistered(); !got.IsOnHold {
		t.Fatalf("after remote inactive = %+v", got)
	}
	sess.RemoteActive()
	if got := h.nextRegistered(); !got.IsActive || got.IsOnHold {
		t.Fatalf("after remote active = %+v", got)
	}
	sess.SetMuted(true)
	if got := h.nextRegistered(); !got.IsMuted {
		t.Fatalf("mute fact not folded: %+v", got)
	}
	sess.RemoteDisconnect(domain.CauseRemote)
	h.expectEnd(domain.CauseRemote)
}

func TestRegisterCall_BackendFailure(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	h.backend.FailRegistration(errors.New("no line"))

	if err := h.svc.RegisterCall(h.ctx, "Alice", "tel:123", true); err == nil {
		t.Fatalf("expected registration error")
	}
	if _, ok := h.store.Current().(domain.NoCall); !ok {
		t.Fatalf("store = %#v after failed registration", h.store.Current())
	}
	if _, ok := h.next().(domain.NoCall); !ok {
		t.Fatalf("failed registration did not reset the store")
	}

	// The slot is free again.
	sess, _ := h.register(false)
	sess.RemoteDisconnect(domain.CauseRemote)
	h.expectEnd(domain.CauseRemote)
}

func TestRegisterCall_TeardownResetsStore(t *testing.T) {
	h := newHarness(t, memory.Options{InitialEndpoint: -1})
	ctx, cancel := context.WithCancel(h.ctx)

	go func() {
		h.done <- h.svc.RegisterCall(ctx, "Alice", "tel:123", true)
	}()
	if _, err := h.backend.WaitSession(h.ctx); err != nil {
		t.Fatalf("WaitSession: %v", err)
	}
	h.nextRegistered()
	cancel()

	if _, ok := h.next().(domain.NoCall); !ok {
		t.Fatalf("store did not return to NoCall")
	}
	select {
	case err := <-h.done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("RegisterCall = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RegisterCall did not return")
	}
}
