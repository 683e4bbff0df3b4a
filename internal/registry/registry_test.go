package registry

import "testing"

type fakeSession struct {
	id   string
	open bool
}

func (f *fakeSession) ConnID() string { return f.id }
func (f *fakeSession) IsOpen() bool   { return f.open }

func TestAddAndGet(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}

	if err := r.Add("m1", a); err != nil {
		t.Fatalf("unexpected error adding first member: %v", err)
	}

	got, ok := r.Get("a")
	if !ok || got != a {
		t.Fatalf("expected to get back the session just added")
	}
}

func TestAddRejectsThirdMember(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}
	b := &fakeSession{id: "b", open: true}
	c := &fakeSession{id: "c", open: true}

	if err := r.Add("m1", a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Add("m1", b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Add("m1", c); err != ErrMeetingFull {
		t.Fatalf("expected ErrMeetingFull, got %v", err)
	}
}

func TestPartnerReturnsOtherMember(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}
	b := &fakeSession{id: "b", open: true}
	r.Add("m1", a)
	r.Add("m1", b)

	p, ok := r.Partner("m1", "a")
	if !ok || p != b {
		t.Fatalf("expected partner b, got %v ok=%v", p, ok)
	}

	p, ok = r.Partner("m1", "b")
	if !ok || p != a {
		t.Fatalf("expected partner a, got %v ok=%v", p, ok)
	}
}

func TestPartnerAbsentWhenAlone(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}
	r.Add("m1", a)

	if _, ok := r.Partner("m1", "a"); ok {
		t.Fatalf("expected no partner with only one member")
	}
}

func TestPartnerFalseWhenOtherTransportClosed(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}
	b := &fakeSession{id: "b", open: false}
	r.Add("m1", a)
	r.Add("m1", b)

	if _, ok := r.Partner("m1", "a"); ok {
		t.Fatalf("expected no live partner once their transport closed")
	}
}

func TestRemoveFreesSlotForNewMember(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}
	b := &fakeSession{id: "b", open: true}
	r.Add("m1", a)
	r.Add("m1", b)

	r.Remove("a")

	c := &fakeSession{id: "c", open: true}
	if err := r.Add("m1", c); err != nil {
		t.Fatalf("expected room for a third member after removing one: %v", err)
	}
	if r.Size("m1") != 2 {
		t.Fatalf("expected 2 members, got %d", r.Size("m1"))
	}
}

func TestBroadcastSkipsClosedTransports(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}
	b := &fakeSession{id: "b", open: false}
	r.Add("m1", a)
	r.Add("m1", b)

	live := r.Broadcast("m1")
	if len(live) != 1 || live[0] != a {
		t.Fatalf("expected only the open session in broadcast, got %v", live)
	}
}

func TestRemoveUnknownConnIsNoop(t *testing.T) {
	r := New()
	r.Remove("ghost") // must not panic
}

func TestConnectionCountSpansMeetings(t *testing.T) {
	r := New()
	a := &fakeSession{id: "a", open: true}
	b := &fakeSession{id: "b", open: true}
	c := &fakeSession{id: "c", open: true}
	r.Add("m1", a)
	r.Add("m1", b)
	r.Add("m2", c)

	if got := r.ConnectionCount(); got != 3 {
		t.Fatalf("expected 3 connections across meetings, got %d", got)
	}

	r.Remove("b")
	if got := r.ConnectionCount(); got != 2 {
		t.Fatalf("expected 2 connections after remove, got %d", got)
	}
}
