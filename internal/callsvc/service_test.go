package callsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"famline/internal/callsession"
	"famline/internal/callstore"
	"famline/internal/rbac"
)

func newTestService(t *testing.T) (*Service, *callstore.MemoryLive, *callstore.MemoryHistory, *time.Time) {
	t.Helper()
	live := callstore.NewMemoryLive()
	history := callstore.NewMemoryHistory()
	svc := New(live, history, Options{RingTimeout: 45 * time.Second})
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return now }
	return svc, live, history, &now
}

func startCall(t *testing.T, svc *Service) *callsession.CallSession {
	t.Helper()
	sess, err := svc.Start(context.Background(), "g1", callsession.TypePhone,
		callsession.Participant{ParticipantID: "alice", DisplayName: "Alice"},
		[]callsession.Participant{
			{ParticipantID: "bob", DisplayName: "Bob"},
			{ParticipantID: "carol", DisplayName: "Carol"},
		})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return sess
}

func TestStart_RingingWithInitiatorJoined(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	sess := startCall(t, svc)

	if sess.Status != callsession.StatusRinging {
		t.Fatalf("expected ringing, got %s", sess.Status)
	}
	p, _ := sess.Participant("alice")
	if p.Status != callsession.ParticipantJoined {
		t.Fatalf("initiator should be joined")
	}
	p, _ = sess.Participant("bob")
	if p.Status != callsession.ParticipantInvited {
		t.Fatalf("invitee should be invited")
	}
	if sess.ConnectedAt != nil {
		t.Fatalf("connected_at must be unset while ringing")
	}
}

func TestJoin_SecondParticipantActivatesOnce(t *testing.T) {
	svc, _, _, now := newTestService(t)
	sess := startCall(t, svc)
	ctx := context.Background()

	got, err := svc.Join(ctx, "g1", callsession.TypePhone, sess.CallID, "bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if got.Status != callsession.StatusActive {
		t.Fatalf("expected active, got %s", got.Status)
	}
	if got.ConnectedAt == nil || !got.ConnectedAt.Equal(*now) {
		t.Fatalf("expected connected_at set to now")
	}
	first := *got.ConnectedAt

	// A third join must not move connected_at.
	*now = now.Add(10 * time.Second)
	got, err = svc.Join(ctx, "g1", callsession.TypePhone, sess.CallID, "carol")
	if err != nil {
		t.Fatalf("join carol: %v", err)
	}
	if !got.ConnectedAt.Equal(first) {
		t.Fatalf("connected_at must be set exactly once")
	}
}

func TestLeave_LastJoinedEndsCall(t *testing.T) {
	svc, live, history, now := newTestService(t)
	sess := startCall(t, svc)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "g1", callsession.TypePhone, sess.CallID, "bob"); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if _, err := svc.Join(ctx, "g1", callsession.TypePhone, sess.CallID, "carol"); err != nil {
		t.Fatalf("join carol: %v", err)
	}
	*now = now.Add(45 * time.Second)

	res, err := svc.Leave(ctx, "g1", callsession.TypePhone, sess.CallID, "carol")
	if err != nil {
		t.Fatalf("leave carol: %v", err)
	}
	if res.CallEnded {
		t.Fatalf("call should continue with two participants joined")
	}

	res, err = svc.Leave(ctx, "g1", callsession.TypePhone, sess.CallID, "bob")
	if err != nil {
		t.Fatalf("leave bob: %v", err)
	}
	if !res.CallEnded {
		t.Fatalf("leave that strands one participant must end the call")
	}
	if res.Session.Status != callsession.StatusEnded {
		t.Fatalf("expected ended, got %s", res.Session.Status)
	}
	if res.Session.DurationMs != 45000 {
		t.Fatalf("expected 45000ms duration, got %d", res.Session.DurationMs)
	}

	if _, err := live.Get(ctx, "g1", callsession.TypePhone, sess.CallID); !errors.Is(err, callstore.ErrNotFound) {
		t.Fatalf("terminal session must leave the live store")
	}
	archived, err := history.Get(ctx, sess.CallID)
	if err != nil {
		t.Fatalf("expected archived session: %v", err)
	}
	if archived.Status != callsession.StatusEnded {
		t.Fatalf("archived status: %s", archived.Status)
	}
}

func TestEnd_RequiresInitiatorOrAdmin(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	sess := startCall(t, svc)
	ctx := context.Background()

	if _, err := svc.End(ctx, "g1", callsession.TypePhone, sess.CallID, "bob", rbac.RoleMember, ""); !errors.Is(err, ErrNotInitiator) {
		t.Fatalf("expected ErrNotInitiator, got %v", err)
	}
	if _, err := svc.End(ctx, "g1", callsession.TypePhone, sess.CallID, "bob", rbac.RoleAdmin, ""); err != nil {
		t.Fatalf("admin end: %v", err)
	}
}

func TestEnd_NeverConnectedBecomesMissed(t *testing.T) {
	svc, _, history, _ := newTestService(t)
	sess := startCall(t, svc)
	ctx := context.Background()

	got, err := svc.End(ctx, "g1", callsession.TypePhone, sess.CallID, "alice", rbac.RoleMember, "")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if got.Status != callsession.StatusMissed {
		t.Fatalf("unanswered end should archive as missed, got %s", got.Status)
	}
	archived, _ := history.Get(ctx, sess.CallID)
	p, _ := archived.Participant("bob")
	if p.Status != callsession.ParticipantMissed {
		t.Fatalf("invitee should be marked missed, got %s", p.Status)
	}
}

func TestList_ExpiresStaleRinging(t *testing.T) {
	svc, _, history, now := newTestService(t)
	sess := startCall(t, svc)
	ctx := context.Background()

	*now = now.Add(46 * time.Second)
	live, err := svc.List(ctx, "g1", callsession.TypePhone)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("expected 1 session in response, got %d", len(live))
	}
	if live[0].Status != callsession.StatusMissed {
		t.Fatalf("expected missed after ring timeout, got %s", live[0].Status)
	}
	if _, err := history.Get(ctx, sess.CallID); err != nil {
		t.Fatalf("expired call must be archived: %v", err)
	}
}

func TestTerminate_IsIdempotent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	sess := startCall(t, svc)
	ctx := context.Background()

	if _, err := svc.End(ctx, "g1", callsession.TypePhone, sess.CallID, "alice", rbac.RoleMember, ""); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.End(ctx, "g1", callsession.TypePhone, sess.CallID, "alice", rbac.RoleMember, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second end should report not found, got %v", err)
	}
}

func TestAttachAndHideRecording(t *testing.T) {
	svc, _, history, _ := newTestService(t)
	sess := startCall(t, svc)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "g1", callsession.TypePhone, sess.CallID, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.End(ctx, "g1", callsession.TypePhone, sess.CallID, "alice", rbac.RoleMember, ""); err != nil {
		t.Fatalf("end: %v", err)
	}

	archived, _ := history.Get(ctx, sess.CallID)
	if archived.Recording == nil || archived.Recording.Status() != callsession.RecordingProcessing {
		t.Fatalf("ended call should carry a processing recording placeholder")
	}

	if err := svc.AttachRecording(ctx, "g1", callsession.TypePhone, sess.CallID, "/recordings/r.wav"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	archived, _ = history.Get(ctx, sess.CallID)
	if archived.Recording.Status() != callsession.RecordingReady {
		t.Fatalf("expected ready recording")
	}

	if err := svc.HideRecording(ctx, "g1", sess.CallID, "admin-1", rbac.RoleAdmin, "1.2.3.4"); err != nil {
		t.Fatalf("hide: %v", err)
	}
	archived, _ = history.Get(ctx, sess.CallID)
	if !archived.Recording.Hidden {
		t.Fatalf("expected hidden recording")
	}
	if archived.Recording.URL == "" {
		t.Fatalf("hiding must not erase the stored url")
	}
}

type rejectingCaps struct{}

func (rejectingCaps) Acquire(context.Context, string) (bool, error) { return false, nil }
func (rejectingCaps) Release(context.Context, string) error         { return nil }

func TestStart_RespectsGroupCallCap(t *testing.T) {
	live := callstore.NewMemoryLive()
	history := callstore.NewMemoryHistory()
	svc := New(live, history, Options{Caps: rejectingCaps{}})

	_, err := svc.Start(context.Background(), "g1", callsession.TypePhone,
		callsession.Participant{ParticipantID: "alice"}, nil)
	if !errors.Is(err, ErrTooManyCalls) {
		t.Fatalf("expected ErrTooManyCalls, got %v", err)
	}
}
