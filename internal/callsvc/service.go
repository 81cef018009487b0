package callsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"famline/internal/audit"
	"famline/internal/callsession"
	"famline/internal/callstore"
	"famline/internal/rbac"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("call not found")
	ErrNotParticipant  = errors.New("not a call participant")
	ErrNotInitiator    = errors.New("only the initiator may end the call for everyone")
	ErrCallTerminal    = errors.New("call already ended")
	ErrTooManyCalls    = errors.New("group call limit reached")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Caps bounds concurrent live calls per group.
type Caps interface {
	Acquire(ctx context.Context, groupID string) (bool, error)
	Release(ctx context.Context, groupID string) error
}

// NoopCaps disables the per-group cap (tests, single-node local runs).
type NoopCaps struct{}

func (NoopCaps) Acquire(context.Context, string) (bool, error) { return true, nil }
func (NoopCaps) Release(context.Context, string) error         { return nil }

// Service owns the server side of the call lifecycle. It is the only writer
// of call status; clients observe through List and request mutations through
// the verbs below.
type Service struct {
	live    callstore.LiveStore
	history callstore.HistoryStore
	audits  *audit.Service
	caps    Caps
	log     *slog.Logger

	ringTimeout time.Duration
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type Options struct {
	RingTimeout time.Duration
	Caps        Caps
	Audit       *audit.Service
	Logger      *slog.Logger
}

func New(live callstore.LiveStore, history callstore.HistoryStore, opts Options) *Service {
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = 45 * time.Second
	}
	if opts.Caps == nil {
		opts.Caps = NoopCaps{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		live:        live,
		history:     history,
		audits:      opts.Audit,
		caps:        opts.Caps,
		log:         opts.Logger,
		ringTimeout: opts.RingTimeout,
		clock:       time.Now,
	}
}

// Start initiates a call in the ringing state. The initiator counts as joined
// from the start; invitees begin as invited.
func (s *Service) Start(ctx context.Context, groupID string, t callsession.CallType, initiator callsession.Participant, invitees []callsession.Participant) (*callsession.CallSession, error) {
	if groupID == "" || initiator.ParticipantID == "" || !t.Valid() {
		return nil, ErrInvalidArgument
	}

	ok, err := s.caps.Acquire(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("call cap: %w", err)
	}
	if !ok {
		return nil, ErrTooManyCalls
	}

	now := s.clock().UTC()
	initiator.Status = callsession.ParticipantJoined

	parts := make([]callsession.Participant, 0, len(invitees)+1)
	parts = append(parts, initiator)
	for _, p := range invitees {
		if p.ParticipantID == initiator.ParticipantID {
			continue
		}
		p.Status = callsession.ParticipantInvited
		parts = append(parts, p)
	}

	sess := &callsession.CallSession{
		CallID:       uuid.NewString(),
		GroupID:      groupID,
		Type:         t,
		Status:       callsession.StatusRinging,
		InitiatedBy:  initiator.ParticipantID,
		Participants: parts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.live.Put(ctx, sess); err != nil {
		_ = s.caps.Release(ctx, groupID)
		return nil, err
	}
	return sess, nil
}

// List returns the live calls for a group. Ringing calls older than the ring
// timeout are expired to missed on the way out; there is no background sweeper.
func (s *Service) List(ctx context.Context, groupID string, t callsession.CallType) ([]*callsession.CallSession, error) {
	sessions, err := s.live.List(ctx, groupID, t)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	out := make([]*callsession.CallSession, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Status == callsession.StatusRinging && now.Sub(sess.CreatedAt) > s.ringTimeout {
			if err := s.terminate(ctx, sess, callsession.StatusMissed, now); err != nil {
				s.log.Warn("ring timeout expiry failed", "call_id", sess.CallID, "err", err)
				continue
			}
		}
		out = append(out, sess)
	}
	return out, nil
}

// Get returns one live call.
func (s *Service) Get(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error) {
	sess, err := s.live.Get(ctx, groupID, t, callID)
	if errors.Is(err, callstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sess, err
}

// Accept marks an invitee as accepted (pre-join, e.g. the incoming-call screen).
func (s *Service) Accept(ctx context.Context, groupID string, t callsession.CallType, callID, participantID string) (*callsession.CallSession, error) {
	return s.setParticipant(ctx, groupID, t, callID, participantID, callsession.ParticipantAccepted)
}

// Reject marks an invitee as having declined the call.
func (s *Service) Reject(ctx context.Context, groupID string, t callsession.CallType, callID, participantID string) (*callsession.CallSession, error) {
	return s.setParticipant(ctx, groupID, t, callID, participantID, callsession.ParticipantRejected)
}

func (s *Service) setParticipant(ctx context.Context, groupID string, t callsession.CallType, callID, participantID string, st callsession.ParticipantStatus) (*callsession.CallSession, error) {
	sess, err := s.Get(ctx, groupID, t, callID)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, ErrCallTerminal
	}
	if !sess.SetParticipantStatus(participantID, st) {
		return nil, ErrNotParticipant
	}
	sess.UpdatedAt = s.clock().UTC()
	if err := s.live.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Join marks a participant as joined. The first join beyond the initiator
// moves the call from ringing to active and sets ConnectedAt exactly once.
func (s *Service) Join(ctx context.Context, groupID string, t callsession.CallType, callID, participantID string) (*callsession.CallSession, error) {
	sess, err := s.Get(ctx, groupID, t, callID)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, ErrCallTerminal
	}
	if !sess.SetParticipantStatus(participantID, callsession.ParticipantJoined) {
		return nil, ErrNotParticipant
	}

	now := s.clock().UTC()
	if sess.Status == callsession.StatusRinging && sess.JoinedCount() >= 2 {
		sess.Status = callsession.StatusActive
		if sess.ConnectedAt == nil {
			connected := now
			sess.ConnectedAt = &connected
		}
	}
	sess.UpdatedAt = now
	if err := s.live.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// LeaveResult tells the leaving client whether its departure ended the call
// for everyone.
type LeaveResult struct {
	CallEnded bool
	Session   *callsession.CallSession
}

// Leave removes one participant. If the departure leaves fewer than two
// joined participants, the call ends as a side effect and the result says so.
func (s *Service) Leave(ctx context.Context, groupID string, t callsession.CallType, callID, participantID string) (LeaveResult, error) {
	sess, err := s.Get(ctx, groupID, t, callID)
	if err != nil {
		return LeaveResult{}, err
	}
	if sess.Status.IsTerminal() {
		return LeaveResult{}, ErrCallTerminal
	}
	if _, ok := sess.Participant(participantID); !ok {
		return LeaveResult{}, ErrNotParticipant
	}
	sess.SetParticipantStatus(participantID, callsession.ParticipantLeft)

	now := s.clock().UTC()
	if sess.JoinedCount() <= 1 {
		// Nobody left to talk to.
		status := callsession.StatusEnded
		if sess.ConnectedAt == nil {
			status = callsession.StatusMissed
		}
		if err := s.terminate(ctx, sess, status, now); err != nil {
			return LeaveResult{}, err
		}
		return LeaveResult{CallEnded: true, Session: sess}, nil
	}

	sess.UpdatedAt = now
	if err := s.live.Put(ctx, sess); err != nil {
		return LeaveResult{}, err
	}
	return LeaveResult{CallEnded: false, Session: sess}, nil
}

// End terminates the call for all participants. Only the initiator or a group
// admin may do this.
func (s *Service) End(ctx context.Context, groupID string, t callsession.CallType, callID, actorID, actorRole, actorIP string) (*callsession.CallSession, error) {
	sess, err := s.Get(ctx, groupID, t, callID)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, ErrCallTerminal
	}
	if !sess.IsInitiator(actorID) && !rbac.IsAdmin(actorRole) {
		return nil, ErrNotInitiator
	}

	now := s.clock().UTC()
	status := callsession.StatusEnded
	if sess.ConnectedAt == nil {
		status = callsession.StatusMissed
	}
	if err := s.terminate(ctx, sess, status, now); err != nil {
		return nil, err
	}

	if s.audits != nil {
		if err := s.audits.LogCallTerminated(ctx, groupID, actorID, actorRole, actorIP, callID, ""); err != nil {
			s.log.Warn("audit append failed", "call_id", callID, "err", err)
		}
	}
	return sess, nil
}

// AttachRecording records the uploaded artifact's URL. The call has usually
// been archived by the time the upload lands, so history is checked first and
// the live session second (upload racing the final leave).
func (s *Service) AttachRecording(ctx context.Context, groupID string, t callsession.CallType, callID, url string) error {
	if url == "" {
		return ErrInvalidArgument
	}
	rec := callsession.Recording{URL: url, Processing: false}

	err := s.history.SetRecording(ctx, callID, rec)
	if err == nil {
		return nil
	}
	if !errors.Is(err, callstore.ErrNotFound) {
		return err
	}

	sess, err := s.Get(ctx, groupID, t, callID)
	if err != nil {
		return err
	}
	sess.Recording = &rec
	sess.UpdatedAt = s.clock().UTC()
	return s.live.Put(ctx, sess)
}

// HideRecording flips the one-way hidden flag. The rbac layer has already
// established the caller is a group admin; the flag never comes back off here.
func (s *Service) HideRecording(ctx context.Context, groupID, callID, actorID, actorRole, actorIP string) error {
	sess, err := s.history.Get(ctx, callID)
	if errors.Is(err, callstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if sess.GroupID != groupID {
		return ErrNotFound
	}
	if sess.Recording == nil {
		return ErrNotFound
	}

	rec := *sess.Recording
	rec.Hidden = true
	if err := s.history.SetRecording(ctx, callID, rec); err != nil {
		return err
	}

	if s.audits != nil {
		if err := s.audits.LogRecordingHidden(ctx, groupID, actorID, actorRole, actorIP, callID, rec.URL); err != nil {
			s.log.Warn("audit append failed", "call_id", callID, "err", err)
		}
	}
	return nil
}

// History lists archived calls for the group.
func (s *Service) History(ctx context.Context, groupID string, t callsession.CallType, limit int) ([]*callsession.CallSession, error) {
	return s.history.ListEnded(ctx, groupID, t, limit)
}

// terminate moves a session to a terminal status, archives it, and removes it
// from the live store. Participants still ringing are marked missed, joined
// ones left.
func (s *Service) terminate(ctx context.Context, sess *callsession.CallSession, status callsession.CallStatus, now time.Time) error {
	if !sess.Status.CanTransitionTo(status) {
		return ErrCallTerminal
	}
	sess.Status = status
	ended := now
	sess.EndedAt = &ended
	sess.UpdatedAt = now
	if sess.ConnectedAt != nil {
		sess.DurationMs = now.Sub(*sess.ConnectedAt).Milliseconds()
	}
	for i := range sess.Participants {
		switch sess.Participants[i].Status {
		case callsession.ParticipantJoined:
			sess.Participants[i].Status = callsession.ParticipantLeft
		case callsession.ParticipantInvited, callsession.ParticipantAccepted:
			sess.Participants[i].Status = callsession.ParticipantMissed
		}
	}
	// Recording upload follows termination; mark it pending if anyone connected.
	if status == callsession.StatusEnded && sess.Recording == nil {
		sess.Recording = &callsession.Recording{Processing: true}
	}

	if err := s.history.Insert(ctx, sess); err != nil {
		return err
	}
	if err := s.live.Delete(ctx, sess.GroupID, sess.Type, sess.CallID); err != nil {
		s.log.Warn("live session delete failed", "call_id", sess.CallID, "err", err)
	}
	if err := s.caps.Release(ctx, sess.GroupID); err != nil {
		s.log.Warn("call cap release failed", "group_id", sess.GroupID, "err", err)
	}
	return nil
}
