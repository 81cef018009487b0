package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Audit is internal-only; records are not exposed to group members.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.GroupID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogRecordingHidden records an admin hiding a call recording.
func (s *Service) LogRecordingHidden(ctx context.Context, groupID, actorUserID, actorRole, ip, callID, recordingID string) error {
	return s.Append(ctx, Event{
		GroupID:     groupID,
		Type:        EventTypeRecordingHidden,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CallID:      callID,
		RecordingID: recordingID,
		Message:     "recording hidden",
	})
}

// LogCallTerminated records an end-for-all, including who pulled the plug.
func (s *Service) LogCallTerminated(ctx context.Context, groupID, actorUserID, actorRole, ip, callID, metadata string) error {
	return s.Append(ctx, Event{
		GroupID:     groupID,
		Type:        EventTypeCallTerminated,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CallID:      callID,
		Message:     "call ended for all participants",
		Metadata:    metadata,
	})
}
