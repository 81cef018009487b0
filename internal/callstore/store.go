package callstore

import (
	"context"
	"errors"

	"famline/internal/callsession"
)

var (
	ErrNotFound = errors.New("callstore: session not found")
)

// LiveStore holds in-flight call sessions. Entries live here from initiation
// until the session reaches a terminal status and is archived; the store is
// the single source of truth the poll endpoint serves from.
type LiveStore interface {
	Put(ctx context.Context, s *callsession.CallSession) error
	Get(ctx context.Context, groupID string, callType callsession.CallType, callID string) (*callsession.CallSession, error)
	List(ctx context.Context, groupID string, callType callsession.CallType) ([]*callsession.CallSession, error)
	Delete(ctx context.Context, groupID string, callType callsession.CallType, callID string) error
}

// HistoryStore archives terminal sessions and recording metadata.
type HistoryStore interface {
	Insert(ctx context.Context, s *callsession.CallSession) error
	ListEnded(ctx context.Context, groupID string, callType callsession.CallType, limit int) ([]*callsession.CallSession, error)
	SetRecording(ctx context.Context, callID string, rec callsession.Recording) error
	Get(ctx context.Context, callID string) (*callsession.CallSession, error)
}
