package callstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"famline/internal/callsession"
	"famline/pkg/storage"
)

// PostgresHistory implements HistoryStore on Postgres.
//
// Expected schema:
//
//	CREATE TABLE call_history (
//	    call_id       TEXT PRIMARY KEY,
//	    group_id      TEXT NOT NULL,
//	    call_type     TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    initiated_by  TEXT NOT NULL,
//	    connected_at  TIMESTAMPTZ,
//	    ended_at      TIMESTAMPTZ,
//	    duration_ms   BIGINT NOT NULL DEFAULT 0,
//	    participants  JSONB NOT NULL,
//	    recording     JSONB,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX call_history_group_idx ON call_history (group_id, call_type, created_at DESC);
type PostgresHistory struct {
	db *sql.DB
}

func NewPostgresHistory(db *sql.DB) *PostgresHistory { return &PostgresHistory{db: db} }

func (p *PostgresHistory) Insert(ctx context.Context, s *callsession.CallSession) error {
	parts, err := json.Marshal(s.Participants)
	if err != nil {
		return err
	}
	var rec any
	if s.Recording != nil {
		raw, err := json.Marshal(s.Recording)
		if err != nil {
			return err
		}
		rec = raw
	}
	const q = `
		INSERT INTO call_history
			(call_id, group_id, call_type, status, initiated_by, connected_at, ended_at, duration_ms, participants, recording, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (call_id) DO UPDATE SET
			status = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at,
			duration_ms = EXCLUDED.duration_ms,
			participants = EXCLUDED.participants,
			updated_at = EXCLUDED.updated_at`
	_, err = p.db.ExecContext(ctx, q,
		s.CallID, s.GroupID, string(s.Type), string(s.Status), s.InitiatedBy,
		s.ConnectedAt, s.EndedAt, s.DurationMs, parts, rec, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresHistory) ListEnded(ctx context.Context, groupID string, t callsession.CallType, limit int) ([]*callsession.CallSession, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT call_id, group_id, call_type, status, initiated_by, connected_at, ended_at, duration_ms, participants, recording, created_at, updated_at
		FROM call_history
		WHERE group_id = $1 AND call_type = $2
		ORDER BY created_at DESC
		LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, groupID, string(t), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*callsession.CallSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresHistory) Get(ctx context.Context, callID string) (*callsession.CallSession, error) {
	const q = `
		SELECT call_id, group_id, call_type, status, initiated_by, connected_at, ended_at, duration_ms, participants, recording, created_at, updated_at
		FROM call_history
		WHERE call_id = $1`
	row := p.db.QueryRowContext(ctx, q, callID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (p *PostgresHistory) SetRecording(ctx context.Context, callID string, rec callsession.Recording) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return storage.WithTx(ctx, p.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE call_history SET recording = $2, updated_at = now() WHERE call_id = $1`,
			callID, raw,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*callsession.CallSession, error) {
	var (
		s         callsession.CallSession
		typ       string
		status    string
		connected sql.NullTime
		ended     sql.NullTime
		parts     []byte
		rec       []byte
	)
	if err := r.Scan(
		&s.CallID, &s.GroupID, &typ, &status, &s.InitiatedBy,
		&connected, &ended, &s.DurationMs, &parts, &rec, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Type = callsession.CallType(typ)
	s.Status = callsession.CallStatus(status)
	if connected.Valid {
		t := connected.Time
		s.ConnectedAt = &t
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	if err := json.Unmarshal(parts, &s.Participants); err != nil {
		return nil, err
	}
	if len(rec) > 0 {
		var rr callsession.Recording
		if err := json.Unmarshal(rec, &rr); err != nil {
			return nil, err
		}
		s.Recording = &rr
	}
	return &s, nil
}
