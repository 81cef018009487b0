package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events in an insert-only table.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id            TEXT PRIMARY KEY,
//	    group_id      TEXT NOT NULL,
//	    type          TEXT NOT NULL,
//	    actor_user_id TEXT,
//	    actor_role    TEXT,
//	    ip_address    TEXT,
//	    call_id       TEXT,
//	    recording_id  TEXT,
//	    message       TEXT,
//	    metadata      TEXT,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events
			(id, group_id, type, actor_user_id, actor_role, ip_address, call_id, recording_id, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.GroupID, string(e.Type), e.ActorUserID, e.ActorRole,
		e.IPAddress, e.CallID, e.RecordingID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
