package group

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresDirectory reads members from the shared members table.
//
// Expected schema:
//
//	CREATE TABLE group_members (
//	    user_id       TEXT PRIMARY KEY,
//	    group_id      TEXT NOT NULL,
//	    username      TEXT NOT NULL UNIQUE,
//	    display_name  TEXT NOT NULL,
//	    icon_letters  TEXT NOT NULL DEFAULT '',
//	    icon_color    TEXT NOT NULL DEFAULT '',
//	    role          TEXT NOT NULL,
//	    password_hash TEXT NOT NULL
//	);
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory { return &PostgresDirectory{db: db} }

const memberColumns = `user_id, group_id, username, display_name, icon_letters, icon_color, role, password_hash`

func scanMember(row *sql.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.UserID, &m.GroupID, &m.Username, &m.DisplayName,
		&m.IconLetters, &m.IconColor, &m.Role, &m.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	return m, err
}

func (d *PostgresDirectory) FindByUsername(ctx context.Context, username string) (Member, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE username = $1`, username)
	return scanMember(row)
}

func (d *PostgresDirectory) Member(ctx context.Context, groupID, userID string) (Member, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return scanMember(row)
}

func (d *PostgresDirectory) Members(ctx context.Context, groupID string) ([]Member, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = $1 ORDER BY display_name`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.Username, &m.DisplayName,
			&m.IconLetters, &m.IconColor, &m.Role, &m.PasswordHash); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
