package group

import (
	"context"
	"errors"
	"sync"

	"famline/internal/callsession"
)

var ErrMemberNotFound = errors.New("group: member not found")

// Member is a family-group member as the call subsystem needs to see one.
// PasswordHash is a bcrypt hash; it never leaves the server.
type Member struct {
	UserID      string `json:"user_id"`
	GroupID     string `json:"group_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IconLetters string `json:"icon_letters"`
	IconColor   string `json:"icon_color"`
	Role        string `json:"role"`

	PasswordHash string `json:"-"`
}

// Participant converts a member into their call-participant shape.
func (m Member) Participant() callsession.Participant {
	return callsession.Participant{
		ParticipantID: m.UserID,
		DisplayName:   m.DisplayName,
		IconLetters:   m.IconLetters,
		IconColor:     m.IconColor,
	}
}

// Directory resolves members for login and call invitations.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (Member, error)
	Member(ctx context.Context, groupID, userID string) (Member, error)
	Members(ctx context.Context, groupID string) ([]Member, error)
}

// MemoryDirectory is an in-memory Directory for tests and local seeding.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byUser  map[string]Member // key: username
	byGroup map[string][]Member
}

func NewMemoryDirectory(members ...Member) *MemoryDirectory {
	d := &MemoryDirectory{
		byUser:  make(map[string]Member),
		byGroup: make(map[string][]Member),
	}
	for _, m := range members {
		d.Add(m)
	}
	return d
}

func (d *MemoryDirectory) Add(m Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byUser[m.Username] = m
	d.byGroup[m.GroupID] = append(d.byGroup[m.GroupID], m)
}

func (d *MemoryDirectory) FindByUsername(_ context.Context, username string) (Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.byUser[username]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func (d *MemoryDirectory) Member(_ context.Context, groupID, userID string) (Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.byGroup[groupID] {
		if m.UserID == userID {
			return m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (d *MemoryDirectory) Members(_ context.Context, groupID string) ([]Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Member, len(d.byGroup[groupID]))
	copy(out, d.byGroup[groupID])
	return out, nil
}
