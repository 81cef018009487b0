package callsession

import "time"

// CallType distinguishes the two call surfaces of the app. Both share one
// lifecycle; the type only selects the API path and whether video frames are
// expected on the media session.
type CallType string

const (
	TypePhone CallType = "phone"
	TypeVideo CallType = "video"
)

func (t CallType) Valid() bool { return t == TypePhone || t == TypeVideo }

// CallStatus is the backend-owned lifecycle state of a call.
type CallStatus string

const (
	StatusRinging CallStatus = "ringing"
	StatusActive  CallStatus = "active"
	StatusEnded   CallStatus = "ended"
	StatusMissed  CallStatus = "missed"
)

// validTransitions defines which status transitions are allowed.
// Terminal states have no outgoing edges; nothing reverts from ended/missed.
var validTransitions = map[CallStatus][]CallStatus{
	StatusRinging: {StatusActive, StatusEnded, StatusMissed},
	StatusActive:  {StatusEnded},
	StatusEnded:   {},
	StatusMissed:  {},
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s CallStatus) IsTerminal() bool {
	return s == StatusEnded || s == StatusMissed
}

// ParticipantStatus tracks each invitee through the call.
type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "invited"
	ParticipantAccepted ParticipantStatus = "accepted"
	ParticipantRejected ParticipantStatus = "rejected"
	ParticipantJoined   ParticipantStatus = "joined"
	ParticipantLeft     ParticipantStatus = "left"
	ParticipantMissed   ParticipantStatus = "missed"
)

// Participant is one group member's view inside a call.
// IconLetters/IconColor mirror the avatar fields the app renders.
type Participant struct {
	ParticipantID string            `json:"participant_id"`
	DisplayName   string            `json:"display_name"`
	IconLetters   string            `json:"icon_letters"`
	IconColor     string            `json:"icon_color"`
	Status        ParticipantStatus `json:"status"`
}

// Recording is the optional recording sub-resource of a call.
// Hidden is one-way: an admin can hide a recording but there is no unhide.
type Recording struct {
	URL        string `json:"url,omitempty"`
	Processing bool   `json:"processing"`
	Hidden     bool   `json:"is_hidden"`
}

// RecordingStatus values as derived by Status().
const (
	RecordingProcessing = "processing"
	RecordingReady      = "ready"
)

// Status derives processing/ready from URL presence and the processing flag.
func (r Recording) Status() string {
	if r.URL != "" && !r.Processing {
		return RecordingReady
	}
	return RecordingProcessing
}

// CallSession is the backend-owned record of a single phone or video call.
//
// Invariants:
// - Status transitions are monotonic (see validTransitions); terminal is sticky.
// - ConnectedAt is set exactly once, when the call first becomes active.
// - DurationMs is meaningful only once Status is ended.
// - Participants are unique by ParticipantID, in invite order.
type CallSession struct {
	CallID      string     `json:"call_id"`
	GroupID     string     `json:"group_id"`
	Type        CallType   `json:"type"`
	Status      CallStatus `json:"status"`
	InitiatedBy string     `json:"initiated_by"`

	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`

	Participants []Participant `json:"participants"`
	Recording    *Recording    `json:"recording,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant returns the participant with the given id, if present.
func (s *CallSession) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ParticipantID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// SetParticipantStatus updates one participant in place.
func (s *CallSession) SetParticipantStatus(id string, st ParticipantStatus) bool {
	for i := range s.Participants {
		if s.Participants[i].ParticipantID == id {
			s.Participants[i].Status = st
			return true
		}
	}
	return false
}

// JoinedCount reports how many participants are currently joined.
func (s *CallSession) JoinedCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.Status == ParticipantJoined {
			n++
		}
	}
	return n
}

// IsInitiator reports whether the given participant started the call.
func (s *CallSession) IsInitiator(participantID string) bool {
	return participantID != "" && s.InitiatedBy == participantID
}

// Clone returns a deep copy. Controllers hand out snapshots, never the live struct.
func (s *CallSession) Clone() *CallSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	if s.ConnectedAt != nil {
		t := *s.ConnectedAt
		out.ConnectedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	if s.Recording != nil {
		r := *s.Recording
		out.Recording = &r
	}
	return &out
}
