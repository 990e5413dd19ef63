package domain

import "time"

// Status is the lifecycle state of a membership application.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusWithdrawn Status = "withdrawn"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusWithdrawn:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool { return s.Valid() && s != StatusPending }

// ValidTransition reports whether from -> to is an allowed status edge.
// The only edges are pending -> approved | denied | withdrawn.
func ValidTransition(from, to Status) bool {
	return from == StatusPending && to.Valid() && to != StatusPending
}

// ApplicationResponse is one answered question from the application flow,
// kept in the order the flow presented it.
type ApplicationResponse struct {
	QuestionID string `json:"question_id,omitempty"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// ApplicationHistoryEntry records one status transition. Entries are
// append-only.
type ApplicationHistoryEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Actor  int64     `json:"actor,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Application is one membership request, unique per (chat, user) while live.
type Application struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Username string `json:"username,omitempty"`

	// Responses carries the structured form answers; Answer is the legacy
	// free-text fallback used when no structured responses were collected.
	Responses []ApplicationResponse `json:"responses,omitempty"`
	Answer    string                `json:"answer,omitempty"`

	Status    Status                    `json:"status"`
	Language  string                    `json:"language_code,omitempty"`
	Note      string                    `json:"note,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
	History   []ApplicationHistoryEntry `json:"history"`
}

// AnswerLength is the total answer text length: the sum over structured
// responses, or the legacy answer length when none exist.
func (a *Application) AnswerLength() int {
	if len(a.Responses) == 0 {
		return len(a.Answer)
	}
	total := 0
	for _, r := range a.Responses {
		total += len(r.Answer)
	}
	return total
}

// Clone returns a deep copy safe to hand to callers.
func (a *Application) Clone() Application {
	out := *a
	out.Responses = append([]ApplicationResponse(nil), a.Responses...)
	out.History = append([]ApplicationHistoryEntry(nil), a.History...)
	return out
}

// XPRecord is the accumulated score of one user in one chat, along with the
// most recently seen display fields for rendering leaderboards.
type XPRecord struct {
	UserID    int64     `json:"user_id"`
	Score     int64     `json:"score"`
	Username  string    `json:"username,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cup is one competition record with its podium (top placements, best first).
type Cup struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Podium      []string  `json:"podium"`
	CreatedAt   time.Time `json:"created_at"`
}

// Clone returns a deep copy of the cup.
func (c *Cup) Clone() Cup {
	out := *c
	out.Podium = append([]string(nil), c.Podium...)
	return out
}

// Admin is a privileged user within a chat scope. Owners cannot be removed
// while they are the last owner of the scope.
type Admin struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Owner    bool   `json:"owner,omitempty"`
}

// AdminOutcome distinguishes an insert from an update of an existing record.
type AdminOutcome string

const (
	AdminCreated AdminOutcome = "created"
	AdminUpdated AdminOutcome = "updated"
)

// TransitionEvent is one status change surfaced by Statistics.
type TransitionEvent struct {
	UserID int64     `json:"user_id"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// Statistics summarizes the application activity of one chat.
type Statistics struct {
	Total                int               `json:"total"`
	Pending              int               `json:"pending"`
	StatusCounts         map[Status]int    `json:"status_counts"`
	Languages            map[string]int    `json:"languages"`
	RecentTransitions    []TransitionEvent `json:"recent_transitions"`
	AveragePendingLength float64           `json:"average_pending_answer_length"`
}

// GroupSnapshot is a lightweight activity overview of one chat.
type GroupSnapshot struct {
	MembersTracked int        `json:"members_tracked"`
	TotalXP        int64      `json:"total_xp"`
	TopMember      *TopMember `json:"top_member,omitempty"`
	CupCount       int        `json:"cup_count"`
	RecentCup      *Cup       `json:"recent_cup,omitempty"`
	AdminsTracked  int        `json:"admins_tracked"`
	LastActivity   time.Time  `json:"last_activity"`
}

// TopMember is the highest scorer of a chat, with the level derived from the
// XP curve.
type TopMember struct {
	UserID  int64  `json:"user_id"`
	Display string `json:"display"`
	XP      int64  `json:"xp"`
	Level   int    `json:"level"`
}

// CupWins counts how many podium placements a user holds across all chats.
type CupWins struct {
	UserID int64 `json:"user_id"`
	Wins   int   `json:"wins"`
}
