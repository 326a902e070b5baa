package audit

import "time"

// Event is an immutable, append-only audit log record of an authentication event.
//
// Invariants:
// - Events are never updated or deleted.
// - Token values are never recorded, only the identifiers they resolve to.
// - Capture is best-effort; callers do not fail auth flows on audit errors.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	UserID    string `json:"user_id,omitempty" db:"user_id"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`
	// Email is kept for failed logins where no user id is known.
	Email string `json:"email,omitempty" db:"email"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	Message   string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventLogin         EventType = "login"
	EventLoginFailed   EventType = "login_failed"
	EventRefresh       EventType = "refresh"
	EventRefreshFailed EventType = "refresh_failed"
	EventRefreshReuse  EventType = "refresh_reuse"
	EventLogout        EventType = "logout"
)
