package sessions

// Status is the stored lifecycle state of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUpdated   Status = "updated" // alias of pending, kept for records written by older callers
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusExpired   Status = "expired"
	// StatusAuthenticated holds platform credentials.
	StatusAuthenticated Status = "successful"
)

// AwaitingCallback lists the statuses a callback or a timeout may move on.
var AwaitingCallback = []Status{StatusPending, StatusUpdated}

// IsAwaitingCallback reports whether the browser leg has not finished yet.
func (s Status) IsAwaitingCallback() bool {
	return s == StatusPending || s == StatusUpdated
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusError, StatusExpired, StatusAuthenticated:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
