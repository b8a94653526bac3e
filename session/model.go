package session

// Session is the server-side record behind an opaque session id.
// Timestamps are Unix seconds.
type Session struct {
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}
