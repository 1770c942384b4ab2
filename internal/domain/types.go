package domain

import "time"

type SessionID string
type UserID string

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Timestamp is a Unix time in milliseconds. Message timestamps double as
// keys within a session.
type Timestamp = int64

func ToTime(ts Timestamp) time.Time {
	return time.UnixMilli(ts)
}

// Storage keys. Every key holds a whole document that is rewritten on save.
const (
	KeySessions    = "farum.sessions"
	KeyCurrentUser = "farum.currentUser"
	KeyUsers       = "farum.users"
	KeyAPIKey      = "farum.apiKey"
	KeyVideoAPIKey = "farum.videoApiKey"
)
