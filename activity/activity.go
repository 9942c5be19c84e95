package activity

import (
	"context"
	"errors"
	"time"
)

// Action names the event an Entry records.
type Action string

const (
	ActionLogin      Action = "LOGIN"
	ActionSignup     Action = "SIGNUP"
	ActionLogout     Action = "LOGOUT"
	ActionRoleChange Action = "ROLE_CHANGE"
)

// Entry is one append-only activity log record.
type Entry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Email     string    `json:"email"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrStorageUnavailable signals the log store could not be reached.
var ErrStorageUnavailable = errors.New("activity storage unavailable")

// Repo is the persistence contract for activity entries.
type Repo interface {
	Append(ctx context.Context, entry *Entry) error
	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]*Entry, error)
}
