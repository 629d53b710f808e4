package emailauth

import (
	"context"
	"time"
)

// User is an authenticated identity. Email is the immutable primary key.
type User struct {
	Email     string     `bson:"_id" json:"email"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	// LastLogin is nil until the first successful verification and
	// monotonically non-decreasing afterwards.
	LastLogin *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
}

// UserStore persists one User per normalized email.
//
// Concurrent GetOrCreate calls for the same email must not create duplicate
// records; implementations serialize per key or rely on a uniqueness
// constraint. Networked implementations surface transient failures as errors
// wrapping [ErrStorageUnavailable].
type UserStore interface {
	// Get returns the user, reporting absence via ok=false.
	Get(ctx context.Context, email string) (user User, ok bool, err error)

	// GetOrCreate returns the existing user or idempotently creates one with
	// CreatedAt set to now and no LastLogin.
	GetOrCreate(ctx context.Context, email string) (User, error)

	// TouchLastLogin sets LastLogin to now. Touching an absent user is a
	// no-op.
	TouchLastLogin(ctx context.Context, email string) error
}
