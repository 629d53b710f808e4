package emailauth

import (
	"context"
	"time"
)

// VerificationRecord is the single outstanding verification code for one
// email. The code store exclusively owns record lifetime; the orchestrator
// never caches a record across calls.
type VerificationRecord struct {
	// Email is the normalized (trimmed, lowercased) identity key.
	Email string
	// Code is the exact generated string, compared verbatim on verify.
	Code string
	// CreatedAt is when the code was generated.
	CreatedAt time.Time
	// ExpiresAt is CreatedAt plus the configured code TTL.
	ExpiresAt time.Time
	// AttemptsRemaining starts at MaxAttempts and is decremented per failed
	// verify. A record at 0 is dead and never verifies.
	AttemptsRemaining int
	// LastIssuedAt is the most recent issuance time for this email, used for
	// rate-limit decisions.
	LastIssuedAt time.Time
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *VerificationRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// CodeStore holds at most one VerificationRecord per normalized email.
//
// Implementations must serialize operations per key: a Put racing a
// DecrementAttempts for the same email must not corrupt state (last writer
// wins, no lost partial update). Networked implementations surface transient
// connectivity failures as errors wrapping [ErrStorageUnavailable].
type CodeStore interface {
	// Put unconditionally replaces any existing record for the email,
	// superseding a prior pending code. retention bounds how long the backend
	// keeps the record; callers pass at least the code TTL, and more when the
	// rate-limit window outlives it.
	Put(ctx context.Context, email string, record VerificationRecord, retention time.Duration) error

	// Get returns the stored record, reporting absence via ok=false.
	// Expired records may be reported absent and lazily evicted.
	Get(ctx context.Context, email string) (record VerificationRecord, ok bool, err error)

	// DecrementAttempts atomically decrements AttemptsRemaining by one, not
	// below zero, and returns the new value. A missing record reports
	// ok=false without error.
	DecrementAttempts(ctx context.Context, email string) (remaining int, ok bool, err error)

	// Clear removes the record. Clearing an absent record is not an error.
	Clear(ctx context.Context, email string) error

	// TouchIssued returns LastIssuedAt without mutating the record.
	TouchIssued(ctx context.Context, email string) (lastIssued time.Time, ok bool, err error)
}
