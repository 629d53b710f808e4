package emailauth

import (
	"context"
	"sync"
	"time"
)

// MemoryCodeStore is an in-process CodeStore suitable for tests, development
// and single-process deployments. It is not shared across server instances.
type MemoryCodeStore struct {
	mu      sync.Mutex
	records map[string]*VerificationRecord

	now func() time.Time
}

// NewMemoryCodeStore returns an empty in-process code store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{
		records: make(map[string]*VerificationRecord),
		now:     time.Now,
	}
}

// Put replaces any existing record for the email. The retention argument is
// ignored; expired records are evicted lazily on Get or on the next Put.
func (s *MemoryCodeStore) Put(_ context.Context, email string, record VerificationRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[email] = &record
	return nil
}

// Get returns the stored record. An expired record is evicted, but its
// issuance timestamp is retained so rate limiting survives code expiry.
func (s *MemoryCodeStore) Get(_ context.Context, email string) (VerificationRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return VerificationRecord{}, false, nil
	}
	if rec.Expired(s.now()) {
		// Keep only what rate limiting needs.
		s.records[email] = &VerificationRecord{
			Email:        rec.Email,
			LastIssuedAt: rec.LastIssuedAt,
		}
		return VerificationRecord{}, false, nil
	}
	return *rec, true, nil
}

// DecrementAttempts atomically lowers the attempt budget, not below zero.
func (s *MemoryCodeStore) DecrementAttempts(_ context.Context, email string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return 0, false, nil
	}
	if rec.AttemptsRemaining > 0 {
		rec.AttemptsRemaining--
	}
	return rec.AttemptsRemaining, true, nil
}

// Clear removes the record for the email.
func (s *MemoryCodeStore) Clear(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, email)
	return nil
}

// TouchIssued returns the last issuance time without mutating the record.
func (s *MemoryCodeStore) TouchIssued(_ context.Context, email string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok || rec.LastIssuedAt.IsZero() {
		return time.Time{}, false, nil
	}
	return rec.LastIssuedAt, true, nil
}
