package emailauth

import "time"

// TokenIssuer converts a verified identity into a signed, time-bounded
// credential. The signing algorithm, key and encoding are opaque to the core;
// the jwt subpackage provides the bundled implementation.
type TokenIssuer interface {
	// Issue returns a signed token for the subject, valid for ttl.
	Issue(subject string, ttl time.Duration) (string, error)

	// Verify returns the subject of a valid token, or an error for anything
	// expired, tampered or otherwise unverifiable.
	Verify(token string) (string, error)
}
