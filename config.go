package emailauth

import (
	"errors"
	"time"

	"github.com/passwordless/emailauth/mnemonic"
)

// Config holds the full configuration surface of a [Service].
//
// Config instances are intended to be populated before [Builder.Build] and
// treated as immutable afterwards.
type Config struct {
	Code    CodeConfig
	JWT     JWTConfig
	SMTP    SMTPConfig
	Users   UsersConfig
	Audit   AuditConfig
	Metrics MetricsConfig

	// RedisKeyPrefix prefixes every key written by the Redis code store.
	RedisKeyPrefix string
}

/*
====================================
CODE CONFIG
====================================
*/

// CodeConfig controls verification-code generation and lifecycle.
type CodeConfig struct {
	// WordCount is the number of wordlist words per code, 1 to 12.
	// Two words over a 2048-word list yield roughly 22 bits of entropy;
	// pick a count appropriate to your threat model.
	WordCount int

	// Language selects the wordlist. Must be one of the supported
	// mnemonic.Language values.
	Language mnemonic.Language

	// Separator joins the words of a code. Default is a single space.
	Separator string

	// TTL is how long an issued code remains verifiable.
	TTL time.Duration

	// MaxAttempts is the wrong-guess budget per issued code, at least 1.
	MaxAttempts int

	// RateLimitWindow is the minimum spacing between successive code
	// issuances for the same email. Zero disables rate limiting.
	RateLimitWindow time.Duration
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the bundled token issuer. Ignored when a custom
// [TokenIssuer] is supplied through [Builder.WithTokenIssuer].
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SMTP CONFIG
====================================
*/

// SMTPConfig configures the bundled SMTP mail sender. Ignored when a custom
// [MailSender] is supplied through [Builder.WithMailSender].
type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
	Subject  string
}

/*
====================================
USERS CONFIG
====================================
*/

// UsersConfig controls user-record resolution on successful verification.
type UsersConfig struct {
	// AutoCreate makes VerifyCode create a user record on first successful
	// verification. When false, VerifyCode fails with ErrUserNotFound for
	// unknown emails; RegisterAndVerify always creates.
	AutoCreate bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool
}

// MetricsConfig controls the in-process counter metrics.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Code: CodeConfig{
			WordCount:       2,
			Language:        mnemonic.English,
			Separator:       " ",
			TTL:             10 * time.Minute,
			MaxAttempts:     3,
			RateLimitWindow: time.Minute,
		},
		JWT: JWTConfig{
			TTL:           7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		SMTP: SMTPConfig{
			Host:    "localhost",
			Port:    "587",
			Subject: "Verification Code",
		},
		Users: UsersConfig{
			AutoCreate: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		RedisKeyPrefix: "ea",
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Code.WordCount < 1 || c.Code.WordCount > 12 {
		return errors.New("Code.WordCount must be between 1 and 12")
	}
	if !mnemonic.Supported(c.Code.Language) {
		return ErrUnsupportedLanguage
	}
	if c.Code.TTL <= 0 {
		return errors.New("Code.TTL must be positive")
	}
	if c.Code.MaxAttempts < 1 {
		return errors.New("Code.MaxAttempts must be at least 1")
	}
	if c.Code.RateLimitWindow < 0 {
		return errors.New("Code.RateLimitWindow must not be negative")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
