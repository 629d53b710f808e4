package emailauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/passwordless/emailauth/mnemonic"
)

// SendResult reports a successful code issuance.
type SendResult struct {
	// ExpiresIn is how long the issued code remains verifiable.
	ExpiresIn time.Duration
}

// Service orchestrates the verification-code lifecycle: issuance with rate
// limiting, attempt-limited verification, and token issuance on success.
//
// A Service is safe for concurrent use after [Builder.Build]. Its own logic
// performs no blocking work; the stores and the mail sender are the only
// suspension points, and no lock is held across them.
type Service struct {
	config    Config
	codes     CodeStore
	users     UserStore
	mailer    MailSender
	issuer    TokenIssuer
	generator *mnemonic.Generator
	audit     *auditDispatcher
	metrics   *Metrics

	now func() time.Time
}

// SendVerificationCode generates a fresh code for the email, stores it
// (superseding and permanently invalidating any prior pending code) and
// delivers it. It fails with ErrRateLimited inside the configured issuance
// window and with ErrDeliveryFailed when mail transport fails; in the latter
// case the stored code remains valid and the caller may retry the send,
// subject to rate limiting.
func (s *Service) SendVerificationCode(ctx context.Context, email string) (SendResult, error) {
	if s.codes == nil || s.mailer == nil || s.generator == nil {
		return SendResult{}, ErrServiceNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return SendResult{}, err
	}

	now := s.now()

	if window := s.config.Code.RateLimitWindow; window > 0 {
		lastIssued, ok, err := s.codes.TouchIssued(ctx, email)
		if err != nil {
			return SendResult{}, s.storageFailure(ctx, auditEventSendCode, email, err)
		}
		if ok && now.Sub(lastIssued) < window {
			s.metrics.Inc(MetricSendRateLimited)
			s.audit.emit(ctx, auditEventSendCode, email, false, ErrRateLimited)
			return SendResult{}, ErrRateLimited
		}
	}

	code, err := s.generator.Generate(s.config.Code.WordCount, s.config.Code.Separator)
	if err != nil {
		return SendResult{}, err
	}

	record := VerificationRecord{
		Email:             email,
		Code:              code,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.config.Code.TTL),
		AttemptsRemaining: s.config.Code.MaxAttempts,
		LastIssuedAt:      now,
	}

	retention := s.config.Code.TTL
	if s.config.Code.RateLimitWindow > retention {
		retention = s.config.Code.RateLimitWindow
	}

	if err := s.codes.Put(ctx, email, record, retention); err != nil {
		return SendResult{}, s.storageFailure(ctx, auditEventSendCode, email, err)
	}

	if err := s.mailer.Send(ctx, email, code); err != nil {
		// The record stays stored; only delivery failed.
		s.metrics.Inc(MetricSendDeliveryFailure)
		wrapped := fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		s.audit.emit(ctx, auditEventSendCode, email, false, wrapped)
		return SendResult{}, wrapped
	}

	s.metrics.Inc(MetricSendSuccess)
	s.audit.emit(ctx, auditEventSendCode, email, true, nil)
	return SendResult{ExpiresIn: s.config.Code.TTL}, nil
}

// VerifyCode checks the submitted code against the outstanding record for the
// email and, on match, resolves the user (creating one when Users.AutoCreate
// is set), touches their last login and returns a signed token.
//
// Failed submissions consume one attempt each; for which of the expected
// outcomes is returned, see ErrCodeNotFound, ErrTooManyAttempts, ErrInvalidCode
// and ErrUserNotFound. None of them discloses whether a code ever existed or
// how many attempts remain.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	return s.verifyCode(ctx, email, code, s.config.Users.AutoCreate)
}

// RegisterAndVerify behaves like VerifyCode but always creates the user
// record when it does not exist yet, regardless of Users.AutoCreate.
func (s *Service) RegisterAndVerify(ctx context.Context, email, code string) (string, error) {
	return s.verifyCode(ctx, email, code, true)
}

func (s *Service) verifyCode(ctx context.Context, email, code string, autoCreateUser bool) (string, error) {
	if s.codes == nil || s.users == nil || s.issuer == nil {
		return "", ErrServiceNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	// Trim only; the stored code is compared verbatim.
	code = strings.TrimSpace(code)

	record, ok, err := s.codes.Get(ctx, email)
	if err != nil {
		return "", s.storageFailure(ctx, auditEventVerify, email, err)
	}
	if !ok || record.Expired(s.now()) {
		s.metrics.Inc(MetricVerifyNotFound)
		s.audit.emit(ctx, auditEventVerify, email, false, ErrCodeNotFound)
		return "", ErrCodeNotFound
	}

	if record.AttemptsRemaining <= 0 {
		s.metrics.Inc(MetricVerifyAttemptsExceeded)
		s.audit.emit(ctx, auditEventVerify, email, false, ErrTooManyAttempts)
		return "", ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		remaining, ok, err := s.codes.DecrementAttempts(ctx, email)
		if err != nil {
			return "", s.storageFailure(ctx, auditEventVerify, email, err)
		}
		if ok && remaining <= 0 {
			// The final attempt was just spent; the code is dead.
			s.metrics.Inc(MetricVerifyAttemptsExceeded)
			s.audit.emit(ctx, auditEventVerify, email, false, ErrTooManyAttempts)
			return "", ErrTooManyAttempts
		}
		s.metrics.Inc(MetricVerifyInvalidCode)
		s.audit.emit(ctx, auditEventVerify, email, false, ErrInvalidCode)
		return "", ErrInvalidCode
	}

	// Single use: the code can never verify again, even inside its TTL.
	if err := s.codes.Clear(ctx, email); err != nil {
		return "", s.storageFailure(ctx, auditEventVerify, email, err)
	}

	var user User
	if autoCreateUser {
		user, err = s.users.GetOrCreate(ctx, email)
		if err != nil {
			return "", s.storageFailure(ctx, auditEventVerify, email, err)
		}
	} else {
		var found bool
		user, found, err = s.users.Get(ctx, email)
		if err != nil {
			return "", s.storageFailure(ctx, auditEventVerify, email, err)
		}
		if !found {
			s.audit.emit(ctx, auditEventVerify, email, false, ErrUserNotFound)
			return "", ErrUserNotFound
		}
	}

	if err := s.users.TouchLastLogin(ctx, email); err != nil {
		return "", s.storageFailure(ctx, auditEventVerify, email, err)
	}

	token, err := s.issuer.Issue(user.Email, s.config.JWT.TTL)
	if err != nil {
		s.audit.emit(ctx, auditEventVerify, email, false, err)
		return "", fmt.Errorf("issue token: %w", err)
	}

	s.metrics.Inc(MetricVerifySuccess)
	s.audit.emit(ctx, auditEventVerify, email, true, nil)
	return token, nil
}

// Identity returns the email a previously issued token was bound to, or
// ErrTokenInvalid.
func (s *Service) Identity(token string) (string, error) {
	if s.issuer == nil {
		return "", ErrServiceNotReady
	}
	subject, err := s.issuer.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return subject, nil
}

// MetricsSnapshot copies the engine counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped because the buffer
// was full.
func (s *Service) AuditDropped() uint64 {
	return s.audit.droppedCount()
}

// Close drains and stops the audit dispatcher. The Service must not be used
// afterwards.
func (s *Service) Close() {
	s.audit.close()
}

func (s *Service) storageFailure(ctx context.Context, eventType, email string, err error) error {
	if !errors.Is(err, ErrStorageUnavailable) {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.metrics.Inc(MetricStorageUnavailable)
	s.audit.emit(ctx, eventType, email, false, err)
	return err
}
