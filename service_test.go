package emailauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// captureMailer records delivered codes and can simulate transport failure.
type captureMailer struct {
	mu       sync.Mutex
	lastCode string
	sends    int
	fail     error
}

func (m *captureMailer) Send(_ context.Context, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	m.lastCode = code
	return m.fail
}

func (m *captureMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCode
}

func (m *captureMailer) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func newTestService(t *testing.T, mutate func(*Config)) (*Service, *captureMailer, *testClock) {
	t.Helper()

	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "emailauth-test"
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	codes := NewMemoryCodeStore()
	codes.now = clock.Now
	users := NewMemoryUserStore()
	users.now = clock.Now
	mailer := &captureMailer{}

	svc, err := New().
		WithConfig(cfg).
		WithCodeStore(codes).
		WithUserStore(users).
		WithMailSender(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	svc.now = clock.Now
	return svc, mailer, clock
}

func TestSendVerificationCode(t *testing.T) {
	svc, mailer, _ := newTestService(t, nil)
	ctx := context.Background()

	result, err := svc.SendVerificationCode(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("SendVerificationCode failed: %v", err)
	}
	if result.ExpiresIn != 10*time.Minute {
		t.Fatalf("ExpiresIn = %v, want 10m", result.ExpiresIn)
	}

	code := mailer.last()
	if code == "" {
		t.Fatal("no code delivered")
	}
	if len(strings.Fields(code)) != 2 {
		t.Fatalf("code %q does not have 2 words", code)
	}
	if svc.MetricsSnapshot()[MetricSendSuccess] != 1 {
		t.Fatal("send success metric not incremented")
	}
}

func TestSendVerificationCodeInvalidEmail(t *testing.T) {
	svc, mailer, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, email := range []string{"", "   ", "not-an-email", "missing@tld@double"} {
		if _, err := svc.SendVerificationCode(ctx, email); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("SendVerificationCode(%q) = %v, want ErrInvalidEmail", email, err)
		}
	}
	if mailer.last() != "" {
		t.Fatal("nothing may be delivered for invalid emails")
	}
}

func TestSendVerificationCodeRateLimit(t *testing.T) {
	svc, mailer, clock := newTestService(t, func(c *Config) {
		c.Code.RateLimitWindow = time.Minute
	})
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	firstCode := mailer.last()

	clock.Advance(59 * time.Second)
	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("send inside window = %v, want ErrRateLimited", err)
	}
	if svc.MetricsSnapshot()[MetricSendRateLimited] != 1 {
		t.Fatal("rate-limited metric not incremented")
	}

	// A different email is not affected.
	if _, err := svc.SendVerificationCode(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send for other email failed: %v", err)
	}

	// At exactly the window boundary a new code is issued and the old one
	// is permanently dead.
	clock.Advance(time.Second)
	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send at window boundary failed: %v", err)
	}
	secondCode := mailer.last()
	if secondCode == firstCode {
		t.Fatal("reissued code must use fresh randomness")
	}

	if _, err := svc.VerifyCode(ctx, "alice@example.com", firstCode); err == nil {
		t.Fatal("superseded code must not verify")
	}
	if _, err := svc.VerifyCode(ctx, "alice@example.com", secondCode); err != nil {
		t.Fatalf("fresh code must verify: %v", err)
	}
}

func TestSendVerificationCodeDeliveryFailure(t *testing.T) {
	svc, mailer, _ := newTestService(t, nil)
	ctx := context.Background()

	mailer.setFail(errors.New("smtp: connection refused"))
	_, err := svc.SendVerificationCode(ctx, "alice@example.com")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// The stored code survived the transport failure and still verifies.
	code := mailer.last()
	if code == "" {
		t.Fatal("mailer never saw the code")
	}
	token, err := svc.VerifyCode(ctx, "alice@example.com", code)
	if err != nil {
		t.Fatalf("verify after delivery failure = %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if svc.MetricsSnapshot()[MetricSendDeliveryFailure] != 1 {
		t.Fatal("delivery failure metric not incremented")
	}
}

func TestVerifyCodeSuccess(t *testing.T) {
	svc, mailer, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	token, err := svc.VerifyCode(ctx, "alice@example.com", mailer.last())
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	email, err := svc.Identity(token)
	if err != nil {
		t.Fatalf("Identity failed: %v", err)
	}
	if email != "alice@example.com" {
		t.Fatalf("Identity = %q, want alice@example.com", email)
	}
	if svc.MetricsSnapshot()[MetricVerifySuccess] != 1 {
		t.Fatal("verify success metric not incremented")
	}
}

func TestVerifyCodeSingleUse(t *testing.T) {
	svc, mailer, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	code := mailer.last()

	if _, err := svc.VerifyCode(ctx, "alice@example.com", code); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "alice@example.com", code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("second verify = %v, want ErrCodeNotFound", err)
	}
}

func TestVerifyCodeNoOutstandingCode(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.VerifyCode(context.Background(), "alice@example.com", "abandon ability")
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestVerifyCodeExpired(t *testing.T) {
	svc, mailer, clock := newTestService(t, func(c *Config) {
		c.Code.TTL = 600 * time.Second
		c.Code.RateLimitWindow = 0
	})
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	code := mailer.last()

	clock.Advance(601 * time.Second)
	if _, err := svc.VerifyCode(ctx, "alice@example.com", code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("verify after expiry = %v, want ErrCodeNotFound", err)
	}
	if svc.MetricsSnapshot()[MetricVerifyNotFound] != 1 {
		t.Fatal("not-found metric not incremented")
	}
}

func TestVerifyCodeAttemptBudget(t *testing.T) {
	svc, mailer, _ := newTestService(t, func(c *Config) {
		c.Code.MaxAttempts = 3
	})
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	code := mailer.last()

	for i := 0; i < 2; i++ {
		if _, err := svc.VerifyCode(ctx, "alice@example.com", "wrong guess"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("wrong guess %d = %v, want ErrInvalidCode", i+1, err)
		}
	}

	// The third wrong guess spends the final attempt.
	if _, err := svc.VerifyCode(ctx, "alice@example.com", "wrong guess"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("final wrong guess = %v, want ErrTooManyAttempts", err)
	}

	// Even the correct code is dead once the budget is spent.
	if _, err := svc.VerifyCode(ctx, "alice@example.com", code); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("correct code after exhaustion = %v, want ErrTooManyAttempts", err)
	}
}

func TestVerifyCodeAttemptBudgetResetByReissue(t *testing.T) {
	svc, mailer, clock := newTestService(t, func(c *Config) {
		c.Code.MaxAttempts = 1
		c.Code.RateLimitWindow = 0
	})
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	clock.Advance(time.Second)
	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("re-send failed: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "alice@example.com", mailer.last()); err != nil {
		t.Fatalf("fresh code must carry a fresh budget: %v", err)
	}
}

func TestVerifyCodeConcurrentWrongGuesses(t *testing.T) {
	const budget = 100
	const guessers = 8

	svc, mailer, _ := newTestService(t, func(c *Config) {
		c.Code.MaxAttempts = budget
	})
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < guessers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.VerifyCode(ctx, "alice@example.com", "wrong guess"); !errors.Is(err, ErrInvalidCode) {
				t.Errorf("concurrent wrong guess = %v, want ErrInvalidCode", err)
			}
		}()
	}
	wg.Wait()

	rec, ok, err := svc.codes.Get(ctx, "alice@example.com")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if rec.AttemptsRemaining != budget-guessers {
		t.Fatalf("attempts = %d, want %d: concurrent guesses must each consume exactly one", rec.AttemptsRemaining, budget-guessers)
	}

	// The correct code still verifies within the remaining budget.
	if _, err := svc.VerifyCode(ctx, "alice@example.com", mailer.last()); err != nil {
		t.Fatalf("verify after concurrent guesses failed: %v", err)
	}
}

func TestVerifyCodeTrimsSubmission(t *testing.T) {
	svc, mailer, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if _, err := svc.VerifyCode(ctx, "alice@example.com", "  "+mailer.last()+"\n"); err != nil {
		t.Fatalf("verify with surrounding whitespace = %v", err)
	}
}

func TestEmailNormalization(t *testing.T) {
	svc, mailer, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "  Alice@EXAMPLE.com "); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	token, err := svc.VerifyCode(ctx, "alice@example.com", mailer.last())
	if err != nil {
		t.Fatalf("verify with normalized email = %v", err)
	}

	email, err := svc.Identity(token)
	if err != nil {
		t.Fatalf("Identity failed: %v", err)
	}
	if email != "alice@example.com" {
		t.Fatalf("token subject = %q, want normalized email", email)
	}
}

func TestVerifyCodeUserNotFoundWithoutAutoCreate(t *testing.T) {
	svc, mailer, _ := newTestService(t, func(c *Config) {
		c.Users.AutoCreate = false
	})
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "alice@example.com", mailer.last()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegisterAndVerifyCreatesUser(t *testing.T) {
	svc, mailer, _ := newTestService(t, func(c *Config) {
		c.Users.AutoCreate = false
	})
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	token, err := svc.RegisterAndVerify(ctx, "alice@example.com", mailer.last())
	if err != nil {
		t.Fatalf("RegisterAndVerify failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	// The user now exists; a later VerifyCode succeeds without auto-create.
	if _, err := svc.SendVerificationCode(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "bob@example.com", mailer.last()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user must still be rejected, got %v", err)
	}
}

func TestVerifySetsLastLogin(t *testing.T) {
	svc, mailer, clock := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "alice@example.com", mailer.last()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	u, ok, err := svc.users.Get(ctx, "alice@example.com")
	if err != nil || !ok {
		t.Fatalf("user lookup = ok=%v err=%v", ok, err)
	}
	if u.LastLogin == nil || !u.LastLogin.Equal(clock.Now()) {
		t.Fatalf("LastLogin = %v, want %v", u.LastLogin, clock.Now())
	}
}

func TestIdentityRejectsGarbageToken(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.Identity(token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Identity(%q) = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestStorageFailureSurfacesAsUnavailable(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	svc.codes = failingCodeStore{}
	ctx := context.Background()

	if _, err := svc.SendVerificationCode(ctx, "alice@example.com"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("send with failing store = %v, want ErrStorageUnavailable", err)
	}
	if _, err := svc.VerifyCode(ctx, "alice@example.com", "abandon ability"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("verify with failing store = %v, want ErrStorageUnavailable", err)
	}
	if svc.MetricsSnapshot()[MetricStorageUnavailable] != 2 {
		t.Fatal("storage metric not incremented")
	}
}

type failingCodeStore struct{}

func (failingCodeStore) Put(context.Context, string, VerificationRecord, time.Duration) error {
	return errors.New("connection reset")
}

func (failingCodeStore) Get(context.Context, string) (VerificationRecord, bool, error) {
	return VerificationRecord{}, false, errors.New("connection reset")
}

func (failingCodeStore) DecrementAttempts(context.Context, string) (int, bool, error) {
	return 0, false, errors.New("connection reset")
}

func (failingCodeStore) Clear(context.Context, string) error {
	return errors.New("connection reset")
}

func (failingCodeStore) TouchIssued(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("connection reset")
}
