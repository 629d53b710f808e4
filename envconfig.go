package emailauth

import (
	"os"
	"strconv"
	"time"

	"github.com/passwordless/emailauth/mnemonic"
)

// ConfigFromEnv reads configuration from EMAIL_AUTH_* environment variables,
// falling back to the defaults for anything unset. Loading a .env file first
// (for example with godotenv) is the caller's concern.
func ConfigFromEnv() Config {
	cfg := defaultConfig()

	cfg.Code.WordCount = getEnvInt("EMAIL_AUTH_CODE_WORD_COUNT", cfg.Code.WordCount)
	cfg.Code.Language = mnemonic.Language(getEnv("EMAIL_AUTH_CODE_LANGUAGE", string(cfg.Code.Language)))
	cfg.Code.Separator = getEnv("EMAIL_AUTH_CODE_SEPARATOR", cfg.Code.Separator)
	cfg.Code.TTL = getEnvSeconds("EMAIL_AUTH_CODE_TTL", cfg.Code.TTL)
	cfg.Code.MaxAttempts = getEnvInt("EMAIL_AUTH_MAX_ATTEMPTS", cfg.Code.MaxAttempts)
	cfg.Code.RateLimitWindow = getEnvSeconds("EMAIL_AUTH_RATE_LIMIT_WINDOW", cfg.Code.RateLimitWindow)

	cfg.JWT.SigningMethod = getEnv("EMAIL_AUTH_JWT_ALGORITHM", cfg.JWT.SigningMethod)
	if secret := os.Getenv("EMAIL_AUTH_JWT_SECRET"); secret != "" {
		cfg.JWT.PrivateKey = []byte(secret)
	}
	if days := getEnvInt("EMAIL_AUTH_JWT_EXPIRY_DAYS", 0); days > 0 {
		cfg.JWT.TTL = time.Duration(days) * 24 * time.Hour
	}
	cfg.JWT.Issuer = getEnv("EMAIL_AUTH_JWT_ISSUER", cfg.JWT.Issuer)

	cfg.SMTP.Host = getEnv("EMAIL_AUTH_SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnv("EMAIL_AUTH_SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnv("EMAIL_AUTH_SMTP_USER", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("EMAIL_AUTH_SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("EMAIL_AUTH_SMTP_FROM_EMAIL", cfg.SMTP.From)

	cfg.Users.AutoCreate = getEnvBool("EMAIL_AUTH_ALLOW_REGISTER_NEW_USERS", cfg.Users.AutoCreate)
	cfg.Audit.Enabled = getEnvBool("EMAIL_AUTH_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.RedisKeyPrefix = getEnv("EMAIL_AUTH_REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
