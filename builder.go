package emailauth

import (
	"errors"
	"time"

	"github.com/passwordless/emailauth/jwt"
	"github.com/passwordless/emailauth/mnemonic"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Service]. Configure it, then call [Builder.Build]
// exactly once; construction is allocation-only and performs no I/O.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	codeStore CodeStore
	userStore UserStore
	mailer    MailSender
	issuer    TokenIssuer
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects a Redis-backed code store built over client.
// Overridden by WithCodeStore.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCodeStore injects a custom code store implementation.
func (b *Builder) WithCodeStore(store CodeStore) *Builder {
	b.codeStore = store
	return b
}

// WithUserStore injects a custom user store implementation.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithMailSender injects the mail delivery strategy. Without one, Build wires
// an SMTP sender from the SMTP config section.
func (b *Builder) WithMailSender(sender MailSender) *Builder {
	b.mailer = sender
	return b
}

// WithTokenIssuer injects the token issuer. Without one, Build wires the
// bundled JWT issuer from the JWT config section.
func (b *Builder) WithTokenIssuer(issuer TokenIssuer) *Builder {
	b.issuer = issuer
	return b
}

// WithAuditSink injects the audit event sink; it only receives events when
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, wires defaults for anything not
// injected, and returns a ready Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	generator, err := mnemonic.NewGenerator(cfg.Code.Language)
	if err != nil {
		return nil, err
	}

	codes := b.codeStore
	if codes == nil {
		if b.redis != nil {
			codes = NewRedisCodeStore(b.redis, cfg.RedisKeyPrefix)
		} else {
			codes = NewMemoryCodeStore()
		}
	}

	users := b.userStore
	if users == nil {
		users = NewMemoryUserStore()
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = NewSMTPMailer(cfg.SMTP, cfg.Code.TTL)
	}

	issuer := b.issuer
	if issuer == nil {
		jm, err := jwt.NewManager(jwt.Config{
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Leeway:        cfg.JWT.Leeway,
		})
		if err != nil {
			return nil, err
		}
		issuer = jm
	}

	service := &Service{
		config:    cfg,
		codes:     codes,
		users:     users,
		mailer:    mailer,
		issuer:    issuer,
		generator: generator,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		now:       time.Now,
	}

	b.built = true

	return service, nil
}
