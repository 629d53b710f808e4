package emailauth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const codeRecordVersionV1 = 1

// RedisCodeStore is a CodeStore backed by Redis, for deployments with more
// than one server instance. Records are stored as versioned binary blobs under
// a single key per email; per-key atomicity of DecrementAttempts is provided
// by a WATCH transaction, so a racing Put simply wins as the last writer.
type RedisCodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCodeStore returns a CodeStore writing under prefix + ":code:".
func NewRedisCodeStore(client redis.UniversalClient, prefix string) *RedisCodeStore {
	if prefix == "" {
		prefix = "ea"
	}
	return &RedisCodeStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisCodeStore) key(email string) string {
	return s.prefix + ":code:" + email
}

// Put replaces any record for the email. The key expires after retention,
// which the caller sizes to cover both the code TTL and the rate-limit window.
func (s *RedisCodeStore) Put(ctx context.Context, email string, record VerificationRecord, retention time.Duration) error {
	encoded, err := encodeCodeRecord(&record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(email), encoded, retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Get returns the stored record. An expired record is reported absent but not
// deleted; the key TTL evicts it once the retention window closes.
func (s *RedisCodeStore) Get(ctx context.Context, email string) (VerificationRecord, bool, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return VerificationRecord{}, false, nil
	}
	if err != nil {
		return VerificationRecord{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	record, err := decodeCodeRecord(data)
	if err != nil {
		return VerificationRecord{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if record.Expired(time.Now()) {
		return VerificationRecord{}, false, nil
	}
	return *record, true, nil
}

// DecrementAttempts atomically lowers the attempt budget inside a WATCH
// transaction, preserving the key's remaining TTL.
func (s *RedisCodeStore) DecrementAttempts(ctx context.Context, email string) (int, bool, error) {
	const maxRetries = 4
	key := s.key(email)

	for i := 0; i < maxRetries; i++ {
		var remaining int

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeCodeRecord(data)
			if err != nil {
				return err
			}

			if record.AttemptsRemaining > 0 {
				record.AttemptsRemaining--
			}
			remaining = record.AttemptsRemaining

			updated, err := encodeCodeRecord(record)
			if err != nil {
				return err
			}

			ttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return redis.Nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return remaining, true, nil
	}

	// The key was rewritten on every retry; treat it as a superseding Put
	// having won the race.
	return 0, false, nil
}

// Clear removes the record for the email.
func (s *RedisCodeStore) Clear(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// TouchIssued returns the last issuance time without mutating the record.
func (s *RedisCodeStore) TouchIssued(ctx context.Context, email string) (time.Time, bool, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	record, err := decodeCodeRecord(data)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if record.LastIssuedAt.IsZero() {
		return time.Time{}, false, nil
	}
	return record.LastIssuedAt, true, nil
}

func encodeCodeRecord(record *VerificationRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)

	if record.AttemptsRemaining < 0 || record.AttemptsRemaining > 65535 {
		return nil, errors.New("code record attempts out of range")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(record.AttemptsRemaining)); err != nil {
		return nil, err
	}
	for _, ts := range []time.Time{record.CreatedAt, record.ExpiresAt, record.LastIssuedAt} {
		if err := binary.Write(&buf, binary.BigEndian, unixMilliOrZero(ts)); err != nil {
			return nil, err
		}
	}

	for _, field := range []string{record.Email, record.Code} {
		if len(field) > 65535 {
			return nil, errors.New("code record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*VerificationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid code record version")
	}

	var attempts uint16
	if err := binary.Read(reader, binary.BigEndian, &attempts); err != nil {
		return nil, err
	}

	var createdMs, expiresMs, issuedMs int64
	for _, dst := range []*int64{&createdMs, &expiresMs, &issuedMs} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, err
		}
	}

	record := &VerificationRecord{
		AttemptsRemaining: int(attempts),
		CreatedAt:         timeFromMilli(createdMs),
		ExpiresAt:         timeFromMilli(expiresMs),
		LastIssuedAt:      timeFromMilli(issuedMs),
	}

	for _, dst := range []*string{&record.Email, &record.Code} {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		field := make([]byte, n)
		if _, err := io.ReadFull(reader, field); err != nil {
			return nil, err
		}
		*dst = string(field)
	}

	return record, nil
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timeFromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
