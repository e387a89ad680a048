package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/common"
)

const sessionKeyPrefix = "quote:session:"

// Session is a quote being edited. Every stored change bumps Revision so a
// client can drop responses older than the one it already rendered.
type Session struct {
	ID              string           `json:"id"`
	Revision        int64            `json:"revision"`
	PackageID       *int64           `json:"packageId,omitempty"`
	Rows            []Row            `json:"rows"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// SessionStore keeps sessions in Redis. Each write refreshes the TTL.
type SessionStore struct {
	R   *redis.Client
	TTL time.Duration
}

func (s SessionStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 2 * time.Hour
	}
	return s.TTL
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Create stores a new session at revision 1.
func (s SessionStore) Create(ctx context.Context, sess *Session) error {
	if s.R == nil {
		return errors.New("quote: redis client not configured")
	}
	now := time.Now().UTC()
	sess.Revision = 1
	sess.CreatedAt, sess.UpdatedAt = now, now
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode quote session: %w", err)
	}
	ok, err := s.R.SetNX(ctx, sessionKey(sess.ID), payload, s.ttl()).Result()
	if err != nil {
		return common.Unavailable("quote session store unavailable", err)
	}
	if !ok {
		return common.Conflict("quote session already exists", nil)
	}
	return nil
}

// Get loads a session.
func (s SessionStore) Get(ctx context.Context, id string) (Session, error) {
	if s.R == nil {
		return Session{}, errors.New("quote: redis client not configured")
	}
	raw, err := s.R.Get(ctx, sessionKey(id)).Bytes()
	return decodeSession(raw, err)
}

// Update applies fn to the stored session and writes it back with the next
// revision. A non-zero expected revision must match the stored one. A
// concurrent writer makes the update fail with a conflict; nothing retries.
func (s SessionStore) Update(ctx context.Context, id string, expected int64, fn func(*Session) error) (Session, error) {
	if s.R == nil {
		return Session{}, errors.New("quote: redis client not configured")
	}
	key := sessionKey(id)
	var out Session
	err := s.R.Watch(ctx, func(tx *redis.Tx) error {
		sess, err := decodeSession(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}
		if expected > 0 && sess.Revision != expected {
			return staleRevision(sess.Revision)
		}
		if err := fn(&sess); err != nil {
			return err
		}
		sess.Revision++
		sess.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode quote session: %w", err)
		}
		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, s.ttl())
			return nil
		}); err != nil {
			return err
		}
		out = sess
		return nil
	}, key)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, redis.TxFailedErr):
		return Session{}, common.Conflict("quote was modified concurrently", nil)
	case common.IsAppError(err):
		return Session{}, err
	default:
		return Session{}, common.Unavailable("quote session store unavailable", err)
	}
}

func decodeSession(raw []byte, err error) (Session, error) {
	if errors.Is(err, redis.Nil) {
		return Session{}, common.NotFound("quote not found", nil)
	}
	if err != nil {
		return Session{}, common.Unavailable("quote session store unavailable", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("decode quote session: %w", err)
	}
	return sess, nil
}

func staleRevision(current int64) error {
	return common.Conflict("quote revision is stale", map[string]int64{"revision": current})
}
