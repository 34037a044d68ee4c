package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "session cache miss")

// SessionCache stores finished extraction sessions keyed by a digest of the
// request that produced them.
type SessionCache interface {
	Lookup(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error)
	Store(ctx context.Context, req *clinical.ExtractionRequest, session *clinical.ExtractionSession) error
	Invalidate(ctx context.Context, req *clinical.ExtractionRequest) error
}

type sessionCache struct {
	client *Client
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

// NewSessionCache constructs a SessionCache.  Zero ttl defaults to one hour;
// empty prefix defaults to "neurochart:".
func NewSessionCache(client *Client, prefix string, ttl time.Duration, logger logging.Logger) SessionCache {
	if prefix == "" {
		prefix = "neurochart:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &sessionCache{client: client, prefix: prefix, ttl: ttl, logger: logger.Named("session_cache")}
}

// RequestDigest derives the cache key material: document texts plus hints,
// hashed so the key length is bounded regardless of input size.
func RequestDigest(req *clinical.ExtractionRequest) string {
	h := sha256.New()
	for _, doc := range req.Documents {
		h.Write([]byte(doc))
		h.Write([]byte{0})
	}
	h.Write([]byte(req.Hints.Pathology))
	h.Write([]byte(req.Hints.PatientSex))
	h.Write([]byte{byte(req.Hints.PatientAge), byte(req.Hints.PatientAge >> 8)})
	return hex.EncodeToString(h.Sum(nil))
}

func (c *sessionCache) key(req *clinical.ExtractionRequest) string {
	return c.prefix + "session:" + RequestDigest(req)
}

func (c *sessionCache) Lookup(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	data, err := c.client.Get(ctx, c.key(req)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "session cache lookup failed")
	}
	var session clinical.ExtractionSession
	if err := json.Unmarshal(data, &session); err != nil {
		// corrupt entry: drop it and report a miss
		c.client.Del(ctx, c.key(req))
		c.logger.Warn("corrupt cached session dropped", logging.Err(err))
		return nil, ErrCacheMiss
	}
	return &session, nil
}

func (c *sessionCache) Store(ctx context.Context, req *clinical.ExtractionRequest, session *clinical.ExtractionSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "session serialization failed")
	}
	if err := c.client.Set(ctx, c.key(req), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "session cache store failed")
	}
	return nil
}

func (c *sessionCache) Invalidate(ctx context.Context, req *clinical.ExtractionRequest) error {
	return c.client.Del(ctx, c.key(req)).Err()
}
