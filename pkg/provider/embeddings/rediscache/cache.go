// Package rediscache decorates an embeddings.Provider with a Redis-backed
// vector cache.
//
// Item names repeat constantly ("battery" is embedded on every add, remove and
// find), so caching the vector per (model, text) saves a provider round trip
// on the hot path. Cache failures never fail an embed: on any Redis error the
// wrapped provider is called directly.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings"
)

// DefaultTTL is how long a cached vector lives when no TTL is configured.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "boxkeeper:emb:"

var _ embeddings.Provider = (*Provider)(nil)

// Provider wraps another embeddings.Provider and caches its vectors in Redis.
type Provider struct {
	next   embeddings.Provider
	client *redis.Client
	ttl    time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithTTL sets the expiry of cached vectors. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

// New wraps next with a cache stored in client.
func New(next embeddings.Provider, client *redis.Client, opts ...Option) *Provider {
	p := &Provider{next: next, client: client, ttl: DefaultTTL}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := p.key(text)
	raw, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decode(raw); ok {
			return vec, nil
		}
	case !errors.Is(err, redis.Nil):
		slog.Warn("rediscache: get failed", "err", err)
	}

	vec, err := p.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := p.client.Set(ctx, key, encode(vec), p.ttl).Err(); err != nil {
		slog.Warn("rediscache: set failed", "err", err)
	}
	return vec, nil
}

// EmbedBatch implements embeddings.Provider. Cached texts are served from
// Redis; the rest go to the wrapped provider in a single batch.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = p.key(t)
	}

	out := make([][]float32, len(texts))
	vals, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("rediscache: mget failed", "err", err)
		vals = nil
	}

	var missing []int
	for i := range texts {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				if vec, ok := decode([]byte(s)); ok {
					out[i] = vec
					continue
				}
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	fresh, err := p.next.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(pending) {
		return nil, fmt.Errorf("rediscache: expected %d embeddings, got %d", len(pending), len(fresh))
	}

	pipe := p.client.Pipeline()
	for j, i := range missing {
		out[i] = fresh[j]
		pipe.Set(ctx, keys[i], encode(fresh[j]), p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("rediscache: pipeline set failed", "err", err)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.next.Dimensions() }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.next.ModelID() }

// Ping reports whether Redis is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Provider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + p.next.ModelID() + ":" + hex.EncodeToString(sum[:])
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decode(raw []byte) ([]float32, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, true
}
