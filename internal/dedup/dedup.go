// Package dedup implements the exactly-once-enqueue layer (§4.3): a shared
// KV store tracking processed (signature, trackedAccount) pairs and a
// short-TTL per-signature mutex, modeled on the teacher's outbox/inbox
// dedup tables in message_queue.go but against a distributed Redis store
// rather than local SQLite.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

const (
	processedSignaturesKey    = "processed_signatures"
	processedSignaturesKOLKey = "processed_signatures_kol"
	processingLockPrefix      = "processing_lock:"
	latestSignaturePrefix     = "latest_signature:"

	// DefaultLockTTL is the processing_lock expiry from §4.3: long enough
	// to cover a worst-case RPC fallback fetch plus classification, short
	// enough that a crashed worker's lock self-heals quickly.
	DefaultLockTTL = 5 * time.Minute
)

// pairKey is the JSON-encoded (signature, trackedAccount) member stored in
// the processed_signatures set.
type pairKey struct {
	Signature      string `json:"signature"`
	TrackedAccount string `json:"trackedAccount"`
}

func encodePair(signature, trackedAccount string) (string, error) {
	b, err := json.Marshal(pairKey{Signature: signature, TrackedAccount: trackedAccount})
	if err != nil {
		return "", fmt.Errorf("encode dedup pair: %w", err)
	}
	return string(b), nil
}

// Store wraps a Redis client with the dedup set, processing lock, and
// advisory last-seen-signature operations from §4.3.
type Store struct {
	client  *redis.Client
	lockTTL time.Duration
}

// New creates a Store over an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client, lockTTL: DefaultLockTTL}
}

func setKeyFor(kind accountKind) string {
	if kind == kindKOL {
		return processedSignaturesKOLKey
	}
	return processedSignaturesKey
}

type accountKind int

const (
	kindWhale accountKind = iota
	kindKOL
)

// TryEnqueue performs the atomic SADD-if-not-member described in §4.3: it
// returns claimed=true only when this call is the first to insert the pair,
// i.e. the caller owns enqueueing the job. KOL-tracked accounts use a
// separate set so whale and KOL pipelines never collide on the same key.
func (s *Store) TryEnqueue(ctx context.Context, signature, trackedAccount string, kol bool) (claimed bool, err error) {
	member, err := encodePair(signature, trackedAccount)
	if err != nil {
		return false, err
	}
	kind := kindWhale
	if kol {
		kind = kindKOL
	}
	added, err := s.client.WithContext(ctx).SAdd(setKeyFor(kind), member).Result()
	if err != nil {
		return false, fmt.Errorf("dedup sadd: %w", err)
	}
	return added == 1, nil
}

// Forget removes the (signature, trackedAccount) pair from the processed
// set, per §4.4 step 8's finally-path cleanup.
func (s *Store) Forget(ctx context.Context, signature, trackedAccount string, kol bool) error {
	member, err := encodePair(signature, trackedAccount)
	if err != nil {
		return err
	}
	kind := kindWhale
	if kol {
		kind = kindKOL
	}
	if err := s.client.WithContext(ctx).SRem(setKeyFor(kind), member).Err(); err != nil {
		return fmt.Errorf("dedup srem: %w", err)
	}
	return nil
}

// AcquireLock implements the processing_lock set-if-not-exists+expire
// mutex (§4.3, §4.4 step 1). ok=false means another worker already holds
// the lock and this job must be skipped, not retried.
func (s *Store) AcquireLock(ctx context.Context, signature string) (ok bool, err error) {
	key := processingLockPrefix + signature
	ok, err = s.client.WithContext(ctx).SetNX(key, time.Now().UTC().Format(time.RFC3339Nano), s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("dedup acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock releases a processing_lock early, per §4.4 step 8's finally
// path. A crashed worker's lock still self-heals via TTL expiry without
// this call.
func (s *Store) ReleaseLock(ctx context.Context, signature string) error {
	key := processingLockPrefix + signature
	if err := s.client.WithContext(ctx).Del(key).Err(); err != nil {
		return fmt.Errorf("dedup release lock: %w", err)
	}
	return nil
}

// RecordLatestSignature updates the advisory last-seen-signature hash
// entry for a tracked account (§4.3).
func (s *Store) RecordLatestSignature(ctx context.Context, trackedAccount, signature string) error {
	key := latestSignaturePrefix + trackedAccount
	if err := s.client.WithContext(ctx).Set(key, signature, 0).Err(); err != nil {
		return fmt.Errorf("dedup record latest signature: %w", err)
	}
	return nil
}

// LatestSignature returns the last-seen signature recorded for a tracked
// account, or "" if none is recorded yet.
func (s *Store) LatestSignature(ctx context.Context, trackedAccount string) (string, error) {
	key := latestSignaturePrefix + trackedAccount
	val, err := s.client.WithContext(ctx).Get(key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dedup latest signature: %w", err)
	}
	return val, nil
}
