// Package metadata implements the token metadata & price cache's symbol/
// name/image resolution ladder (§4.5): a read-through cache backed by a
// distributed KV, falling back to two external providers, with negative
// caching to suppress repeat lookups for tokens neither provider can
// resolve. Modeled on the teacher's RetryWorker background-sweeper shape
// (internal/node/retry_worker.go) for the negative-cache expiry sweep.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-redis/redis/v7"

	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// ErrNotFound is returned by a Provider when it has no metadata for a mint.
var ErrNotFound = errors.New("metadata: not found")

// Metadata is the symbol/name/image a provider resolves for one mint.
type Metadata struct {
	Symbol   string
	Name     string
	ImageURL string
}

// Provider is an external metadata source: the primary (RPC-backed) or the
// fallback (market-data provider), per §4.5 steps 3-4 and §6.
type Provider interface {
	FetchMetadata(ctx context.Context, mint string) (Metadata, error)
}

// invalidSymbols holds the placeholder values §4.5 step 1 treats as not a
// real symbol.
var invalidSymbols = map[string]bool{
	"Unknown": true,
	"Token":   true,
	"":        true,
}

// ValidSymbol implements §4.5 step 1's acceptance test: non-empty, not a
// known placeholder, not a shortened-address form, and free of control
// characters.
func ValidSymbol(symbol string) bool {
	if invalidSymbols[symbol] {
		return false
	}
	if isShortenedAddress(symbol) {
		return false
	}
	for _, r := range symbol {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func isShortenedAddress(s string) bool {
	return strings.Contains(s, "...")
}

// ShortenAddress renders the `xxxx...yyyy` fallback placeholder used when
// every resolution path fails (§4.5 steps 2 and 5).
func ShortenAddress(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return fmt.Sprintf("%s...%s", mint[:4], mint[len(mint)-4:])
}

// Resolved is the outcome of resolving one side of a swap's token metadata.
type Resolved struct {
	Metadata
	Source      model.MetadataSource
	IsShortened bool
}

// Cache is the read-through cache described in §4.5: a Redis-backed hash of
// resolved entries, a negative-cache TTL, and the primary/fallback provider
// chain.
type Cache struct {
	client       *redis.Client
	primary      Provider
	fallback     Provider
	negativeTTL  time.Duration
	log          *logging.Logger
}

// Config configures a Cache.
type Config struct {
	NegativeTTL time.Duration // default 30m
}

// New builds a Cache over an existing Redis client and the two provider
// implementations.
func New(client *redis.Client, primary, fallback Provider, cfg Config) *Cache {
	if cfg.NegativeTTL == 0 {
		cfg.NegativeTTL = 30 * time.Minute
	}
	return &Cache{
		client:      client,
		primary:     primary,
		fallback:    fallback,
		negativeTTL: cfg.NegativeTTL,
		log:         logging.GetDefault().Component("metadata"),
	}
}

func entryKey(mint string) string    { return "token_meta:" + mint }
func negativeKey(mint string) string { return "token_meta_negative:" + mint }

// Resolve implements the full §4.5 ladder for one mint. rawSymbol is the
// symbol the raw parse already carried, if any (step 1); it may be empty.
func (c *Cache) Resolve(ctx context.Context, mint, rawSymbol string) Resolved {
	if model.IsNativeMint(mint) {
		return Resolved{Metadata: Metadata{Symbol: model.NativeSymbol, Name: "Solana", ImageURL: ""}, Source: model.MetadataSourcePrimary}
	}

	// Step 1: trust an already-valid parsed symbol.
	if ValidSymbol(rawSymbol) {
		c.writeEntry(ctx, mint, Metadata{Symbol: rawSymbol}, model.MetadataSourcePrimary)
		return Resolved{Metadata: Metadata{Symbol: rawSymbol}, Source: model.MetadataSourcePrimary}
	}

	// Cached positive entry short-circuits the ladder.
	if cached, ok := c.readEntry(ctx, mint); ok {
		return cached
	}

	// Step 2: fresh negative cache entry suppresses provider calls.
	if c.isNegativeCached(ctx, mint) {
		return Resolved{
			Metadata:    Metadata{Symbol: ShortenAddress(mint)},
			Source:      model.MetadataSourceNegative,
			IsShortened: true,
		}
	}

	// Step 3: primary provider.
	if c.primary != nil {
		if md, err := c.primary.FetchMetadata(ctx, mint); err == nil && ValidSymbol(md.Symbol) {
			c.writeEntry(ctx, mint, md, model.MetadataSourcePrimary)
			return Resolved{Metadata: md, Source: model.MetadataSourcePrimary}
		}
	}

	// Step 4: fallback provider.
	if c.fallback != nil {
		if md, err := c.fallback.FetchMetadata(ctx, mint); err == nil && ValidSymbol(md.Symbol) {
			c.writeEntry(ctx, mint, md, model.MetadataSourceFallback)
			return Resolved{Metadata: md, Source: model.MetadataSourceFallback}
		}
	}

	// Step 5: negative-cache and fall back to a shortened placeholder.
	c.writeNegative(ctx, mint)
	return Resolved{
		Metadata:    Metadata{Symbol: ShortenAddress(mint)},
		Source:      model.MetadataSourceNegative,
		IsShortened: true,
	}
}

func (c *Cache) readEntry(ctx context.Context, mint string) (Resolved, bool) {
	if c.client == nil {
		return Resolved{}, false
	}
	vals, err := c.client.WithContext(ctx).HGetAll(entryKey(mint)).Result()
	if err != nil || len(vals) == 0 {
		return Resolved{}, false
	}
	return Resolved{
		Metadata: Metadata{Symbol: vals["symbol"], Name: vals["name"], ImageURL: vals["imageUrl"]},
		Source:   model.MetadataSource(vals["source"]),
	}, true
}

func (c *Cache) writeEntry(ctx context.Context, mint string, md Metadata, source model.MetadataSource) {
	if c.client == nil {
		return
	}
	if err := c.client.WithContext(ctx).HSet(entryKey(mint), map[string]interface{}{
		"symbol":   md.Symbol,
		"name":     md.Name,
		"imageUrl": md.ImageURL,
		"source":   string(source),
	}).Err(); err != nil {
		c.log.Warn("failed to cache token metadata", "mint", mint, "error", err)
	}
}

func (c *Cache) isNegativeCached(ctx context.Context, mint string) bool {
	if c.client == nil {
		return false
	}
	exists, err := c.client.WithContext(ctx).Exists(negativeKey(mint)).Result()
	return err == nil && exists > 0
}

func (c *Cache) writeNegative(ctx context.Context, mint string) {
	if c.client == nil {
		return
	}
	if err := c.client.WithContext(ctx).Set(negativeKey(mint), time.Now().UTC().Format(time.RFC3339), c.negativeTTL).Err(); err != nil {
		c.log.Warn("failed to write negative cache entry", "mint", mint, "error", err)
	}
}

// CreationAge implements §4.5's age rule: the native coin and its wrapped
// form use the fixed genesis timestamp; everything else asks the fallback
// (market-data) provider, returning nil on any failure or unparseable
// value.
func (c *Cache) CreationAge(ctx context.Context, mint string, ageProvider CreationAgeProvider) *time.Duration {
	if model.IsNativeMint(mint) {
		age := time.Since(model.NativeGenesis)
		return &age
	}
	if ageProvider == nil {
		return nil
	}
	createdAt, err := ageProvider.CreatedAt(ctx, mint)
	if err != nil {
		return nil
	}
	age := time.Since(createdAt)
	return &age
}

// CreationAgeProvider looks up a token mint's creation timestamp from the
// market-data provider (§4.5's age rule).
type CreationAgeProvider interface {
	CreatedAt(ctx context.Context, mint string) (time.Time, error)
}

// SweeperConfig configures the negative-cache expiry sweep.
type SweeperConfig struct {
	Interval  time.Duration // default 5m
	BatchSize int           // default 200, caps scan work per tick
}

// Sweeper periodically scans for expired negative-cache keys, mirroring the
// teacher's RetryWorker.cleanupOldMessages ticker shape (§9's "singleton
// process-wide setInterval cleaners" re-architecture note): it is a
// supervised background task tied to an explicit context rather than a
// global timer.
type Sweeper struct {
	client *redis.Client
	cfg    SweeperConfig
	log    *logging.Logger

	cancel context.CancelFunc
}

func NewSweeper(client *redis.Client, cfg SweeperConfig) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 200
	}
	return &Sweeper{client: client, cfg: cfg, log: logging.GetDefault().Component("metadata-sweeper")}
}

// Start launches the sweep loop. Redis TTLs already expire negative-cache
// keys on their own; this loop exists to log volume and give the cache a
// bounded-per-tick place to hang future eviction policy, per §10.3.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(ctx)
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	if s.client == nil {
		return
	}
	var cursor uint64
	scanned := 0
	for scanned < s.cfg.BatchSize {
		keys, next, err := s.client.WithContext(ctx).Scan(cursor, "token_meta_negative:*", 50).Result()
		if err != nil {
			s.log.Warn("negative cache sweep scan failed", "error", err)
			return
		}
		scanned += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if scanned > 0 {
		s.log.Debug("negative cache sweep", "scanned", scanned)
	}
}
