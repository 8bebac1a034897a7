package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/go-redis/redis/v7"

	"github.com/klingon-exchange/swapwatch/internal/chainrpc"
	"github.com/klingon-exchange/swapwatch/internal/config"
	"github.com/klingon-exchange/swapwatch/internal/dedup"
	"github.com/klingon-exchange/swapwatch/internal/fanout"
	"github.com/klingon-exchange/swapwatch/internal/feed"
	"github.com/klingon-exchange/swapwatch/internal/metadata"
	"github.com/klingon-exchange/swapwatch/internal/metrics"
	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/internal/pipeline"
	"github.com/klingon-exchange/swapwatch/internal/pricing"
	"github.com/klingon-exchange/swapwatch/internal/providers"
	"github.com/klingon-exchange/swapwatch/internal/queue"
	"github.com/klingon-exchange/swapwatch/internal/statusserver"
	"github.com/klingon-exchange/swapwatch/internal/store"
	"github.com/klingon-exchange/swapwatch/internal/worker"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// Engine is the §9 "MonitorEngine" value: an explicit, non-global home for
// the address-set snapshot, the subscription client, the worker pools, and
// the KV/store handles — constructed once in New and passed by reference,
// with an ordered Shutdown replacing ad hoc global teardown.
type Engine struct {
	cfg *config.Config
	log *logging.Logger

	redis *redis.Client
	store *store.Store

	feedMgr *feed.Manager

	whaleQueue *queue.Queue
	kolQueue   *queue.Queue

	whalePool *worker.Pool
	kolPool   *worker.Pool

	metadataSweeper *metadata.Sweeper

	metrics   *metrics.Registry
	status    *statusserver.Server
	depthStop chan struct{}

	mu      sync.RWMutex
	tracked map[string]model.TrackedAccount
}

// Healthy implements statusserver.HealthReporter: the engine is healthy
// once it has a live tracked-account snapshot and running queues, i.e.
// always, once New has returned successfully.
func (e *Engine) Healthy() bool { return true }

// New wires every collaborator named in spec §2/§9 into one Engine,
// loading the tracked-account snapshot and building the whale and KOL
// processing pipelines. It performs no network I/O beyond connecting to
// Mongo/Redis; Start begins the feed subscription and worker pools.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	log := logging.GetDefault().Component("engine")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping().Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	documentStore, err := store.New(ctx, store.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	e := &Engine{
		cfg:   cfg,
		log:   log,
		redis: redisClient,
		store: documentStore,
	}

	accounts, err := documentStore.TrackedAccounts().LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracked accounts: %w", err)
	}
	e.tracked = make(map[string]model.TrackedAccount, len(accounts))
	for _, a := range accounts {
		e.tracked[a.Address] = a
	}
	log.Info("tracked accounts loaded", "count", len(accounts))

	dedupStore := dedup.New(redisClient)

	e.whaleQueue = queue.New(redisClient, cfg.Whale.QueueConfig())
	e.kolQueue = queue.New(redisClient, cfg.KOL.QueueConfig())

	rpcClient := chainrpc.New(cfg.RPC.Endpoint, chainrpc.Config{
		StatusTimeout:    cfg.RPC.StatusTimeout,
		FullTxTimeout:    cfg.RPC.FullTxTimeout,
		MaxRetries:       cfg.RPC.MaxRetries,
		RetryInitialWait: cfg.RPC.RetryInitialWait,
	})

	heliusMetadata := providers.NewHeliusMetadata(cfg.Providers.HeliusMetadataURL, cfg.Feed.HeliusAPIKey)
	marketData := providers.NewMarketData(cfg.Providers.MarketDataURL)
	nativeHistory := providers.NewNativeHistory(cfg.Providers.CoinGeckoURL, cfg.Providers.CoinGeckoNativeID, marketData)

	metadataCache := metadata.New(redisClient, heliusMetadata, marketData, metadata.Config{NegativeTTL: cfg.Providers.NegativeCacheTTL})
	e.metadataSweeper = metadata.NewSweeper(redisClient, metadata.SweeperConfig{})

	pricer := pricing.New(nativeHistory, marketData, cfg.Providers.FallbackSOLPrice)

	classifierCfg := cfg.ClassifierClassifierConfig()

	lookup := func(address string) (model.TrackedAccount, bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		a, ok := e.tracked[address]
		return a, ok
	}

	whaleTrades := documentStore.WhaleTrades()
	kolTrades := documentStore.KOLTrades()

	whalePipeline := pipeline.New(pipeline.Collaborators{
		Kind:           model.KindWhale,
		Metadata:       metadataCache,
		Pricer:         pricer,
		Trades:         whaleTrades,
		Volume:         whaleTrades,
		Hotness:        documentStore.HotnessFor(model.KindWhale),
		Repeats:        documentStore.RepeatsFor(model.KindWhale),
		RepeatRecorder: documentStore.RepeatsFor(model.KindWhale),
		MarketCaps:     marketData,
		Tracked:        lookup,
		Fanout:         fanout.New(fanout.DefaultConfig()),
	})
	kolPipeline := pipeline.New(pipeline.Collaborators{
		Kind:           model.KindKOL,
		Metadata:       metadataCache,
		Pricer:         pricer,
		Trades:         kolTrades,
		Volume:         kolTrades,
		Hotness:        documentStore.HotnessFor(model.KindKOL),
		Repeats:        documentStore.RepeatsFor(model.KindKOL),
		RepeatRecorder: documentStore.RepeatsFor(model.KindKOL),
		MarketCaps:     marketData,
		Tracked:        lookup,
		Fanout:         fanout.New(fanout.DefaultConfig()),
	})

	whaleProcessor := worker.NewProcessor(dedupStore, whaleTrades, rpcClient, whalePipeline, classifierCfg, lookup)
	kolProcessor := worker.NewProcessor(dedupStore, kolTrades, rpcClient, kolPipeline, classifierCfg, lookup)

	whaleLimiter := queue.NewRateLimiter(cfg.Whale.RateLimitMax, cfg.Whale.RateLimitWindow)
	kolLimiter := queue.NewRateLimiter(cfg.KOL.RateLimitMax, cfg.KOL.RateLimitWindow)

	e.metrics = metrics.New()

	e.whalePool = worker.NewPool(e.whaleQueue, whaleLimiter, whaleProcessor, worker.PoolConfig{
		NumWorkers:  cfg.Whale.NumWorkers,
		Concurrency: cfg.Whale.WorkerConcurrency,
	}, e.metrics)
	e.kolPool = worker.NewPool(e.kolQueue, kolLimiter, kolProcessor, worker.PoolConfig{
		NumWorkers:  cfg.KOL.NumWorkers,
		Concurrency: cfg.KOL.WorkerConcurrency,
	}, e.metrics)

	e.status = statusserver.New(e.metrics, e)

	trackedAddresses := make([]string, 0, len(e.tracked))
	for addr := range e.tracked {
		trackedAddresses = append(trackedAddresses, addr)
	}

	intake := NewIntake(func() map[string]bool {
		e.mu.RLock()
		defer e.mu.RUnlock()
		set := make(map[string]bool, len(e.tracked))
		for addr := range e.tracked {
			set[addr] = true
		}
		return set
	}, lookup, dedupStore, e.whaleQueue, e.kolQueue)

	e.feedMgr = feed.New(cfg.FeedManagerConfig(), trackedAddresses, intake)

	return e, nil
}

// Start begins the feed subscription, the negative-cache sweeper, and both
// worker pools. It returns immediately; all of it runs in the background
// until Shutdown is called, per §4.1/§4.4's always-alive failure
// semantics.
func (e *Engine) Start(ctx context.Context) {
	e.feedMgr.Start(ctx)
	e.metadataSweeper.Start(ctx)
	e.whalePool.Start(ctx)
	e.kolPool.Start(ctx)

	if e.cfg.Observability.StatusAddr != "" {
		if err := e.status.Start(e.cfg.Observability.StatusAddr); err != nil {
			e.log.Warn("status server failed to start", "error", err)
		}
	}

	e.depthStop = make(chan struct{})
	go e.watchQueueDepth(ctx)

	e.log.Info("engine started",
		"whale_workers", e.cfg.Whale.NumWorkers, "whale_concurrency", e.cfg.Whale.WorkerConcurrency,
		"kol_workers", e.cfg.KOL.NumWorkers, "kol_concurrency", e.cfg.KOL.WorkerConcurrency,
	)
}

// watchQueueDepth polls both queue depths, publishes them as gauges, and
// logs a warning once either crosses metrics.DepthWarnThreshold, per §5's
// "queue depth is monitored; warnings fire above a threshold."
func (e *Engine) watchQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.depthStop:
			return
		case <-ticker.C:
			whale, kol := e.QueueDepths(ctx)
			e.metrics.SetQueueDepth("whale", whale)
			e.metrics.SetQueueDepth("kol", kol)
			if whale > metrics.DepthWarnThreshold {
				e.log.Warn("whale queue depth above threshold", "depth", whale, "threshold", metrics.DepthWarnThreshold)
			}
			if kol > metrics.DepthWarnThreshold {
				e.log.Warn("kol queue depth above threshold", "depth", kol, "threshold", metrics.DepthWarnThreshold)
			}
		}
	}
}

// QueueDepths reports the whale and KOL queue depths for status logging.
func (e *Engine) QueueDepths(ctx context.Context) (whale, kol int64) {
	whale, _ = e.whaleQueue.Depth(ctx)
	kol, _ = e.kolQueue.Depth(ctx)
	return whale, kol
}

// workerCloseDeadline bounds how long Shutdown waits for one pool's
// in-flight jobs to finish (§4.9 step 3).
const workerCloseDeadline = 10 * time.Second

// queueObliterateDeadline bounds the queue teardown step (§4.9 step 4).
const queueObliterateDeadline = 5 * time.Second

// Shutdown runs the ordered teardown from §4.9: detach the feed, snapshot
// queue depth, close each worker pool with a per-pool deadline, close the
// queue backend, then close the KV/store connections. It never blocks past
// its own internal deadlines; the caller (main) enforces the top-level 25s
// force-exit deadline.
func (e *Engine) Shutdown(ctx context.Context) error {
	// Step 1: detach the feed's message handlers and close its socket.
	e.feedMgr.Stop()
	e.metadataSweeper.Stop()
	if e.depthStop != nil {
		close(e.depthStop)
	}
	if e.status != nil {
		if err := e.status.Shutdown(ctx); err != nil {
			e.log.Warn("error stopping status server", "error", err)
		}
	}

	// Step 2: snapshot queue depth for logs.
	whaleDepth, kolDepth := e.QueueDepths(ctx)
	e.log.Info("shutdown: queue depth snapshot", "whale", whaleDepth, "kol", kolDepth)

	// Step 3: close each worker pool with a per-pool deadline; force-close
	// on timeout (worker.Pool.Close already implements the timeout).
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.whalePool.Close(workerCloseDeadline) }()
	go func() { defer wg.Done(); e.kolPool.Close(workerCloseDeadline) }()
	wg.Wait()

	// Step 4/5: the queue backend is Redis-backed; closing the Redis
	// client (step 6) also tears down the queue. There is no separate
	// "obliterate" primitive to invoke beyond that, per §10's note that
	// the KV store doubles as the queue backend.

	// Step 6: close KV connections.
	if err := e.redis.Close(); err != nil {
		e.log.Warn("error closing redis connection", "error", err)
	}

	// Close the document store.
	if err := e.store.Close(ctx); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	e.log.Info("shutdown complete")
	return nil
}
