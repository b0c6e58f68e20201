// Package service assembles the demonlist components from configuration
// and owns their lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/okian/demonlist/internal/adapters/http/api"
	"github.com/okian/demonlist/internal/adapters/http/swagger"
	"github.com/okian/demonlist/internal/adapters/mq/queue"
	"github.com/okian/demonlist/internal/adapters/mq/worker"
	"github.com/okian/demonlist/internal/adapters/notify"
	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/adapters/repository/sqlstore"
	"github.com/okian/demonlist/internal/config"
	"github.com/okian/demonlist/internal/domain/coherence"
	"github.com/okian/demonlist/internal/domain/dedupe"
	"github.com/okian/demonlist/internal/domain/ordering"
	"github.com/okian/demonlist/internal/domain/players"
	"github.com/okian/demonlist/internal/domain/records"
	"github.com/okian/demonlist/internal/domain/scoring"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
	"github.com/okian/demonlist/pkg/tracing"
)

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Service owns the store, the domain services, the notification pipeline
// and the HTTP handler built on them.
type Service struct {
	mu sync.RWMutex

	cfg      *config.Config
	logger   logger.Logger
	store    repository.Store
	notifier worker.Notifier

	gens    *coherence.Registry
	list    *ordering.Store
	records *records.Service
	players *players.Service
	scores  *scoring.Aggregator
	queue   *queue.InMemoryQueue
	deduper dedupe.Deduper
	pool    *worker.Pool
	server  *api.Server
	tracing tracing.Shutdown

	started   bool
	startedAt time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults apply otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses store instead of opening the configured one. The service
// closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithNotifier replaces the configured notification sink.
func WithNotifier(n worker.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// New constructs a Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Start opens storage, loads the order and starts the delivery workers.
// It is a no-op on a started service.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting demonlist service...", logger.String("storage", cfg.StorageDriver))

	if s.tracing, err = tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: "demonlist",
		SampleRatio: cfg.OTelSampleRatio,
	}); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			s.release(ctx)
		}
	}()

	if s.store == nil {
		if s.store, err = openStore(ctx, cfg); err != nil {
			return err
		}
	}

	curve, err := scoring.NewCurve(scoring.CurveConfig{
		Name:             cfg.Curve,
		MaxPoints:        cfg.CurveMaxPoints,
		Decay:            cfg.CurveDecay,
		PartialMin:       cfg.CurvePartialMin,
		PartialMax:       cfg.CurvePartialMax,
		MainListSize:     cfg.MainListSize,
		ExtendedListSize: cfg.ExtendedListSize,
	})
	if err != nil {
		return err
	}

	if s.notifier == nil {
		n, err := notify.New(cfg.Notifier, cfg.WebhookURL, s.logger.Named("notify"),
			notify.WithMaxTries(uint(max(cfg.WebhookMaxTries, 1))))
		if err != nil {
			return err
		}
		s.notifier = n
	}

	s.gens = coherence.New()
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.EventQueueSize))
	publisher := queue.NewPublisher(s.queue, s.logger.Named("queue"))

	if s.list, err = ordering.New(ctx, s.store,
		ordering.WithGenerations(s.gens),
		ordering.WithPublisher(publisher),
		ordering.WithLogger(s.logger.Named("ordering")),
	); err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	s.records = records.New(s.store, s.list,
		records.WithGenerations(s.gens),
		records.WithPublisher(publisher),
		records.WithLogger(s.logger.Named("records")),
	)
	s.players = players.New(s.store,
		players.WithGenerations(s.gens),
		players.WithLogger(s.logger.Named("players")),
	)
	s.scores = scoring.NewAggregator(s.store, s.list,
		scoring.WithCurve(curve),
		scoring.WithLogger(s.logger.Named("scoring")),
	)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithTTL(cfg.DedupeTTL))
	s.pool = worker.NewPool(cfg.WorkerCount, s.queue, s.notifier,
		worker.WithDeduper(s.deduper),
		worker.WithMaxAttempts(cfg.DeliveryAttempts),
		worker.WithLogger(s.logger.Named("worker")),
	)
	// Workers outlive the start context; Stop drains them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.server = api.NewServer(api.Deps{
		Demons:        s.list,
		Records:       s.records,
		Players:       s.players,
		Scores:        s.scores,
		Fingerprinter: s.gens,
		Stats:         s,
	},
		api.WithTokens(api.NewTokens(cfg.JWTSecret, cfg.JWTIssuer)),
		api.WithLogger(s.logger.Named("api")),
		api.WithPageSizes(cfg.DefaultPageSize, cfg.MaxPageSize),
		api.WithListSizes(cfg.MainListSize, cfg.ExtendedListSize),
	)
	swagger.Register(s.server.Router())

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "demonlist service started",
		logger.Int("demons", s.list.Len()),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", cfg.EventQueueSize),
	)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == config.DriverMemory {
		return repository.NewMemoryStore(), nil
	}
	dialect, err := sqlstore.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	return sqlstore.Open(ctx, dialect, cfg.StorageDSN)
}

// Handler returns the HTTP handler. It is nil before Start.
func (s *Service) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return nil
	}
	return s.server
}

// Stop drains the notification queue, then closes storage and flushes
// spans, all bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping demonlist service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, s.release(ctx)...)
	s.started = false
	s.logger.Info(ctx, "demonlist service stopped")
	return errors.Join(errs...)
}

// release closes storage and tracing. Callers hold mu.
func (s *Service) release(ctx context.Context) []error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.store = nil
	}
	if s.tracing != nil {
		if err := s.tracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush spans: %w", err))
		}
		s.tracing = nil
	}
	return errs
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"storage":     s.cfg.StorageDriver,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.EventQueueSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["demons"] = s.list.Len()
	stats["queueLength"] = queueLen
	stats["deliveredIds"] = s.deduper.Size()
	if all, err := s.store.Players(ctx); err == nil {
		stats["players"] = len(all)
		metrics.UpdatePlayersTotal(len(all))
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateEntriesTotal(s.list.Len())
	return stats
}
