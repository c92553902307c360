package webhookevents

import (
	"context"
	"fmt"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhook-events/core"
	"github.com/goliatone/go-webhook-events/processor"
)

// Service is the webhook event ledger facade: it records incoming events,
// drives handler attempts with bounded retries, dead-letters exhausted
// events and exposes the ledger's query surface.
type Service struct {
	config          core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	errorMapper     ErrorMapper
	ledger          core.Ledger
	clock           core.Clock
	processor       *processor.Processor
	scheduler       *processor.Scheduler

	mu        sync.Mutex
	sweepStop context.CancelFunc
	sweepDone chan struct{}
}

func NewService(cfg core.Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("webhooks", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("webhooks"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = core.SystemClock{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	ledger := builder.ledger
	if ledger == nil && builder.repositoryFactory != nil {
		resolved, err := resolveLedger(builder.repositoryFactory, builder.persistenceClient)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
		ledger = resolved
	}
	if ledger == nil {
		return nil, fmt.Errorf("webhookevents: a ledger or repository factory is required")
	}

	clock := builder.clock
	proc := processor.NewProcessor(ledger)
	proc.MaxAttempts = finalConfig.MaxAttempts
	proc.HandlerTimeout = finalConfig.HandlerTimeout
	proc.Backoff = processor.BackoffSchedule(finalConfig.BackoffDelays)
	proc.Logger = logger
	proc.Now = clock.Now

	scheduler := processor.NewScheduler(proc)
	scheduler.Logger = logger
	proc.Scheduler = scheduler

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		ledger:          ledger,
		clock:           clock,
		processor:       proc,
		scheduler:       scheduler,
	}, nil
}

// Setup is an alias for NewService kept for call-site symmetry with other
// goliatone modules.
func Setup(cfg core.Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// LogWebhookEvent appends one incoming event to the ledger in pending state.
func (s *Service) LogWebhookEvent(ctx context.Context, in core.RecordWebhookInput) (core.WebhookEvent, error) {
	if s == nil || s.ledger == nil {
		return core.WebhookEvent{}, fmt.Errorf("webhookevents: service is not configured")
	}
	startedAt := s.clock.Now()
	event, err := s.ledger.Record(ctx, in)
	s.observeOperation(ctx, startedAt, "event_logged", err, map[string]any{
		"event_id":   event.ID,
		"source":     in.Source,
		"event_type": in.EventType,
	})
	if err != nil {
		return core.WebhookEvent{}, s.mapError(err)
	}
	return event, nil
}

// ProcessWebhookEvent runs one handler attempt against the event. Failed
// attempts arm a deferred retry on the scheduler until the attempt ceiling
// is reached.
func (s *Service) ProcessWebhookEvent(ctx context.Context, eventID string, handler core.Handler) (core.ProcessResult, error) {
	if s == nil || s.processor == nil {
		return core.ProcessResult{}, fmt.Errorf("webhookevents: service is not configured")
	}
	startedAt := s.clock.Now()
	result, err := s.processor.Process(ctx, eventID, handler)
	s.observeOperation(ctx, startedAt, "event_processed", err, map[string]any{
		"event_id":        eventID,
		"already_claimed": result.AlreadyClaimed,
	})
	if err != nil {
		return result, s.mapError(err)
	}
	return result, nil
}

// ProcessWebhookNow records the event and runs one handler attempt inline,
// without arming a deferred retry. The new event id travels on the result.
// A failed attempt still lands in the ledger with its retry bookkeeping, so
// the sweeper picks it up when its moment arrives.
func (s *Service) ProcessWebhookNow(ctx context.Context, in core.RecordWebhookInput, handler core.Handler) (core.ProcessResult, error) {
	if s == nil || s.processor == nil || s.ledger == nil {
		return core.ProcessResult{}, fmt.Errorf("webhookevents: service is not configured")
	}
	startedAt := s.clock.Now()
	event, err := s.ledger.Record(ctx, in)
	if err != nil {
		s.observeOperation(ctx, startedAt, "event_processed_now", err, map[string]any{
			"source":     in.Source,
			"event_type": in.EventType,
		})
		return core.ProcessResult{}, s.mapError(err)
	}

	result, err := s.processor.WithoutScheduler().Process(ctx, event.ID, handler)
	if result.EventID == "" {
		result.EventID = event.ID
	}
	s.observeOperation(ctx, startedAt, "event_processed_now", err, map[string]any{
		"event_id":   event.ID,
		"source":     in.Source,
		"event_type": in.EventType,
	})
	if err != nil {
		return result, s.mapError(err)
	}
	return result, nil
}

// RetryWebhookEvent resets the event's retry budget and immediately runs one
// attempt, regardless of how the event previously failed.
func (s *Service) RetryWebhookEvent(ctx context.Context, eventID string, handler core.Handler) (core.ProcessResult, error) {
	if s == nil || s.scheduler == nil {
		return core.ProcessResult{}, fmt.Errorf("webhookevents: service is not configured")
	}
	startedAt := s.clock.Now()
	result, err := s.scheduler.RetryNow(ctx, eventID, handler)
	s.observeOperation(ctx, startedAt, "event_retried", err, map[string]any{
		"event_id": eventID,
	})
	if err != nil {
		return result, s.mapError(err)
	}
	return result, nil
}

// GetWebhookEvent returns one ledger entry by id.
func (s *Service) GetWebhookEvent(ctx context.Context, id string) (core.WebhookEvent, error) {
	if s == nil || s.ledger == nil {
		return core.WebhookEvent{}, fmt.Errorf("webhookevents: service is not configured")
	}
	event, err := s.ledger.Get(ctx, id)
	if err != nil {
		return core.WebhookEvent{}, s.mapError(err)
	}
	return event, nil
}

// GetWebhookEventsByStatus lists ledger entries in a given state, oldest
// first.
func (s *Service) GetWebhookEventsByStatus(ctx context.Context, status core.Status, limit int) ([]core.WebhookEvent, error) {
	if s == nil || s.ledger == nil {
		return nil, fmt.Errorf("webhookevents: service is not configured")
	}
	events, err := s.ledger.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return events, nil
}

// GetWebhookStats returns the ledger's aggregate counters per state.
func (s *Service) GetWebhookStats(ctx context.Context) (core.WebhookStats, error) {
	if s == nil || s.ledger == nil {
		return core.WebhookStats{}, fmt.Errorf("webhookevents: service is not configured")
	}
	stats, err := s.ledger.Stats(ctx)
	if err != nil {
		return core.WebhookStats{}, s.mapError(err)
	}
	return stats, nil
}

// Start enables the retry scheduler and launches the background sweep that
// recovers due retries whose in-process timers were lost. The handler is the
// one the sweep drives recovered events through.
func (s *Service) Start(ctx context.Context, handler core.Handler) error {
	if s == nil || s.processor == nil || s.scheduler == nil {
		return fmt.Errorf("webhookevents: service is not configured")
	}
	if handler == nil {
		return core.BadInputError("webhookevents: sweep handler is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweepStop != nil {
		return fmt.Errorf("webhookevents: service already started")
	}

	s.scheduler.Start()

	sweeper := processor.NewSweeper(s.processor, handler)
	sweeper.Logger = s.logger
	sweeper.Interval = s.config.Sweep.Interval
	sweeper.Burst = s.config.Sweep.Burst
	sweeper.IdleDelay = s.config.Sweep.IdleDelay
	sweeper.Now = s.clock.Now

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.sweepStop = cancel
	s.sweepDone = done

	go func() {
		defer close(done)
		_ = sweeper.Run(sweepCtx)
	}()

	s.logger.Info("webhook service started",
		"sweep_interval", s.config.Sweep.Interval.String(),
		"max_attempts", s.config.MaxAttempts,
	)
	return nil
}

// Stop cancels the sweep and every armed retry timer. Events keep their
// persisted next_attempt_at, so a later Start resumes where Stop left off.
func (s *Service) Stop() {
	if s == nil {
		return
	}

	s.mu.Lock()
	stop := s.sweepStop
	done := s.sweepDone
	s.sweepStop = nil
	s.sweepDone = nil
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
	if s.logger != nil {
		s.logger.Info("webhook service stopped")
	}
}

func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.config
}

func (s *Service) Ledger() core.Ledger {
	if s == nil {
		return nil
	}
	return s.ledger
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func defaultErrorMapper(err error) error {
	mapped := core.MapError(err)
	if mapped == nil {
		return nil
	}
	return mapped
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func resolveLedger(factory any, persistenceClient any) (core.Ledger, error) {
	type storeBuilder interface {
		BuildStores(persistenceClient any) error
	}
	type ledgerProvider interface {
		EventStore() core.Ledger
	}

	if builder, ok := factory.(storeBuilder); ok {
		if err := builder.BuildStores(persistenceClient); err != nil {
			return nil, err
		}
	}
	provider, ok := factory.(ledgerProvider)
	if !ok {
		return nil, fmt.Errorf("webhookevents: unsupported repository factory type %T", factory)
	}
	ledger := provider.EventStore()
	if ledger == nil {
		return nil, fmt.Errorf("webhookevents: repository factory returned no event store")
	}
	return ledger, nil
}
