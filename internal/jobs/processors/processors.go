package processors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/coinscope/coinscope/internal/queue"
)

// jobTimeout bounds a single handler run.
const jobTimeout = 5 * time.Minute

// Processors runs one dispatch loop per queue. Each loop dequeues under its
// queue's rate limit, executes handlers on a bounded goroutine pool, and
// reports the outcome back to the backend, which owns retry scheduling.
type Processors struct {
	backend  queue.Backend
	registry *Registry
	configs  map[string]WorkerConfig
	log      zerolog.Logger

	loopCtx  context.Context
	stop     context.CancelFunc
	loops    sync.WaitGroup
	inflight sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// New creates the processors. Queues without an explicit config get a
// single-worker default.
func New(backend queue.Backend, registry *Registry, configs map[string]WorkerConfig, log zerolog.Logger) *Processors {
	if configs == nil {
		configs = DefaultWorkerConfigs()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processors{
		backend:  backend,
		registry: registry,
		configs:  configs,
		log:      log.With().Str("component", "processors").Logger(),
		loopCtx:  ctx,
		stop:     cancel,
	}
}

// Start launches the per-queue workers.
func (p *Processors) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for _, queueName := range queue.AllQueues {
		cfg, ok := p.configs[queueName]
		if !ok {
			cfg = WorkerConfig{Concurrency: 1, RateLimit: RateLimit{Max: 10, Window: time.Minute}}
		}
		p.loops.Add(1)
		go p.runWorker(queueName, cfg)
		p.log.Info().
			Str("queue", queueName).
			Int("concurrency", cfg.Concurrency).
			Int("rate_max", cfg.RateLimit.Max).
			Dur("rate_window", cfg.RateLimit.Window).
			Msg("Worker started")
	}
}

// Close stops all dequeue loops and waits for in-flight jobs to finish.
func (p *Processors) Close() {
	p.stop()
	p.loops.Wait()
	p.inflight.Wait()
	p.log.Info().Msg("All workers stopped")
}

func (p *Processors) runWorker(queueName string, cfg WorkerConfig) {
	defer p.loops.Done()

	interval := cfg.RateLimit.Window / time.Duration(cfg.RateLimit.Max)
	limiter := rate.NewLimiter(rate.Every(interval), cfg.RateLimit.Max)
	sem := make(chan struct{}, cfg.Concurrency)

	for {
		if err := limiter.Wait(p.loopCtx); err != nil {
			return
		}
		select {
		case sem <- struct{}{}:
		case <-p.loopCtx.Done():
			return
		}

		job, err := p.backend.Dequeue(p.loopCtx, queueName)
		if err != nil {
			<-sem
			if p.loopCtx.Err() != nil {
				return
			}
			p.log.Error().Err(err).Str("queue", queueName).Msg("Dequeue failed")
			continue
		}

		p.inflight.Add(1)
		go func() {
			defer func() {
				<-sem
				p.inflight.Done()
			}()
			p.execute(job)
		}()
	}
}

// execute runs one job attempt. Handler errors are logged with job context
// and handed back to the backend, never swallowed here. In-flight jobs are
// not cancelled on shutdown, so the handler context is independent of the
// dispatch loop.
func (p *Processors) execute(job *queue.Job) {
	handler, err := p.registry.Get(job.Name)
	if err != nil {
		p.log.Error().
			Str("queue", job.Queue).
			Str("job", job.Name).
			Str("job_id", job.ID).
			Msg("No handler registered, failing job")
		p.backend.Fail(job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.runHandler(ctx, handler, job)
	if err != nil {
		p.log.Error().
			Err(err).
			Str("queue", job.Queue).
			Str("job", job.Name).
			Str("job_id", job.ID).
			Int("attempts_made", job.AttemptsMade).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		p.backend.Fail(job, err)
		return
	}

	p.log.Info().
		Str("queue", job.Queue).
		Str("job", job.Name).
		Str("job_id", job.ID).
		Dur("duration", time.Since(start)).
		Interface("result", result).
		Msg("Job completed")
	p.backend.Complete(job)
}

func (p *Processors) runHandler(ctx context.Context, handler Handler, job *queue.Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	progress := func(pct int) {
		p.backend.Progress(job, pct)
	}
	return handler(ctx, job, progress)
}
