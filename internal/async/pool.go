package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
)

// Pool runs analyses on a fixed set of workers behind a bounded queue.
type Pool struct {
	analyzer Analyzer
	logger   *zap.Logger
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan Job, n)
		}
	}
}

// WithJobTimeout bounds each analysis; 0 leaves jobs without a deadline.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(a Analyzer, logger *zap.Logger, opts ...Option) *Pool {
	p := &Pool{
		analyzer: a,
		logger:   common.OrNop(logger),
		workers:  4,
		ch:       make(chan Job, 64),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("worker.started", zap.Int("worker_id", workerID))

				for job := range p.ch {
					p.run(workerID, job)
				}

				p.logger.Debug("worker.stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (p *Pool) run(workerID int, job Job) {
	log := p.logger.With(zap.Int("worker_id", workerID), zap.String("req_id", job.RequestID))

	// The submitter gave up while the job was queued.
	if err := job.ctx.Err(); err != nil {
		log.Warn("worker.job.abandoned", zap.Error(err))
		job.result <- result{err: err}
		return
	}

	ctx := job.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	a, err := p.analyzer.Analyze(ctx, job.Doc)
	if err != nil {
		log.Error("worker.job.failed", zap.Error(err), zap.Duration("queued_for", time.Since(job.SubmittedAt)))
	} else {
		log.Info("worker.job.ok", zap.Duration("total", time.Since(job.SubmittedAt)))
	}
	job.result <- result{analysis: a, err: err}
}

// Submit queues doc and waits for its analysis. A full queue applies
// backpressure until ctx is done.
func (p *Pool) Submit(ctx context.Context, doc llm.Document) (*pipeline.Analysis, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	job := Job{
		Doc:         doc,
		RequestID:   rid,
		SubmittedAt: time.Now(),
		ctx:         ctx,
		result:      make(chan result, 1),
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.logger.Warn("queue.submit.closed", zap.String("req_id", rid))
		return nil, ErrQueueClosed
	}
	select {
	case p.ch <- job:
	default:
		p.logger.Warn("queue.full", zap.String("req_id", rid), zap.Int("capacity", cap(p.ch)))
		select {
		case p.ch <- job:
		case <-ctx.Done():
			p.mu.RUnlock()
			return nil, ctx.Err()
		}
	}
	p.mu.RUnlock()

	select {
	case r := <-job.result:
		return r.analysis, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops accepting work and waits for queued jobs to drain or ctx to end.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		p.logger.Info("queue.shutdown.drained")
	}
}
