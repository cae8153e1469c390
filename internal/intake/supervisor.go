// Package intake runs the detached build-and-write task for each accepted
// intake message.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"duck-intake/internal/domain"
	"duck-intake/internal/metrics"
)

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("intake supervisor is shutting down")

// Default task limits.
const (
	DefaultTaskTimeout = 30 * time.Second
	DefaultMaxInFlight = 64
)

// BatchBuilder turns a raw body into a columnar batch.
type BatchBuilder interface {
	Build(body []byte) (*domain.ColumnarBatch, []domain.Warning, error)
}

// BatchWriter lands a batch in a collection.
type BatchWriter interface {
	Write(ctx context.Context, collection string, batch *domain.ColumnarBatch) error
}

// Result is the terminal report of one task.
type Result struct {
	MessageID  string
	Collection string
	Outcome    domain.IntakeOutcome
	Rows       int
	Columns    int
	Warnings   int
	Err        error
	Duration   time.Duration
	// ReceivedAt is when the request was accepted.
	ReceivedAt time.Time
	// QueueLag is the time from ReceivedAt until the task got a slot. It
	// stays zero when the task never got one.
	QueueLag time.Duration
}

// Options configures a Supervisor.
type Options struct {
	// TaskTimeout bounds a task from submission to outcome, queueing included.
	TaskTimeout time.Duration
	// MaxInFlight bounds how many tasks build or write at once. Further
	// tasks wait for a slot within their timeout.
	MaxInFlight int64
	// OnResult, when set, is called with every task result after it is logged.
	OnResult func(Result)
}

// Supervisor owns every detached intake task. Submit hands a message off and
// returns at once; the outcome is only visible in logs, metrics and OnResult.
type Supervisor struct {
	builder  BatchBuilder
	writer   BatchWriter
	logger   *slog.Logger
	timeout  time.Duration
	sem      *semaphore.Weighted
	onResult func(Result)

	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(builder BatchBuilder, writer BatchWriter, opts Options, logger *slog.Logger) *Supervisor {
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		builder:  builder,
		writer:   writer,
		logger:   logger,
		timeout:  opts.TaskTimeout,
		sem:      semaphore.NewWeighted(opts.MaxInFlight),
		onResult: opts.OnResult,
		base:     base,
		cancel:   cancel,
	}
}

// Submit starts the task for msg. The task does not inherit any request
// context: it runs until it finishes or its own timeout expires.
func (s *Supervisor) Submit(msg domain.IntakeMessage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrShuttingDown
	}

	s.wg.Add(1)
	metrics.GaugeTasksInFlight.Inc()
	go s.run(msg)
	return nil
}

// Shutdown stops accepting messages and waits for in-flight tasks. If ctx
// ends first, the remaining tasks are cancelled and ctx's error is returned
// at once. A task stuck in a call that ignores its context may still be
// running when Shutdown returns.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Supervisor) run(msg domain.IntakeMessage) {
	start := time.Now()
	res := Result{MessageID: msg.ID, Collection: msg.Collection, ReceivedAt: msg.ReceivedAt}

	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = domain.OutcomePanic
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Duration = time.Since(start)
		s.finish(res)
		metrics.GaugeTasksInFlight.Dec()
		s.wg.Done()
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		res.Outcome = Classify(err)
		res.Err = fmt.Errorf("wait for task slot: %w", err)
		return
	}
	defer s.sem.Release(1)

	if !msg.ReceivedAt.IsZero() {
		res.QueueLag = max(time.Since(msg.ReceivedAt), 0)
		metrics.HistogramQueueLag.Observe(res.QueueLag.Seconds())
	}
	s.process(ctx, msg, &res)
}

func (s *Supervisor) process(ctx context.Context, msg domain.IntakeMessage, res *Result) {
	batch, warnings, err := s.builder.Build(msg.Body)
	res.Warnings = len(warnings)
	for _, w := range warnings {
		s.logger.Warn("intake payload warning",
			"message_id", msg.ID,
			"collection", msg.Collection,
			"column", w.Column,
			"row", w.Row,
			"detail", w.Message,
		)
	}
	if err != nil {
		res.Outcome = Classify(err)
		res.Err = err
		return
	}
	res.Rows = batch.RowCount
	res.Columns = len(batch.Columns)

	if err := s.writer.Write(ctx, msg.Collection, batch); err != nil {
		res.Outcome = Classify(err)
		res.Err = err
		return
	}
	res.Outcome = domain.OutcomeWritten
	metrics.CounterRowsWritten.WithLabelValues(msg.Collection).Add(float64(batch.RowCount))
}

func (s *Supervisor) finish(res Result) {
	attrs := []any{
		"message_id", res.MessageID,
		"collection", res.Collection,
		"outcome", string(res.Outcome),
		"rows", res.Rows,
		"columns", res.Columns,
		"warnings", res.Warnings,
		"duration", res.Duration,
		"received_at", res.ReceivedAt,
		"queue_lag", res.QueueLag,
	}
	switch res.Outcome {
	case domain.OutcomeWritten:
		s.logger.Info("intake task finished", attrs...)
	case domain.OutcomeMalformedPayload, domain.OutcomeMalformedRow,
		domain.OutcomeEmptyPayload, domain.OutcomeTypeMismatch:
		s.logger.Warn("intake message dropped", append(attrs, "error", res.Err)...)
	default:
		s.logger.Error("intake task failed", append(attrs, "error", res.Err)...)
	}

	metrics.CounterTasks.WithLabelValues(string(res.Outcome)).Inc()
	metrics.HistogramTaskDuration.WithLabelValues(string(res.Outcome)).Observe(res.Duration.Seconds())

	if s.onResult != nil {
		s.onResult(res)
	}
}

// Classify maps a pipeline error to its task outcome.
func Classify(err error) domain.IntakeOutcome {
	var (
		malformedPayload *domain.MalformedPayloadError
		malformedRow     *domain.MalformedRowError
		empty            *domain.EmptyPayloadError
		mismatch         *domain.TypeMismatchError
		connErr          *domain.ConnectionError
		writeErr         *domain.WriteError
	)
	switch {
	case err == nil:
		return domain.OutcomeWritten
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.OutcomeTimeout
	case errors.As(err, &malformedPayload):
		return domain.OutcomeMalformedPayload
	case errors.As(err, &malformedRow):
		return domain.OutcomeMalformedRow
	case errors.As(err, &empty):
		return domain.OutcomeEmptyPayload
	case errors.As(err, &mismatch):
		return domain.OutcomeTypeMismatch
	case errors.As(err, &connErr):
		return domain.OutcomeConnectionFailure
	case errors.As(err, &writeErr):
		return domain.OutcomeWriteFailure
	default:
		return domain.OutcomeWriteFailure
	}
}
