// Package sender runs outbound Bot API calls with a bounded retry policy,
// either on the caller's goroutine (Do) or on a small worker pool (Enqueue).
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/relaybot/core/logger"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no queue slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilCall = errors.New("telegram sender: nil run function")
)

// Options tune the dispatcher. Zero values select the defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single call.
	MaxDuration time.Duration
	// Registerer, when set, receives the tg_sends_total counter.
	Registerer prometheus.Registerer
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// call is one outbound request. run must be safe to repeat.
type call struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (c call) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", c.action)}
	if c.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", c.endpoint))
	}
	return attrs
}

// Dispatcher executes Bot API calls with retries on transient failures and
// flood control.
type Dispatcher struct {
	opts  Options
	queue chan call
	sends *prometheus.CounterVec

	// mu guards closing queue against a concurrent Enqueue.
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		queue: make(chan call, opts.QueueSize),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tg",
			Name:      "sends_total",
			Help:      "Outbound Bot API calls by action and delivery class.",
		}, []string{"action", "class"}),
	}
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(d.sends)
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for c := range d.queue {
				_ = d.execute(c)
			}
		}()
	}
	return d
}

// Enqueue schedules run on the worker pool without waiting for it. It never
// blocks: a saturated queue yields ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilCall
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- call{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs the call on the caller's goroutine with the same retry policy as
// queued calls and returns the last error. Callers that must react to a
// failed delivery use Do instead of Enqueue.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilCall
	}
	return d.execute(call{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// ErrorCount returns the number of calls that failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 { return d.failed.Load() }

// Close stops accepting calls and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) execute(c call) error {
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(c.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, c)
	elapsed := logger.Took(start)

	if err == nil {
		d.sends.WithLabelValues(c.action, "ok").Inc()
		logger.Debug(c.ctx, "tg.sender", "send.success", append(c.attrs(),
			slog.Int("attempts", attempts),
			slog.Duration("duration", elapsed),
		)...)
		return nil
	}

	class := Classify(err)
	d.failed.Add(1)
	d.sends.WithLabelValues(c.action, class).Inc()
	logger.Error(c.ctx, "tg.sender", "send.fail", append(c.attrs(),
		slog.String("err", redactToken(err)),
		slog.String("error_kind", errorKind(err)),
		slog.String("class", class),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed),
	)...)
	return err
}

// attempt calls c.run until it succeeds, fails permanently, runs out of
// retries or ctx ends. The wait between tries grows linearly and honours a
// longer retry_after from flood control.
func (d *Dispatcher) attempt(ctx context.Context, c call) (int, error) {
	limit := d.opts.MaxRetries + 1
	var err error
	for n := 1; ; n++ {
		if err = c.run(); err == nil {
			return n, nil
		}
		if n == limit || !retryable(err) {
			return n, err
		}
		delay := max(d.opts.RetryBackoff*time.Duration(n), retryAfter(err))
		logger.Debug(c.ctx, "tg.sender", "send.retry", append(c.attrs(),
			slog.Int("attempt", n),
			slog.Duration("delay", delay),
			slog.String("class", Classify(err)),
		)...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
