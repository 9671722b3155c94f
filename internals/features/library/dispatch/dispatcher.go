// Package dispatch runs registered tasks off the request goroutine and lets the
// caller wait for the result with a hard time bound.
//
// Tasks are registered by name at startup. With Workers > 0 a fixed pool drains
// a bounded queue; with Workers == 0 every dispatch gets its own goroutine.
// A caller that gives up waiting gets ErrTimeout, the task itself still runs to
// completion and its result is dropped.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"library_backend/internals/features/library/transitions"
)

const (
	defaultQueueSize = 64
	defaultTimeout   = 10 * time.Second
)

var (
	ErrTimeout     = errors.New("task timed out")
	ErrUnknownTask = errors.New("unknown task")
	ErrQueueFull   = errors.New("task queue is full")
	ErrClosed      = errors.New("dispatcher is closed")

	ErrInvalidWorkers = errors.New("workers must not be negative")
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

// Args carries the inputs of a transition task.
type Args struct {
	BookID   uint
	HolderID uint
}

// TaskFunc is a registered unit of work. It must not panic, but if it does the
// dispatcher turns the panic into an error Result.
type TaskFunc func(ctx context.Context, args Args) transitions.Result

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type Dispatcher struct {
	cfg     Config
	metrics *metrics

	mu      sync.RWMutex
	tasks   map[string]TaskFunc
	queue   chan *job
	started bool
	closed  bool

	workers sync.WaitGroup
	running sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithRegisterer exposes the dispatcher metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) error {
		m, err := newMetrics(reg, d.queueDepth)
		if err != nil {
			return err
		}
		d.metrics = m
		return nil
	}
}

func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	if cfg.Workers < 0 {
		return nil, ErrInvalidWorkers
	}
	if cfg.Timeout < 0 {
		return nil, ErrInvalidTimeout
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	d := &Dispatcher{
		cfg:   cfg,
		tasks: map[string]TaskFunc{},
	}
	if cfg.Workers > 0 {
		d.queue = make(chan *job, cfg.QueueSize)
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.metrics == nil {
		m, err := newMetrics(prometheus.NewRegistry(), d.queueDepth)
		if err != nil {
			return nil, err
		}
		d.metrics = m
	}
	return d, nil
}

func (d *Dispatcher) Timeout() time.Duration { return d.cfg.Timeout }

// Register binds name to fn. Registering the same name twice replaces the task.
func (d *Dispatcher) Register(name string, fn TaskFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks[name] = fn
}

// Start launches the worker pool. It is a no-op in per-task goroutine mode and
// when already started.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed || d.queue == nil {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.workers.Add(1)
		go d.work()
	}
	log.Infow("dispatch.started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize, "timeout", d.cfg.Timeout)
}

// Close stops accepting work, lets queued and running tasks finish and waits
// for them until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.queue != nil {
		close(d.queue)
	}
	started := d.started
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if started {
			d.workers.Wait()
		}
		d.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("dispatch.closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close dispatcher: %w", ctx.Err())
	}
}

type job struct {
	id       uuid.UUID
	name     string
	fn       TaskFunc
	args     Args
	ctx      context.Context
	enqueued time.Time
	done     chan transitions.Result
}

// Pending is a dispatched task whose result has not been collected yet.
type Pending struct {
	ID   uuid.UUID
	Name string
	done <-chan transitions.Result
}

// Wait blocks until the task finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (transitions.Result, error) {
	select {
	case res := <-p.done:
		return res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return transitions.Result{}, fmt.Errorf("%w: %s", ErrTimeout, p.Name)
		}
		return transitions.Result{}, ctx.Err()
	}
}

// Dispatch enqueues the named task. The task runs detached from ctx cancellation
// but keeps its values.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args Args) (*Pending, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}
	fn, ok := d.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	j := &job{
		id:       uuid.New(),
		name:     name,
		fn:       fn,
		args:     args,
		ctx:      context.WithoutCancel(ctx),
		enqueued: time.Now(),
		done:     make(chan transitions.Result, 1),
	}

	if d.queue == nil {
		d.running.Add(1)
		go func() {
			defer d.running.Done()
			d.execute(j)
		}()
	} else {
		select {
		case d.queue <- j:
		default:
			d.metrics.rejected.WithLabelValues(name).Inc()
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, name)
		}
	}
	d.metrics.dispatched.WithLabelValues(name).Inc()
	log.Debugw("dispatch.enqueued", "task", name, "task_id", j.id.String())
	return &Pending{ID: j.id, Name: name, done: j.done}, nil
}

// Call dispatches the task and waits for it at most Timeout.
func (d *Dispatcher) Call(ctx context.Context, name string, args Args) (transitions.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	p, err := d.Dispatch(ctx, name, args)
	if err != nil {
		return transitions.Result{}, err
	}
	res, err := p.Wait(ctx)
	if errors.Is(err, ErrTimeout) {
		d.metrics.timeouts.WithLabelValues(name).Inc()
		log.Warnw("dispatch.timeout", "task", name, "task_id", p.ID.String(), "timeout", d.cfg.Timeout)
	}
	return res, err
}

func (d *Dispatcher) work() {
	defer d.workers.Done()
	for j := range d.queue {
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j *job) {
	start := time.Now()
	res := d.invoke(j)
	elapsed := time.Since(start)

	d.metrics.completed.WithLabelValues(j.name, string(res.Status)).Inc()
	d.metrics.duration.WithLabelValues(j.name).Observe(elapsed.Seconds())
	log.Debugw("dispatch.completed",
		"task", j.name,
		"task_id", j.id.String(),
		"status", string(res.Status),
		"queued", start.Sub(j.enqueued),
		"elapsed", elapsed,
	)
	// buffered, never blocks even when the caller already gave up
	j.done <- res
}

func (d *Dispatcher) invoke(j *job) (res transitions.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("dispatch.task_panic", "task", j.name, "task_id", j.id.String(), "panic", r)
			err := fmt.Errorf("task %s panicked: %v", j.name, r)
			res = transitions.Failure(transitions.KindPersistenceFault, err, err.Error())
		}
	}()
	return j.fn(j.ctx, j.args)
}

func (d *Dispatcher) queueDepth() float64 {
	if d.queue == nil {
		return 0
	}
	return float64(len(d.queue))
}
