package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrStopped is returned by Do once the dispatcher's context has ended.
var ErrStopped = errors.New("dispatcher stopped")

type job struct {
	ctx  context.Context
	key  string
	fn   func(ctx context.Context) error
	done chan error
}

// Dispatcher runs keyed jobs on a fixed set of workers chosen by hashing the
// key, so jobs for the same key run one at a time in arrival order.
type Dispatcher struct {
	workers []chan job
	depth   *prometheus.GaugeVec
	log     zerolog.Logger

	stopped chan struct{}
	wg      sync.WaitGroup
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithDepthGauge reports each worker's backlog, labelled by worker_id.
func WithDepthGauge(g *prometheus.GaugeVec) Option {
	return func(d *Dispatcher) { d.depth = g }
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger, opts ...Option) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		log:     log,
		stopped: make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// jobs still queued at that point fail with ErrStopped.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		close(d.stopped)
	}()
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Do runs fn on the worker owning key and waits for its result.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, key: key, fn: fn, done: make(chan error, 1)}
	idx := d.shardIndex(key)

	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}

	select {
	case d.workers[idx] <- j:
		d.observe(idx)
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		// The worker may have picked the job up before stopping.
		select {
		case err := <-j.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) observe(idx int) {
	if d.depth != nil {
		d.depth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-ch:
			d.observe(id)
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			err := j.fn(j.ctx)
			if err != nil {
				d.log.Debug().Err(err).
					Str("key", j.key).
					Int("worker_id", id).
					Msg("job failed")
			}
			j.done <- err
		}
	}
}
