package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-recovery/internal/api/metrics"
	"github.com/99minutos/account-recovery/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes reset notices to a fixed set of workers using consistent
// hashing on the recipient email, so notices for one account are delivered in
// the order they were issued.
type Dispatcher struct {
	workers  []chan ports.ResetNotice
	notifier ports.ResetNotifier
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, notifier ports.ResetNotifier, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan ports.ResetNotice, numWorkers),
		notifier: notifier,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.ResetNotice, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runWorker(ctx, i, ch)
		}()
	}
}

// Wait blocks until every worker started by Start has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands a notice to the worker responsible for its email. It never
// blocks: when that worker's buffer is full the notice is dropped and logged.
// The token has already been returned to the caller, so nothing is lost.
func (d *Dispatcher) Enqueue(notice ports.ResetNotice) {
	idx := d.shardIndex(notice.Email)
	select {
	case d.workers[idx] <- notice:
		metrics.NoticesQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.NoticesDeliveredTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Int("worker_id", idx).Msg("notice queue full, dropping reset notice")
	}
}

// shardIndex maps an email deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.ResetNotice) {
	depth := metrics.NoticesQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case notice := <-ch:
			depth.Set(float64(len(ch)))

			start := time.Now()
			err := d.notifier.NotifyResetIssued(ctx, notice)
			metrics.NoticeDeliveryDuration.Observe(time.Since(start).Seconds())

			if err != nil {
				metrics.NoticesDeliveredTotal.WithLabelValues("error").Inc()
				d.log.Error().Err(err).
					Int("worker_id", id).
					Msg("reset notice delivery failed")
				continue
			}
			metrics.NoticesDeliveredTotal.WithLabelValues("ok").Inc()
		}
	}
}
