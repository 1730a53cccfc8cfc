package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/kavyarao/streamfilter/pkg/kafka"
)

const (
	defaultBufferSize = 10000
	publishBatchSize  = 64
	publishInterval   = 2 * time.Second
)

// Collector buffers events in memory and publishes them to Kafka in
// batches from a background loop. Track never blocks the request path:
// when the buffer is full the event is dropped and logged.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a collector with the given buffer size.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. Events are flushed when a batch
// fills or the flush interval elapses. On context cancellation the
// buffer is drained and flushed before the loop exits.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", publishBatchSize,
	)
}

// Track enqueues an event without blocking.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, publishBatchSize)

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(context.Background(), &batch)
				return
			}
			batch = append(batch, kafka.Event{Key: "analytics", Value: event})
			if len(batch) >= publishBatchSize {
				c.flush(ctx, &batch)
			}
		case <-ticker.C:
			c.flush(ctx, &batch)
		case <-ctx.Done():
			c.drain(&batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx, &batch)
			cancel()
			return
		}
	}
}

// drain moves everything still buffered in the channel into the batch.
func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: "analytics", Value: event})
		default:
			return
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch *[]kafka.Event) {
	if len(*batch) == 0 {
		return
	}
	if err := c.producer.PublishBatch(ctx, *batch); err != nil {
		c.logger.Error("failed to publish analytics batch",
			"events", len(*batch),
			"error", err,
		)
	}
	*batch = (*batch)[:0]
}
