package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Handler returns an error for failures worth retrying. The consumer retries
// a few times in place and then moves on.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     logrus.FieldLogger
}

func NewConsumer(brokers []string, group, topic string, workers int, log logrus.FieldLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log.WithFields(logrus.Fields{"group": group, "topic": topic})}
}

// Start fetches messages and fans them out to the workers until ctx is done.
// It returns nil on shutdown and the fetch error otherwise.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	jobs := make(chan kafka.Message, c.workers*4)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, id, m, h)
			}
		}(i)
	}
	defer func() {
		close(jobs)
		wg.Wait()
		if err := c.r.Close(); err != nil {
			c.log.WithError(err).Warn("kafka reader close")
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

const (
	handleAttempts = 3
	handleBackoff  = 200 * time.Millisecond
)

// handle retries h in place and then commits m either way: commits are a
// per-partition high-water mark, so a later commit by another worker would
// skip m regardless.
func (c *Consumer) handle(ctx context.Context, worker int, m kafka.Message, h Handler) {
	log := c.log.WithFields(logrus.Fields{"worker": worker, "partition": m.Partition, "offset": m.Offset})
	if err := retry(ctx, handleAttempts, handleBackoff, func() error { return h(ctx, m) }); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Error("handler failed, message skipped")
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("commit failed")
	}
}

// retry runs fn up to attempts times, doubling the wait between tries.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff << i):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
