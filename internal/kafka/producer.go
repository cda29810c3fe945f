package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var ErrProducerClosed = errors.New("kafka: producer closed")

// Producer buffers messages in an inbox drained by one goroutine that feeds
// an async writer. Topics are set per message so one producer serves every
// event type.
type Producer struct {
	w     *kafka.Writer
	inbox chan kafka.Message
	done  chan struct{}
	log   logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int, log logrus.FieldLogger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	p := &Producer{
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		log:   log,
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.completion,
	}
	go p.loop()
	return p
}

func (p *Producer) loop() {
	defer close(p.done)
	for m := range p.inbox {
		if err := p.w.WriteMessages(context.Background(), m); err != nil {
			p.log.WithError(err).WithField("topic", m.Topic).Error("kafka write failed")
		}
	}
	if err := p.w.Close(); err != nil {
		p.log.WithError(err).Warn("kafka writer close")
	}
}

func (p *Producer) completion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		p.log.WithError(err).WithFields(logrus.Fields{"topic": m.Topic, "key": string(m.Key)}).Error("kafka delivery failed")
	}
}

// Publish enqueues a message. It blocks only while the inbox is full and
// gives up when ctx is done.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	m := kafka.Message{Topic: topic, Key: key, Value: value, Time: time.Now()}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the inbox, closes the writer and waits for both. Safe to call
// more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}
