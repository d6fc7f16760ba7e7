package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

// JetStream is a Dispatcher and consumer on a NATS JetStream work queue.
type JetStream struct {
	js      jetstream.JetStream
	stream  string
	subject string
	durable string
	logger  *utils.Logger
}

// NewJetStream creates or updates the work-queue stream for subject.
func NewJetStream(ctx context.Context, nc *nats.Conn, stream, subject string, logger *utils.Logger) (*JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       stream,
		Subjects:   []string{subject},
		Retention:  jetstream.WorkQueuePolicy,
		MaxAge:     RetryWindow,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream: stream %s: %w", stream, err)
	}

	return &JetStream{
		js:      js,
		stream:  stream,
		subject: subject,
		durable: "importer",
		logger:  logger,
	}, nil
}

func (q *JetStream) Dispatch(ctx context.Context, job models.ImportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jetstream: encode job: %w", err)
	}
	if _, err := q.js.Publish(ctx, q.subject, data, jetstream.WithMsgID(job.TaskID)); err != nil {
		return fmt.Errorf("jetstream: publish %s: %w", job.TaskID, err)
	}
	q.logger.Debug("[queue] dispatched task %s", job.TaskID)
	return nil
}

// Consume runs handler for each delivery until ctx is cancelled. The server
// keeps at most MaxInFlight deliveries unacknowledged.
func (q *JetStream) Consume(ctx context.Context, handler Handler) error {
	cons, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		Durable:       q.durable,
		FilterSubject: q.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       5 * time.Minute,
		MaxDeliver:    MaxDeliver,
		MaxAckPending: MaxInFlight,
	})
	if err != nil {
		return fmt.Errorf("jetstream: consumer: %w", err)
	}

	var wg sync.WaitGroup
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.process(ctx, msg, handler)
		}()
	})
	if err != nil {
		return fmt.Errorf("jetstream: consume: %w", err)
	}

	q.logger.Info("[queue] consuming %s (max in flight %d)", q.subject, MaxInFlight)
	<-ctx.Done()
	cc.Stop()
	wg.Wait()
	return nil
}

func (q *JetStream) process(ctx context.Context, msg jetstream.Msg, handler Handler) {
	meta, err := msg.Metadata()
	if err != nil {
		q.logger.Error("[queue] metadata: %v", err)
		_ = msg.Term()
		return
	}

	var job models.ImportJob
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		q.logger.Error("[queue] undecodable job, terminating: %v", err)
		_ = msg.Term()
		return
	}

	if Expired(meta.Timestamp, time.Now()) {
		q.logger.Warn("[queue] task %s outside retry window, terminating", job.TaskID)
		_ = msg.Term()
		return
	}

	herr := handler(ctx, job)
	action, delay := Decide(herr, meta.NumDelivered, meta.Timestamp, time.Now())

	switch action {
	case Ack:
		err = msg.Ack()
	case Nak:
		q.logger.Warn("[queue] task %s failed (delivery %d/%d): %v, redelivering in %v",
			job.TaskID, meta.NumDelivered, MaxDeliver, herr, delay)
		err = msg.NakWithDelay(delay)
	case Term:
		q.logger.Error("[queue] task %s failed permanently after %d deliveries: %v",
			job.TaskID, meta.NumDelivered, herr)
		err = msg.Term()
	}
	if err != nil {
		q.logger.Warn("[queue] %s task %s: %v", action, job.TaskID, err)
	}
}
