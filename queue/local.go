package queue

import (
	"context"
	"sync"
	"time"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

// Local runs jobs in-process with the same delivery policy as JetStream.
// Used when no NATS server is configured.
type Local struct {
	handler Handler
	logger  *utils.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

func NewLocal(logger *utils.Logger) *Local {
	return &Local{
		logger: logger,
		sem:    make(chan struct{}, MaxInFlight),
		sleep:  utils.SleepContext,
		now:    time.Now,
	}
}

// SetHandler installs the job handler. It must be called before Dispatch.
func (l *Local) SetHandler(h Handler) {
	l.handler = h
}

// Dispatch starts the job in the background and returns immediately.
func (l *Local) Dispatch(ctx context.Context, job models.ImportJob) error {
	published := l.now()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(context.WithoutCancel(ctx), job, published)
	}()
	return nil
}

func (l *Local) run(ctx context.Context, job models.ImportJob, published time.Time) {
	for delivered := uint64(1); ; delivered++ {
		l.sem <- struct{}{}
		err := l.handler(ctx, job)
		<-l.sem

		action, delay := Decide(err, delivered, published, l.now())
		switch action {
		case Ack:
			return
		case Term:
			l.logger.Error("[queue] task %s failed permanently after %d deliveries: %v", job.TaskID, delivered, err)
			return
		}

		l.logger.Warn("[queue] task %s failed (delivery %d/%d): %v, redelivering in %v",
			job.TaskID, delivered, MaxDeliver, err, delay)
		if l.sleep(ctx, delay) != nil {
			return
		}
	}
}

// Wait blocks until every dispatched job reached a final action.
func (l *Local) Wait() {
	l.wg.Wait()
}
