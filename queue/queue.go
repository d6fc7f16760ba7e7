// Package queue dispatches confirmed import jobs to the asynchronous handler.
package queue

import (
	"context"
	"time"

	"emlak-ingest/models"
)

const (
	// MaxDeliver is the total number of delivery attempts per job.
	MaxDeliver = 3
	// MaxInFlight bounds how many jobs are being handled at once, system-wide.
	MaxInFlight = 5
	// RetryWindow is how long after first publish a job may still run.
	RetryWindow = 600 * time.Second

	baseNakDelay = 15 * time.Second
)

// Dispatcher enqueues an import job.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.ImportJob) error
}

// Handler processes one job. A returned error makes the queue redeliver the
// job later; the handler itself never retries.
type Handler func(ctx context.Context, job models.ImportJob) error

// Action is what the consumer does with a delivery.
type Action int

const (
	Ack Action = iota
	Nak
	Term
)

func (a Action) String() string {
	switch a {
	case Ack:
		return "ack"
	case Nak:
		return "nak"
	default:
		return "term"
	}
}

// Expired reports whether a job first published at published is outside the
// retry window at now.
func Expired(published, now time.Time) bool {
	return now.Sub(published) > RetryWindow
}

// Decide maps a handler outcome to a queue action. delivered is 1-based.
// Naks back off exponentially from 15s but never past the retry window.
func Decide(handlerErr error, delivered uint64, published, now time.Time) (Action, time.Duration) {
	if handlerErr == nil {
		return Ack, 0
	}
	if delivered >= MaxDeliver || Expired(published, now) {
		return Term, 0
	}

	delay := baseNakDelay << (delivered - 1)
	if remaining := RetryWindow - now.Sub(published); delay > remaining {
		delay = remaining
	}
	return Nak, delay
}
