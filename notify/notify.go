// Package notify delivers short text notifications to users.
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"gopkg.in/gomail.v2"

	"emlak-ingest/utils"
)

// Sink delivers payload to destination and reports whether it was accepted.
// Delivery is fire-and-forget: failures are logged, never returned.
type Sink interface {
	Deliver(ctx context.Context, destination, payload string) bool
}

// Message is the JSON body published on NATS.
type Message struct {
	Destination string    `json:"destination"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sentAt"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each notification on "<prefix>.<destination>" for the
// bot and push gateways to pick up.
type NATSSink struct {
	pub    publisher
	prefix string
	logger *utils.Logger
}

func NewNATSSink(nc *nats.Conn, prefix string, logger *utils.Logger) *NATSSink {
	return &NATSSink{pub: nc, prefix: prefix, logger: logger}
}

// Subject maps a destination to its NATS subject. Characters NATS treats as
// tokens or wildcards are replaced.
func (s *NATSSink) Subject(destination string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return s.prefix + "." + r.Replace(destination)
}

func (s *NATSSink) Deliver(_ context.Context, destination, payload string) bool {
	if destination == "" {
		return false
	}
	data, err := json.Marshal(Message{Destination: destination, Text: payload, SentAt: time.Now().UTC()})
	if err != nil {
		s.logger.Error("[notify] encode message: %v", err)
		return false
	}
	if err := s.pub.Publish(s.Subject(destination), data); err != nil {
		s.logger.Warn("[notify] nats publish to %s failed: %v", destination, err)
		return false
	}
	return true
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSink sends notifications over SMTP. Destinations that are not email
// addresses are ignored.
type EmailSink struct {
	sender  mailSender
	from    string
	subject string
	logger  *utils.Logger
}

func NewEmailSink(host string, port int, username, password, from string, logger *utils.Logger) *EmailSink {
	return &EmailSink{
		sender:  gomail.NewDialer(host, port, username, password),
		from:    from,
		subject: "Yeni ilan bildirimi",
		logger:  logger,
	}
}

func (s *EmailSink) Deliver(_ context.Context, destination, payload string) bool {
	if !strings.Contains(destination, "@") {
		return false
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", s.subject)
	m.SetBody("text/plain", payload)

	if err := s.sender.DialAndSend(m); err != nil {
		s.logger.Warn("[notify] smtp send to %s failed: %v", destination, err)
		return false
	}
	return true
}

// Multi fans a notification out to every sink. It reports true when at least
// one sink accepted it.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, destination, payload string) bool {
	ok := false
	for _, s := range m {
		if s.Deliver(ctx, destination, payload) {
			ok = true
		}
	}
	return ok
}

// LogSink writes every notification to the log. Logging is not delivery, so
// it always reports false and never turns a failed transport into a success
// inside Multi.
type LogSink struct {
	Logger *utils.Logger
}

func (s LogSink) Deliver(_ context.Context, destination, payload string) bool {
	s.Logger.Info("[notify] %s: %s", destination, payload)
	return false
}

// Recorder keeps every delivery in memory. Used by tests across packages.
type Recorder struct {
	mu         sync.Mutex
	Fail       bool
	Deliveries []Delivery
}

type Delivery struct {
	Destination string
	Payload     string
}

func (r *Recorder) Deliver(_ context.Context, destination, payload string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deliveries = append(r.Deliveries, Delivery{Destination: destination, Payload: payload})
	return !r.Fail
}
