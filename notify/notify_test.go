package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

type fakePublisher struct {
	err      error
	subjects []string
	bodies   [][]byte
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.bodies = append(p.bodies, data)
	return p.err
}

type fakeMailer struct {
	err  error
	sent []*gomail.Message
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.sent = append(m.sent, msgs...)
	return m.err
}

func TestNATSSinkPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := &NATSSink{pub: pub, prefix: "notify", logger: utils.NewNopLogger()}

	ok := s.Deliver(context.Background(), "tg.12345", "merhaba")
	require.True(t, ok)
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "notify.tg_12345", pub.subjects[0])

	var msg Message
	require.NoError(t, json.Unmarshal(pub.bodies[0], &msg))
	assert.Equal(t, "tg.12345", msg.Destination)
	assert.Equal(t, "merhaba", msg.Text)
}

func TestNATSSinkFailureReturnsFalse(t *testing.T) {
	s := &NATSSink{pub: &fakePublisher{err: errors.New("no responders")}, prefix: "notify", logger: utils.NewNopLogger()}
	assert.False(t, s.Deliver(context.Background(), "u1", "x"))
	assert.False(t, s.Deliver(context.Background(), "", "x"))
}

func TestEmailSink(t *testing.T) {
	m := &fakeMailer{}
	s := &EmailSink{sender: m, from: "bot@emlak.test", subject: "konu", logger: utils.NewNopLogger()}

	assert.False(t, s.Deliver(context.Background(), "not-an-email", "x"))
	assert.Empty(t, m.sent)

	assert.True(t, s.Deliver(context.Background(), "agent@emlak.test", "yeni ilan"))
	require.Len(t, m.sent, 1)
	assert.Equal(t, []string{"agent@emlak.test"}, m.sent[0].GetHeader("To"))

	m.err = errors.New("smtp down")
	assert.False(t, s.Deliver(context.Background(), "agent@emlak.test", "yeni ilan"))
}

func TestMultiDeliversToAll(t *testing.T) {
	a, b := &Recorder{Fail: true}, &Recorder{}
	ok := Multi{a, b}.Deliver(context.Background(), "u1", "payload")

	assert.True(t, ok)
	assert.Len(t, a.Deliveries, 1)
	assert.Len(t, b.Deliveries, 1)

	assert.False(t, Multi{a}.Deliver(context.Background(), "u1", "payload"))
	assert.False(t, Multi{}.Deliver(context.Background(), "u1", "payload"))
}

func TestLogSinkDoesNotCountAsDelivery(t *testing.T) {
	logSink := LogSink{Logger: utils.NewNopLogger()}
	failing, working := &Recorder{Fail: true}, &Recorder{}

	assert.False(t, logSink.Deliver(context.Background(), "u1", "payload"))
	assert.False(t, Multi{logSink, failing}.Deliver(context.Background(), "u1", "payload"))
	assert.True(t, Multi{logSink, working}.Deliver(context.Background(), "u1", "payload"))
	assert.Len(t, failing.Deliveries, 1)
}

func TestNewListingText(t *testing.T) {
	text := NewListingText(models.PortalHepsiemlak, models.ListingPreview{
		Title:     "Moda 3+1",
		Price:     models.Price{Amount: 4500000, Currency: "TRY"},
		Location:  models.Location{City: "İstanbul", District: "Kadıköy"},
		SourceURL: "https://www.hepsiemlak.com/x",
	}, models.SearchCriteria{Provenance: models.ProvenanceDerived, CustomerID: "c1"})

	assert.Contains(t, text, "hepsiemlak")
	assert.Contains(t, text, "4500000 TRY")
	assert.Contains(t, text, "Kadıköy, İstanbul")
	assert.Contains(t, text, "c1")
	assert.Contains(t, text, "https://www.hepsiemlak.com/x")
}

func TestPropertyCreatedText(t *testing.T) {
	task := models.ImportTask{Listing: models.Listing{Title: "Villa"}, PhotosRequested: 5, PhotosStored: 4}
	assert.Equal(t, "İlan portföyünüze eklendi: Villa (4/5 fotoğraf)", PropertyCreatedText(task))

	task.PhotosRequested = 0
	assert.Equal(t, "İlan portföyünüze eklendi: Villa", PropertyCreatedText(task))
}
