package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/store"
)

func init() {
	logs.Discard()
}

type recordingSink struct {
	got chan model.Notification
	err error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, n model.Notification) error {
	s.got <- n
	return s.err
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, &recordingSink{})

	assert.True(t, wp.Dispatch(model.Notification{ID: "n1"}))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "n1", job.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DropsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, &recordingSink{})
	for i := 0; i < cap(wp.Jobs()); i++ {
		require.True(t, wp.Dispatch(model.Notification{}))
	}
	assert.False(t, wp.Dispatch(model.Notification{}))
}

func TestWorkerPool_NoSinks(t *testing.T) {
	wp := NewWorkerPool(1)
	assert.False(t, wp.Dispatch(model.Notification{ID: "n1"}))
	assert.Empty(t, wp.Jobs())
}

func TestWorkerPool_DeliversToEverySink(t *testing.T) {
	failing := &recordingSink{got: make(chan model.Notification, 1), err: errors.New("broker down")}
	ok := &recordingSink{got: make(chan model.Notification, 1)}
	wp := NewWorkerPool(2, failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	wp.Dispatch(model.Notification{ID: "n1", Message: "Teil fast leer"})
	for _, s := range []*recordingSink{failing, ok} {
		select {
		case n := <-s.got:
			assert.Equal(t, "n1", n.ID)
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	}

	cancel()
	wp.Wait()
}

type mockSender struct {
	mu       sync.Mutex
	sent     []string
	payloads [][]byte
	status   map[string]int
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sub.Endpoint)
	m.payloads = append(m.payloads, payload)
	status := http.StatusCreated
	if s, ok := m.status[sub.Endpoint]; ok {
		status = s
	}
	if status == 0 {
		return nil, errors.New("connection refused")
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
}

func newSubscribedStore(t *testing.T, endpoints ...string) store.Store {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir(), store.DefaultMaxBackups)
	require.NoError(t, err)
	doc := model.NewDocument()
	for _, e := range endpoints {
		doc.PushSubscriptions = append(doc.PushSubscriptions, model.PushSubscription{Endpoint: e, P256DH: "p", Auth: "a"})
	}
	_, err = s.Write(context.Background(), doc)
	require.NoError(t, err)
	return s
}

func TestWebPushSink(t *testing.T) {
	s := newSubscribedStore(t, "https://push/ok", "https://push/gone", "https://push/down")
	sender := &mockSender{status: map[string]int{
		"https://push/gone": http.StatusGone,
		"https://push/down": 0,
	}}
	sink := NewWebPushSink(s, &webpush.Options{})
	sink.sender = sender

	err := sink.Deliver(context.Background(), model.Notification{ID: "n1", Message: "Wartung fällig", Urgent: true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"https://push/ok", "https://push/gone", "https://push/down"}, sender.sent)
	var p pushPayload
	require.NoError(t, json.Unmarshal(sender.payloads[0], &p))
	assert.Equal(t, pushPayload{ID: "n1", Title: "Wartung dringend", Body: "Wartung fällig", Urgent: true}, p)

	doc, err := s.Read(context.Background())
	require.NoError(t, err)
	endpoints := make([]string, 0, len(doc.PushSubscriptions))
	for _, sub := range doc.PushSubscriptions {
		endpoints = append(endpoints, sub.Endpoint)
	}
	assert.Equal(t, []string{"https://push/ok", "https://push/down"}, endpoints)
}

func TestWebPushSink_NoSubscriptions(t *testing.T) {
	sender := &mockSender{}
	sink := NewWebPushSink(newSubscribedStore(t), &webpush.Options{})
	sink.sender = sender

	require.NoError(t, sink.Deliver(context.Background(), model.Notification{ID: "n1"}))
	assert.Empty(t, sender.sent)
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.payload = payload.([]byte)
	return doneToken{err: p.err}
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := &MQTTSink{pub: pub, topic: notificationTopic("loom/")}

	n := model.Notification{ID: "n1", Message: "Teil fast leer", Urgent: true, Ref: "part/P1/low"}
	require.NoError(t, sink.Deliver(context.Background(), n))
	assert.Equal(t, "loom/notifications", pub.topic)

	var got model.Notification
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, n, got)

	pub.err = errors.New("not connected")
	assert.EqualError(t, sink.Deliver(context.Background(), n), "not connected")

	sink.Close()
}

func TestNotificationTopic(t *testing.T) {
	assert.Equal(t, "notifications", notificationTopic(""))
	assert.Equal(t, "hall/3/notifications", notificationTopic("/hall/3/"))
}
