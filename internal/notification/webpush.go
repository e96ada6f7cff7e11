package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is what the browser service worker receives.
type pushPayload struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Urgent bool   `json:"urgent"`
}

// WebPushSink sends every notification to all stored push subscriptions.
// Subscriptions the push service reports as gone are removed from the document.
type WebPushSink struct {
	store   store.Store
	options *webpush.Options
	sender  NotificationSender
}

// NewWebPushSink creates a sink using the real webpush sender.
func NewWebPushSink(s store.Store, options *webpush.Options) *WebPushSink {
	return &WebPushSink{store: s, options: options, sender: &WebPushSender{}}
}

func (w *WebPushSink) Name() string { return "webpush" }

func (w *WebPushSink) Deliver(ctx context.Context, n model.Notification) error {
	doc, err := w.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read subscriptions: %w", err)
	}
	if len(doc.PushSubscriptions) == 0 {
		return nil
	}

	title := "Wartung"
	if n.Urgent {
		title = "Wartung dringend"
	}
	payload, err := json.Marshal(pushPayload{ID: n.ID, Title: title, Body: n.Message, Urgent: n.Urgent})
	if err != nil {
		return err
	}

	var expired []string
	for _, sub := range doc.PushSubscriptions {
		if w.send(sub, payload) {
			expired = append(expired, sub.Endpoint)
		}
	}
	if len(expired) == 0 {
		return nil
	}

	_, err = w.store.Update(ctx, func(d *model.Document) error {
		fleet.Unsubscribe(d, expired...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete expired subscriptions: %w", err)
	}
	logs.Logger.WithField("count", len(expired)).Info("deleted expired push subscriptions")
	return nil
}

// send delivers one push message and reports whether the subscription has expired.
func (w *WebPushSink) send(sub model.PushSubscription, payload []byte) bool {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := w.sender.Send(payload, wpSub, w.options)
	if err != nil {
		logs.Logger.WithError(err).WithField("endpoint", sub.Endpoint).Warn("failed to send push notification")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusGone
}
