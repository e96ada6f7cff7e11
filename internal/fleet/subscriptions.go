package fleet

import (
	"strings"
	"time"

	"loom-maintenance-backend/internal/model"
)

// Subscribe stores a push subscription, replacing the keys of an existing
// subscription with the same endpoint.
func Subscribe(d *model.Document, sub model.PushSubscription, now time.Time) (model.PushSubscription, error) {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if sub.Endpoint == "" || sub.P256DH == "" || sub.Auth == "" {
		return model.PushSubscription{}, invalid("endpoint, p256dh and auth are required")
	}
	for i := range d.PushSubscriptions {
		if d.PushSubscriptions[i].Endpoint == sub.Endpoint {
			d.PushSubscriptions[i].P256DH = sub.P256DH
			d.PushSubscriptions[i].Auth = sub.Auth
			return d.PushSubscriptions[i], nil
		}
	}
	sub.Created = now
	d.PushSubscriptions = append(d.PushSubscriptions, sub)
	return sub, nil
}

// Subscription looks up a push subscription by endpoint.
func Subscription(d *model.Document, endpoint string) (model.PushSubscription, error) {
	for _, s := range d.PushSubscriptions {
		if s.Endpoint == endpoint {
			return s, nil
		}
	}
	return model.PushSubscription{}, notFound("subscription", endpoint)
}

// Unsubscribe removes the subscriptions with the given endpoints. Unknown
// endpoints are ignored; it returns how many were removed.
func Unsubscribe(d *model.Document, endpoints ...string) int {
	drop := make(map[string]bool, len(endpoints))
	for _, e := range endpoints {
		drop[e] = true
	}
	kept := d.PushSubscriptions[:0]
	removed := 0
	for _, s := range d.PushSubscriptions {
		if drop[s.Endpoint] {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	d.PushSubscriptions = kept
	return removed
}
