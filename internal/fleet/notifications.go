package fleet

import (
	"time"

	"github.com/google/uuid"

	"loom-maintenance-backend/internal/model"
)

// Notify appends a notification, filling in its ID and timestamp when missing.
// A requested ID that is already taken is replaced with a fresh one.
func Notify(d *model.Document, n model.Notification, now time.Time) model.Notification {
	if n.ID == "" || d.HasID(n.ID) {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	d.Notifications = append(d.Notifications, n)
	return n
}

// AddNotification validates and appends a user-supplied notification.
func AddNotification(d *model.Document, n model.Notification, now time.Time) (model.Notification, error) {
	if n.Message == "" {
		return model.Notification{}, invalid("notification message is required")
	}
	id, err := newID(d, n.ID)
	if err != nil {
		return model.Notification{}, err
	}
	n.ID = id
	return Notify(d, n, now), nil
}

// MarkRead flags a notification as read.
func MarkRead(d *model.Document, id string) (model.Notification, error) {
	for i := range d.Notifications {
		if d.Notifications[i].ID == id {
			d.Notifications[i].Read = true
			return d.Notifications[i], nil
		}
	}
	return model.Notification{}, notFound("notification", id)
}

// Unread returns the notifications that have not been read yet.
func Unread(d *model.Document) []model.Notification {
	out := []model.Notification{}
	for _, n := range d.Notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}
