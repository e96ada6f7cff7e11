package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/model"
)

// ListNotifications returns all notifications, or the unread ones with ?unread=true.
func (h *Handler) ListNotifications(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	if c.Query("unread") == "true" {
		c.JSON(http.StatusOK, fleet.Unread(doc))
		return
	}
	c.JSON(http.StatusOK, doc.Notifications)
}

func (h *Handler) CreateNotification(c *gin.Context) {
	var in model.Notification
	if !h.bind(c, &in) {
		return
	}
	var n model.Notification
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		n, err = fleet.AddNotification(d, in, now)
		return err
	}) {
		return
	}
	h.dispatch(n)
	c.JSON(http.StatusCreated, gin.H{"success": true, "notification": n})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	var n model.Notification
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		n, err = fleet.MarkRead(d, c.Param("id"))
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notification": n})
}
