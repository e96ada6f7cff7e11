package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/model"
)

// ListHistory returns the maintenance history, optionally for ?machineId=.
func (h *Handler) ListHistory(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	if id := c.Query("machineId"); id != "" {
		c.JSON(http.StatusOK, fleet.History(doc, id))
		return
	}
	c.JSON(http.StatusOK, doc.MaintenanceHistory)
}

// CreateRecord appends a history entry. History is never edited or deleted.
func (h *Handler) CreateRecord(c *gin.Context) {
	var in model.MaintenanceRecord
	if !h.bind(c, &in) {
		return
	}
	var r model.MaintenanceRecord
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		r, err = fleet.AddRecord(d, in, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "record": r})
}
