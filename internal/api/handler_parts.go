package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/model"
)

// ListParts returns all parts, or only those below minimum stock with ?low=true.
func (h *Handler) ListParts(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	if c.Query("low") == "true" {
		c.JSON(http.StatusOK, fleet.LowStock(doc))
		return
	}
	c.JSON(http.StatusOK, doc.Parts)
}

func (h *Handler) CreatePart(c *gin.Context) {
	var in model.NewPart
	if !h.bind(c, &in) {
		return
	}
	var p model.Part
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		p, err = fleet.AddPart(d, in)
		return err
	}) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "part": p})
}

func (h *Handler) UpdatePart(c *gin.Context) {
	var u model.PartUpdate
	if !h.bind(c, &u) {
		return
	}
	var p model.Part
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		p, err = fleet.UpdatePart(d, c.Param("id"), u)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "part": p})
}

func (h *Handler) DeletePart(c *gin.Context) {
	if !h.update(c, func(d *model.Document, _ time.Time) error {
		return fleet.DeletePart(d, c.Param("id"))
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type usePartRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// UsePart takes parts out of stock outside of a maintenance completion.
func (h *Handler) UsePart(c *gin.Context) {
	var req usePartRequest
	if !h.bind(c, &req) {
		return
	}
	var (
		p model.Part
		n *model.Notification
	)
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		p, n, err = fleet.UsePart(d, c.Param("id"), req.Quantity, now)
		return err
	}) {
		return
	}
	resp := gin.H{"success": true, "part": p}
	if n != nil {
		h.dispatch(*n)
		resp["notification"] = n
	}
	c.JSON(http.StatusOK, resp)
}
