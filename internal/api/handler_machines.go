package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
)

func (h *Handler) ListMachines(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc.Machines)
}

func (h *Handler) CreateMachine(c *gin.Context) {
	var in model.NewMachine
	if !h.bind(c, &in) {
		return
	}
	var m model.Machine
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		m, err = fleet.AddMachine(d, in, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "machine": m})
}

func (h *Handler) UpdateMachine(c *gin.Context) {
	var u model.MachineUpdate
	if !h.bind(c, &u) {
		return
	}
	var m model.Machine
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		m, err = fleet.UpdateMachine(d, c.Param("id"), u, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "machine": m})
}

func (h *Handler) DeleteMachine(c *gin.Context) {
	if !h.update(c, func(d *model.Document, _ time.Time) error {
		return fleet.DeleteMachine(d, c.Param("id"))
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type assignTemplateRequest struct {
	TemplateID string `json:"templateId"`
}

// AssignTemplate assigns a template to one machine and resets its component
// states. An empty templateId unassigns.
func (h *Handler) AssignTemplate(c *gin.Context) {
	var req assignTemplateRequest
	if !h.bind(c, &req) {
		return
	}
	var m model.Machine
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		m, err = fleet.AssignTemplate(d, c.Param("id"), req.TemplateID, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "machine": m})
}

// CompleteMaintenance records a finished maintenance job in one atomic update.
func (h *Handler) CompleteMaintenance(c *gin.Context) {
	var req model.CompletionRequest
	if !h.bind(c, &req) {
		return
	}
	req.MachineID = c.Param("id")

	var done fleet.Completion
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		done, err = fleet.CompleteMaintenance(d, req, now)
		return err
	}) {
		return
	}
	h.dispatch(done.Notifications...)
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"record":        done.Record,
		"machine":       done.Machine,
		"parts":         done.Parts,
		"notifications": done.Notifications,
	})
}

// GetMachineReport returns the interval report of a machine.
func (h *Handler) GetMachineReport(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	m := doc.Machine(c.Param("id"))
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
		return
	}
	c.JSON(http.StatusOK, maintenance.EvaluateIn(doc, m))
}
