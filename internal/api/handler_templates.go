package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/model"
)

// ListTemplates returns all templates, or those for ?machineType=.
func (h *Handler) ListTemplates(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	if mt := c.Query("machineType"); mt != "" {
		c.JSON(http.StatusOK, fleet.TemplatesFor(doc, mt))
		return
	}
	c.JSON(http.StatusOK, doc.MaintenanceTemplates)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var in model.NewTemplate
	if !h.bind(c, &in) {
		return
	}
	var t model.MaintenanceTemplate
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		t, err = fleet.AddTemplate(d, in)
		return err
	}) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "template": t})
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	var u model.TemplateUpdate
	if !h.bind(c, &u) {
		return
	}
	var t model.MaintenanceTemplate
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		t, err = fleet.UpdateTemplate(d, c.Param("id"), u, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "template": t})
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	if !h.update(c, func(d *model.Document, _ time.Time) error {
		return fleet.DeleteTemplate(d, c.Param("id"))
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type assignManyRequest struct {
	MachineIDs []string `json:"machineIds" binding:"required"`
}

// AssignTemplateToMany assigns the template to several machines at once.
func (h *Handler) AssignTemplateToMany(c *gin.Context) {
	var req assignManyRequest
	if !h.bind(c, &req) {
		return
	}
	var machines []model.Machine
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		machines, err = fleet.AssignTemplateToMany(d, c.Param("id"), req.MachineIDs, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "machines": machines})
}
