package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/model"
)

func (h *Handler) ListMachineTypes(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc.MachineTypes)
}

func (h *Handler) CreateMachineType(c *gin.Context) {
	var in model.NewMachineType
	if !h.bind(c, &in) {
		return
	}
	var mt model.MachineType
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		mt, err = fleet.AddMachineType(d, in)
		return err
	}) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "machineType": mt})
}

func (h *Handler) UpdateMachineType(c *gin.Context) {
	var u model.MachineTypeUpdate
	if !h.bind(c, &u) {
		return
	}
	var mt model.MachineType
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		mt, err = fleet.UpdateMachineType(d, c.Param("id"), u)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "machineType": mt})
}

// DeleteMachineType refuses with 409 while machines or templates use the type.
func (h *Handler) DeleteMachineType(c *gin.Context) {
	if !h.update(c, func(d *model.Document, _ time.Time) error {
		return fleet.DeleteMachineType(d, c.Param("id"))
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
