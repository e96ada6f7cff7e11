package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/parse"
)

// uploadsPrefix is the URL path under which uploaded images are served.
const uploadsPrefix = "/uploads/"

func (h *Handler) ListFloorPlans(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc.FloorPlans)
}

func (h *Handler) CreateFloorPlan(c *gin.Context) {
	var in model.NewFloorPlan
	if !h.bind(c, &in) {
		return
	}
	var f model.FloorPlan
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		f, err = fleet.AddFloorPlan(d, in, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "floorPlan": f})
}

func (h *Handler) UpdateFloorPlan(c *gin.Context) {
	var u model.FloorPlanUpdate
	if !h.bind(c, &u) {
		return
	}
	var f model.FloorPlan
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		f, err = fleet.UpdateFloorPlan(d, c.Param("id"), u)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "floorPlan": f})
}

// DeleteFloorPlan removes the plan and its uploaded image, if any.
func (h *Handler) DeleteFloorPlan(c *gin.Context) {
	var f model.FloorPlan
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		f, err = fleet.DeleteFloorPlan(d, c.Param("id"))
		return err
	}) {
		return
	}
	h.removeUpload(f.Path)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) SetPosition(c *gin.Context) {
	var pos model.Position
	if !h.bind(c, &pos) {
		return
	}
	var f model.FloorPlan
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		f, err = fleet.SetPosition(d, c.Param("id"), c.Param("machineId"), pos)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "floorPlan": f})
}

func (h *Handler) RemovePosition(c *gin.Context) {
	var f model.FloorPlan
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		f, err = fleet.RemovePosition(d, c.Param("id"), c.Param("machineId"))
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "floorPlan": f})
}

func (h *Handler) ClearPositions(c *gin.Context) {
	var f model.FloorPlan
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		f, err = fleet.ClearPositions(d, c.Param("id"))
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "floorPlan": f})
}

// UploadFloorPlan stores an uploaded image in the uploads directory and adds
// a floor plan pointing at it. The multipart field is "floorPlan"; "name" is optional.
func (h *Handler) UploadFloorPlan(c *gin.Context) {
	if h.uploadsDir == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)

	fh, err := c.FormFile("floorPlan")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "floorPlan file is required"})
		return
	}
	if fh.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	src, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	info, err := parse.ProbeImage(src)
	src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only png, jpeg, gif and webp images are allowed"})
		return
	}

	fileName := "floorplan-" + uuid.NewString() + info.Extension()
	if err := os.MkdirAll(h.uploadsDir, 0o755); err != nil {
		h.fail(c, err)
		return
	}
	if err := c.SaveUploadedFile(fh, filepath.Join(h.uploadsDir, fileName)); err != nil {
		h.fail(c, err)
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}
	in := model.NewFloorPlan{
		Name:   name,
		Path:   uploadsPrefix + fileName,
		Width:  info.Width,
		Height: info.Height,
	}
	var f model.FloorPlan
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		f, err = fleet.AddFloorPlan(d, in, now)
		return err
	}) {
		h.removeUpload(in.Path)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "floorPlan": f})
}

func (h *Handler) removeUpload(path string) {
	if h.uploadsDir == "" || !strings.HasPrefix(path, uploadsPrefix) {
		return
	}
	name := filepath.Base(path)
	if err := os.Remove(filepath.Join(h.uploadsDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logs.Logger.WithError(err).WithField("file", name).Warn("failed to remove uploaded floor plan")
	}
}
