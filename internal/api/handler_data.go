package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/model"
)

// GetStatus is the health probe used by clients to detect connectivity.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"version":   h.version,
		"timestamp": h.now().UTC(),
	})
}

// GetData returns the whole document.
func (h *Handler) GetData(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetFingerprint returns the change fingerprint of the document.
func (h *Handler) GetFingerprint(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc.Fingerprint())
}

// PostData replaces the whole document. Clients use it to push their cache
// after working offline.
func (h *Handler) PostData(c *gin.Context) {
	var doc model.Document
	if !h.bind(c, &doc) {
		return
	}
	stored, err := h.store.Write(c.Request.Context(), &doc)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Data saved successfully",
		"lastModified": stored.LastModified,
	})
}
