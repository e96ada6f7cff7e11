package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/mw"
	"loom-maintenance-backend/internal/store"
)

// Dispatcher hands stored notifications to the delivery workers.
type Dispatcher interface {
	Dispatch(n model.Notification) bool
}

// Options configures a Handler. Zero values disable the optional parts.
type Options struct {
	Version        string
	UploadsDir     string
	MaxUploadBytes int64
	Dispatcher     Dispatcher
	WebPush        *webpush.Options
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	version    string
	uploadsDir string
	maxUpload  int64
	dispatcher Dispatcher
	webpush    *webpush.Options
	now        func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		store:      s,
		version:    opts.Version,
		uploadsDir: opts.UploadsDir,
		maxUpload:  opts.MaxUploadBytes,
		dispatcher: opts.Dispatcher,
		webpush:    opts.WebPush,
		now:        time.Now,
	}
}

// read loads the document, answering the request itself on failure.
func (h *Handler) read(c *gin.Context) (*model.Document, bool) {
	doc, err := h.store.Read(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return doc, true
}

// update runs fn inside a store update. On failure the error response has
// already been written and update returns false.
func (h *Handler) update(c *gin.Context, fn func(d *model.Document, now time.Time) error) bool {
	now := h.now().UTC()
	_, err := h.store.Update(c.Request.Context(), func(d *model.Document) error {
		return fn(d, now)
	})
	if err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

func (h *Handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) dispatch(ns ...model.Notification) {
	if h.dispatcher == nil {
		return
	}
	for _, n := range ns {
		h.dispatcher.Dispatch(n)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = "data temporarily unavailable, please retry"
	case http.StatusInternalServerError:
		msg = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		logs.Logger.WithError(err).WithField("reqid", mw.GetRequestID(c)).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, fleet.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fleet.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, fleet.ErrDuplicate),
		errors.Is(err, fleet.ErrInUse),
		errors.Is(err, fleet.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, fleet.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNoData):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
