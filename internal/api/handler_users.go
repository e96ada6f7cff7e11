package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/model"
)

// ListUsers returns all users without their password hashes.
func (h *Handler) ListUsers(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	views := make([]model.UserView, 0, len(doc.Users))
	for i := range doc.Users {
		views = append(views, doc.Users[i].View())
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var in model.NewUser
	if !h.bind(c, &in) {
		return
	}
	var u model.User
	if !h.update(c, func(d *model.Document, now time.Time) (err error) {
		u, err = fleet.AddUser(d, in, now)
		return err
	}) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": u.View()})
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var upd model.UserUpdate
	if !h.bind(c, &upd) {
		return
	}
	var u model.User
	if !h.update(c, func(d *model.Document, _ time.Time) (err error) {
		u, err = fleet.UpdateUser(d, c.Param("id"), upd)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u.View()})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if !h.update(c, func(d *model.Document, _ time.Time) error {
		return fleet.DeleteUser(d, c.Param("id"))
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials against the stored users.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	doc, ok := h.read(c)
	if !ok {
		return
	}
	u, err := fleet.Authenticate(doc, req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u.View()})
}
