package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"loom-maintenance-backend/internal/mw"
)

// RouterOptions tunes the middleware in front of the handlers.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger())

	// GET responses are cached for CacheTTL and dropped on every successful write.
	cacheStore := cache.New(opts.CacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	if h.uploadsDir != "" {
		r.Static("/uploads", h.uploadsDir)
	}

	limit := rate.Inf
	if opts.RateLimitPerSec > 0 {
		limit = rate.Limit(opts.RateLimitPerSec)
	}

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limit, opts.RateLimitBurst), mw.InvalidateOnWrite(cacheStore))
	{
		api.GET("/status", h.GetStatus)
		api.GET("/data", caching, h.GetData)
		api.POST("/data", h.PostData)
		api.GET("/data/fingerprint", caching, h.GetFingerprint)
		api.POST("/login", h.Login)

		api.GET("/machines", caching, h.ListMachines)
		api.POST("/machines", h.CreateMachine)
		api.PUT("/machines/:id", h.UpdateMachine)
		api.DELETE("/machines/:id", h.DeleteMachine)
		api.POST("/machines/:id/template", h.AssignTemplate)
		api.POST("/machines/:id/maintenance", h.CompleteMaintenance)
		api.GET("/machines/:id/report", caching, h.GetMachineReport)

		api.GET("/parts", caching, h.ListParts)
		api.POST("/parts", h.CreatePart)
		api.PUT("/parts/:id", h.UpdatePart)
		api.DELETE("/parts/:id", h.DeletePart)
		api.POST("/parts/:id/use", h.UsePart)

		api.GET("/maintenance-templates", caching, h.ListTemplates)
		api.POST("/maintenance-templates", h.CreateTemplate)
		api.PUT("/maintenance-templates/:id", h.UpdateTemplate)
		api.DELETE("/maintenance-templates/:id", h.DeleteTemplate)
		api.POST("/maintenance-templates/:id/assign", h.AssignTemplateToMany)

		api.GET("/maintenance-history", caching, h.ListHistory)
		api.POST("/maintenance-history", h.CreateRecord)
		api.GET("/export/maintenance-history.xlsx", h.ExportHistory)

		api.GET("/users", caching, h.ListUsers)
		api.POST("/users", h.CreateUser)
		api.PUT("/users/:id", h.UpdateUser)
		api.DELETE("/users/:id", h.DeleteUser)

		api.GET("/machine-types", caching, h.ListMachineTypes)
		api.POST("/machine-types", h.CreateMachineType)
		api.PUT("/machine-types/:id", h.UpdateMachineType)
		api.DELETE("/machine-types/:id", h.DeleteMachineType)

		api.GET("/floor-plans", caching, h.ListFloorPlans)
		api.POST("/floor-plans", h.CreateFloorPlan)
		api.PUT("/floor-plans/:id", h.UpdateFloorPlan)
		api.DELETE("/floor-plans/:id", h.DeleteFloorPlan)
		api.PUT("/floor-plans/:id/positions/:machineId", h.SetPosition)
		api.DELETE("/floor-plans/:id/positions/:machineId", h.RemovePosition)
		api.DELETE("/floor-plans/:id/positions", h.ClearPositions)
		api.POST("/floor-plan/upload", h.UploadFloorPlan)

		api.GET("/notifications", caching, h.ListNotifications)
		api.POST("/notifications", h.CreateNotification)
		api.PUT("/notifications/:id/read", h.MarkNotificationRead)

		api.GET("/push/subscriptions", h.GetSubscription)
		api.PUT("/push/subscriptions", h.PutSubscription)
		api.DELETE("/push/subscriptions", h.DeleteSubscription)
		api.GET("/push/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
