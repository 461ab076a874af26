package gateway

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API under api. Everything except login requires
// a valid token.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, hub *PushHub, requireAuth gin.HandlerFunc) {
	api.POST("/auth/login", h.Login)

	protected := api.Group("")
	protected.Use(requireAuth)

	protected.POST("/auth/refresh", h.RefreshToken)
	protected.POST("/resume/upload", h.UploadResume)

	protected.GET("/jobs", h.ListJobs)
	protected.GET("/jobs/recommended", h.RecommendedJobs)
	protected.GET("/jobs/:id", h.GetJob)

	protected.POST("/documents", h.AppendDocument)
	protected.GET("/documents", h.ListDocuments)

	// The hub authenticates the upgrade itself so it can accept query tokens.
	api.GET("/ws", hub.Serve)
}
