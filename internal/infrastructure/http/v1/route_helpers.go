package v1

import (
	"github.com/gin-gonic/gin"

	"stockpost/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	SetDeletionMark(c *gin.Context)
	GetTree(c *gin.Context)
}

// MovementRouteHandler defines the interface for the movement document handler.
type MovementRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Submit(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Post(c *gin.Context)
	Cancel(c *gin.Context)
}

// StockTakeRouteHandler defines the interface for the stock take handler.
type StockTakeRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Delete(c *gin.Context)
	Start(c *gin.Context)
	SaveCounts(c *gin.Context)
	Complete(c *gin.Context)
	Approve(c *gin.Context)
	Cancel(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, permission string) {
	group.GET("", middleware.RequirePermission(permission+":read"), handler.List)
	group.POST("", middleware.RequirePermission(permission+":create"), handler.Create)
	group.GET("/:id", middleware.RequirePermission(permission+":read"), handler.Get)
	group.PUT("/:id", middleware.RequirePermission(permission+":update"), handler.Update)
	group.DELETE("/:id", middleware.RequirePermission(permission+":delete"), handler.Delete)
	group.POST("/:id/deletion-mark", middleware.RequirePermission(permission+":delete"), handler.SetDeletionMark)
	group.GET("/tree", middleware.RequirePermission(permission+":read"), handler.GetTree)
}

// RegisterMovementRoutes registers CRUD and lifecycle routes for movements.
// Approval decisions additionally require the approver role. Once a
// movement is posted it stays posted, so there is no unpost route.
func RegisterMovementRoutes(group *gin.RouterGroup, handler MovementRouteHandler, permission, approverRole string) {
	group.GET("", middleware.RequirePermission(permission+":read"), handler.List)
	group.POST("", middleware.RequirePermission(permission+":create"), handler.Create)
	group.GET("/:id", middleware.RequirePermission(permission+":read"), handler.Get)
	group.PUT("/:id", middleware.RequirePermission(permission+":update"), handler.Update)
	group.DELETE("/:id", middleware.RequirePermission(permission+":delete"), handler.Delete)
	group.POST("/:id/submit", middleware.RequirePermission(permission+":update"), handler.Submit)
	group.POST("/:id/approve", middleware.RequireRole(approverRole), handler.Approve)
	group.POST("/:id/reject", middleware.RequireRole(approverRole), handler.Reject)
	group.POST("/:id/post", middleware.RequirePermission(permission+":post"), handler.Post)
	group.POST("/:id/cancel", middleware.RequirePermission(permission+":update"), handler.Cancel)
}

// RegisterStockTakeRoutes registers CRUD and lifecycle routes for stock takes.
func RegisterStockTakeRoutes(group *gin.RouterGroup, handler StockTakeRouteHandler, permission, approverRole string) {
	group.GET("", middleware.RequirePermission(permission+":read"), handler.List)
	group.POST("", middleware.RequirePermission(permission+":create"), handler.Create)
	group.GET("/:id", middleware.RequirePermission(permission+":read"), handler.Get)
	group.DELETE("/:id", middleware.RequirePermission(permission+":delete"), handler.Delete)
	group.POST("/:id/start", middleware.RequirePermission(permission+":update"), handler.Start)
	group.POST("/:id/counts", middleware.RequirePermission(permission+":update"), handler.SaveCounts)
	group.POST("/:id/complete", middleware.RequirePermission(permission+":update"), handler.Complete)
	group.POST("/:id/approve", middleware.RequireRole(approverRole), handler.Approve)
	group.POST("/:id/cancel", middleware.RequirePermission(permission+":update"), handler.Cancel)
}
