package v1

import (
	"github.com/gin-gonic/gin"
)

// ReadRouteHandler serves the read side of a resource.
type ReadRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
}

// DocumentRouteHandler serves a code-bearing document.
type DocumentRouteHandler interface {
	ReadRouteHandler
	Create(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterReadRoutes registers GET "" and GET /:id.
func RegisterReadRoutes(group *gin.RouterGroup, handler ReadRouteHandler) {
	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
}

// RegisterDocumentRoutes registers the read routes plus create and delete.
//
// Usage:
//
//	repo := document_repo.NewOpnameRepo(txManager)
//	service := opname.NewService(repo, products, gen, txManager)
//	handler := handlers.NewOpnameHandler(base, service, adjustments)
//	RegisterDocumentRoutes(api.Group("/opnames"), handler)
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	RegisterReadRoutes(group, handler)
	group.POST("", handler.Create)
	group.DELETE("/:id", handler.Delete)
}
