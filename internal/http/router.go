// README: HTTP router registration.
package http

import (
	"github.com/gin-gonic/gin"

	"lookout/internal/http/handlers"
	"lookout/internal/http/middleware"
	"lookout/internal/infra"
)

// RouterDeps wires the API. A nil Verifier disables authentication.
type RouterDeps struct {
	Verifier infra.TokenVerifier
	Sessions handlers.SessionDeps
	Checks   map[string]handlers.Checker
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	health := handlers.NewHealthHandler(deps.Checks)
	r.GET("/health", health.Check)

	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	api := r.Group("/api/sessions", middleware.Auth(deps.Verifier))
	api.POST("", sessionHandler.Create)
	api.GET("/:id", sessionHandler.Get)
	api.DELETE("/:id", sessionHandler.Delete)
	api.POST("/:id/permission", sessionHandler.Permission)
	api.POST("/:id/position", sessionHandler.Position)
	api.POST("/:id/heading", sessionHandler.Heading)
	api.PUT("/:id/settings", sessionHandler.Settings)
	api.POST("/:id/ask", sessionHandler.Ask)
	api.GET("/:id/route", sessionHandler.Route)
	api.GET("/:id/events", sessionHandler.Events)

	return r
}
