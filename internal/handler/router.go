package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eduportal/backend/internal/model"
	"github.com/eduportal/backend/internal/service"
)

// NewRouter wires all routes. The guard middleware is applied explicitly
// per group rather than globally, so each route's access rule is visible
// at the registration site.
func NewRouter(authService *service.AuthService, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware(allowedOrigins))

	router.GET("/", Root)
	router.GET("/ping", Ping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := NewAuthHandler(authService)
	adminHandler := NewAdminHandler(authService)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", RequireAuth(authService), authHandler.Logout)
		auth.GET("/me", RequireAuth(authService), authHandler.Me)
	}

	admin := api.Group("/admin", RequireAuth(authService), RequireRoles(model.RoleAdmin))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.PATCH("/users/:id/status", adminHandler.UpdateUserStatus)
		admin.PATCH("/users/:id/roles", adminHandler.UpdateUserRoles)
	}

	return router
}
