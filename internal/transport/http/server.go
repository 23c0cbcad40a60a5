package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aria-chat/internal/bootstrap"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/pkg/metrics"
	"aria-chat/internal/transport/http/handler"
	"aria-chat/internal/transport/http/middleware"
	"aria-chat/internal/transport/http/response"
)

const maxMultipartMemory = 8 << 20

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(logger.GinMiddleware(app.Logger), gin.Recovery())

	webDir := app.Config.App.WebDir
	router.StaticFile("/", filepath.Join(webDir, "index.html"))
	router.StaticFile("/admin", filepath.Join(webDir, "admin.html"))
	router.NoRoute(notFound(filepath.Join(webDir, "404.html")))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", metrics.Handler())

	cookieName := app.Config.Identity.CookieName
	authHandler := handler.NewAuthHandler(app.Auth, app.Gate, app.OAuth, handler.CookieConfig{
		Name:   cookieName,
		Secure: app.Config.Identity.CookieSecure,
		MaxAge: time.Duration(app.Config.Auth.JWTExpireMinute) * time.Minute,
	})
	chatHandler := handler.NewChatHandler(app.ChatViews)
	documentHandler := handler.NewDocumentHandler(app.AdminViews)

	router.GET("/admin/login", authHandler.OAuthLogin)
	router.GET("/admin/callback", authHandler.OAuthCallback)
	router.GET("/admin/logout", authHandler.Logout)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	chatGroup := v1.Group("/chat/views")
	chatGroup.POST("", chatHandler.OpenView)
	chatGroup.GET("/:view", chatHandler.Snapshot)
	chatGroup.DELETE("/:view", chatHandler.CloseView)
	chatGroup.GET("/:view/sessions", chatHandler.ListSessions)
	chatGroup.POST("/:view/sessions", chatHandler.CreateSession)
	chatGroup.PUT("/:view/sessions/:id/select", chatHandler.SelectSession)
	chatGroup.DELETE("/:view/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/:view/messages", chatHandler.SendMessage)
	chatGroup.GET("/:view/notifications", chatHandler.Notifications)

	// The session endpoint answers anonymous callers too.
	v1.GET("/admin/session", authHandler.Session)

	adminGroup := v1.Group("/admin/views")
	adminGroup.Use(middleware.RequireIdentity(app.Gate, cookieName))
	adminGroup.POST("", documentHandler.OpenView)
	adminGroup.GET("/:view", documentHandler.Snapshot)
	adminGroup.DELETE("/:view", documentHandler.CloseView)
	adminGroup.GET("/:view/documents", documentHandler.ListDocuments)
	adminGroup.POST("/:view/documents", documentHandler.Upload)
	adminGroup.DELETE("/:view/documents/:id", documentHandler.DeleteDocument)
	adminGroup.GET("/:view/notifications", documentHandler.Notifications)

	return router
}

func notFound(pagePath string) gin.HandlerFunc {
	page, err := os.ReadFile(pagePath)
	if err != nil {
		page = []byte("<!doctype html><title>404</title><h1>404</h1><p>Oops! Page not found</p>")
	}
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "route not found")
			return
		}
		logger.Ctx(c.Request.Context()).Warn().Msg("route not found")
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", page)
	}
}
