package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/auth"
	"github.com/causerie/causerie-server/internal/config"
	"github.com/causerie/causerie-server/internal/core"
	"github.com/causerie/causerie-server/internal/store"
)

// NewServer builds the HTTP server: REST surface plus the realtime endpoint.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, logger)
	channelHandlers := NewChannelHandlers(st, hub, logger)
	muteHandlers := NewMuteHandlers(st, hub, logger)
	privateHandlers := NewPrivateHandlers(st, logger)

	router.GET("/health", healthHandler)

	// Public auth endpoints
	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)
	router.POST("/api/guest", apiHandlers.GuestLogin)

	// Authenticated REST surface
	authorized := router.Group("/api")
	authorized.Use(AuthMiddleware(authService, logger))
	{
		authorized.POST("/channels", channelHandlers.CreateChannel)
		authorized.GET("/channels", channelHandlers.ListChannels)
		authorized.DELETE("/channels/:name", channelHandlers.DeleteChannel)
		authorized.PUT("/channels/:name/description", channelHandlers.SetDescription)
		authorized.PUT("/channels/:name/mute", channelHandlers.SetMuted)

		authorized.POST("/mutes", muteHandlers.CreateMute)
		authorized.DELETE("/mutes", muteHandlers.DeleteMute)
		authorized.GET("/mutes", muteHandlers.ListMutes)

		authorized.POST("/users/:id/promote", apiHandlers.PromoteAdmin)

		authorized.GET("/private/:user", privateHandlers.Conversation)
		authorized.DELETE("/private/:user", privateHandlers.HideConversation)
	}

	// Realtime endpoint; identity is optional at upgrade time.
	wsHandler := NewWSHandler(hub, authService, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
