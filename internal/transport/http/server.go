package http

import (
	stdhttp "net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ito-server/internal/auth"
	"github.com/vovakirdan/ito-server/internal/config"
	"github.com/vovakirdan/ito-server/internal/core"
	"github.com/vovakirdan/ito-server/internal/ito"
)

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(hub *core.Hub, game *ito.Service, jwtCfg *auth.JWTConfig, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, game, jwtCfg, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires every route onto a gin engine.
func NewRouter(hub *core.Hub, game *ito.Service, jwtCfg *auth.JWTConfig, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	r.Use(cors.New(corsConfig(cfg.HTTP.AllowedOrigins)))

	r.GET("/health", healthHandler)
	r.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg, logger)))

	rooms := NewRoomHandlers(game, jwtCfg, logger)

	api := r.Group("/api")
	api.POST("/rooms", rooms.CreateRoom)
	api.GET("/rooms/:id", rooms.GetRoom)
	api.POST("/rooms/:id/players", rooms.JoinName)

	player := api.Group("/rooms/:id")
	player.Use(AuthMiddleware(jwtCfg, logger))
	player.POST("/step", rooms.Advance)
	player.POST("/number", rooms.SeeNumber)
	player.POST("/word", rooms.SendWord)
	player.POST("/guess", rooms.SubmitGuess)
	player.POST("/chat", rooms.Chat)
	player.DELETE("/players/me", rooms.LogOut)
	player.DELETE("", rooms.QuitGame)

	return r
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
