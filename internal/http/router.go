package http

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	AllowedOrigins []string
	JWTSecret      string
}

func NewRouter(h *Handler, cfg RouterConfig, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(log))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	if cfg.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret is empty, read endpoints are served without authentication")
	}
	h.Register(r, JWTAuth(cfg.JWTSecret))
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
