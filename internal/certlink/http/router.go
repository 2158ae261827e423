package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}))
	}

	r.GET("/healthz", h.Health)
	r.GET("/chain", h.Chain)

	r.GET("/session", h.Session)
	r.POST("/session/connect", h.Connect)
	r.POST("/session/disconnect", h.Disconnect)

	certs := r.Group("/certificates")
	{
		certs.POST("/mint", h.Mint)
		certs.GET("/total", h.Total)
		certs.GET("/:id/verify", h.Verify)
	}

	accounts := r.Group("/accounts/:address")
	{
		accounts.GET("/certificates", h.Owned)
		accounts.GET("/has-certificate", h.HasCertificate)
	}

	return r
}
