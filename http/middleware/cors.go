package middlewares

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/resumelab/cv-optimizer/config"
)

func CORSMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if cfg.CORS.AllowDomains == "" || cfg.CORS.AllowDomains == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		domains := strings.Split(cfg.CORS.AllowDomains, ",")
		for i := range domains {
			domains[i] = strings.TrimSpace(domains[i])
		}
		corsConfig.AllowOrigins = domains
	}

	return cors.New(corsConfig)
}
