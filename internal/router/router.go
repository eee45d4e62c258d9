package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/config"
	"github.com/medipredict/internal/handler"
	"github.com/medipredict/internal/logging"
	"go.uber.org/zap"
)

const sessionName = "medipredict_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg config.AppConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(logging.RequestLogger(logger), logging.Recovery(logger))

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/healthz", api.HealthCheck)
	r.GET("/metrics", api.MetricsHandler())

	public := r.Group("/api")
	{
		public.POST("/register", api.Register)
		public.POST("/login", api.Login)
		public.POST("/logout", api.Logout)
	}

	// 需要登录的接口
	auth := r.Group("/api")
	auth.Use(handler.AuthRequired())
	{
		auth.GET("/profile", api.GetProfile)
		auth.PUT("/profile", api.UpdateProfile)

		auth.GET("/medications", api.ListMedications)
		auth.POST("/medications", api.CreateMedication)
		auth.GET("/medications/due", api.DueMedications)
		auth.GET("/medications/:id", api.GetMedication)

		auth.GET("/doses", api.ListDoses)
		auth.POST("/doses", api.LogDose)

		auth.GET("/insights", api.GetInsights)
		auth.GET("/insights/population", api.GetPopulationInsights)
		auth.GET("/insights/risk/:handle", api.QueryRisk)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "接口不存在"})
	})

	return r
}
