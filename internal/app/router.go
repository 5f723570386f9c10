package app

import (
	"partner_hub_backend/docs"
	"partner_hub_backend/internal/config"
	"partner_hub_backend/internal/middleware"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		registerEnrollmentRoutes(authGroup, c)
		registerAdminRoutes(authGroup, c)
	}
}

func registerPublicRoutes(router *gin.Engine, c *controllers) {
	router.GET("/api/health", c.health.HealthCheck)

	// 合作方回调，来源由合作方自行保证
	router.POST("/webhooks/partner-updates", c.webhook.PartnerUpdate)
	router.HEAD("/webhooks/partner-updates", c.webhook.Probe)
}

func registerEnrollmentRoutes(api *gin.RouterGroup, c *controllers) {
	api.GET("/completed-courses", c.completedCourse.ListMine)

	enrollments := api.Group("/enrollments")
	{
		enrollments.GET("/:id", c.enrollment.GetEnrollment)
		enrollments.POST("", middleware.RoleMiddleware(model.Admin), c.enrollment.CreateEnrollment)

		// 卖家或管理员，是否为该报名的卖家由服务层判断
		seller := enrollments.Group("/:id")
		seller.Use(middleware.RoleMiddleware(model.Seller))
		{
			seller.GET("/assessments", c.enrollment.ListAssessments)
			seller.POST("/assessments", c.enrollment.AddAssessment)
			seller.PUT("/assessments/:aid", c.enrollment.UpdateAssessment)
			seller.DELETE("/assessments/:aid", c.enrollment.RemoveAssessment)
			seller.PATCH("/status", c.enrollment.TransitionStatus)
		}
	}
}

func registerAdminRoutes(api *gin.RouterGroup, c *controllers) {
	admin := api.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/partner-sources", c.partnerSource.List)
		admin.POST("/partner-sources", c.partnerSource.Register)
		admin.POST("/partner-sources/sync", c.partnerSource.SyncNow)
	}
}
