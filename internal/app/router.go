package app

import (
	"learnpath_backend/docs"
	"learnpath_backend/internal/config"
	"learnpath_backend/internal/middleware"
	"learnpath_backend/internal/model"
	"learnpath_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c)
		a.registerAuthoringRoutes(authGroup, c)
	}
}

// 学习者侧：结构浏览与进度读写
func (a *App) registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/courses/:courseId/chapters", c.course.ListChapters)
	rg.GET("/chapters/:chapterId/sections", c.section.ListSections)
	rg.GET("/chapters/:chapterId/contents", c.content.ListContents)
	rg.GET("/sections/:sectionId/stages", c.stage.ListStages)
	rg.GET("/tags", c.content.ListTags)
	rg.GET("/contents/:id", c.content.GetContent)

	rg.GET("/stages/:id/progress", c.progress.GetStageProgress)
	rg.GET("/stages/:id/availability", c.stage.StageAvailability)
	rg.GET("/contents/:id/progress", c.progress.GetUserProgress)
	rg.POST("/contents/:id/progress/log", c.progress.AppendLogItem)
}

// 作者侧：课程结构与内容编辑，仅限教师/管理员
func (a *App) registerAuthoringRoutes(rg *gin.RouterGroup, c *controllers) {
	authoring := rg.Group("/authoring")
	authoring.Use(middleware.RoleMiddleware(model.Instructor))
	{
		authoring.POST("/courses", c.course.CreateCourse)
		authoring.POST("/courses/:courseId/chapters", c.course.CreateChapter)

		authoring.POST("/chapters/:chapterId/sections", c.section.CreateSection)
		authoring.PUT("/chapters/:chapterId/sections/order", c.section.ReorderSections)
		authoring.PUT("/sections/:id/name", c.section.UpdateSectionName)
		authoring.DELETE("/sections/:id", c.section.DeleteSection)

		authoring.POST("/sections/:id/stages", c.stage.CreateStage)
		authoring.PUT("/sections/:id/stages/order", c.stage.ReorderStages)
		authoring.PUT("/stages/:id/contents", c.stage.UpdateStage)
		authoring.PUT("/stages/:id/position", c.stage.MoveStage)
		authoring.DELETE("/stages/:id", c.stage.DeleteStage)

		authoring.POST("/chapters/:chapterId/contents", c.content.CreateContent)
		authoring.POST("/contents/:id/media", c.content.UploadMedia)
		authoring.DELETE("/contents/:id", c.content.DeleteContent)
	}
}
