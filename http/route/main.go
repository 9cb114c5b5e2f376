package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/resumelab/cv-optimizer/http/controller"
	middlewares "github.com/resumelab/cv-optimizer/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group("/api/v1/cv")
	{
		apiRoutes.Use(middles.AuthMiddleware)
		apiRoutes.Use(middles.RateLimitMiddleware)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.POST("/", ctrl.CreateJob)
			jobRoutes.GET("/", ctrl.ListJobs)
			jobRoutes.GET("/:id", ctrl.GetJobStatus)
			jobRoutes.DELETE("/:id", ctrl.CancelJob)
		}

		cvRoutes := apiRoutes.Group("/documents")
		{
			cvRoutes.GET("/", ctrl.ListCVs)
		}
	}
	return r
}
