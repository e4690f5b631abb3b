package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-analysis-service/internal/utils"
	"github.com/SAP-F-2025/exam-analysis-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	examHandler   *ExamHandler
	reportHandler *ReportHandler
	logger        utils.Logger
}

func NewHandlerManager(
	pipeline PipelineAPI,
	reports ReportAPI,
	exporter Exporter,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		examHandler:   NewExamHandler(pipeline, validator, logger),
		reportHandler: NewReportHandler(reports, exporter, logger),
		logger:        logger,
	}
}

// NewRouter builds the gin engine with the request middleware and every route.
func (hm *HandlerManager) NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		utils.RequestID(),
		utils.LoggerMiddleware(hm.logger),
		utils.ContextLogger(hm.logger),
	)
	hm.SetupRoutes(router)
	return router
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	{
		exams := v1.Group("/exams")
		{
			exams.POST("", hm.examHandler.CreateExam)

			// Pipeline stages
			exams.POST("/:id/generate", hm.examHandler.GenerateQuestions)
			exams.POST("/:id/grade", hm.examHandler.GradeExam)
			exams.POST("/:id/analyse", hm.examHandler.AnalyseExam)
			exams.POST("/:id/retry", hm.examHandler.RetryExam)
			exams.GET("/:id/status", hm.examHandler.GetStatus)

			// Analysis reports
			exams.GET("/:id/class-performance", hm.reportHandler.GetClassPerformance)
			exams.GET("/:id/student-performances", hm.reportHandler.ListStudentPerformances)
			exams.GET("/:id/question-performances", hm.reportHandler.ListQuestionPerformances)
			exams.GET("/:id/clusters", hm.reportHandler.ListClusters)
			exams.GET("/:id/export.xlsx", hm.reportHandler.ExportExam)
		}

		v1.GET("/clusters/:id/follow-up", hm.reportHandler.GetClusterFollowUp)
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exam-analysis-service",
	})
}
