package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/utils"
	"github.com/SAP-F-2025/exam-analysis-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// PipelineAPI is the part of the pipeline service the exam routes drive.
type PipelineAPI interface {
	CreateExam(ctx context.Context, exam *models.Exam, genCfg models.GenerationConfig) (*models.Exam, error)
	StartGeneration(ctx context.Context, examID uint, genCfg models.GenerationConfig) (*models.Exam, error)
	TriggerGrading(ctx context.Context, examID uint) (*models.Exam, error)
	TriggerAnalysis(ctx context.Context, examID uint) (*models.Exam, error)
	Retry(ctx context.Context, examID uint) (*models.Exam, error)
	GetExam(ctx context.Context, examID uint) (*models.Exam, error)
}

type ExamHandler struct {
	BaseHandler
	pipeline  PipelineAPI
	validator *validator.Validator
}

type CreateExamRequest struct {
	ClassroomID      uint                    `json:"classroom_id" validate:"required"`
	TeacherID        uint                    `json:"teacher_id" validate:"required"`
	Grade            int                     `json:"grade" validate:"min=1,max=12"`
	DurationMin      int                     `json:"duration_min" validate:"min=1"`
	StartDateTime    time.Time               `json:"start_date_time" validate:"required"`
	EndDateTime      time.Time               `json:"end_date_time" validate:"required,gtfield=StartDateTime"`
	GenerationConfig models.GenerationConfig `json:"generation_config"`
}

// ExamStatusResponse is the pipeline view of one exam.
type ExamStatusResponse struct {
	ExamID         uint              `json:"exam_id"`
	Code           string            `json:"code"`
	Status         models.ExamStatus `json:"status"`
	FailedStage    models.Stage      `json:"failed_stage,omitempty"`
	Error          string            `json:"error,omitempty"`
	Warnings       []string          `json:"warnings"`
	StageStartedAt *time.Time        `json:"stage_started_at,omitempty"`
}

func NewExamHandler(pipeline PipelineAPI, validator *validator.Validator, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		pipeline:    pipeline,
		validator:   validator,
	}
}

// CreateExam stores an exam and starts generating its questions
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body CreateExamRequest true "Exam data"
// @Success 202 {object} ExamStatusResponse
// @Failure 400 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Creating exam", "classroom_id", req.ClassroomID, "strands", len(req.GenerationConfig.StrandIDs))

	exam, err := h.pipeline.CreateExam(c.Request.Context(), &models.Exam{
		ClassroomID:   req.ClassroomID,
		TeacherID:     req.TeacherID,
		Grade:         req.Grade,
		DurationMin:   req.DurationMin,
		StartDateTime: req.StartDateTime,
		EndDateTime:   req.EndDateTime,
	}, req.GenerationConfig)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, newExamStatusResponse(exam))
}

// GenerateQuestions (re)generates an upcoming exam's questions
// @Summary Generate questions
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param config body models.GenerationConfig true "Generation settings"
// @Success 202 {object} ExamStatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/generate [post]
func (h *ExamHandler) GenerateQuestions(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.GenerationConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Starting question generation", "exam_id", id)

	exam, err := h.pipeline.StartGeneration(c.Request.Context(), id, req)
	h.respondWithExam(c, exam, err)
}

// GradeExam queues grading of every submitted session
// @Summary Grade exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 202 {object} ExamStatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/grade [post]
func (h *ExamHandler) GradeExam(c *gin.Context) {
	h.trigger(c, "Triggering grading", h.pipeline.TriggerGrading)
}

// AnalyseExam queues the performance analysis
// @Summary Analyse exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 202 {object} ExamStatusResponse
// @Router /exams/{id}/analyse [post]
func (h *ExamHandler) AnalyseExam(c *gin.Context) {
	h.trigger(c, "Triggering analysis", h.pipeline.TriggerAnalysis)
}

// RetryExam re-enters the stage that failed
// @Summary Retry failed stage
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 202 {object} ExamStatusResponse
// @Router /exams/{id}/retry [post]
func (h *ExamHandler) RetryExam(c *gin.Context) {
	h.trigger(c, "Retrying failed stage", h.pipeline.Retry)
}

// GetStatus returns where the exam is in the pipeline
// @Summary Exam pipeline status
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} ExamStatusResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/status [get]
func (h *ExamHandler) GetStatus(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}

	exam, err := h.pipeline.GetExam(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newExamStatusResponse(exam))
}

func (h *ExamHandler) trigger(c *gin.Context, message string, fn func(context.Context, uint) (*models.Exam, error)) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, message, "exam_id", id)

	exam, err := fn(c.Request.Context(), id)
	h.respondWithExam(c, exam, err)
}

func (h *ExamHandler) respondWithExam(c *gin.Context, exam *models.Exam, err error) {
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, newExamStatusResponse(exam))
}

func newExamStatusResponse(exam *models.Exam) ExamStatusResponse {
	warnings := []string(exam.AnalysisWarnings)
	if warnings == nil {
		warnings = []string{}
	}
	return ExamStatusResponse{
		ExamID:         exam.ID,
		Code:           exam.Code,
		Status:         exam.Status,
		FailedStage:    exam.FailedStage,
		Error:          exam.ErrorMessage(),
		Warnings:       warnings,
		StageStartedAt: exam.StageStartedAt,
	}
}
