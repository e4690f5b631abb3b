package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportAPI serves the records written by the analysis stage.
type ReportAPI interface {
	GetClassPerformance(ctx context.Context, examID uint) (*models.ClassPerformance, error)
	ListStudentPerformances(ctx context.Context, examID uint) ([]*models.StudentPerformance, error)
	ListQuestionPerformances(ctx context.Context, examID uint) ([]*models.QuestionPerformance, error)
	ListClusters(ctx context.Context, examID uint) ([]*models.PerformanceCluster, error)
	GetClusterFollowUp(ctx context.Context, clusterID uint) (*models.Exam, error)
}

type Exporter interface {
	ExportExam(ctx context.Context, examID uint) ([]byte, error)
}

type ReportHandler struct {
	BaseHandler
	reports  ReportAPI
	exporter Exporter
}

func NewReportHandler(reports ReportAPI, exporter Exporter, logger utils.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler: NewBaseHandler(logger),
		reports:     reports,
		exporter:    exporter,
	}
}

// GetClassPerformance returns the class aggregate of an analysed exam
// @Summary Class performance
// @Tags reports
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.ClassPerformance
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/class-performance [get]
func (h *ReportHandler) GetClassPerformance(c *gin.Context) {
	serveReport(h, c, h.reports.GetClassPerformance)
}

// ListStudentPerformances
// @Summary Student performances
// @Tags reports
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} models.StudentPerformance
// @Router /exams/{id}/student-performances [get]
func (h *ReportHandler) ListStudentPerformances(c *gin.Context) {
	serveReport(h, c, h.reports.ListStudentPerformances)
}

// ListQuestionPerformances
// @Summary Question performances
// @Tags reports
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} models.QuestionPerformance
// @Router /exams/{id}/question-performances [get]
func (h *ReportHandler) ListQuestionPerformances(c *gin.Context) {
	serveReport(h, c, h.reports.ListQuestionPerformances)
}

// ListClusters
// @Summary Performance clusters
// @Tags reports
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} models.PerformanceCluster
// @Router /exams/{id}/clusters [get]
func (h *ReportHandler) ListClusters(c *gin.Context) {
	serveReport(h, c, h.reports.ListClusters)
}

// GetClusterFollowUp returns the follow-up exam composed for a cluster
// @Summary Cluster follow-up exam
// @Tags reports
// @Produce json
// @Param id path uint true "Cluster ID"
// @Success 200 {object} models.Exam
// @Failure 404 {object} ErrorResponse
// @Router /clusters/{id}/follow-up [get]
func (h *ReportHandler) GetClusterFollowUp(c *gin.Context) {
	serveReport(h, c, h.reports.GetClusterFollowUp)
}

// ExportExam streams the analysis workbook
// @Summary Export analysis workbook
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/export.xlsx [get]
func (h *ReportHandler) ExportExam(c *gin.Context) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Exporting exam analysis", "exam_id", id)

	data, err := h.exporter.ExportExam(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-analysis.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func serveReport[T any](h *ReportHandler, c *gin.Context, load func(context.Context, uint) (T, error)) {
	id := ParseIDParam(c, "id")
	if id == 0 {
		return
	}

	report, err := load(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
