package services

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/SAP-F-2025/exam-analysis-service/internal/cache"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReportService_NotAnalysedYet(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedScenario(t, models.ExamStatusComplete)

	_, err := h.reports.GetClassPerformance(t.Context(), exam.ID)
	assert.ErrorIs(t, err, ErrNoReport)
	_, err = h.reports.ListClusters(t.Context(), exam.ID)
	assert.ErrorIs(t, err, ErrNoReport)
	assert.True(t, IsNotFound(err))

	_, err = h.reports.ListStudentPerformances(t.Context(), 4040)
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestReportService_CachesUntilNextRun(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedScenario(t, models.ExamStatusComplete)
	analyse(t, h, exam.ID)

	perfs, err := h.reports.ListStudentPerformances(t.Context(), exam.ID)
	require.NoError(t, err)
	require.Len(t, perfs, 3)

	var cached []*models.StudentPerformance
	require.NoError(t, h.cache.Get(t.Context(), cache.ReportKey(exam.ID, cache.ReportStudentPerformances), &cached))
	assert.Len(t, cached, 3)

	// a later read is served from the cache
	require.NoError(t, h.repo.Performances().ReplaceStudentPerformances(t.Context(), exam.ID, perfs[:1]))
	again, err := h.reports.ListStudentPerformances(t.Context(), exam.ID)
	require.NoError(t, err)
	assert.Len(t, again, 3)

	// re-analysis drops every cached report of the exam
	_, err = h.svc.TriggerAnalysis(t.Context(), exam.ID)
	require.NoError(t, err)
	h.drain(t)
	err = h.cache.Get(t.Context(), cache.ReportKey(exam.ID, cache.ReportStudentPerformances), &cached)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestReportService_ClusterFollowUp(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedScenario(t, models.ExamStatusComplete)
	analyse(t, h, exam.ID)

	clusters, err := h.reports.ListClusters(t.Context(), exam.ID)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)

	followUp, err := h.reports.GetClusterFollowUp(t.Context(), clusters[0].ID)
	require.NoError(t, err)
	assert.Equal(t, *clusters[0].FollowUpExamID, followUp.ID)
	assert.Len(t, followUp.Questions, 2)

	_, err = h.reports.GetClusterFollowUp(t.Context(), 4040)
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestExportService_Workbook(t *testing.T) {
	h := newHarness(t)
	exam, sessions := h.seedScenario(t, models.ExamStatusComplete)
	analyse(t, h, exam.ID)

	data, err := NewExportService(h.reports, h.logger).ExportExam(t.Context(), exam.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetClass, SheetStudents, SheetQuestions, SheetClusters}, f.GetSheetList())

	class, err := f.GetRows(SheetClass)
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, class[0])
	assert.Equal(t, []string{"Average Score", "54.17"}, class[2])

	students, err := f.GetRows(SheetStudents)
	require.NoError(t, err)
	require.Len(t, students, 4)
	assert.Equal(t, "Session ID", students[0][0])
	sessionIDs := []string{students[1][0], students[2][0], students[3][0]}
	for _, s := range sessions {
		assert.Contains(t, sessionIDs, strconv.FormatUint(uint64(s.ID), 10))
	}
	assert.Equal(t, "Total Questions", students[0][8])
	for _, row := range students[1:] {
		assert.Equal(t, "4", row[8])
	}

	questions, err := f.GetRows(SheetQuestions)
	require.NoError(t, err)
	assert.Len(t, questions, 5)
}

func TestExportService_RequiresAnalysis(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedScenario(t, models.ExamStatusComplete)

	_, err := NewExportService(h.reports, h.logger).ExportExam(t.Context(), exam.ID)

	assert.ErrorIs(t, err, ErrNoReport)
}
