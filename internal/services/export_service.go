package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetClass     = "Class"
	SheetStudents  = "Students"
	SheetQuestions = "Questions"
	SheetClusters  = "Clusters"
)

// ExportService renders an analysed exam as an XLSX workbook.
type ExportService struct {
	reports *ReportService
	logger  *slog.Logger
}

func NewExportService(reports *ReportService, logger *slog.Logger) *ExportService {
	return &ExportService{reports: reports, logger: logger}
}

// ExportExam returns the workbook bytes with one sheet per report.
func (s *ExportService) ExportExam(ctx context.Context, examID uint) ([]byte, error) {
	class, err := s.reports.GetClassPerformance(ctx, examID)
	if err != nil {
		return nil, err
	}
	students, err := s.reports.ListStudentPerformances(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.reports.ListQuestionPerformances(ctx, examID)
	if err != nil {
		return nil, err
	}
	clusters, err := s.reports.ListClusters(ctx, examID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name    string
		headers []string
		rows    [][]interface{}
	}{
		{SheetClass, []string{"Metric", "Value"}, classRows(class)},
		{SheetStudents, []string{
			"Session ID", "Student ID", "Student Name", "Average Score", "Expectation Level",
			"Answered", "Unanswered", "Completion Rate", "Total Questions", "Duration (min)", "Late Submission",
			"Class Avg Difference",
		}, studentRows(students)},
		{SheetQuestions, []string{"Question ID", "Average Score", "Expectation Level", "Answers"}, questionRows(questions)},
		{SheetClusters, []string{
			"Cluster", "Size", "Average Score", "Expectation Level", "Std Dev", "Sessions", "Follow-up Exam ID",
		}, clusterRows(clusters)},
	}

	for i, sheet := range sheets {
		index, err := f.NewSheet(sheet.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, sheet.name, sheet.headers, sheet.rows); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	s.logger.InfoContext(ctx, "Exported exam workbook", "exam_id", examID, "students", len(students), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func classRows(c *models.ClassPerformance) [][]interface{} {
	variance := c.ScoreVariance.Data()
	rows := [][]interface{}{
		{"Student Count", c.StudentCount},
		{"Average Score", c.AvgScore},
		{"Expectation Level", string(c.AvgExpectationLevel)},
		{"Std Dev", variance.StdDev},
		{"Min Score", variance.Min},
		{"Max Score", variance.Max},
	}
	for _, bin := range c.ScoreDistribution {
		rows = append(rows, []interface{}{"Scores " + bin.Name, bin.Count})
	}
	for _, entry := range c.BloomSkillScores {
		rows = append(rows, []interface{}{"Bloom " + entry.Name, entry.Percentage})
	}
	for _, strand := range c.StrandAnalysis {
		rows = append(rows, []interface{}{"Strand " + strand.Name, strand.AvgScore})
	}
	return rows
}

func studentRows(perfs []*models.StudentPerformance) [][]interface{} {
	rows := make([][]interface{}, 0, len(perfs))
	for _, p := range perfs {
		rows = append(rows, []interface{}{
			p.SessionID, p.StudentID, p.StudentName, p.AvgScore, string(p.AvgExpectationLevel),
			p.QuestionsAnswered, p.QuestionsUnanswered, p.CompletionRate, p.TotalQuestions(), p.DurationMin,
			p.IsLateSubmission, p.ClassAvgDifference,
		})
	}
	return rows
}

func questionRows(perfs []*models.QuestionPerformance) [][]interface{} {
	rows := make([][]interface{}, 0, len(perfs))
	for _, p := range perfs {
		answers := 0
		for _, ids := range p.AnswersByLevel.Data() {
			answers += len(ids)
		}
		rows = append(rows, []interface{}{p.QuestionID, p.AvgScore, string(p.AvgExpectationLevel), answers})
	}
	return rows
}

func clusterRows(clusters []*models.PerformanceCluster) [][]interface{} {
	rows := make([][]interface{}, 0, len(clusters))
	for _, c := range clusters {
		sessions := make([]string, len(c.StudentSessionIDs))
		for i, id := range c.StudentSessionIDs {
			sessions[i] = fmt.Sprint(id)
		}
		followUp := ""
		if c.FollowUpExamID != nil {
			followUp = fmt.Sprint(*c.FollowUpExamID)
		}
		rows = append(rows, []interface{}{
			c.ClusterLabel, c.ClusterSize, c.AvgScore, string(c.AvgExpectationLevel),
			c.ScoreVariance.Data().StdDev, strings.Join(sessions, ","), followUp,
		})
	}
	return rows
}
