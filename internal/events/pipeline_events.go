package events

import (
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents the pipeline lifecycle events
type EventType string

const (
	EventStageStarted   EventType = "exam.stage_started"
	EventStageCompleted EventType = "exam.stage_completed"
	EventStageFailed    EventType = "exam.stage_failed"

	EventAnalysisCompleted EventType = "exam.analysis_completed"
	EventFollowUpCreated   EventType = "exam.follow_up_created"
)

const (
	eventSource  = "exam-analysis-service"
	eventVersion = "1.0"
)

// PipelineEvent is the envelope for every pipeline event
type PipelineEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	ExamID    uint                   `json:"exam_id"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type StageEvent struct {
	ExamID uint              `json:"exam_id"`
	Stage  models.Stage      `json:"stage"`
	Status models.ExamStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}

type AnalysisCompletedEvent struct {
	ExamID       uint     `json:"exam_id"`
	StudentCount int      `json:"student_count"`
	AvgScore     float64  `json:"avg_score"`
	ClusterCount int      `json:"cluster_count"`
	Warnings     []string `json:"warnings,omitempty"`
}

type FollowUpCreatedEvent struct {
	SourceExamID   uint   `json:"source_exam_id"`
	FollowUpExamID uint   `json:"follow_up_exam_id"`
	ClusterID      uint   `json:"cluster_id"`
	ClusterLabel   string `json:"cluster_label"`
	QuestionCount  int    `json:"question_count"`
}

func newEvent(eventType EventType, examID uint, data interface{}) *PipelineEvent {
	return &PipelineEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		ExamID:    examID,
		Data:      data,
	}
}

func NewStageStartedEvent(examID uint, stage models.Stage) *PipelineEvent {
	return newEvent(EventStageStarted, examID, StageEvent{
		ExamID: examID,
		Stage:  stage,
		Status: stage.RunningStatus(),
	})
}

func NewStageCompletedEvent(examID uint, stage models.Stage, status models.ExamStatus) *PipelineEvent {
	return newEvent(EventStageCompleted, examID, StageEvent{
		ExamID: examID,
		Stage:  stage,
		Status: status,
	})
}

func NewStageFailedEvent(examID uint, stage models.Stage, message string) *PipelineEvent {
	return newEvent(EventStageFailed, examID, StageEvent{
		ExamID: examID,
		Stage:  stage,
		Status: models.ExamStatusFailed,
		Error:  message,
	})
}

func NewAnalysisCompletedEvent(examID uint, studentCount int, avgScore float64, clusterCount int, warnings []string) *PipelineEvent {
	return newEvent(EventAnalysisCompleted, examID, AnalysisCompletedEvent{
		ExamID:       examID,
		StudentCount: studentCount,
		AvgScore:     avgScore,
		ClusterCount: clusterCount,
		Warnings:     warnings,
	})
}

func NewFollowUpCreatedEvent(sourceExamID, followUpExamID, clusterID uint, label string, questionCount int) *PipelineEvent {
	return newEvent(EventFollowUpCreated, sourceExamID, FollowUpCreatedEvent{
		SourceExamID:   sourceExamID,
		FollowUpExamID: followUpExamID,
		ClusterID:      clusterID,
		ClusterLabel:   label,
		QuestionCount:  questionCount,
	})
}

// GenerateEventID returns a random event id
func GenerateEventID() string {
	return uuid.NewString()
}
