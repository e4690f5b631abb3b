package models

import (
	"strings"
	"time"
)

type ExamSession struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	ExamID        uint          `json:"exam_id" gorm:"not null;uniqueIndex:idx_session_student_exam"`
	StudentID     uint          `json:"student_id" gorm:"not null;uniqueIndex:idx_session_student_exam"`
	StudentName   string        `json:"student_name" gorm:"size:255"`
	Status        SessionStatus `json:"status" gorm:"size:20;default:Upcoming"`
	StartDateTime time.Time     `json:"start_date_time"`
	EndDateTime   *time.Time    `json:"end_date_time"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	Answers []ScoredAnswer `json:"answers,omitempty" gorm:"foreignKey:SessionID"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

// DurationMin is the whole minutes between start and end, or zero while unfinished.
func (s *ExamSession) DurationMin() int {
	if s.EndDateTime == nil {
		return 0
	}
	return int(s.EndDateTime.Sub(s.StartDateTime).Minutes())
}

func (s *ExamSession) IsLateSubmission(exam *Exam) bool {
	return s.EndDateTime != nil && s.EndDateTime.After(exam.EndDateTime)
}

// ScoredAnswer is one student's response to one exam question.
type ScoredAnswer struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	SessionID   uint      `json:"session_id" gorm:"not null;index"`
	QuestionID  uint      `json:"question_id" gorm:"not null;index"`
	Description string    `json:"description" gorm:"type:text"`
	Score       *int      `json:"score"`
	AIScore     *int      `json:"ai_score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Question ExamQuestion `json:"question" gorm:"foreignKey:QuestionID"`
}

func (ScoredAnswer) TableName() string {
	return "scored_answers"
}

func (a *ScoredAnswer) IsBlank() bool {
	return strings.TrimSpace(a.Description) == ""
}

func (a *ScoredAnswer) ExpectationLevel() ExpectationLevel {
	if a.Score == nil {
		return ExpectationUnclassified
	}
	return AnswerExpectationLevel(*a.Score)
}
