package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GenerationConfig is the stored request used to (re)generate an exam's questions.
type GenerationConfig struct {
	StrandIDs       []uint `json:"strand_ids" validate:"required,min=1"`
	QuestionCount   *int   `json:"question_count,omitempty" validate:"omitempty,min=1,max=100"`
	BloomSkillCount *int   `json:"bloom_skill_count,omitempty" validate:"omitempty,min=1,max=6"`
}

type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ClassroomID uint       `json:"classroom_id" gorm:"not null;index"`
	TeacherID   uint       `json:"teacher_id" gorm:"not null;index"`
	Grade       int        `json:"grade"`
	Code        string     `json:"code" gorm:"size:50;index"`
	Type        ExamType   `json:"type" gorm:"size:20;default:Standard"`
	Status      ExamStatus `json:"status" gorm:"size:20;index"`

	// FailedStage is set only while Status is Failed and names the stage a retry re-enters.
	FailedStage      Stage                                `json:"failed_stage,omitempty" gorm:"size:20"`
	GenerationError  *string                              `json:"generation_error" gorm:"type:text"`
	GenerationConfig datatypes.JSONType[GenerationConfig] `json:"generation_config"`
	AnalysisWarnings datatypes.JSONSlice[string]          `json:"analysis_warnings"`
	StageStartedAt   *time.Time                           `json:"stage_started_at"`

	DurationMin   int       `json:"duration_min"`
	StartDateTime time.Time `json:"start_date_time"`
	EndDateTime   time.Time `json:"end_date_time"`
	IsPublished   bool      `json:"is_published" gorm:"default:false"`

	// Follow-up exams point back at the exam and cluster they were composed for.
	SourceExamID         *uint `json:"source_exam_id" gorm:"index"`
	PerformanceClusterID *uint `json:"performance_cluster_id" gorm:"index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// ErrorMessage returns the recorded diagnostic or an empty string.
func (e *Exam) ErrorMessage() string {
	if e.GenerationError == nil {
		return ""
	}
	return *e.GenerationError
}

type ExamQuestion struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	ExamID         uint   `json:"exam_id" gorm:"not null;index"`
	Number         int    `json:"number"`
	Grade          int    `json:"grade"`
	Strand         string `json:"strand" gorm:"size:255"`
	SubStrand      string `json:"sub_strand" gorm:"size:255"`
	BloomSkill     string `json:"bloom_skill" gorm:"size:100"`
	Description    string `json:"description" gorm:"type:text"`
	ExpectedAnswer string `json:"expected_answer" gorm:"type:text"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// ExamQuestionAnalysis summarises the composition of a generated question set.
type ExamQuestionAnalysis struct {
	ID                     uint                            `json:"id" gorm:"primaryKey"`
	ExamID                 uint                            `json:"exam_id" gorm:"not null;uniqueIndex"`
	QuestionCount          int                             `json:"question_count"`
	GradeDistribution      datatypes.JSONSlice[CountEntry] `json:"grade_distribution"`
	BloomSkillDistribution datatypes.JSONSlice[CountEntry] `json:"bloom_skill_distribution"`
	StrandDistribution     datatypes.JSONSlice[CountEntry] `json:"strand_distribution"`
	SubStrandDistribution  datatypes.JSONSlice[CountEntry] `json:"sub_strand_distribution"`
	CreatedAt              time.Time                       `json:"created_at"`
	UpdatedAt              time.Time                       `json:"updated_at"`
}

func (ExamQuestionAnalysis) TableName() string {
	return "exam_question_analyses"
}
