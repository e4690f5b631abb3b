package models

import (
	"time"

	"gorm.io/datatypes"
)

// StudentPerformance is derived one-to-one from an ExamSession and always written by full replace.
type StudentPerformance struct {
	ID                  uint                             `json:"id" gorm:"primaryKey"`
	SessionID           uint                             `json:"session_id" gorm:"not null;uniqueIndex"`
	ExamID              uint                             `json:"exam_id" gorm:"not null;index"`
	StudentID           uint                             `json:"student_id" gorm:"index"`
	StudentName         string                           `json:"student_name" gorm:"size:255"`
	AvgScore            float64                          `json:"avg_score"`
	AvgExpectationLevel ExpectationLevel                 `json:"avg_expectation_level" gorm:"size:20"`
	BloomSkillScores    datatypes.JSONSlice[ScoreEntry]  `json:"bloom_skill_scores"`
	GradeScores         datatypes.JSONSlice[ScoreEntry]  `json:"grade_scores"`
	StrandScores        datatypes.JSONSlice[StrandScore] `json:"strand_scores"`
	QuestionsAnswered   int                              `json:"questions_answered"`
	QuestionsUnanswered int                              `json:"questions_unanswered"`
	CompletionRate      float64                          `json:"completion_rate"`
	DurationMin         int                              `json:"duration_min"`
	IsLateSubmission    bool                             `json:"is_late_submission"`
	Best5QuestionIDs    datatypes.JSONSlice[uint]        `json:"best_5_question_ids"`
	Worst5QuestionIDs   datatypes.JSONSlice[uint]        `json:"worst_5_question_ids"`
	ClassAvgDifference  float64                          `json:"class_avg_difference"`
	CreatedAt           time.Time                        `json:"created_at"`
	UpdatedAt           time.Time                        `json:"updated_at"`
}

func (StudentPerformance) TableName() string {
	return "student_performances"
}

func (p *StudentPerformance) TotalQuestions() int {
	return p.QuestionsAnswered + p.QuestionsUnanswered
}

// StrandStudent is one student's standing within a strand.
type StrandStudent struct {
	StudentID           uint             `json:"student_id"`
	StudentName         string           `json:"student_name"`
	SessionID           uint             `json:"session_id"`
	ExamID              uint             `json:"exam_id"`
	AvgScore            float64          `json:"avg_score"`
	AvgExpectationLevel ExpectationLevel `json:"avg_expectation_level"`
}

type SubStrandComparison struct {
	Name           string  `json:"name"`
	Percentage     float64 `json:"percentage"`
	Difference     float64 `json:"difference"`
	DifferenceDesc string  `json:"difference_desc"`
}

type StrandAnalysis struct {
	Name                string                `json:"name"`
	Grade               int                   `json:"grade"`
	AvgScore            float64               `json:"avg_score"`
	AvgExpectationLevel ExpectationLevel      `json:"avg_expectation_level"`
	BloomSkillScores    []ScoreEntry          `json:"bloom_skill_scores"`
	ScoreVariance       ScoreVariance         `json:"score_variance"`
	SubStrandScores     []SubStrandComparison `json:"sub_strand_scores"`
	TopStudents         []StrandStudent       `json:"top_students"`
	BottomStudents      []StrandStudent       `json:"bottom_students"`
	Insights            []string              `json:"insights"`
	Suggestions         []string              `json:"suggestions"`
}

type MasteryRow struct {
	Name   string    `json:"name"`
	Scores []float64 `json:"scores"`
}

// StrandStudentMastery is a student-by-strand score matrix for the top, middle and bottom groups.
type StrandStudentMastery struct {
	Strands  []string     `json:"strands"`
	Students []MasteryRow `json:"students"`
}

type CorrelationInsight struct {
	Pair        []string `json:"pair"`
	Correlation float64  `json:"correlation"`
	Insight     string   `json:"insight"`
	Suggestion  string   `json:"suggestion"`
}

// ClassPerformance is derived once per exam from every StudentPerformance.
type ClassPerformance struct {
	ID                           uint                                     `json:"id" gorm:"primaryKey"`
	ExamID                       uint                                     `json:"exam_id" gorm:"not null;uniqueIndex"`
	ClassroomID                  uint                                     `json:"classroom_id" gorm:"index"`
	StudentCount                 int                                      `json:"student_count"`
	AvgScore                     float64                                  `json:"avg_score"`
	AvgExpectationLevel          ExpectationLevel                         `json:"avg_expectation_level" gorm:"size:20"`
	ExpectationLevelDistribution datatypes.JSONSlice[CountEntry]          `json:"expectation_level_distribution"`
	ScoreDistribution            datatypes.JSONSlice[CountEntry]          `json:"score_distribution"`
	ScoreVariance                datatypes.JSONType[ScoreVariance]        `json:"score_variance"`
	BloomSkillScores             datatypes.JSONSlice[ScoreEntry]          `json:"bloom_skill_scores"`
	GradeScores                  datatypes.JSONSlice[ScoreEntry]          `json:"grade_scores"`
	GeneralInsights              datatypes.JSON                           `json:"general_insights"`
	StrandAnalysis               datatypes.JSONSlice[StrandAnalysis]      `json:"strand_analysis"`
	StrandStudentMastery         datatypes.JSONType[StrandStudentMastery] `json:"strand_student_mastery"`
	FlaggedSubStrands            datatypes.JSONSlice[CorrelationInsight]  `json:"flagged_sub_strands"`
	CreatedAt                    time.Time                                `json:"created_at"`
	UpdatedAt                    time.Time                                `json:"updated_at"`
}

func (ClassPerformance) TableName() string {
	return "class_performances"
}

// QuestionPerformance aggregates every answer given to one question.
type QuestionPerformance struct {
	ID                  uint                                  `json:"id" gorm:"primaryKey"`
	QuestionID          uint                                  `json:"question_id" gorm:"not null;uniqueIndex"`
	ExamID              uint                                  `json:"exam_id" gorm:"not null;index"`
	AvgScore            float64                               `json:"avg_score"`
	AvgExpectationLevel ExpectationLevel                      `json:"avg_expectation_level" gorm:"size:20"`
	ScoreDistribution   datatypes.JSONSlice[CountEntry]       `json:"score_distribution"`
	AnswersByLevel      datatypes.JSONType[map[string][]uint] `json:"answers_by_level"`
	CreatedAt           time.Time                             `json:"created_at"`
	UpdatedAt           time.Time                             `json:"updated_at"`
}

func (QuestionPerformance) TableName() string {
	return "question_performances"
}

// PerformanceCluster groups behaviourally similar students of one exam.
type PerformanceCluster struct {
	ID                  uint                              `json:"id" gorm:"primaryKey"`
	ExamID              uint                              `json:"exam_id" gorm:"not null;index"`
	ClusterLabel        string                            `json:"cluster_label" gorm:"size:20"`
	ClusterSize         int                               `json:"cluster_size"`
	StudentSessionIDs   datatypes.JSONSlice[uint]         `json:"student_session_ids"`
	AvgScore            float64                           `json:"avg_score"`
	AvgExpectationLevel ExpectationLevel                  `json:"avg_expectation_level" gorm:"size:20"`
	BloomSkillScores    datatypes.JSONSlice[ScoreEntry]   `json:"bloom_skill_scores"`
	GradeScores         datatypes.JSONSlice[ScoreEntry]   `json:"grade_scores"`
	StrandScores        datatypes.JSONSlice[StrandScore]  `json:"strand_scores"`
	TopBestQuestionIDs  datatypes.JSONSlice[uint]         `json:"top_best_question_ids"`
	TopWorstQuestionIDs datatypes.JSONSlice[uint]         `json:"top_worst_question_ids"`
	ScoreVariance       datatypes.JSONType[ScoreVariance] `json:"score_variance"`
	FollowUpExamID      *uint                             `json:"follow_up_exam_id"`
	CreatedAt           time.Time                         `json:"created_at"`
	UpdatedAt           time.Time                         `json:"updated_at"`
}

func (PerformanceCluster) TableName() string {
	return "performance_clusters"
}
