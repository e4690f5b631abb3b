package models

import "fmt"

type ExamStatus string

const (
	ExamStatusGenerating ExamStatus = "Generating"
	ExamStatusUpcoming   ExamStatus = "Upcoming"
	ExamStatusOngoing    ExamStatus = "Ongoing"
	ExamStatusGrading    ExamStatus = "Grading"
	ExamStatusAnalysing  ExamStatus = "Analysing"
	ExamStatusComplete   ExamStatus = "Complete"
	ExamStatusFailed     ExamStatus = "Failed"
	ExamStatusArchived   ExamStatus = "Archived"
)

// ExamStatuses lists every status in lifecycle order.
var ExamStatuses = []ExamStatus{
	ExamStatusGenerating,
	ExamStatusUpcoming,
	ExamStatusOngoing,
	ExamStatusGrading,
	ExamStatusAnalysing,
	ExamStatusComplete,
	ExamStatusFailed,
	ExamStatusArchived,
}

func (s ExamStatus) IsValid() bool {
	for _, status := range ExamStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Stage is a long-running pipeline step executed in the background.
type Stage string

const (
	StageGeneration Stage = "Generation"
	StageGrading    Stage = "Grading"
	StageAnalysis   Stage = "Analysis"
)

func (s Stage) IsValid() bool {
	switch s {
	case StageGeneration, StageGrading, StageAnalysis:
		return true
	}
	return false
}

// RunningStatus is the status an exam holds while the stage executes.
func (s Stage) RunningStatus() ExamStatus {
	switch s {
	case StageGeneration:
		return ExamStatusGenerating
	case StageGrading:
		return ExamStatusGrading
	case StageAnalysis:
		return ExamStatusAnalysing
	}
	panic(fmt.Sprintf("unknown stage %q", string(s)))
}

// Stage returns the stage running while the exam holds status s.
func (s ExamStatus) Stage() (Stage, bool) {
	switch s {
	case ExamStatusGenerating:
		return StageGeneration, true
	case ExamStatusGrading:
		return StageGrading, true
	case ExamStatusAnalysing:
		return StageAnalysis, true
	case ExamStatusUpcoming, ExamStatusOngoing, ExamStatusComplete, ExamStatusFailed, ExamStatusArchived:
		return "", false
	}
	return "", false
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Failed may only re-enter the running status of the stage that failed.
func (s ExamStatus) CanTransitionTo(next ExamStatus, failedStage Stage) bool {
	if next == ExamStatusFailed {
		_, running := s.Stage()
		return running
	}
	if next == ExamStatusArchived {
		return s == ExamStatusComplete || s == ExamStatusFailed
	}

	switch s {
	case ExamStatusGenerating:
		return next == ExamStatusUpcoming
	case ExamStatusUpcoming:
		return next == ExamStatusOngoing || next == ExamStatusGrading
	case ExamStatusOngoing:
		return next == ExamStatusGrading
	case ExamStatusGrading:
		return next == ExamStatusAnalysing
	case ExamStatusAnalysing:
		return next == ExamStatusComplete
	case ExamStatusComplete:
		return next == ExamStatusAnalysing
	case ExamStatusFailed:
		return failedStage.IsValid() && next == failedStage.RunningStatus()
	case ExamStatusArchived:
		return false
	}
	return false
}

type ExamType string

const (
	ExamTypeStandard ExamType = "Standard"
	ExamTypeFollowUp ExamType = "FollowUp"
)

type SessionStatus string

const (
	SessionStatusUpcoming SessionStatus = "Upcoming"
	SessionStatusOngoing  SessionStatus = "Ongoing"
	SessionStatusGrading  SessionStatus = "Grading"
	SessionStatusComplete SessionStatus = "Complete"
	SessionStatusFailed   SessionStatus = "Failed"
)

// FailurePolicy decides how the analysis stage treats students whose
// performance could not be built.
type FailurePolicy string

const (
	// FailurePolicyStrict builds every student, then fails the stage if any failed.
	FailurePolicyStrict FailurePolicy = "strict"
	// FailurePolicyFailFast stops at the first failing student.
	FailurePolicyFailFast FailurePolicy = "fail_fast"
	// FailurePolicyIsolate skips failing students and records a warning.
	FailurePolicyIsolate FailurePolicy = "isolate"
)

func (p FailurePolicy) IsValid() bool {
	switch p {
	case FailurePolicyStrict, FailurePolicyFailFast, FailurePolicyIsolate:
		return true
	}
	return false
}
