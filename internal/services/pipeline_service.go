package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/SAP-F-2025/exam-analysis-service/internal/cache"
	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/events"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	appvalidator "github.com/SAP-F-2025/exam-analysis-service/internal/validator"
	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// Dispatcher hands a stage to the background workers.
type Dispatcher interface {
	Dispatch(ctx context.Context, examID uint, stage models.Stage) error
}

// PipelineDeps are the collaborators of the pipeline. Publisher, Lock and
// Reports may be nil.
type PipelineDeps struct {
	Repo       repositories.Repository
	Dispatcher Dispatcher
	Generator  generation.Generator
	Publisher  events.EventPublisher
	Lock       cache.StageLock
	Reports    *cache.ReportCache
	Logger     *slog.Logger
}

// SweepResult lists what one Sweep pass changed.
type SweepResult struct {
	GradingTriggered []uint `json:"grading_triggered"`
	TimedOut         []uint `json:"timed_out"`
}

// PipelineService drives exams through Generating, Grading and Analysing.
type PipelineService struct {
	repo       repositories.Repository
	dispatcher Dispatcher
	publisher  events.EventPublisher
	lock       cache.StageLock
	reports    *cache.ReportCache
	config     config.PipelineConfig
	logger     *ServiceLogger
	validator  *validator.Validate
	now        func() time.Time

	questions *QuestionService
	grading   *GradingService
	analysis  *AnalysisService
}

func NewPipelineService(deps PipelineDeps, cfg config.PipelineConfig) *PipelineService {
	logger := NewServiceLogger(deps.Logger, LogConfig{
		Service:       "exam-analysis",
		Component:     "pipeline",
		EnableMetrics: true,
	})
	if deps.Lock == nil {
		deps.Lock = cache.NewMemoryStageLock()
	}
	validate := appvalidator.New().Engine()
	followUps := NewFollowUpService(deps.Repo, deps.Generator, cfg, validate, logger)

	return &PipelineService{
		repo:       deps.Repo,
		dispatcher: deps.Dispatcher,
		publisher:  deps.Publisher,
		lock:       deps.Lock,
		reports:    deps.Reports,
		config:     cfg,
		logger:     logger,
		validator:  validate,
		now:        time.Now,
		questions:  NewQuestionService(deps.Repo, deps.Generator, cfg, validate, logger),
		grading:    NewGradingService(deps.Repo, deps.Generator, logger),
		analysis:   NewAnalysisService(deps.Repo, deps.Generator, followUps, deps.Reports, cfg, logger),
	}
}

// ===== ENTRY POINTS =====

// CreateExam stores a new exam and starts generating its questions.
func (s *PipelineService) CreateExam(ctx context.Context, exam *models.Exam, genCfg models.GenerationConfig) (*models.Exam, error) {
	op := s.logger.WithOperation(ctx, "create_exam", 0)
	if err := s.validateGenerationConfig(genCfg); err != nil {
		op.LogResult(err)
		return nil, err
	}

	exam.ID = 0
	exam.Status = ""
	exam.Type = models.ExamTypeStandard
	exam.Questions = nil
	if err := s.repo.Exams().Create(ctx, exam); err != nil {
		op.LogResult(err)
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	exam, err := s.StartGeneration(ctx, exam.ID, genCfg)
	op.LogResult(err)
	return exam, err
}

// StartGeneration stores genCfg and enters Generating. Only exams that were
// never generated, or are Upcoming and not yet sat, can be (re)generated.
func (s *PipelineService) StartGeneration(ctx context.Context, examID uint, genCfg models.GenerationConfig) (*models.Exam, error) {
	if err := s.validateGenerationConfig(genCfg); err != nil {
		return nil, err
	}
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != "" && exam.Status != models.ExamStatusUpcoming {
		if _, running := exam.Status.Stage(); running {
			return nil, ErrStageInProgress
		}
		return nil, fmt.Errorf("%w: cannot generate questions for a %s exam", ErrInvalidTransition, exam.Status)
	}

	exam.GenerationConfig = datatypes.NewJSONType(genCfg)
	exam.Status = models.StageGeneration.RunningStatus()
	if err := s.enterStage(ctx, exam, models.StageGeneration); err != nil {
		return nil, err
	}
	return exam, nil
}

// TriggerGrading moves an Upcoming or Ongoing exam into Grading.
func (s *PipelineService) TriggerGrading(ctx context.Context, examID uint) (*models.Exam, error) {
	return s.trigger(ctx, examID, models.StageGrading)
}

// TriggerAnalysis re-analyses a Complete exam.
func (s *PipelineService) TriggerAnalysis(ctx context.Context, examID uint) (*models.Exam, error) {
	return s.trigger(ctx, examID, models.StageAnalysis)
}

func (s *PipelineService) trigger(ctx context.Context, examID uint, stage models.Stage) (*models.Exam, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status == stage.RunningStatus() {
		return nil, ErrStageInProgress
	}
	if err := s.transition(exam, stage.RunningStatus()); err != nil {
		return nil, err
	}
	if err := s.enterStage(ctx, exam, stage); err != nil {
		return nil, err
	}
	return exam, nil
}

// Retry re-enters exactly the stage that failed, using the stored
// configuration. The error is cleared only when the stage is entered.
func (s *PipelineService) Retry(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if _, running := exam.Status.Stage(); running {
		return nil, ErrStageInProgress
	}
	if exam.Status != models.ExamStatusFailed {
		return nil, ErrExamNotRetryable
	}

	stage := exam.FailedStage
	if !stage.IsValid() {
		return nil, apperrors.NewConfigurationError("failed_stage", "is missing, the exam cannot be retried")
	}
	if stage == models.StageGeneration && len(exam.GenerationConfig.Data().StrandIDs) == 0 {
		return nil, apperrors.NewConfigurationError("strand_ids", "exam config is incomplete and cannot be retried")
	}

	if err := s.transition(exam, stage.RunningStatus()); err != nil {
		return nil, err
	}
	if err := s.enterStage(ctx, exam, stage); err != nil {
		return nil, err
	}
	return exam, nil
}

// Sweep is the periodic supervisor. It starts grading for exams past their
// end time and fails stages that have run longer than the stage timeout.
func (s *PipelineService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}
	var errs []error

	due, err := s.repo.Exams().List(ctx, repositories.ExamFilters{
		Statuses:    []models.ExamStatus{models.ExamStatusUpcoming, models.ExamStatusOngoing},
		EndedBefore: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due exams: %w", err)
	}
	for _, exam := range due {
		if exam.Type == models.ExamTypeFollowUp {
			continue
		}
		if _, err := s.TriggerGrading(ctx, exam.ID); err != nil {
			errs = append(errs, fmt.Errorf("exam %d: %w", exam.ID, err))
			continue
		}
		result.GradingTriggered = append(result.GradingTriggered, exam.ID)
	}

	cutoff := now.Add(-s.config.StageTimeout)
	stale, err := s.repo.Exams().List(ctx, repositories.ExamFilters{
		Statuses:      []models.ExamStatus{models.ExamStatusGenerating, models.ExamStatusGrading, models.ExamStatusAnalysing},
		StartedBefore: &cutoff,
	})
	if err != nil {
		return nil, errors.Join(append(errs, fmt.Errorf("failed to list running exams: %w", err))...)
	}
	for _, exam := range stale {
		stage, _ := exam.Status.Stage()
		msg := fmt.Sprintf("Stage %s exceeded %s", stage, s.config.StageTimeout)
		if err := s.fail(ctx, exam, stage, msg); err != nil {
			errs = append(errs, fmt.Errorf("exam %d: %w", exam.ID, err))
			continue
		}
		result.TimedOut = append(result.TimedOut, exam.ID)
	}

	s.logger.Logger().InfoContext(ctx, "Sweep finished",
		"grading_triggered", len(result.GradingTriggered),
		"timed_out", len(result.TimedOut))
	return result, errors.Join(errs...)
}

// GetExam returns the exam with its stage diagnostics.
func (s *PipelineService) GetExam(ctx context.Context, examID uint) (*models.Exam, error) {
	return s.loadExam(ctx, examID)
}

// ===== STAGE EXECUTION =====

// RunStage executes one stage for the worker. Stage failures are recorded on
// the exam and are not returned; a returned error means the outcome could not
// be recorded and the task should be redelivered.
func (s *PipelineService) RunStage(ctx context.Context, examID uint, stage models.Stage) error {
	if !stage.IsValid() {
		s.logger.Logger().WarnContext(ctx, "Dropping task with unknown stage", "exam_id", examID, "stage", stage)
		return nil
	}

	release, ok, err := s.lock.Acquire(ctx, cache.StageLockKey(examID, string(stage)), s.config.StageTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return s.leaseHeld(ctx, examID, stage)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Logger().WarnContext(ctx, "Failed to release stage lock", "exam_id", examID, "error", err)
		}
	}()

	exam, err := s.loadExam(ctx, examID)
	if errors.Is(err, ErrExamNotFound) {
		s.logger.Logger().WarnContext(ctx, "Dropping task for missing exam", "exam_id", examID)
		return nil
	}
	if err != nil {
		return err
	}
	if exam.Status != stage.RunningStatus() {
		s.logger.Logger().InfoContext(ctx, "Skipping stage, exam is no longer in progress",
			"exam_id", examID, "stage", stage, "status", exam.Status)
		return nil
	}

	start := s.now()
	startedAt := start
	if exam.StageStartedAt != nil {
		startedAt = *exam.StageStartedAt
	}
	// the deadline runs from stage entry so that Sweep and the worker agree
	remaining := startedAt.Add(s.config.StageTimeout).Sub(start)
	if remaining <= 0 {
		msg := fmt.Sprintf("Stage %s exceeded %s", stage, s.config.StageTimeout)
		s.logger.LogStage(ctx, examID, stage, models.ExamStatusFailed, 0, context.DeadlineExceeded)
		return s.fail(ctx, exam, stage, msg)
	}
	stageCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	result, stageErr := s.execute(stageCtx, exam, stage)
	if stageErr != nil && ctx.Err() != nil {
		// the worker is shutting down; leave the exam running for redelivery
		return ctx.Err()
	}

	current, err := s.stillCurrent(ctx, exam)
	if err != nil {
		return err
	}
	if !current {
		s.logger.Logger().WarnContext(ctx, "Discarding outcome of a superseded stage run",
			"exam_id", examID, "stage", stage, "error", stageErr)
		return nil
	}

	if stageErr != nil {
		expired := errors.Is(stageCtx.Err(), context.DeadlineExceeded)
		msg := diagnostic(stage, stageErr, s.config.StageTimeout, expired)
		s.logger.LogStage(ctx, examID, stage, models.ExamStatusFailed, s.now().Sub(start), stageErr)
		return s.fail(ctx, exam, stage, msg)
	}

	if err := s.complete(ctx, exam, stage, result); err != nil {
		return err
	}
	s.logger.LogStage(ctx, examID, stage, exam.Status, s.now().Sub(start), nil)
	return nil
}

// leaseHeld decides the fate of a task whose stage lease is taken. While the
// exam is still in the stage the task is redelivered, so a retry entered
// after a timed out run is not lost.
func (s *PipelineService) leaseHeld(ctx context.Context, examID uint, stage models.Stage) error {
	exam, err := s.loadExam(ctx, examID)
	if errors.Is(err, ErrExamNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if exam.Status != stage.RunningStatus() {
		s.logger.Logger().InfoContext(ctx, "Stage already running elsewhere", "exam_id", examID, "stage", stage)
		return nil
	}
	return fmt.Errorf("exam %d %s: %w", examID, stage, ErrStageLeaseHeld)
}

// stillCurrent reports whether the exam is still in the stage run that was
// loaded. Sweep may have failed it and a retry re-entered it meanwhile.
func (s *PipelineService) stillCurrent(ctx context.Context, exam *models.Exam) (bool, error) {
	latest, err := s.repo.Exams().GetByID(context.WithoutCancel(ctx), exam.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to reload exam %d: %w", exam.ID, err)
	}
	if latest.Status != exam.Status {
		return false, nil
	}
	if latest.StageStartedAt == nil || exam.StageStartedAt == nil {
		return latest.StageStartedAt == exam.StageStartedAt, nil
	}
	return latest.StageStartedAt.Equal(*exam.StageStartedAt), nil
}

// execute runs the stage body and converts a panic into an UnexpectedError.
func (s *PipelineService) execute(ctx context.Context, exam *models.Exam, stage models.Stage) (result *AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.LogRecovery(ctx, string(stage), exam.ID, r, debug.Stack())
			err = apperrors.NewUnexpectedError(r)
		}
	}()

	switch stage {
	case models.StageGeneration:
		return nil, s.questions.Generate(ctx, exam)
	case models.StageGrading:
		return nil, s.grading.Grade(ctx, exam)
	case models.StageAnalysis:
		return s.analysis.Analyse(ctx, exam)
	}
	return nil, fmt.Errorf("unknown stage %q", stage)
}

// complete advances the exam past a successful stage.
func (s *PipelineService) complete(ctx context.Context, exam *models.Exam, stage models.Stage, result *AnalysisResult) error {
	var next models.ExamStatus
	switch stage {
	case models.StageGeneration:
		next = models.ExamStatusUpcoming
	case models.StageGrading:
		next = models.ExamStatusAnalysing
	case models.StageAnalysis:
		next = models.ExamStatusComplete
		exam.AnalysisWarnings = datatypes.JSONSlice[string](result.Warnings)
	}

	if err := s.transition(exam, next); err != nil {
		return err
	}
	exam.GenerationError = nil
	exam.FailedStage = ""
	if next == models.ExamStatusAnalysing {
		now := s.now()
		exam.StageStartedAt = &now
	} else {
		exam.StageStartedAt = nil
	}
	if err := s.repo.Exams().Update(ctx, exam); err != nil {
		return fmt.Errorf("failed to record %s outcome: %w", stage, err)
	}

	s.publish(ctx, events.NewStageCompletedEvent(exam.ID, stage, exam.Status))

	switch stage {
	case models.StageGrading:
		// grading flows straight into analysis
		s.publish(ctx, events.NewStageStartedEvent(exam.ID, models.StageAnalysis))
		if err := s.dispatch(ctx, exam.ID, models.StageAnalysis); err != nil {
			return err
		}
	case models.StageAnalysis:
		s.publish(ctx, events.NewAnalysisCompletedEvent(exam.ID, result.Students, result.AvgScore, len(result.Clusters), result.Warnings))
		for _, fu := range result.FollowUps {
			s.publish(ctx, events.NewFollowUpCreatedEvent(exam.ID, fu.Exam.ID, fu.Cluster.ID, fu.Cluster.ClusterLabel, len(fu.Exam.Questions)))
		}
		s.logger.LogPerformanceMetrics(ctx, exam.ID, result.Metrics)
	}
	return nil
}

// fail records the diagnostic and the stage a retry re-enters.
func (s *PipelineService) fail(ctx context.Context, exam *models.Exam, stage models.Stage, msg string) error {
	if err := s.transition(exam, models.ExamStatusFailed); err != nil {
		return err
	}
	exam.FailedStage = stage
	exam.GenerationError = &msg
	exam.StageStartedAt = nil
	if err := s.repo.Exams().Update(ctx, exam); err != nil {
		return fmt.Errorf("failed to record %s failure: %w", stage, err)
	}
	s.publish(ctx, events.NewStageFailedEvent(exam.ID, stage, msg))
	return nil
}

// enterStage persists the running status and dispatches the stage task.
func (s *PipelineService) enterStage(ctx context.Context, exam *models.Exam, stage models.Stage) error {
	now := s.now()
	exam.StageStartedAt = &now
	exam.GenerationError = nil
	exam.FailedStage = ""
	if err := s.repo.Exams().Update(ctx, exam); err != nil {
		return fmt.Errorf("failed to enter %s: %w", stage, err)
	}
	s.publish(ctx, events.NewStageStartedEvent(exam.ID, stage))
	return s.dispatch(ctx, exam.ID, stage)
}

func (s *PipelineService) dispatch(ctx context.Context, examID uint, stage models.Stage) error {
	if err := s.dispatcher.Dispatch(ctx, examID, stage); err != nil {
		// the exam stays in its running status until Sweep times it out
		s.logger.Logger().ErrorContext(ctx, "Failed to dispatch stage", "exam_id", examID, "stage", stage, "error", err)
		return fmt.Errorf("failed to dispatch %s: %w", stage, err)
	}
	return nil
}

func (s *PipelineService) transition(exam *models.Exam, next models.ExamStatus) error {
	if !exam.Status.CanTransitionTo(next, exam.FailedStage) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, exam.Status, next)
	}
	exam.Status = next
	return nil
}

func (s *PipelineService) publish(ctx context.Context, event *events.PipelineEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPipelineEvent(ctx, event); err != nil {
		s.logger.Logger().WarnContext(ctx, "Failed to publish pipeline event", "type", event.Type, "exam_id", event.ExamID, "error", err)
	}
}

func (s *PipelineService) loadExam(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exams().GetByID(ctx, examID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load exam %d: %w", examID, err)
	}
	return exam, nil
}

func (s *PipelineService) validateGenerationConfig(cfg models.GenerationConfig) error {
	if len(cfg.StrandIDs) == 0 {
		return apperrors.NewConfigurationError("strand_ids", "must list at least one strand")
	}
	if err := s.validator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.ToValidationErrors(verrs)
		}
		return err
	}
	return nil
}

// diagnostic renders a stage failure as the exam's error string. expired is
// set only when the stage's own deadline passed; a generation call timing out
// on its own budget keeps the generator's message.
func diagnostic(stage models.Stage, err error, timeout time.Duration, expired bool) string {
	switch {
	case expired && errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Stage %s exceeded %s", stage, timeout)
	case apperrors.IsGeneration(err), apperrors.IsPartialFailure(err), apperrors.IsUnexpected(err):
		return err.Error()
	case apperrors.IsConfiguration(err),
		errors.Is(err, ErrNoSessions), errors.Is(err, ErrNoPerformances), errors.Is(err, ErrNoQuestions):
		return capitalize(err.Error())
	}
	return "Unexpected error: " + err.Error()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
