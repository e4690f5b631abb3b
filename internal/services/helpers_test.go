package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/cache"
	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/events"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories/memory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===== DISPATCHER =====

type stageTask struct {
	examID uint
	stage  models.Stage
}

// queueDispatcher records dispatched stages; tests run them with drain.
type queueDispatcher struct {
	mu    sync.Mutex
	tasks []stageTask
	err   error
}

func (d *queueDispatcher) Dispatch(_ context.Context, examID uint, stage models.Stage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, stageTask{examID: examID, stage: stage})
	return nil
}

func (d *queueDispatcher) pop() (stageTask, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.tasks) == 0 {
		return stageTask{}, false
	}
	task := d.tasks[0]
	d.tasks = d.tasks[1:]
	return task, true
}

func (d *queueDispatcher) pending() []stageTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]stageTask(nil), d.tasks...)
}

// ===== GENERATORS =====

// scriptedGenerator answers every task deterministically from its payload.
// Grades are read from the answer text.
type scriptedGenerator struct {
	mu          sync.Mutex
	calls       map[generation.Task]int
	gradeFaults bool
	panicOn     generation.Task
	failOn      map[generation.Task]string
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		calls:  map[generation.Task]int{},
		failOn: map[generation.Task]string{},
	}
}

func (g *scriptedGenerator) set(fn func(g *scriptedGenerator)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *scriptedGenerator) callCount(task generation.Task) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[task]
}

func (g *scriptedGenerator) Generate(_ context.Context, task generation.Task, payload any) ([]json.RawMessage, error) {
	g.mu.Lock()
	g.calls[task]++
	panicOn, faults := g.panicOn, g.gradeFaults
	failure, failing := g.failOn[task]
	g.mu.Unlock()

	if task == panicOn {
		panic("boom")
	}
	if failing {
		return nil, apperrors.NewGenerationError(string(task), failure, nil)
	}

	switch task {
	case generation.TaskExamQuestions:
		var items []generation.QuestionItem
		for _, req := range payload.([]generation.QuestionRequest) {
			for _, q := range req.Questions {
				items = append(items, generation.QuestionItem{
					Number:         q.Number,
					Grade:          req.Grade,
					Strand:         req.Strand,
					SubStrand:      req.SubStrand,
					BloomSkill:     q.BloomSkills[0],
					Description:    fmt.Sprintf("Question %d", q.Number),
					ExpectedAnswer: "expected",
				})
			}
		}
		return rawItems(items)
	case generation.TaskAnswerGrades:
		var items []map[string]any
		for _, req := range payload.([]generation.GradeRequest) {
			for _, answer := range req.StudentAnswers {
				score, err := strconv.ParseFloat(answer.Answer, 64)
				if err != nil {
					items = append(items, map[string]any{"answer_id": answer.AnswerID})
					continue
				}
				items = append(items, map[string]any{"answer_id": answer.AnswerID, "score": score})
			}
		}
		if faults {
			items = append(items, map[string]any{"answer_id": 9999, "score": 2})
		}
		return rawItems(items)
	case generation.TaskClassInsights:
		return rawItems([]map[string]string{{"insight": "The class is approaching expectations"}})
	case generation.TaskStrandInsights:
		var items []generation.StrandInsight
		for _, strand := range payload.([]models.StrandAnalysis) {
			items = append(items, generation.StrandInsight{
				Strand:      strand.Name,
				Insights:    []string{strand.Name + " needs attention"},
				Suggestions: []string{"Revise " + strand.Name},
			})
		}
		return rawItems(items)
	case generation.TaskCorrelationInsights:
		return []json.RawMessage{}, nil
	case generation.TaskFollowUpQuiz:
		return rawItems([]generation.FollowUpItem{
			{Grade: 7, Strand: "Mixtures", SubStrand: "Solutions", BloomSkill: "Remembering", Question: "Define a solute.", ExpectedAnswer: "The dissolved substance."},
			{Grade: 7, Strand: "Mixtures", SubStrand: "Separation", BloomSkill: "Applying", Question: "Separate sand from salt.", ExpectedAnswer: "Dissolve, filter, evaporate."},
		})
	}
	return nil, fmt.Errorf("unexpected task %s", task)
}

func rawItems[T any](items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// generatorFunc adapts a function to generation.Generator.
type generatorFunc func(ctx context.Context, task generation.Task, payload any) ([]json.RawMessage, error)

func (f generatorFunc) Generate(ctx context.Context, task generation.Task, payload any) ([]json.RawMessage, error) {
	return f(ctx, task, payload)
}

// MockGenerator is a testify mock of generation.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, task generation.Task, payload any) ([]json.RawMessage, error) {
	args := m.Called(ctx, task, payload)
	items, _ := args.Get(0).([]json.RawMessage)
	return items, args.Error(1)
}

// ===== HARNESS =====

type harness struct {
	store      *memory.Store
	repo       repositories.Repository
	dispatcher *queueDispatcher
	publisher  *events.MockEventPublisher
	cache      *cache.MemoryCache
	generator  *scriptedGenerator
	config     config.PipelineConfig
	svc        *PipelineService
	reports    *ReportService
	logger     *slog.Logger
}

func newHarness(t *testing.T, configure ...func(*config.PipelineConfig)) *harness {
	t.Helper()
	gen := newScriptedGenerator()
	h := newHarnessWith(t, gen, configure...)
	h.generator = gen
	return h
}

func newHarnessWith(t *testing.T, gen generation.Generator, configure ...func(*config.PipelineConfig)) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultPipelineConfig()
	for _, fn := range configure {
		fn(&cfg)
	}
	require.NoError(t, cfg.Validate())

	store := memory.NewStore()
	repo := memory.NewRepository(store)
	memCache := cache.NewMemoryCache()
	reportCache := cache.NewReportCache(memCache, time.Hour, logger)
	dispatcher := &queueDispatcher{}
	publisher := events.NewMockEventPublisher(logger)

	svc := NewPipelineService(PipelineDeps{
		Repo:       repo,
		Dispatcher: dispatcher,
		Generator:  gen,
		Publisher:  publisher,
		Lock:       cache.NewMemoryStageLock(),
		Reports:    reportCache,
		Logger:     logger,
	}, cfg)

	return &harness{
		store:      store,
		repo:       repo,
		dispatcher: dispatcher,
		publisher:  publisher,
		cache:      memCache,
		config:     cfg,
		svc:        svc,
		reports:    NewReportService(repo, reportCache),
		logger:     logger,
	}
}

// drain runs dispatched stages until the queue is empty.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for range 20 {
		task, ok := h.dispatcher.pop()
		if !ok {
			return
		}
		require.NoError(t, h.svc.RunStage(t.Context(), task.examID, task.stage))
	}
	t.Fatal("stage tasks kept being dispatched")
}

func (h *harness) exam(t *testing.T, id uint) *models.Exam {
	t.Helper()
	exam, err := h.repo.Exams().GetByID(t.Context(), id)
	require.NoError(t, err)
	return exam
}

// seedExam stores an exam of four questions in one grade 7 strand.
func (h *harness) seedExam(t *testing.T, status models.ExamStatus) (*models.Exam, []models.ExamQuestion) {
	t.Helper()
	start := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	exam := &models.Exam{
		ClassroomID:   11,
		TeacherID:     21,
		Grade:         7,
		Code:          "SCI-7-T1",
		Type:          models.ExamTypeStandard,
		Status:        status,
		DurationMin:   40,
		StartDateTime: start,
		EndDateTime:   start.Add(40 * time.Minute),
		Questions: []models.ExamQuestion{
			{Number: 1, Grade: 7, Strand: "Mixtures", SubStrand: "Solutions", BloomSkill: "Remembering", Description: "What is a solvent?", ExpectedAnswer: "A dissolving medium."},
			{Number: 2, Grade: 7, Strand: "Mixtures", SubStrand: "Solutions", BloomSkill: "Applying", Description: "Prepare a salt solution.", ExpectedAnswer: "Dissolve salt in water."},
			{Number: 3, Grade: 7, Strand: "Mixtures", SubStrand: "Separation", BloomSkill: "Remembering", Description: "Name a separation method.", ExpectedAnswer: "Filtration."},
			{Number: 4, Grade: 7, Strand: "Mixtures", SubStrand: "Separation", BloomSkill: "Applying", Description: "Separate iron filings from sulphur.", ExpectedAnswer: "Use a magnet."},
		},
	}
	require.NoError(t, h.repo.Exams().Create(t.Context(), exam))
	return exam, exam.Questions
}

// addScoredSession stores a session whose answers are already scored.
func (h *harness) addScoredSession(examID uint, questions []models.ExamQuestion, studentID uint, scores ...int) models.ExamSession {
	session := models.ExamSession{ExamID: examID, StudentID: studentID, StudentName: fmt.Sprintf("Student %d", studentID)}
	for i, score := range scores {
		session.Answers = append(session.Answers, models.ScoredAnswer{
			QuestionID:  questions[i].ID,
			Description: "answer",
			Score:       &score,
		})
	}
	return h.store.AddSession(session)
}

// addAnsweredSession stores a session of ungraded answers.
func (h *harness) addAnsweredSession(examID uint, questions []models.ExamQuestion, studentID uint, answers ...string) models.ExamSession {
	session := models.ExamSession{
		ExamID:      examID,
		StudentID:   studentID,
		StudentName: fmt.Sprintf("Student %d", studentID),
		Status:      models.SessionStatusOngoing,
	}
	for i, text := range answers {
		session.Answers = append(session.Answers, models.ScoredAnswer{QuestionID: questions[i].ID, Description: text})
	}
	return h.store.AddSession(session)
}

// seedScenario stores the three-student class: all correct, all wrong and mixed.
func (h *harness) seedScenario(t *testing.T, status models.ExamStatus) (*models.Exam, []models.ExamSession) {
	t.Helper()
	exam, questions := h.seedExam(t, status)
	return exam, []models.ExamSession{
		h.addScoredSession(exam.ID, questions, 101, 4, 4, 4, 4),
		h.addScoredSession(exam.ID, questions, 102, 0, 0, 0, 0),
		h.addScoredSession(exam.ID, questions, 103, 2, 3, 4, 1),
	}
}
