// Package memory is an in-process Repository for tests and single-node runs
// without a database. Transactions are serialized and roll back by restoring
// a snapshot of the store, so writes made concurrently outside a failing
// transaction are rolled back with it.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
)

type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	nextID uint

	exams        map[uint]models.Exam
	questions    map[uint]models.ExamQuestion
	analyses     map[uint]models.ExamQuestionAnalysis
	strands      map[uint]models.Strand
	sessions     map[uint]models.ExamSession
	answers      map[uint]models.ScoredAnswer
	students     map[uint]models.StudentPerformance // by session id
	classes      map[uint]models.ClassPerformance   // by exam id
	questionPerf map[uint]models.QuestionPerformance
	clusters     map[uint]models.PerformanceCluster
}

func NewStore() *Store {
	return &Store{
		exams:        map[uint]models.Exam{},
		questions:    map[uint]models.ExamQuestion{},
		analyses:     map[uint]models.ExamQuestionAnalysis{},
		strands:      map[uint]models.Strand{},
		sessions:     map[uint]models.ExamSession{},
		answers:      map[uint]models.ScoredAnswer{},
		students:     map[uint]models.StudentPerformance{},
		classes:      map[uint]models.ClassPerformance{},
		questionPerf: map[uint]models.QuestionPerformance{},
		clusters:     map[uint]models.PerformanceCluster{},
	}
}

func (s *Store) snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Store{
		nextID:       s.nextID,
		exams:        maps.Clone(s.exams),
		questions:    maps.Clone(s.questions),
		analyses:     maps.Clone(s.analyses),
		strands:      maps.Clone(s.strands),
		sessions:     maps.Clone(s.sessions),
		answers:      maps.Clone(s.answers),
		students:     maps.Clone(s.students),
		classes:      maps.Clone(s.classes),
		questionPerf: maps.Clone(s.questionPerf),
		clusters:     maps.Clone(s.clusters),
	}
}

// restore puts back the tables of snap. Ids are not reused.
func (s *Store) restore(snap *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams = snap.exams
	s.questions = snap.questions
	s.analyses = snap.analyses
	s.strands = snap.strands
	s.sessions = snap.sessions
	s.answers = snap.answers
	s.students = snap.students
	s.classes = snap.classes
	s.questionPerf = snap.questionPerf
	s.clusters = snap.clusters
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func sortedValues[T any](m map[uint]T, keep func(T) bool) []T {
	keys := make([]uint, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// ===== SEEDING =====

// AddStrand stores a strand and its sub-strands, assigning missing ids.
func (s *Store) AddStrand(strand models.Strand) models.Strand {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strand.ID == 0 {
		strand.ID = s.id()
	}
	for i := range strand.SubStrands {
		if strand.SubStrands[i].ID == 0 {
			strand.SubStrands[i].ID = s.id()
		}
		strand.SubStrands[i].StrandID = strand.ID
	}
	s.strands[strand.ID] = strand
	return strand
}

// AddSession stores a session and its answers. Answers reference stored
// questions by QuestionID.
func (s *Store) AddSession(session models.ExamSession) models.ExamSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == 0 {
		session.ID = s.id()
	}
	for i := range session.Answers {
		a := &session.Answers[i]
		if a.ID == 0 {
			a.ID = s.id()
		}
		a.SessionID = session.ID
		a.Question = models.ExamQuestion{}
		s.answers[a.ID] = *a
	}
	session.Answers = nil
	s.sessions[session.ID] = session
	return s.loadSession(session.ID)
}

func (s *Store) loadSession(id uint) models.ExamSession {
	session := s.sessions[id]
	session.Answers = nil
	for _, a := range sortedValues(s.answers, func(a models.ScoredAnswer) bool { return a.SessionID == id }) {
		a.Question = s.questions[a.QuestionID]
		session.Answers = append(session.Answers, a)
	}
	return session
}

// ===== REPOSITORY =====

type Repository struct {
	store *Store
	inTx  bool
}

func NewRepository(store *Store) repositories.Repository {
	return &Repository{store: store}
}

func (r *Repository) Exams() repositories.ExamRepository               { return examRepo{r.store} }
func (r *Repository) Questions() repositories.QuestionRepository       { return questionRepo{r.store} }
func (r *Repository) Strands() repositories.StrandRepository           { return strandRepo{r.store} }
func (r *Repository) Sessions() repositories.SessionRepository         { return sessionRepo{r.store} }
func (r *Repository) Performances() repositories.PerformanceRepository { return performanceRepo{r.store} }
func (r *Repository) Clusters() repositories.ClusterRepository         { return clusterRepo{r.store} }

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.inTx {
		return fn(r)
	}

	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	snap := r.store.snapshot()
	if err := fn(&Repository{store: r.store, inTx: true}); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

// ===== EXAMS =====

type examRepo struct{ s *Store }

func (r examRepo) Create(_ context.Context, exam *models.Exam) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	exam.ID = r.s.id()
	now := time.Now()
	exam.CreatedAt, exam.UpdatedAt = now, now
	for i := range exam.Questions {
		q := &exam.Questions[i]
		q.ID = r.s.id()
		q.ExamID = exam.ID
		r.s.questions[q.ID] = *q
	}
	stored := *exam
	stored.Questions = nil
	r.s.exams[exam.ID] = stored
	return nil
}

func (r examRepo) GetByID(_ context.Context, id uint) (*models.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	exam, ok := r.s.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &exam, nil
}

func (r examRepo) Update(_ context.Context, exam *models.Exam) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.exams[exam.ID]; !ok {
		return repositories.ErrNotFound
	}
	exam.UpdatedAt = time.Now()
	stored := *exam
	stored.Questions = nil
	r.s.exams[exam.ID] = stored
	return nil
}

func (r examRepo) List(_ context.Context, filters repositories.ExamFilters) ([]*models.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Exam
	for _, exam := range sortedValues(r.s.exams, nil) {
		if len(filters.Statuses) > 0 && !slices.Contains(filters.Statuses, exam.Status) {
			continue
		}
		if filters.EndedBefore != nil && !exam.EndDateTime.Before(*filters.EndedBefore) {
			continue
		}
		if filters.StartedBefore != nil && (exam.StageStartedAt == nil || !exam.StageStartedAt.Before(*filters.StartedBefore)) {
			continue
		}
		out = append(out, &exam)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (r examRepo) ListFollowUps(_ context.Context, sourceExamID uint) ([]*models.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Exam
	for _, exam := range sortedValues(r.s.exams, func(e models.Exam) bool {
		return e.Type == models.ExamTypeFollowUp && e.SourceExamID != nil && *e.SourceExamID == sourceExamID
	}) {
		out = append(out, &exam)
	}
	return out, nil
}

func (r examRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for qid, q := range r.s.questions {
		if q.ExamID == id {
			delete(r.s.questions, qid)
		}
	}
	delete(r.s.exams, id)
	return nil
}

// ===== QUESTIONS =====

type questionRepo struct{ s *Store }

func (r questionRepo) ListByExam(_ context.Context, examID uint) ([]models.ExamQuestion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	questions := sortedValues(r.s.questions, func(q models.ExamQuestion) bool { return q.ExamID == examID })
	slices.SortStableFunc(questions, func(a, b models.ExamQuestion) int { return cmp.Compare(a.Number, b.Number) })
	return questions, nil
}

func (r questionRepo) ReplaceForExam(_ context.Context, examID uint, questions []models.ExamQuestion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, q := range r.s.questions {
		if q.ExamID == examID {
			delete(r.s.questions, id)
		}
	}
	for i := range questions {
		questions[i].ID = r.s.id()
		questions[i].ExamID = examID
		r.s.questions[questions[i].ID] = questions[i]
	}
	return nil
}

func (r questionRepo) SaveAnalysis(_ context.Context, analysis *models.ExamQuestionAnalysis) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.analyses[analysis.ExamID]; ok {
		analysis.ID = prev.ID
	} else {
		analysis.ID = r.s.id()
	}
	r.s.analyses[analysis.ExamID] = *analysis
	return nil
}

func (r questionRepo) GetAnalysis(_ context.Context, examID uint) (*models.ExamQuestionAnalysis, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	analysis, ok := r.s.analyses[examID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &analysis, nil
}

type strandRepo struct{ s *Store }

func (r strandRepo) GetByIDs(_ context.Context, ids []uint) ([]models.Strand, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return sortedValues(r.s.strands, func(st models.Strand) bool { return slices.Contains(ids, st.ID) }), nil
}

// ===== SESSIONS =====

type sessionRepo struct{ s *Store }

func (r sessionRepo) ListByExam(_ context.Context, examID uint) ([]*models.ExamSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.ExamSession
	for _, session := range sortedValues(r.s.sessions, func(s models.ExamSession) bool { return s.ExamID == examID }) {
		loaded := r.s.loadSession(session.ID)
		out = append(out, &loaded)
	}
	return out, nil
}

func (r sessionRepo) GetAnswersByIDs(_ context.Context, ids []uint) ([]models.ScoredAnswer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return sortedValues(r.s.answers, func(a models.ScoredAnswer) bool { return slices.Contains(ids, a.ID) }), nil
}

func (r sessionRepo) UpdateAnswerScores(_ context.Context, scores []repositories.AnswerScore) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sc := range scores {
		if _, ok := r.s.answers[sc.AnswerID]; !ok {
			return fmt.Errorf("answer %d: %w", sc.AnswerID, repositories.ErrNotFound)
		}
	}
	for _, sc := range scores {
		a := r.s.answers[sc.AnswerID]
		score := sc.Score
		a.Score, a.AIScore = &score, &score
		r.s.answers[sc.AnswerID] = a
	}
	return nil
}

func (r sessionRepo) UpdateStatus(_ context.Context, sessionIDs []uint, status models.SessionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range sessionIDs {
		if session, ok := r.s.sessions[id]; ok {
			session.Status = status
			r.s.sessions[id] = session
		}
	}
	return nil
}

// ===== PERFORMANCES =====

type performanceRepo struct{ s *Store }

func (r performanceRepo) ReplaceStudentPerformances(_ context.Context, examID uint, perfs []*models.StudentPerformance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for sid, p := range r.s.students {
		if p.ExamID == examID {
			delete(r.s.students, sid)
		}
	}
	for _, p := range perfs {
		p.ID = r.s.id()
		p.ExamID = examID
		r.s.students[p.SessionID] = *p
	}
	return nil
}

func (r performanceRepo) UpdateClassAvgDifferences(_ context.Context, perfs []*models.StudentPerformance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range perfs {
		if stored, ok := r.s.students[p.SessionID]; ok {
			stored.ClassAvgDifference = p.ClassAvgDifference
			r.s.students[p.SessionID] = stored
		}
	}
	return nil
}

func (r performanceRepo) ListStudentPerformances(_ context.Context, examID uint) ([]*models.StudentPerformance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.StudentPerformance
	for _, p := range sortedValues(r.s.students, func(p models.StudentPerformance) bool { return p.ExamID == examID }) {
		out = append(out, &p)
	}
	return out, nil
}

func (r performanceRepo) SaveClassPerformance(_ context.Context, perf *models.ClassPerformance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.classes[perf.ExamID]; ok {
		perf.ID = prev.ID
	} else {
		perf.ID = r.s.id()
	}
	r.s.classes[perf.ExamID] = *perf
	return nil
}

func (r performanceRepo) GetClassPerformance(_ context.Context, examID uint) (*models.ClassPerformance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	perf, ok := r.s.classes[examID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &perf, nil
}

func (r performanceRepo) ReplaceQuestionPerformances(_ context.Context, examID uint, perfs []*models.QuestionPerformance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.questionPerf {
		if p.ExamID == examID {
			delete(r.s.questionPerf, id)
		}
	}
	for _, p := range perfs {
		p.ID = r.s.id()
		r.s.questionPerf[p.ID] = *p
	}
	return nil
}

func (r performanceRepo) ListQuestionPerformances(_ context.Context, examID uint) ([]*models.QuestionPerformance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.QuestionPerformance
	for _, p := range sortedValues(r.s.questionPerf, func(p models.QuestionPerformance) bool { return p.ExamID == examID }) {
		out = append(out, &p)
	}
	slices.SortStableFunc(out, func(a, b *models.QuestionPerformance) int { return cmp.Compare(a.QuestionID, b.QuestionID) })
	return out, nil
}

// ===== CLUSTERS =====

type clusterRepo struct{ s *Store }

func (r clusterRepo) Create(_ context.Context, cluster *models.PerformanceCluster) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cluster.ID = r.s.id()
	r.s.clusters[cluster.ID] = *cluster
	return nil
}

func (r clusterRepo) GetByID(_ context.Context, id uint) (*models.PerformanceCluster, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cluster, ok := r.s.clusters[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &cluster, nil
}

func (r clusterRepo) ListByExam(_ context.Context, examID uint) ([]*models.PerformanceCluster, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.PerformanceCluster
	for _, c := range sortedValues(r.s.clusters, func(c models.PerformanceCluster) bool { return c.ExamID == examID }) {
		out = append(out, &c)
	}
	slices.SortStableFunc(out, func(a, b *models.PerformanceCluster) int { return cmp.Compare(a.ClusterLabel, b.ClusterLabel) })
	return out, nil
}

func (r clusterRepo) DeleteByExam(_ context.Context, examID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.clusters {
		if c.ExamID == examID {
			delete(r.s.clusters, id)
		}
	}
	return nil
}

func (r clusterRepo) SetFollowUpExam(_ context.Context, clusterID, examID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cluster, ok := r.s.clusters[clusterID]
	if !ok {
		return repositories.ErrNotFound
	}
	cluster.FollowUpExamID = &examID
	r.s.clusters[clusterID] = cluster
	return nil
}
