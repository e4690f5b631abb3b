package generation

// QuestionItem is one generated exam or follow-up question.
type QuestionItem struct {
	Number         int    `json:"number"`
	Grade          int    `json:"grade" validate:"gte=1,lte=12"`
	Strand         string `json:"strand" validate:"required"`
	SubStrand      string `json:"sub_strand" validate:"required"`
	BloomSkill     string `json:"bloom_skill" validate:"required"`
	Description    string `json:"description" validate:"required"`
	ExpectedAnswer string `json:"expected_answer" validate:"required"`
}

// FollowUpItem is a follow-up quiz question. The collaborator names the
// question text "question" rather than "description".
type FollowUpItem struct {
	Grade          int    `json:"grade" validate:"gte=1,lte=12"`
	Strand         string `json:"strand" validate:"required"`
	SubStrand      string `json:"sub_strand" validate:"required"`
	BloomSkill     string `json:"bloom_skill" validate:"required"`
	Question       string `json:"question" validate:"required"`
	ExpectedAnswer string `json:"expected_answer" validate:"required"`
}

// GradeItem scores one answer. Both fields may be missing in a faulty
// response and are reported per answer.
type GradeItem struct {
	AnswerID *uint    `json:"answer_id"`
	Score    *float64 `json:"score"`
}

// StrandInsight carries narrative insights for one strand.
type StrandInsight struct {
	Strand      string   `json:"strand"`
	Insights    []string `json:"insights"`
	Suggestions []string `json:"suggestions"`
}

// PlannedQuestion reserves a question number and the bloom skills it may test.
type PlannedQuestion struct {
	Number      int      `json:"number"`
	BloomSkills []string `json:"skills_to_test"`
}

// QuestionRequest asks for the planned questions of one sub-strand.
type QuestionRequest struct {
	Grade     int               `json:"grade"`
	Strand    string            `json:"strand"`
	SubStrand string            `json:"sub_strand"`
	Questions []PlannedQuestion `json:"questions"`
}

// StudentAnswer is one answer submitted for grading.
type StudentAnswer struct {
	AnswerID uint   `json:"answer_id"`
	Answer   string `json:"answer"`
}

// GradeRequest groups the answers to one question.
type GradeRequest struct {
	QuestionID     uint            `json:"question_id"`
	Question       string          `json:"question"`
	ExpectedAnswer string          `json:"expected_answer"`
	SubStrand      string          `json:"sub_strand"`
	StudentAnswers []StudentAnswer `json:"student_answers"`
}

// SourceQuestion is an original exam question sent with a follow-up request.
type SourceQuestion struct {
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer"`
	Strand         string `json:"strand"`
	SubStrand      string `json:"sub_strand"`
	BloomSkill     string `json:"bloom_skill"`
}

// FollowUpRequest packages a cluster's aggregate with the source questions.
type FollowUpRequest struct {
	QuestionCount      int              `json:"question_count"`
	ExamQuestions      []SourceQuestion `json:"exam_questions"`
	ClusterPerformance any              `json:"cluster_performance"`
}
