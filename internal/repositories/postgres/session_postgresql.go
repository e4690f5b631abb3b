package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.ExamSession, error) {
	var sessions []*models.ExamSession
	err := s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("scored_answers.id")
		}).
		Preload("Answers.Question").
		Where("exam_id = ?", examID).
		Order("id").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) GetAnswersByIDs(ctx context.Context, ids []uint) ([]models.ScoredAnswer, error) {
	var answers []models.ScoredAnswer
	if len(ids) == 0 {
		return answers, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&answers).Error
	return answers, err
}

// UpdateAnswerScores writes each score to both the score and the ai_score columns
func (s *SessionPostgreSQL) UpdateAnswerScores(ctx context.Context, scores []repositories.AnswerScore) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sc := range scores {
			result := tx.Model(&models.ScoredAnswer{}).
				Where("id = ?", sc.AnswerID).
				Updates(map[string]interface{}{
					"score":    sc.Score,
					"ai_score": sc.Score,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("answer %d: %w", sc.AnswerID, repositories.ErrNotFound)
			}
		}
		return nil
	})
}

func (s *SessionPostgreSQL) UpdateStatus(ctx context.Context, sessionIDs []uint, status models.SessionStatus) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("id IN ?", sessionIDs).
		Update("status", status).Error
}
