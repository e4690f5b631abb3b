package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"gorm.io/gorm"
)

type ClusterPostgreSQL struct {
	db *gorm.DB
}

func NewClusterPostgreSQL(db *gorm.DB) repositories.ClusterRepository {
	return &ClusterPostgreSQL{db: db}
}

func (c *ClusterPostgreSQL) Create(ctx context.Context, cluster *models.PerformanceCluster) error {
	return c.db.WithContext(ctx).Create(cluster).Error
}

func (c *ClusterPostgreSQL) GetByID(ctx context.Context, id uint) (*models.PerformanceCluster, error) {
	var cluster models.PerformanceCluster
	if err := c.db.WithContext(ctx).First(&cluster, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &cluster, nil
}

func (c *ClusterPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.PerformanceCluster, error) {
	var clusters []*models.PerformanceCluster
	err := c.db.WithContext(ctx).Where("exam_id = ?", examID).Order("cluster_label").Find(&clusters).Error
	return clusters, err
}

func (c *ClusterPostgreSQL) DeleteByExam(ctx context.Context, examID uint) error {
	return c.db.WithContext(ctx).Where("exam_id = ?", examID).Delete(&models.PerformanceCluster{}).Error
}

func (c *ClusterPostgreSQL) SetFollowUpExam(ctx context.Context, clusterID, examID uint) error {
	result := c.db.WithContext(ctx).
		Model(&models.PerformanceCluster{}).
		Where("id = ?", clusterID).
		Update("follow_up_exam_id", examID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
