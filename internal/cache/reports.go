package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Report names a derived view cached per exam.
type Report string

const (
	ReportClassPerformance     Report = "class-performance"
	ReportStudentPerformances  Report = "student-performances"
	ReportQuestionPerformances Report = "question-performances"
	ReportClusters             Report = "clusters"
)

// ReportCache stores rendered report payloads per exam. Cache failures are
// logged and never surface to callers.
type ReportCache struct {
	cache  CacheService
	ttl    time.Duration
	logger *slog.Logger
}

func NewReportCache(cache CacheService, ttl time.Duration, logger *slog.Logger) *ReportCache {
	return &ReportCache{cache: cache, ttl: ttl, logger: logger}
}

func ReportKey(examID uint, report Report) string {
	return fmt.Sprintf("exam:%d:%s", examID, report)
}

// Load fills dest from the cache and reports whether it was a hit.
func (c *ReportCache) Load(ctx context.Context, examID uint, report Report, dest interface{}) bool {
	err := c.cache.Get(ctx, ReportKey(examID, report), dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("Report cache read failed", "exam_id", examID, "report", report, "error", err)
	}
	return false
}

func (c *ReportCache) Store(ctx context.Context, examID uint, report Report, value interface{}) {
	if err := c.cache.Set(ctx, ReportKey(examID, report), value, c.ttl); err != nil {
		c.logger.Warn("Report cache write failed", "exam_id", examID, "report", report, "error", err)
	}
}

// Invalidate drops every cached report of the exam.
func (c *ReportCache) Invalidate(ctx context.Context, examID uint) {
	if err := c.cache.DeletePattern(ctx, fmt.Sprintf("exam:%d:*", examID)); err != nil {
		c.logger.Warn("Report cache invalidation failed", "exam_id", examID, "error", err)
	}
}

// StageLockKey names the lease guarding one stage run.
func StageLockKey(examID uint, stage string) string {
	return fmt.Sprintf("lock:exam:%d:%s", examID, stage)
}
