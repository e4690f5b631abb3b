package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

// LogLevel represents different log levels for service operations
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service       string
	Component     string
	EnableMetrics bool
	EnableDebug   bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// classify maps an error onto a log level and status label.
func classify(err error) (LogLevel, string) {
	switch {
	case err == nil:
		return LogLevelInfo, "success"
	case IsValidation(err):
		return LogLevelWarn, "validation_error"
	case IsNotFound(err):
		return LogLevelInfo, "not_found"
	case IsConflict(err), IsInvalidState(err):
		return LogLevelWarn, "rejected"
	case apperrors.IsGeneration(err):
		return LogLevelWarn, "generation_error"
	case apperrors.IsPartialFailure(err):
		return LogLevelWarn, "partial_failure"
	default:
		return LogLevelError, "error"
	}
}

// ===== OPERATION LOGGING =====

func (l *ServiceLogger) LogOperation(ctx context.Context, operation string, examID uint, duration time.Duration, err error) {
	logLevel, status := classify(err)

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Uint64("exam_id", uint64(examID)),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErr ValidationErrors
		var partial *apperrors.PartialFailureError
		if errors.As(err, &validationErr) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		} else if errors.As(err, &partial) {
			attrs = append(attrs, slog.Int("failed_records", len(partial.Details)))
		}
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	// Add caller information for errors
	if logLevel == LogLevelError {
		if pc, file, line, ok := runtime.Caller(2); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				attrs = append(attrs,
					slog.String("caller_func", fn.Name()),
					slog.String("caller_file", file),
					slog.Int("caller_line", line),
				)
			}
		}
	}

	l.log(ctx, logLevel, fmt.Sprintf("%s operation %s", operation, status), attrs)
}

// LogStage records the outcome of one pipeline stage run.
func (l *ServiceLogger) LogStage(ctx context.Context, examID uint, stage models.Stage, status models.ExamStatus, duration time.Duration, err error) {
	logLevel, outcome := classify(err)

	attrs := []slog.Attr{
		slog.String("stage", string(stage)),
		slog.Uint64("exam_id", uint64(examID)),
		slog.String("exam_status", string(status)),
		slog.String("outcome", outcome),
		slog.Duration("duration", duration),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	l.log(ctx, logLevel, fmt.Sprintf("%s stage %s", stage, outcome), attrs)
}

// LogStep is a debug trace of one analysis sub-step.
func (l *ServiceLogger) LogStep(ctx context.Context, examID uint, step string, attrs ...slog.Attr) {
	if !l.config.EnableDebug {
		return
	}
	attrs = append([]slog.Attr{slog.Uint64("exam_id", uint64(examID)), slog.String("step", step)}, attrs...)
	l.logger.LogAttrs(ctx, slog.LevelDebug, "analysis step", attrs...)
}

func (l *ServiceLogger) LogValidationError(ctx context.Context, operation string, validationErrors ValidationErrors) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Int("error_count", len(validationErrors)),
	}

	for i, err := range validationErrors {
		if i < 5 { // Limit to first 5 errors to avoid log spam
			attrs = append(attrs, slog.Group(fmt.Sprintf("error_%d", i+1),
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.Any("value", err.Value),
			))
		}
	}

	l.logger.LogAttrs(ctx, slog.LevelWarn, "Validation failed", attrs...)
}

// ===== ERROR RECOVERY LOGGING =====

func (l *ServiceLogger) LogRecovery(ctx context.Context, operation string, examID uint, recovered interface{}, stack []byte) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Uint64("exam_id", uint64(examID)),
		slog.Any("panic_value", recovered),
		slog.String("stack_trace", string(stack)),
	}

	l.logger.LogAttrs(ctx, slog.LevelError, "Panic recovered", attrs...)
}

// ===== PERFORMANCE LOGGING =====

type PerformanceMetrics struct {
	TotalDuration time.Duration `json:"total_duration"`
	Students      int           `json:"students"`
	Skipped       int           `json:"skipped"`
	Clusters      int           `json:"clusters"`
	FollowUps     int           `json:"follow_ups"`
	Generations   int           `json:"generations"`
}

func (l *ServiceLogger) LogPerformanceMetrics(ctx context.Context, examID uint, metrics PerformanceMetrics) {
	if !l.config.EnableMetrics {
		return
	}

	l.logger.LogAttrs(ctx, slog.LevelInfo, "Analysis metrics",
		slog.Uint64("exam_id", uint64(examID)),
		slog.Duration("total_duration", metrics.TotalDuration),
		slog.Int("students", metrics.Students),
		slog.Int("skipped", metrics.Skipped),
		slog.Int("clusters", metrics.Clusters),
		slog.Int("follow_ups", metrics.FollowUps),
		slog.Int("generation_calls", metrics.Generations),
	)
}

func (l *ServiceLogger) log(ctx context.Context, level LogLevel, message string, attrs []slog.Attr) {
	switch level {
	case LogLevelDebug:
		if l.config.EnableDebug {
			l.logger.LogAttrs(ctx, slog.LevelDebug, message, attrs...)
		}
	case LogLevelInfo:
		l.logger.LogAttrs(ctx, slog.LevelInfo, message, attrs...)
	case LogLevelWarn:
		l.logger.LogAttrs(ctx, slog.LevelWarn, message, attrs...)
	case LogLevelError:
		l.logger.LogAttrs(ctx, slog.LevelError, message, attrs...)
	}
}

// ===== MIDDLEWARE AND HELPERS =====

type contextKey string

// RequestIDKey carries the HTTP request id into service logs.
const RequestIDKey contextKey = "request_id"

// ContextualLogger wraps operations with automatic logging
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	examID    uint
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation string, examID uint) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		examID:    examID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.examID, time.Since(cl.startTime), err)

	var validationErrors ValidationErrors
	if errors.As(err, &validationErrors) {
		cl.logger.LogValidationError(cl.ctx, cl.operation, validationErrors)
	}
}
