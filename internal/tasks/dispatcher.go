// Package tasks carries pipeline stages from the API process to the workers
// over a watermill topic.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// StageTask is the payload of one stage message.
type StageTask struct {
	ExamID uint         `json:"exam_id" validate:"required"`
	Stage  models.Stage `json:"stage" validate:"exam_stage"`
}

// Dispatcher publishes stage tasks.
type Dispatcher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

func NewDispatcher(publisher message.Publisher, topic string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, examID uint, stage models.Stage) error {
	payload, err := json.Marshal(StageTask{ExamID: examID, Stage: stage})
	if err != nil {
		return fmt.Errorf("failed to marshal stage task: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("exam_id", strconv.FormatUint(uint64(examID), 10))
	msg.Metadata.Set("stage", string(stage))

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("failed to publish stage task: %w", err)
	}

	d.logger.Debug("Dispatched stage task",
		"message_uuid", msg.UUID,
		"exam_id", examID,
		"stage", stage,
		"topic", d.topic)
	return nil
}
