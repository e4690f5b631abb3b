package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatermillEventPublisher_Publish(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "exam-pipeline-events")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(pubSub, "exam-pipeline-events", discardLogger())
	event := NewStageFailedEvent(12, models.StageGrading, "Some updates failed: []")
	require.NoError(t, publisher.PublishPipelineEvent(context.Background(), event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventStageFailed), msg.Metadata.Get("event_type"))
		assert.Equal(t, "12", msg.Metadata.Get("exam_id"))

		var decoded struct {
			Type EventType  `json:"type"`
			Data StageEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventStageFailed, decoded.Type)
		assert.Equal(t, StageEvent{
			ExamID: 12, Stage: models.StageGrading, Status: models.ExamStatusFailed, Error: "Some updates failed: []",
		}, decoded.Data)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(discardLogger())

	require.NoError(t, mock.PublishPipelineEvent(context.Background(), NewStageStartedEvent(1, models.StageAnalysis)))
	require.NoError(t, mock.PublishPipelineEvent(context.Background(), NewAnalysisCompletedEvent(1, 3, 54.17, 2, nil)))

	assert.Equal(t, []EventType{EventStageStarted, EventAnalysisCompleted}, mock.EventTypes())
	started := mock.GetPublishedEvents()[0].Data.(StageEvent)
	assert.Equal(t, models.ExamStatusAnalysing, started.Status)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())
}

func TestGenerateEventID(t *testing.T) {
	id := GenerateEventID()

	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, GenerateEventID())
}
