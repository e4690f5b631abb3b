package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/events"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "exam-pipeline-tasks", cfg.Queue.Topic)
	assert.Equal(t, "gochannel", cfg.Queue.Backend)
	assert.Equal(t, DefaultPipelineConfig(), cfg.Pipeline)
	assert.Equal(t, models.FailurePolicyStrict, cfg.Pipeline.FailurePolicy)
}

func TestLoadConfig_DotEnvAndOverrides(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAX_CLUSTERS=4\nFAILURE_POLICY=isolate\n"), 0o600))
	t.Setenv("STAGE_TIMEOUT", "90s")
	t.Setenv("CLUSTER_SEED", "7")
	t.Cleanup(func() {
		os.Unsetenv("MAX_CLUSTERS")
		os.Unsetenv("FAILURE_POLICY")
	})

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pipeline.MaxClusters)
	assert.Equal(t, models.FailurePolicyIsolate, cfg.Pipeline.FailurePolicy)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, uint64(7), cfg.Pipeline.AnalysisOptions().Seed)
}

func TestLoadConfig_ParseErrors(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MAX_CLUSTERS", "many")
	t.Setenv("STAGE_TIMEOUT", "soon")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_CLUSTERS")
	assert.Contains(t, err.Error(), "STAGE_TIMEOUT")
}

func TestPipelineConfig_Validate(t *testing.T) {
	cfg := DefaultPipelineConfig()
	require.NoError(t, cfg.Validate())

	cfg.FailurePolicy = "lenient"
	cfg.MaxClusters = 1
	err := cfg.Validate()

	var verrs apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 2)
	assert.Equal(t, "MaxClusters", verrs[0].Field)
	assert.Equal(t, "FailurePolicy", verrs[1].Field)
	assert.Equal(t, "must be one of strict, fail_fast, isolate", verrs[1].Message)
}

func TestPipelineConfig_AnalysisOptions(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Percentile = 0.2

	opts := cfg.AnalysisOptions()

	assert.Equal(t, 0.2, opts.Percentile)
	assert.Equal(t, cfg.PCAComponents, opts.PCAComponents)
	assert.Equal(t, cfg.TopQuestions, opts.TopQuestions)
}

func TestEventConfig_CreateEventPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, cfg := range []EventConfig{{Enabled: false}, {Enabled: true, Publisher: "mock"}, {Enabled: true, Publisher: "carrier-pigeon"}} {
		publisher, err := cfg.CreateEventPublisher(logger)
		require.NoError(t, err)
		assert.IsType(t, &events.MockEventPublisher{}, publisher)
	}
}

func TestQueueConfig_GoChannel(t *testing.T) {
	cfg := QueueConfig{Backend: "gochannel", BufferSize: 8}

	pub, sub, err := cfg.CreatePubSub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, err)
	assert.Same(t, pub, sub)
	require.NoError(t, pub.Close())

	_, _, err = (&QueueConfig{Backend: "smoke-signals"}).CreatePubSub(slog.Default())
	assert.Error(t, err)
}

func TestLLMConfig_CreateGenerator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := (&LLMConfig{Provider: "openai"}).CreateGenerator(time.Second, logger)
	assert.Error(t, err)

	gen, err := (&LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o"}).CreateGenerator(time.Second, logger)
	require.NoError(t, err)
	assert.IsType(t, &generation.OpenAIGenerator{}, gen)

	path := filepath.Join(t.TempDir(), "responses.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"answer_grades":[{"answer_id":1,"score":2}]}`), 0o600))
	gen, err = (&LLMConfig{Provider: "static", StaticResponses: path}).CreateGenerator(time.Second, logger)
	require.NoError(t, err)

	items, err := gen.Generate(t.Context(), generation.TaskAnswerGrades, nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092"))
}
