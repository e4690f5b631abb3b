package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/events"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventConfig holds configuration for pipeline event publishing
type EventConfig struct {
	Enabled      bool   `env:"EVENTS_ENABLED" envDefault:"true"`
	Publisher    string `env:"EVENTS_PUBLISHER" envDefault:"kafka"` // kafka or mock
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	Topic        string `env:"PIPELINE_EVENTS_TOPIC" envDefault:"exam-pipeline-events"`
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	return splitBrokers(c.KafkaBrokers)
}

// CreateEventPublisher creates an event publisher based on configuration
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.Topic)

		return events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: c.GetKafkaBrokers(),
			TopicName:    c.Topic,
			Logger:       logger,
		})
	case "mock":
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}

// QueueConfig selects the transport carrying stage tasks.
type QueueConfig struct {
	Backend       string        `env:"QUEUE_BACKEND" envDefault:"gochannel"` // gochannel or kafka
	KafkaBrokers  string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	Topic         string        `env:"PIPELINE_TASKS_TOPIC" envDefault:"exam-pipeline-tasks"`
	ConsumerGroup string        `env:"PIPELINE_CONSUMER_GROUP" envDefault:"exam-analysis-workers"`
	BufferSize    int           `env:"QUEUE_BUFFER_SIZE" envDefault:"64"`
	MaxRetries    int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	RetryInterval time.Duration `env:"QUEUE_RETRY_INTERVAL" envDefault:"1s"`
}

// CreatePubSub builds the task publisher and subscriber. The gochannel backend
// returns one in-process pub/sub for both sides.
func (c *QueueConfig) CreatePubSub(logger *slog.Logger) (message.Publisher, message.Subscriber, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch c.Backend {
	case "", "gochannel":
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(c.BufferSize),
			Persistent:          true,
		}, wmLogger)
		return pubSub, pubSub, nil
	case "kafka":
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   splitBrokers(c.KafkaBrokers),
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kafka task publisher: %w", err)
		}
		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               splitBrokers(c.KafkaBrokers),
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
			ConsumerGroup:         c.ConsumerGroup,
		}, wmLogger)
		if err != nil {
			_ = publisher.Close()
			return nil, nil, fmt.Errorf("failed to create Kafka task subscriber: %w", err)
		}
		return publisher, subscriber, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", c.Backend)
	}
}

// LLMConfig configures the generation collaborator.
type LLMConfig struct {
	Provider        string `env:"LLM_PROVIDER" envDefault:"openai"` // openai or static
	BaseURL         string `env:"OPENAI_BASE_URL"`
	APIKey          string `env:"OPENAI_API_KEY"`
	Model           string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	Temperature     float32
	StaticResponses string `env:"LLM_STATIC_RESPONSES"` // JSON file mapping task to raw response
}

// CreateGenerator builds the configured generator. Every call it makes is
// bounded by timeout.
func (c *LLMConfig) CreateGenerator(timeout time.Duration, logger *slog.Logger) (generation.Generator, error) {
	switch c.Provider {
	case "", "openai":
		if c.APIKey == "" && c.BaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return generation.NewOpenAIGenerator(generation.OpenAIConfig{
			BaseURL:     c.BaseURL,
			APIKey:      c.APIKey,
			Model:       c.Model,
			Temperature: c.Temperature,
			Timeout:     timeout,
		}, logger), nil
	case "static":
		responses := map[generation.Task]string{}
		if c.StaticResponses != "" {
			raw, err := os.ReadFile(c.StaticResponses)
			if err != nil {
				return nil, fmt.Errorf("read static responses: %w", err)
			}
			var byTask map[generation.Task]json.RawMessage
			if err := json.Unmarshal(raw, &byTask); err != nil {
				return nil, fmt.Errorf("parse static responses: %w", err)
			}
			for task, body := range byTask {
				responses[task] = string(body)
			}
		}
		logger.Warn("Using static generation responses", "tasks", len(responses))
		return generation.Static(responses), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
