// Package publish streams finished batch results to a Kafka topic.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/HerbHall/sshcheck/pkg/models"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "sshcheck-results"

// HeaderRunID carries the run ID on every message.
const HeaderRunID = "run_id"

// ErrNoBrokers is returned by New when no broker address is given.
var ErrNoBrokers = errors.New("no kafka brokers configured")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload of one message.
type Event struct {
	RunID          string        `json:"run_id"`
	Position       int           `json:"position"`
	Server         string        `json:"server"`
	Status         models.Status `json:"status"`
	Category       string        `json:"category"`
	ResponseTimeMs *float64      `json:"response_time_ms"`
	Error          string        `json:"error,omitempty"`
	Port           int           `json:"port"`
	CheckedAt      string        `json:"checked_at,omitempty"`
}

// Publisher writes result events to Kafka.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// New returns a Publisher for topic on the given brokers.
func New(brokers []string, topic string, logger *zap.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, topic, logger), nil
}

func newPublisher(w messageWriter, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, topic: topic, logger: logger.Named("publish")}
}

// PublishRun writes one message per result, keyed by server so a host's
// history lands on one partition.
func (p *Publisher) PublishRun(ctx context.Context, run *models.Run) error {
	if run == nil || len(run.Results) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(run.Results))
	for i := range run.Results {
		payload, err := json.Marshal(newEvent(run, i))
		if err != nil {
			return fmt.Errorf("marshal result %d: %w", i, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(run.Results[i].Server),
			Value:   payload,
			Headers: []kafka.Header{{Key: HeaderRunID, Value: []byte(run.ID)}},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish run %s to %s: %w", run.ID, p.topic, err)
	}
	p.logger.Info("published run",
		zap.String("run_id", run.ID),
		zap.String("topic", p.topic),
		zap.Int("messages", len(msgs)),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newEvent(run *models.Run, i int) Event {
	r := &run.Results[i]
	ev := Event{
		RunID:    run.ID,
		Position: i,
		Server:   r.Server,
		Status:   r.Status,
		Category: string(r.Status.Category()),
		Error:    r.Error,
		Port:     run.Config.Port,
	}
	if r.Measured {
		ms := r.ResponseTimeMs()
		ev.ResponseTimeMs = &ms
	}
	if !r.CheckedAt.IsZero() {
		ev.CheckedAt = r.CheckedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return ev
}
