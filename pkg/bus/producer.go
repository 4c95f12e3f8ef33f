package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sneakbots/sentinel/pkg/models"
)

// Producer publishes deployment lifecycle events. The API server uses it
// to turn start/stop requests into bus commands for the controller.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewProducer connects a producer for the deployment-events topic.
func NewProducer(brokers []string, topic string, logger *slog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// Publish sends one deployment event, keyed by deployment id so events for
// the same deployment stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, ev *models.DeploymentEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal deployment event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(ev.DeploymentID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish deployment event: %w", err)
	}

	p.logger.Info("Deployment event published",
		"type", ev.Type,
		"deployment_id", ev.DeploymentID,
		"topic", p.topic)
	return nil
}

// Close flushes and shuts the client down.
func (p *Producer) Close() {
	p.client.Close()
}
