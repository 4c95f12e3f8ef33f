// Package bus carries deployment lifecycle events over Kafka.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sneakbots/sentinel/pkg/models"
)

// ErrConsumerClosed is returned by Poll after Close.
var ErrConsumerClosed = errors.New("bus consumer closed")

// Consumer reads deployment events for the controller. Consumption starts
// at the latest offset: lifecycle commands predating this controller run
// are stale and must not be replayed.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewConsumer connects a group consumer to the deployment-events topic.
func NewConsumer(brokers []string, topic, group string, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	logger.Info("Deployment event consumer connected", "topic", topic, "group", group)
	return &Consumer{client: client, logger: logger}, nil
}

// Poll blocks for the next batch of deployment events. Malformed events
// are logged and dropped; the stream itself never fails on bad payloads.
func (c *Consumer) Poll(ctx context.Context) ([]*models.DeploymentEvent, error) {
	fetches := c.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, ErrConsumerClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetches.EachError(func(topic string, partition int32, err error) {
		c.logger.Error("Fetch error", "topic", topic, "partition", partition, "error", err)
	})

	var records []*kgo.Record
	fetches.EachRecord(func(rec *kgo.Record) {
		records = append(records, rec)
	})
	return c.decodeRecords(records), nil
}

// Close shuts the client down; in-flight Poll calls return
// ErrConsumerClosed.
func (c *Consumer) Close() {
	c.client.Close()
}

func (c *Consumer) decodeRecords(records []*kgo.Record) []*models.DeploymentEvent {
	events := make([]*models.DeploymentEvent, 0, len(records))
	for _, rec := range records {
		ev, err := models.DecodeDeploymentEvent(rec.Value)
		if err != nil {
			c.logger.Warn("Dropping invalid deployment event",
				"topic", rec.Topic,
				"offset", rec.Offset,
				"error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}
