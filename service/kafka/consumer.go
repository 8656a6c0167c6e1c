package kafka

import (
	"context"
	"errors"
	"time"

	"PNotify/tools/errs"
	"PNotify/tools/safe"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// Consumer reads delivery envelopes from a single topic as part of a
// consumer group.
type Consumer struct {
	group sarama.ConsumerGroup
	topic string
	log   *zap.Logger
}

func NewConsumer(c Config, log *zap.Logger) (*Consumer, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.GroupID == "" {
		return nil, errs.ErrConfig.WrapMsg("kafka: empty group id")
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := c.saramaConfig()
	if err != nil {
		return nil, err
	}

	if c.AutoCreateTopic {
		admin, err := sarama.NewClusterAdmin(c.Brokers, cfg)
		if err != nil {
			return nil, errs.WrapMsg(err, "kafka admin", "brokers", c.Brokers)
		}
		err = EnsureTopic(admin, c.Topic, c.Partitions, c.ReplicationFactor, log)
		_ = admin.Close()
		if err != nil {
			return nil, err
		}
	}

	group, err := sarama.NewConsumerGroup(c.Brokers, c.GroupID, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka consumer group", "brokers", c.Brokers, "group", c.GroupID)
	}
	return &Consumer{group: group, topic: c.Topic, log: log}, nil
}

// Run consumes until ctx is done or the group is closed.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	safe.Go(c.log, "kafka-errors", func() {
		for err := range c.group.Errors() {
			c.log.Warn("consumer group error", zap.Error(err))
		}
	})

	gh := &groupHandler{h: h, log: c.log}
	for {
		// Consume 在每次 rebalance 后返回，需要循环调用
		if err := c.group.Consume(ctx, []string{c.topic}, gh); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Warn("consume", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	h   Handler
	log *zap.Logger
}

func (g *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	g.log.Info("consumer group setup", zap.String("member", s.MemberID()), zap.Int32("generation", s.GenerationID()))
	return nil
}

func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	g.log.Info("consumer group cleanup")
	return nil
}

func (g *groupHandler) ConsumeClaim(s sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	g.consume(s.Context(), claim.Messages(), func(m *sarama.ConsumerMessage) { s.MarkMessage(m, "") })
	return nil
}

// consume hands every record to the handler and marks it. Failed records are
// logged and skipped; a bad envelope would fail again on redelivery.
func (g *groupHandler) consume(ctx context.Context, msgs <-chan *sarama.ConsumerMessage, mark func(*sarama.ConsumerMessage)) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			msg := Message{
				Topic:     m.Topic,
				Partition: m.Partition,
				Offset:    m.Offset,
				Key:       m.Key,
				Value:     m.Value,
				Header:    headerToMap(m.Headers),
			}
			safe.Run(g.log, "kafka-handler", func() {
				if err := g.h(ctx, msg); err != nil {
					g.log.Warn("kafka handler failed", zap.String("topic", m.Topic),
						zap.Int32("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
				}
			})
			mark(m)
		}
	}
}

func headerToMap(hs []*sarama.RecordHeader) map[string]string {
	if len(hs) == 0 {
		return nil
	}
	out := make(map[string]string, len(hs))
	for _, h := range hs {
		if h == nil {
			continue
		}
		out[string(h.Key)] = string(h.Value)
	}
	return out
}
