package kafka

import (
	"PNotify/tools/errs"

	"github.com/Shopify/sarama"
)

// Producer writes envelopes to the delivery topic.
type Producer struct {
	sp    sarama.SyncProducer
	topic string
}

func NewProducer(c Config) (*Producer, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	cfg, err := c.saramaConfig()
	if err != nil {
		return nil, err
	}
	sp, err := sarama.NewSyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka producer", "brokers", c.Brokers)
	}
	return &Producer{sp: sp, topic: c.Topic}, nil
}

// Send writes value keyed by key. Records with the same key keep their order.
func (p *Producer) Send(key string, value []byte, header map[string]string) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	for k, v := range header {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	if _, _, err := p.sp.SendMessage(msg); err != nil {
		return errs.WrapMsg(err, "kafka send", "topic", p.topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.sp.Close()
}
