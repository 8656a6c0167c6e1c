package kafka

import (
	"strings"
	"time"

	"PNotify/tools/errs"

	"github.com/Shopify/sarama"
)

// Config 投递入口的 Kafka 配置
type Config struct {
	Brokers           []string
	GroupID           string
	Topic             string
	Version           string // 例如 "2.1.0"
	InitialOffset     string // newest/oldest
	Compression       string // none/snappy/lz4/zstd
	ProducerRetries   int
	AutoCreateTopic   bool
	Partitions        int32
	ReplicationFactor int16
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return errs.ErrConfig.WrapMsg("kafka: no brokers")
	}
	if c.Topic == "" {
		return errs.ErrConfig.WrapMsg("kafka: empty topic")
	}
	return nil
}

// saramaConfig builds the shared client config for producer and consumer.
func (c Config) saramaConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errs.ErrConfig.WrapMsg("kafka: bad version", "version", c.Version)
		}
		cfg.Version = v
	}

	// Producer
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.ProducerRetries
	if cfg.Producer.Retry.Max <= 0 {
		cfg.Producer.Retry.Max = 1
	}
	// 以接收者为 key，同一用户的通知落在同一分区，保证顺序
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	// Consumer
	switch strings.ToLower(c.InitialOffset) {
	case "oldest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}
