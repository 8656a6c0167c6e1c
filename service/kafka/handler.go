package kafka

import "context"

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Header    map[string]string
}

// Handler 业务处理函数
type Handler func(ctx context.Context, msg Message) error
