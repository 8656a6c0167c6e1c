package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigDefaults(t *testing.T) {
	c := Config{Brokers: []string{"127.0.0.1:9092"}, Topic: "notify.deliver"}
	cfg, err := c.saramaConfig()
	require.NoError(t, err)
	assert.Equal(t, sarama.V2_1_0_0, cfg.Version)
	assert.Equal(t, sarama.OffsetNewest, cfg.Consumer.Offsets.Initial)
	assert.Equal(t, sarama.CompressionNone, cfg.Producer.Compression)
	assert.Equal(t, 1, cfg.Producer.Retry.Max)
	assert.True(t, cfg.Producer.Return.Successes)
}

func TestConfigOverrides(t *testing.T) {
	c := Config{Version: "2.8.0", InitialOffset: "OLDEST", Compression: "zstd", ProducerRetries: 4}
	cfg, err := c.saramaConfig()
	require.NoError(t, err)
	assert.Equal(t, sarama.V2_8_0_0, cfg.Version)
	assert.Equal(t, sarama.OffsetOldest, cfg.Consumer.Offsets.Initial)
	assert.Equal(t, sarama.CompressionZSTD, cfg.Producer.Compression)
	assert.Equal(t, 4, cfg.Producer.Retry.Max)

	_, err = Config{Version: "not-a-version"}.saramaConfig()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Topic: "x"}.validate())
	assert.Error(t, Config{Brokers: []string{"b"}}.validate())
	assert.NoError(t, Config{Brokers: []string{"b"}, Topic: "x"}.validate())
}

func TestProducerSend(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	p := &Producer{sp: mp, topic: "notify.deliver"}

	body := []byte(`{"to":"alice","notification":{"type":"friend_request","from":"bob"}}`)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != string(body) {
			return errors.New("unexpected value")
		}
		return nil
	})
	require.NoError(t, p.Send("alice", body, map[string]string{"Nats-Msg-Id": "1"}))

	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	assert.Error(t, p.Send("alice", body, nil))

	require.NoError(t, p.Close())
}

func TestConsumeHandsRecordsInOrderAndMarks(t *testing.T) {
	var (
		mu     sync.Mutex
		got    []string
		marked []int64
	)
	g := &groupHandler{
		h: func(_ context.Context, m Message) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(m.Value))
			if m.Offset == 1 {
				return errors.New("bad envelope")
			}
			return nil
		},
		log: zap.NewNop(),
	}

	msgs := make(chan *sarama.ConsumerMessage, 3)
	for i := int64(0); i < 3; i++ {
		msgs <- &sarama.ConsumerMessage{Topic: "t", Offset: i, Value: []byte{byte('a' + i)}}
	}
	close(msgs)

	g.consume(context.Background(), msgs, func(m *sarama.ConsumerMessage) {
		marked = append(marked, m.Offset)
	})

	assert.Equal(t, []string{"a", "b", "c"}, got)
	// 处理失败的记录也会被标记，避免无限重投
	assert.Equal(t, []int64{0, 1, 2}, marked)
}

func TestConsumeSurvivesPanicAndStopsOnCancel(t *testing.T) {
	g := &groupHandler{
		h:   func(context.Context, Message) error { panic("boom") },
		log: zap.NewNop(),
	}
	msgs := make(chan *sarama.ConsumerMessage, 1)
	msgs <- &sarama.ConsumerMessage{Topic: "t"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	marks := 0
	go func() {
		g.consume(ctx, msgs, func(*sarama.ConsumerMessage) { marks++ })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not stop on cancel")
	}
	assert.Equal(t, 1, marks)
}

func TestHeaderToMap(t *testing.T) {
	assert.Nil(t, headerToMap(nil))
	m := headerToMap([]*sarama.RecordHeader{
		{Key: []byte("Nats-Msg-Id"), Value: []byte("42")},
		nil,
	})
	assert.Equal(t, map[string]string{"Nats-Msg-Id": "42"}, m)
}

type fakeAdmin struct {
	meta       []*sarama.TopicMetadata
	created    *sarama.TopicDetail
	createErr  error
	expandedTo int32
}

func (f *fakeAdmin) DescribeTopics([]string) ([]*sarama.TopicMetadata, error) {
	return f.meta, nil
}

func (f *fakeAdmin) CreateTopic(_ string, d *sarama.TopicDetail, _ bool) error {
	f.created = d
	return f.createErr
}

func (f *fakeAdmin) CreatePartitions(_ string, count int32, _ [][]int32, _ bool) error {
	f.expandedTo = count
	return nil
}

func TestEnsureTopicCreates(t *testing.T) {
	a := &fakeAdmin{meta: []*sarama.TopicMetadata{{Name: "t", Err: sarama.ErrUnknownTopicOrPartition}}}
	require.NoError(t, EnsureTopic(a, "t", 8, 3, zap.NewNop()))
	require.NotNil(t, a.created)
	assert.Equal(t, int32(8), a.created.NumPartitions)
	assert.Equal(t, "2", *a.created.ConfigEntries["min.insync.replicas"])
}

func TestEnsureTopicRaceIsOk(t *testing.T) {
	a := &fakeAdmin{
		meta:      []*sarama.TopicMetadata{{Name: "t", Err: sarama.ErrUnknownTopicOrPartition}},
		createErr: sarama.ErrTopicAlreadyExists,
	}
	assert.NoError(t, EnsureTopic(a, "t", 1, 1, zap.NewNop()))
}

func TestEnsureTopicExpands(t *testing.T) {
	a := &fakeAdmin{meta: []*sarama.TopicMetadata{{
		Name:       "t",
		Err:        sarama.ErrNoError,
		Partitions: []*sarama.PartitionMetadata{{ID: 0}, {ID: 1}},
	}}}
	require.NoError(t, EnsureTopic(a, "t", 4, 1, zap.NewNop()))
	assert.Nil(t, a.created)
	assert.Equal(t, int32(4), a.expandedTo)

	a.expandedTo = 0
	require.NoError(t, EnsureTopic(a, "t", 2, 1, zap.NewNop()))
	assert.Zero(t, a.expandedTo)
}

// envelope bodies pass through untouched
func TestMessageValueIsRaw(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{"to": "alice"})
	msgs := make(chan *sarama.ConsumerMessage, 1)
	msgs <- &sarama.ConsumerMessage{Value: raw, Key: []byte("alice")}
	close(msgs)

	var seen Message
	g := &groupHandler{h: func(_ context.Context, m Message) error { seen = m; return nil }, log: zap.NewNop()}
	g.consume(context.Background(), msgs, func(*sarama.ConsumerMessage) {})
	assert.Equal(t, raw, seen.Value)
	assert.Equal(t, []byte("alice"), seen.Key)
}
