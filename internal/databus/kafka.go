package databus

import (
	"encoding/json"
	"gopkg.in/Shopify/sarama.v1"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"strings"
	"time"
)

type Event interface {
	Serialize() []byte
	Topic() string
	Key() string
}

// DataBus publishes frame events to kafka for analytics.
type DataBus struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

func New(host, topic string) (*DataBus, error) {
	hosts := strings.Split(host, ",")
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	p, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.WrapAndReport(err, "create kafka producer")
	}
	log.Info("Kafka producer initialized...")
	return NewWithProducer(p, topic), nil
}

func NewWithProducer(p sarama.SyncProducer, topic string) *DataBus {
	return &DataBus{producer: p, topic: topic, now: time.Now}
}

func (db *DataBus) PublishRaw(topic, key string, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(raw),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	if _, _, err := db.producer.SendMessage(msg); err != nil {
		return errors.WrapAndReport(err, "produce message")
	}
	return nil
}

func (db *DataBus) Publish(e Event) error {
	return db.PublishRaw(e.Topic(), e.Key(), e.Serialize())
}

type frameEvent struct {
	topic string
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	// RPC results and session tokens are never forwarded.
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt int64           `json:"receivedAt"`
}

func (e *frameEvent) Serialize() []byte {
	data, _ := json.Marshal(e)
	return data
}

func (e *frameEvent) Topic() string {
	return e.topic
}

func (e *frameEvent) Key() string {
	return e.Type
}

// PublishFrameEvent forwards ev to the configured topic.
func (db *DataBus) PublishFrameEvent(ev schema.Event) error {
	e := &frameEvent{
		topic:      db.topic,
		Type:       ev.Type,
		ID:         ev.ID,
		ReceivedAt: db.now().UnixNano() / int64(time.Millisecond),
	}
	if !schema.IsRPCType(ev.Type) && ev.Type != schema.FrameSessionUpdate {
		e.Payload = ev.Payload
	}
	return db.Publish(e)
}

func (db *DataBus) Close() error {
	return db.producer.Close()
}
