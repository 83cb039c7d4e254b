package databus

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/Shopify/sarama.v1"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
	"testing"
	"time"
)

type fakeProducer struct {
	sent   []*sarama.ProducerMessage
	err    error
	closed bool
}

func (p *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if p.err != nil {
		return 0, 0, p.err
	}
	p.sent = append(p.sent, msg)
	return 0, int64(len(p.sent)), nil
}

func (p *fakeProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	for _, m := range msgs {
		if _, _, err := p.SendMessage(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func encoded(t *testing.T, e sarama.Encoder) string {
	data, err := e.Encode()
	require.NoError(t, err)
	return string(data)
}

func TestPublishFrameEvent(t *testing.T) {
	p := &fakeProducer{}
	db := NewWithProducer(p, "frame_events")
	db.now = func() time.Time { return time.Unix(1700000000, 0) }

	ev, err := schema.NewFrameSuccess(schema.KindGetChainID, "r1", schema.ChainIDResponse{ChainID: 10})
	require.NoError(t, err)
	require.NoError(t, db.PublishFrameEvent(ev))

	require.Len(t, p.sent, 1)
	assert.Equal(t, "frame_events", p.sent[0].Topic)
	assert.Equal(t, schema.FrameGetChainIDSuccess, encoded(t, p.sent[0].Key))
	assert.JSONEq(t, `{"type":"@w3m-frame/GET_CHAIN_ID_SUCCESS","id":"r1","payload":{"chainId":10},"receivedAt":1700000000000}`,
		encoded(t, p.sent[0].Value))
}

func TestPublishStripsSensitivePayloads(t *testing.T) {
	p := &fakeProducer{}
	db := NewWithProducer(p, "frame_events")

	update, err := schema.NewSessionUpdate("secret-token")
	require.NoError(t, err)
	require.NoError(t, db.PublishFrameEvent(update))
	rpc, err := schema.NewFrameSuccess(schema.KindRPCRequest, "r2", "0xsignature")
	require.NoError(t, err)
	require.NoError(t, db.PublishFrameEvent(rpc))

	require.Len(t, p.sent, 2)
	assert.NotContains(t, encoded(t, p.sent[0].Value), "secret-token")
	assert.NotContains(t, encoded(t, p.sent[1].Value), "0xsignature")
}

func TestPublishError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	db := NewWithProducer(p, "frame_events")
	assert.Error(t, db.PublishRaw("t", "", []byte("x")))
	assert.NoError(t, db.PublishRaw("t", "", nil))
	require.NoError(t, db.Close())
	assert.True(t, p.closed)
}
