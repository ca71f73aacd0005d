package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/testutil"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completed(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pending() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes and subscriptions.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connectErr   error
	publishToken func() *fakeToken
	publishes    []published
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	disconnected bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool { return true }
func (c *fakeClient) Connect() mqtt.Token {
	return completed(c.connectErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishes = append(c.publishes, published{topic: topic, qos: qos, payload: payload.([]byte)})
	if c.publishToken != nil {
		return c.publishToken()
	}
	return completed(nil)
}

func (c *fakeClient) Subscribe(topic string, _ byte, h mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = h
	return completed(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	return completed(nil)
}

func (c *fakeClient) deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	h(c, fakeMessage{topic: topic, payload: payload})
}

type sliceSink struct {
	picks  []model.Pick
	closed bool
}

func (s *sliceSink) Enqueue(p model.Pick) bool {
	if s.closed {
		return false
	}
	s.picks = append(s.picks, p)
	return true
}

func testTransport(t *testing.T) (*MQTT, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	m := newTransport(Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       "scoctoloc-test",
		PickTopic:      "seiscomp/PICK",
		OriginTopic:    "seiscomp/LOCATION",
		QoS:            1,
		PublishTimeout: 50 * time.Millisecond,
	})
	m.client = client
	require.NoError(t, m.Connect(context.Background()))
	return m, client
}

func TestMQTT_ConnectFailure(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errors.New("connection refused")
	m := newTransport(Config{Broker: "tcp://localhost:1"})
	m.client = client

	err := m.Connect(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorIs(t, m.Send(context.Background(), nil), ErrNotConnected)
}

func TestMQTT_ReceivesPicks(t *testing.T) {
	m, client := testTransport(t)
	sink := &sliceSink{}
	require.NoError(t, m.Subscribe(sink))

	one, err := json.Marshal(testutil.Pick("a", "S01", 0, time.Second))
	require.NoError(t, err)
	many, err := json.Marshal([]model.Pick{testutil.Pick("b", "S02", 0, 0), testutil.Pick("c", "S03", 0, 0)})
	require.NoError(t, err)

	client.deliver("seiscomp/PICK", one)
	client.deliver("seiscomp/PICK", many)
	client.deliver("seiscomp/PICK", []byte("{not json"))

	require.Len(t, sink.picks, 3)
	assert.Equal(t, "a", sink.picks[0].ID)
	assert.True(t, testutil.Epoch.Add(time.Second).Equal(sink.picks[0].CreationTime))
	assert.Equal(t, "GE.S02..HHZ", sink.picks[1].Stream.String())

	received, _, errs := m.Stats()
	assert.Equal(t, uint64(3), received)
	assert.Equal(t, uint64(1), errs)

	sink.closed = true
	client.deliver("seiscomp/PICK", one)
	assert.Len(t, sink.picks, 3, "stopped pipeline drops picks")
}

func TestMQTT_ResubscribesOnReconnect(t *testing.T) {
	m, client := testTransport(t)
	require.NoError(t, m.Subscribe(&sliceSink{}))
	client.handlers = make(map[string]mqtt.MessageHandler)

	m.onConnectionLost(client, errors.New("eof"))
	assert.ErrorIs(t, m.Send(context.Background(), nil), ErrNotConnected)

	m.onConnect(client)
	assert.Contains(t, client.handlers, "seiscomp/PICK")
}

func TestMQTT_SendOrigins(t *testing.T) {
	m, client := testTransport(t)
	origins := []model.Origin{testutil.Origin("Origin/PyOcto/000000001", 0, 37, 25, 10, "a", "b")}

	require.NoError(t, m.Send(context.Background(), origins))
	require.Len(t, client.publishes, 1)
	pub := client.publishes[0]
	assert.Equal(t, "seiscomp/LOCATION", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	var batch OriginBatch
	require.NoError(t, json.Unmarshal(pub.payload, &batch))
	require.Len(t, batch.Origins, 1)
	assert.Equal(t, "Origin/PyOcto/000000001", batch.Origins[0].ID)
	assert.Equal(t, model.MethodAssociation, batch.Origins[0].Method)

	_, sent, _ := m.Stats()
	assert.Equal(t, uint64(1), sent)
}

func TestMQTT_SendFailures(t *testing.T) {
	origins := []model.Origin{testutil.Origin("o", 0, 37, 25, 10, "a")}

	t.Run("broker error", func(t *testing.T) {
		m, client := testTransport(t)
		client.publishToken = func() *fakeToken { return completed(errors.New("not authorized")) }
		assert.ErrorContains(t, m.Send(context.Background(), origins), "not authorized")
	})

	t.Run("timeout", func(t *testing.T) {
		m, client := testTransport(t)
		client.publishToken = pending
		assert.ErrorContains(t, m.Send(context.Background(), origins), "timeout")
	})

	t.Run("context cancelled", func(t *testing.T) {
		m, client := testTransport(t)
		client.publishToken = pending
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, m.Send(ctx, origins), context.Canceled)
	})
}

func TestMQTT_Close(t *testing.T) {
	m, client := testTransport(t)
	require.NoError(t, m.Subscribe(&sliceSink{}))
	m.Close()

	assert.Equal(t, []string{"seiscomp/PICK"}, client.unsubscribed)
	assert.True(t, client.disconnected)
	assert.ErrorIs(t, m.Send(context.Background(), nil), ErrNotConnected)
}

func TestDecodePicks(t *testing.T) {
	_, err := DecodePicks([]byte("  "))
	assert.Error(t, err)

	_, err = DecodePicks([]byte(`[{"id":"x"`))
	assert.Error(t, err)

	picks, err := DecodePicks([]byte(`{"id":"x"}`))
	require.NoError(t, err)
	require.Len(t, picks, 1, "incomplete picks are left to the stream filter")
	assert.Error(t, picks[0].Validate())
}

func TestDecodePicks_SkipsUndecodableElements(t *testing.T) {
	good, err := json.Marshal(testutil.Pick("a", "S01", 0, 0))
	require.NoError(t, err)
	payload := `[` + string(good) + `, {"id":"b","time":"yesterday"}, 7, {"id":"c"}]`

	picks, err := DecodePicks([]byte(payload))
	require.NoError(t, err)
	require.Len(t, picks, 2)
	assert.Equal(t, "a", picks[0].ID)
	assert.NoError(t, picks[0].Validate())
	assert.Equal(t, "c", picks[1].ID)
	assert.Error(t, picks[1].Validate())
}
