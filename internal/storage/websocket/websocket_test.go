package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warfare-dev/extension/internal/storage"
	"github.com/warfare-dev/extension/pkg/core"
	"github.com/warfare-dev/extension/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks start_rotation/end_rotation unless
// silent is set.
func testServer(t *testing.T, silent bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if silent {
				continue
			}
			if env.Type == streaming.TypeStartRotation || env.Type == streaming.TypeEndRotation {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testRotation() *core.Rotation {
	return &core.Rotation{
		Mode:    "dualSided",
		MapName: "Altis",
		Flags: []core.RotationFlag{
			{Index: 0, Name: "Kavala", Owner: 1},
			{Index: 1, Name: "Pyrgos"},
		},
	}
}

func TestStartAndEndRotation(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	r := testRotation()
	require.NoError(t, b.StartRotation(r))
	assert.NotEmpty(t, r.UUID)

	r.Winner = 1
	require.NoError(t, b.EndRotation(r))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartRotation, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndRotation, msgs[len(msgs)-1].Type)

	var end streaming.EndRotationPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &end))
	assert.Equal(t, r.UUID, end.UUID)
	assert.Equal(t, uint8(1), end.Winner)

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()

	b.conn.mu.Lock()
	assert.Empty(t, b.conn.replay.messages())
	b.conn.mu.Unlock()
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	r := testRotation()
	require.NoError(t, b.StartRotation(r))

	require.NoError(t, b.RecordCapture(&core.CaptureRecord{Flag: "Pyrgos", Team: 1, Players: []core.PlayerID{5}}))
	require.NoError(t, b.RecordContestSnapshot(&core.ContestSnapshot{Flag: "Pyrgos", State: "OneTeamIsLeading"}))
	require.NoError(t, b.RecordPoints(&core.PointsRecord{Flag: "Pyrgos", Leader: 1, Change: 12, Points: 12}))

	require.NoError(t, b.EndRotation(r))

	// The end ack proves the relay read everything before it.
	msgs := ml.all()
	types := make(map[string]int)
	for _, m := range msgs {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeStartRotation])
	assert.Equal(t, 1, types[streaming.TypeEndRotation])
	assert.Equal(t, 1, types[streaming.TypeCapture])
	assert.Equal(t, 1, types[streaming.TypeContestSnapshot])
	assert.Equal(t, 1, types[streaming.TypePoints])
}

func TestStartRotation_AckTimeout(t *testing.T) {
	srv, ml := testServer(t, true)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), AckTimeout: 50 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.StartRotation(testRotation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for ack")

	assert.Eventually(t, func() bool { return ml.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestInit_DialFailure(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/api"})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestInit_InvalidURL(t *testing.T) {
	b := New(Config{URL: "://bad"})
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid websocket URL")
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestReconnect_ReplaysRotation(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	b.conn.backoff = 10 * time.Millisecond
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRotation(testRotation()))
	require.NoError(t, b.RecordPoints(&core.PointsRecord{Flag: "Pyrgos", Leader: 1, Change: 12, Points: 12}))
	require.NoError(t, b.RecordPoints(&core.PointsRecord{Flag: "Pyrgos", Leader: 1, Change: 12, Points: 24}))
	assert.Eventually(t, func() bool { return ml.count() == 3 }, time.Second, 10*time.Millisecond)

	// Drop the socket; the supervisor notices and redials.
	b.conn.mu.Lock()
	_ = b.conn.conn.Close()
	b.conn.mu.Unlock()

	assert.Eventually(t, func() bool { return ml.count() == 5 }, 2*time.Second, 10*time.Millisecond)

	msgs := ml.all()
	assert.Equal(t, streaming.TypeStartRotation, msgs[3].Type)
	assert.Equal(t, streaming.TypePoints, msgs[4].Type)

	var p core.PointsRecord
	require.NoError(t, json.Unmarshal(msgs[4].Payload, &p))
	assert.Equal(t, 24, p.Points)
}

func TestReplaySet(t *testing.T) {
	var r replaySet
	r.setPoints("Kavala", []byte("ignored"))
	assert.Empty(t, r.messages())

	r.reset([]byte("start"))
	r.setPoints("Kavala", []byte("k1"))
	r.setPoints("Pyrgos", []byte("p1"))
	r.setPoints("Kavala", []byte("k2"))
	assert.Equal(t, [][]byte{[]byte("start"), []byte("k2"), []byte("p1")}, r.messages())

	r.reset([]byte("next"))
	assert.Equal(t, [][]byte{[]byte("next")}, r.messages())

	r.reset(nil)
	assert.Empty(t, r.messages())
}

func TestRelayURL(t *testing.T) {
	u, err := relayURL("ws://relay.example:5000/api?mode=live", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ws://relay.example:5000/api?mode=live&secret=s3cret", u)

	_, err = relayURL("://bad", "x")
	assert.Error(t, err)
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypePoints, core.PointsRecord{Flag: "Kavala", Points: 24})
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypePoints, decoded.Type)

	var p core.PointsRecord
	require.NoError(t, json.Unmarshal(decoded.Payload, &p))
	assert.Equal(t, "Kavala", p.Flag)
	assert.Equal(t, 24, p.Points)

	_, err = marshalEnvelope(streaming.TypePoints, make(chan int))
	assert.Error(t, err)
}
