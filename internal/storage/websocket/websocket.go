package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warfare-dev/extension/pkg/core"
	"github.com/warfare-dev/extension/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
	Logger     *slog.Logger
}

// Backend streams rotation history over WebSocket to the live scoreboard
// relay. It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = ackTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(cfg.Logger),
		cfg:  cfg,
	}
}

// Init connects to the relay.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the relay.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartRotation announces the rotation and waits for the relay's ack.
func (b *Backend) StartRotation(r *core.Rotation) error {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	data, err := marshalEnvelope(streaming.TypeStartRotation, streaming.StartRotationPayload{Rotation: r})
	if err != nil {
		return err
	}

	b.conn.startRotation(data)
	return b.conn.sendAndWait(data, streaming.TypeStartRotation, b.cfg.AckTimeout)
}

// EndRotation sends end_rotation and waits for the relay's ack.
func (b *Backend) EndRotation(r *core.Rotation) error {
	data, err := marshalEnvelope(streaming.TypeEndRotation, streaming.EndRotationPayload{UUID: r.UUID, Winner: r.Winner})
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndRotation, b.cfg.AckTimeout)
	}

	// Nothing to replay once the rotation is over, even if the ack never came.
	b.conn.endRotation()

	return err
}

func (b *Backend) RecordCapture(c *core.CaptureRecord) error {
	return b.sendEnvelope(streaming.TypeCapture, c)
}

func (b *Backend) RecordContestSnapshot(s *core.ContestSnapshot) error {
	return b.sendEnvelope(streaming.TypeContestSnapshot, s)
}

// RecordPoints streams a points change. The latest one per flag is kept so
// a reconnected relay can be brought up to date.
func (b *Backend) RecordPoints(p *core.PointsRecord) error {
	data, err := marshalEnvelope(streaming.TypePoints, p)
	if err != nil {
		return err
	}
	b.conn.latestPoints(p.Flag, data)
	b.conn.send(data)
	return nil
}
