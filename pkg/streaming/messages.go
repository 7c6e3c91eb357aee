// Package streaming defines the wire messages sent to the live scoreboard
// relay over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/warfare-dev/extension/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRotation   = "start_rotation"
	TypeEndRotation     = "end_rotation"
	TypeCapture         = "capture"
	TypeContestSnapshot = "contest_snapshot"
	TypePoints          = "points"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the relay's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRotationPayload announces a rotation and its path.
type StartRotationPayload struct {
	Rotation *core.Rotation `json:"rotation"`
}

// EndRotationPayload closes a rotation.
type EndRotationPayload struct {
	UUID   string `json:"uuid"`
	Winner uint8  `json:"winner"`
}
