// Package wire defines the WebSocket protocol of the live order channel.
package wire

import (
	"encoding/json"

	"github.com/matthewbaird/fiberorder/internal/command"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "command", "get", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandData is the payload for "command" messages.
type CommandData struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "state", "result", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData is sent once after the connection is attached to a session.
type SessionData struct {
	SessionID string       `json:"session_id"`
	View      command.View `json:"view"`
}

// ResultData answers a "command" message.
type ResultData struct {
	command.Outcome
	Stale bool `json:"stale,omitempty"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
