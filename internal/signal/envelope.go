package signal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// message is the generic WebSocket message envelope used by the signaling
// server in both directions.
type message struct {
	Method            string `json:"method"`
	Code              *int   `json:"code,omitempty"`
	Message           string `json:"message,omitempty"`
	ClientType        string `json:"clientType,omitempty"`
	ClientID          string `json:"clientId,omitempty"`
	Status            string `json:"status,omitempty"`
	AccessToken       string `json:"accessToken,omitempty"`
	ID                string `json:"id,omitempty"`
	Role              string `json:"role,omitempty"`
	Name              string `json:"name,omitempty"`
	Group             string `json:"group,omitempty"`
	TraceID           string `json:"traceId,omitempty"`
	RecipientClientID string `json:"recipientClientId,omitempty"`
	SenderClientID    string `json:"senderClientId,omitempty"`
	SessionID         string `json:"sessionId,omitempty"`
	MessageType       string `json:"messageType,omitempty"`
	MessagePayload    string `json:"messagePayload,omitempty"`
	Mode              string `json:"mode,omitempty"`
	ViewerType        string `json:"viewerType,omitempty"`
	Resolution        string `json:"resolution,omitempty"`
	Version           string `json:"version,omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty"`
	Reason            int    `json:"reason,omitempty"`
}

// TRANSMIT payloads ride inside the envelope as base64-encoded JSON.

func encodePayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodePayload(encoded string, v any) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
