package relay

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types the relay inspects. Everything else is opaque and passes
// through unmodified.
const (
	typeSessionUpdate  = "session.update"
	typeSessionUpdated = "session.updated"
	typeProxyConnected = "proxy.connected"
	typeSystemInfo     = "system.info"
	typeError          = "error"
)

// Client-facing error codes.
const (
	CodeQwenError  = "QWEN_ERROR"
	CodeNotReady   = "NOT_READY"
	CodeProxyError = "PROXY_ERROR"
)

// sessionUpdate is the one-time initialization message sent to the upstream
// once its connection opens. The shape is fixed by the DashScope realtime API;
// only the event ID is generated per send.
type sessionUpdate struct {
	Type    string        `json:"type"`
	EventID string        `json:"event_id"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities              []string            `json:"modalities"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription transcriptionParams `json:"input_audio_transcription"`
	TurnDetection           *struct{}           `json:"turn_detection"` // always null
}

type transcriptionParams struct {
	Model string `json:"model"`
}

func newSessionUpdate() sessionUpdate {
	return sessionUpdate{
		Type:    typeSessionUpdate,
		EventID: fmt.Sprintf("event_%d", time.Now().UnixMilli()),
		Session: sessionParams{
			Modalities:              []string{"text", "audio"},
			Voice:                   "Ethan",
			InputAudioFormat:        "pcm16",
			OutputAudioFormat:       "pcm16",
			InputAudioTranscription: transcriptionParams{Model: "gummy-realtime-v1"},
		},
	}
}

// proxyConnected is sent to the client when the upstream connection opens.
type proxyConnected struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func newProxyConnected(message string) proxyConnected {
	return proxyConnected{
		Type:      typeProxyConnected,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// systemInfo carries proxy status notices to the client.
type systemInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newSystemInfo(message string) systemInfo {
	return systemInfo{Type: typeSystemInfo, Message: message}
}

// errorPayload is the sanitized error envelope forwarded to the client. It
// never carries raw internal error text.
type errorPayload struct {
	Type  string    `json:"type"`
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func newErrorPayload(code, message string) errorPayload {
	return errorPayload{
		Type:  typeError,
		Error: errorBody{Message: message, Code: code},
	}
}

// sniffType extracts the "type" field from a JSON payload. The second return
// reports whether the payload parsed at all; callers forward the raw bytes
// either way.
func sniffType(data []byte) (string, bool) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", false
	}
	return envelope.Type, true
}
