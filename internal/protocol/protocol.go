// Package protocol implements the client<->gateway wire format: parsing and
// validating inbound client messages, and serializing outbound auxiliary
// messages (events themselves are serialized by the events package).
package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrProtocol is returned when an inbound client message is malformed.
type ErrProtocol struct {
	Reason string
}

func (e *ErrProtocol) Error() string { return e.Reason }

func protoErr(format string, a ...any) error {
	return &ErrProtocol{Reason: fmt.Sprintf(format, a...)}
}

// ClientMessageType discriminates a client->gateway message.
type ClientMessageType string

const (
	Prompt           ClientMessageType = "prompt"
	Steer            ClientMessageType = "steer"
	Abort            ClientMessageType = "abort"
	ContextRequest   ClientMessageType = "context_request"
	ModelListRequest ClientMessageType = "model_list_request"
)

// ClientMessage is an inbound message from a connected client.
type ClientMessage struct {
	Type    ClientMessageType
	Message string
}

type rawClientMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ParseClientMessage decodes and validates a raw inbound message. prompt and
// steer require a non-empty message field; other types ignore it. Any
// failure here must not change gateway state — the caller replies with an
// error message and otherwise proceeds as if nothing was sent.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ClientMessage{}, protoErr("invalid JSON: %v", err)
	}

	switch ClientMessageType(raw.Type) {
	case Prompt, Steer:
		if raw.Message == "" {
			return ClientMessage{}, protoErr("%q requires a non-empty message field", raw.Type)
		}
	case Abort, ContextRequest, ModelListRequest:
		// message field, if present, is ignored
	default:
		return ClientMessage{}, protoErr("unknown message type: %q", raw.Type)
	}

	return ClientMessage{Type: ClientMessageType(raw.Type), Message: raw.Message}, nil
}

// ContextInfo is the reply payload for a context_request: six counts
// describing the current conversation's shape.
type ContextInfo struct {
	System        int `json:"system"`
	Tools         int `json:"tools"`
	User          int `json:"user"`
	Assistant     int `json:"assistant"`
	ToolResults   int `json:"tool_results"`
	ContextWindow int `json:"context_window"`
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// every value passed to marshal is a fixed local struct; a failure
		// here means a programming error, not a runtime condition to
		// recover from.
		panic(fmt.Sprintf("protocol: marshal failed: %v", err))
	}
	return b
}

// UserMessage echoes a prompt/steer text back to all clients so late
// arrivals see what was sent.
func UserMessage(message string) []byte {
	return marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"user_message", message})
}

// ContextInfoMessage replies to a context_request.
func ContextInfoMessage(info ContextInfo) []byte {
	return marshal(struct {
		Type string `json:"type"`
		ContextInfo
	}{"context_info", info})
}

// ModelListMessage replies to a model_list_request.
func ModelListMessage(models []string, current string) []byte {
	return marshal(struct {
		Type    string   `json:"type"`
		Models  []string `json:"models"`
		Current string   `json:"current"`
	}{"model_list", models, current})
}

// ModelSetMessage announces a successful model switch.
func ModelSetMessage(model string) []byte {
	return marshal(struct {
		Type  string `json:"type"`
		Model string `json:"model"`
	}{"model_set", model})
}

// ReloadStartMessage announces a hot-reload beginning.
func ReloadStartMessage() []byte {
	return marshal(struct {
		Type string `json:"type"`
	}{"reload_start"})
}

// ReloadEndMessage announces a hot-reload's outcome.
func ReloadEndMessage(success bool, message string) []byte {
	return marshal(struct {
		Type    string `json:"type"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{"reload_end", success, message})
}

// ErrorMessage reports a protocol or runtime error to a client.
func ErrorMessage(message string) []byte {
	return marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", message})
}
