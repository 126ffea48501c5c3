// Package events defines the tagged event variants emitted by the turn loop
// and their wire serialization. Events are a closed set: new variants extend
// the Type enum rather than going through dynamic dispatch, the same way
// provider.StreamEvent discriminates on a Type field instead of an interface
// hierarchy.
package events

import (
	"encoding/json"
	"fmt"
)

// Type discriminates an Event's variant. The string value is the wire-level
// "type" discriminator, already in the snake_case the protocol expects.
type Type string

const (
	TurnStart       Type = "turn_start"
	TextDelta       Type = "text_delta"
	ToolStart       Type = "tool_start"
	ToolEnd         Type = "tool_end"
	TurnEnd         Type = "turn_end"
	AgentEnd        Type = "agent_end"
	CompactionStart Type = "compaction_start"
	CompactionEnd   Type = "compaction_end"
	Error           Type = "error"
	ModelInfo       Type = "model_info"
	CanvasUpdate    Type = "canvas_update"
)

// ModelEntry is one catalog entry reported by a model_info event.
type ModelEntry struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

// Event is the tagged union emitted by the turn loop. Only the fields
// relevant to Type are populated by the constructors below, and only those
// fields are emitted by MarshalJSON — the zero value of an unrelated field
// never leaks onto the wire.
type Event struct {
	Type Type

	// text_delta
	Delta string

	// tool_start, tool_end
	ToolName string
	CallID   string
	Args     json.RawMessage // tool_start only
	Result   string          // tool_end only
	IsError  bool            // tool_end only

	// compaction_end
	Summary      string
	TokensBefore int

	// error, and compaction_end on failure
	Message string

	// model_info
	Models []ModelEntry

	// canvas_update
	HTML string
	URL  string
}

func NewTurnStart() Event { return Event{Type: TurnStart} }
func NewTurnEnd() Event   { return Event{Type: TurnEnd} }
func NewAgentEnd() Event  { return Event{Type: AgentEnd} }

func NewTextDelta(delta string) Event {
	return Event{Type: TextDelta, Delta: delta}
}

func NewToolStart(toolName, callID string, args json.RawMessage) Event {
	return Event{Type: ToolStart, ToolName: toolName, CallID: callID, Args: args}
}

func NewToolEnd(toolName, callID, result string, isError bool) Event {
	return Event{Type: ToolEnd, ToolName: toolName, CallID: callID, Result: result, IsError: isError}
}

func NewCompactionStart() Event {
	return Event{Type: CompactionStart}
}

func NewCompactionEnd(summary string, tokensBefore int) Event {
	return Event{Type: CompactionEnd, Summary: summary, TokensBefore: tokensBefore}
}

func NewCompactionEndError(message string) Event {
	return Event{Type: CompactionEnd, Message: message}
}

func NewError(message string) Event {
	return Event{Type: Error, Message: message}
}

func NewModelInfo(models []ModelEntry) Event {
	return Event{Type: ModelInfo, Models: models}
}

func NewCanvasUpdate(html, url string) Event {
	return Event{Type: CanvasUpdate, HTML: html, URL: url}
}

// MarshalJSON emits only the fields relevant to the event's Type, keyed by
// the variant's field names in snake_case.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TurnStart, TurnEnd, AgentEnd, CompactionStart:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{e.Type})

	case TextDelta:
		return json.Marshal(struct {
			Type  Type   `json:"type"`
			Delta string `json:"delta"`
		}{e.Type, e.Delta})

	case ToolStart:
		args := e.Args
		if args == nil {
			args = json.RawMessage("{}")
		}
		return json.Marshal(struct {
			Type     Type            `json:"type"`
			ToolName string          `json:"tool_name"`
			CallID   string          `json:"call_id"`
			Args     json.RawMessage `json:"args"`
		}{e.Type, e.ToolName, e.CallID, args})

	case ToolEnd:
		return json.Marshal(struct {
			Type     Type   `json:"type"`
			ToolName string `json:"tool_name"`
			CallID   string `json:"call_id"`
			Result   string `json:"result"`
			IsError  bool   `json:"is_error"`
		}{e.Type, e.ToolName, e.CallID, e.Result, e.IsError})

	case CompactionEnd:
		if e.Message != "" {
			return json.Marshal(struct {
				Type    Type   `json:"type"`
				Message string `json:"message"`
			}{e.Type, e.Message})
		}
		return json.Marshal(struct {
			Type         Type   `json:"type"`
			Summary      string `json:"summary"`
			TokensBefore int    `json:"tokens_before"`
		}{e.Type, e.Summary, e.TokensBefore})

	case Error:
		return json.Marshal(struct {
			Type    Type   `json:"type"`
			Message string `json:"message"`
		}{e.Type, e.Message})

	case ModelInfo:
		models := e.Models
		if models == nil {
			models = []ModelEntry{}
		}
		return json.Marshal(struct {
			Type   Type         `json:"type"`
			Models []ModelEntry `json:"models"`
		}{e.Type, models})

	case CanvasUpdate:
		return json.Marshal(struct {
			Type Type   `json:"type"`
			HTML string `json:"html"`
			URL  string `json:"url"`
		}{e.Type, e.HTML, e.URL})

	default:
		return nil, fmt.Errorf("events: unknown event type %q", e.Type)
	}
}

// UnmarshalJSON reconstructs an Event from its wire form. Unknown fields are
// ignored so forward-compatible readers can add new variants.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type         Type            `json:"type"`
		Delta        string          `json:"delta"`
		ToolName     string          `json:"tool_name"`
		CallID       string          `json:"call_id"`
		Args         json.RawMessage `json:"args"`
		Result       string          `json:"result"`
		IsError      bool            `json:"is_error"`
		Summary      string          `json:"summary"`
		TokensBefore int             `json:"tokens_before"`
		Message      string          `json:"message"`
		Models       []ModelEntry    `json:"models"`
		HTML         string          `json:"html"`
		URL          string          `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{
		Type:         raw.Type,
		Delta:        raw.Delta,
		ToolName:     raw.ToolName,
		CallID:       raw.CallID,
		Args:         raw.Args,
		Result:       raw.Result,
		IsError:      raw.IsError,
		Summary:      raw.Summary,
		TokensBefore: raw.TokensBefore,
		Message:      raw.Message,
		Models:       raw.Models,
		HTML:         raw.HTML,
		URL:          raw.URL,
	}
	return nil
}
