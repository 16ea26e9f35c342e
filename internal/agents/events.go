package agents

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Event is one decoded line of the agent's stream-json output. The set of
// implementations is closed; lines that are not JSON or carry an unknown
// type decode to UnknownEvent.
type Event interface {
	// Type returns the stream discriminator, e.g. "assistant".
	Type() string
	isEvent()
}

// SystemEvent carries session metadata such as the init record.
type SystemEvent struct {
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
}

// ContentBlock is a block inside an assistant message.
type ContentBlock struct {
	Kind  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// IsText reports whether the block is assistant text.
func (b ContentBlock) IsText() bool { return b.Kind == "text" }

// IsToolUse reports whether the block is a tool invocation.
func (b ContentBlock) IsToolUse() bool { return b.Kind == "tool_use" }

// AssistantEvent is a model turn: text and tool invocations.
type AssistantEvent struct {
	Blocks []ContentBlock
}

// ToolResult is the output of a tool invocation fed back to the model.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// ToolResultEvent is the "user" turn carrying tool results.
type ToolResultEvent struct {
	Results []ToolResult
}

// ResultMessage is the final summary the agent emits before exiting.
type ResultMessage struct {
	Subtype    string  `json:"subtype,omitempty"`
	IsError    bool    `json:"is_error"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	NumTurns   int     `json:"num_turns,omitempty"`
	Result     string  `json:"result,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	TotalCost  float64 `json:"total_cost_usd,omitempty"`
	SessionID  string  `json:"session_id,omitempty"`
}

// Cost returns the reported cost, preferring cost_usd over total_cost_usd.
func (m ResultMessage) Cost() float64 {
	if m.CostUSD != 0 {
		return m.CostUSD
	}
	return m.TotalCost
}

// ResultEvent wraps the final result line.
type ResultEvent struct {
	ResultMessage
}

// ContentBlockEvent covers the content_block_start, _delta and _stop
// framing used when partial messages are streamed.
type ContentBlockEvent struct {
	Kind  string
	Index int
	Block *ContentBlock
	Text  string
}

// UnknownEvent preserves a line that could not be classified.
type UnknownEvent struct {
	Kind string
	Raw  string
}

func (SystemEvent) Type() string         { return "system" }
func (AssistantEvent) Type() string      { return "assistant" }
func (ToolResultEvent) Type() string     { return "user" }
func (ResultEvent) Type() string         { return "result" }
func (e ContentBlockEvent) Type() string { return e.Kind }
func (e UnknownEvent) Type() string {
	if e.Kind == "" {
		return "unknown"
	}
	return e.Kind
}

func (SystemEvent) isEvent()       {}
func (AssistantEvent) isEvent()    {}
func (ToolResultEvent) isEvent()   {}
func (ResultEvent) isEvent()       {}
func (ContentBlockEvent) isEvent() {}
func (UnknownEvent) isEvent()      {}

type envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type messageBody struct {
	Content json.RawMessage `json:"content"`
}

type toolResultBlock struct {
	Kind      string          `json:"type"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

type contentBlockFrame struct {
	Index        int           `json:"index"`
	ContentBlock *ContentBlock `json:"content_block"`
	Delta        *struct {
		Kind        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
}

// ParseEvent decodes one line. It never fails: malformed input yields an
// UnknownEvent holding the raw text.
func ParseEvent(line []byte) Event {
	line = bytes.TrimSpace(line)
	raw := string(line)

	var env envelope
	if len(line) == 0 || json.Unmarshal(line, &env) != nil {
		return UnknownEvent{Raw: raw}
	}

	switch env.Type {
	case "system":
		var e SystemEvent
		if json.Unmarshal(line, &e) != nil {
			return UnknownEvent{Kind: env.Type, Raw: raw}
		}
		return e
	case "assistant":
		var blocks []ContentBlock
		if body, ok := decodeBody(env.Message); ok {
			_ = json.Unmarshal(body.Content, &blocks)
		}
		return AssistantEvent{Blocks: blocks}
	case "user":
		return ToolResultEvent{Results: decodeToolResults(env.Message)}
	case "result":
		var e ResultEvent
		if json.Unmarshal(line, &e.ResultMessage) != nil {
			return UnknownEvent{Kind: env.Type, Raw: raw}
		}
		return e
	case "content_block_start", "content_block_delta", "content_block_stop":
		var f contentBlockFrame
		if json.Unmarshal(line, &f) != nil {
			return UnknownEvent{Kind: env.Type, Raw: raw}
		}
		e := ContentBlockEvent{Kind: env.Type, Index: f.Index, Block: f.ContentBlock}
		if f.Delta != nil {
			e.Text = f.Delta.Text
			if e.Text == "" {
				e.Text = f.Delta.PartialJSON
			}
		}
		return e
	default:
		return UnknownEvent{Kind: env.Type, Raw: raw}
	}
}

func decodeBody(msg json.RawMessage) (messageBody, bool) {
	var body messageBody
	if len(msg) == 0 || json.Unmarshal(msg, &body) != nil {
		return body, false
	}
	return body, true
}

func decodeToolResults(msg json.RawMessage) []ToolResult {
	body, ok := decodeBody(msg)
	if !ok {
		return nil
	}
	var blocks []toolResultBlock
	if json.Unmarshal(body.Content, &blocks) != nil {
		return nil
	}
	var results []ToolResult
	for _, b := range blocks {
		if b.Kind != "tool_result" {
			continue
		}
		results = append(results, ToolResult{
			ToolUseID: b.ToolUseID,
			Content:   rawText(b.Content),
			IsError:   b.IsError,
		})
	}
	return results
}

// rawText flattens tool result content, which is either a string or a list
// of text blocks.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var value any
	if json.Unmarshal(raw, &value) != nil {
		return string(raw)
	}
	return textFromContent(value)
}

// textFromContent extracts text from a string, a text block or a list of
// either.
func textFromContent(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
	case []any:
		var parts []string
		for _, item := range v {
			if text := textFromContent(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// toolDetail picks the most useful input field for a one-line preview.
func toolDetail(name string, input json.RawMessage) string {
	var fields map[string]any
	if len(input) == 0 || json.Unmarshal(input, &fields) != nil {
		return ""
	}
	key := ""
	switch name {
	case "Bash":
		key = "command"
	case "Read", "Write", "Edit", "MultiEdit", "NotebookEdit":
		key = "file_path"
	case "Glob", "Grep":
		key = "pattern"
	case "Task":
		key = "description"
	case "WebFetch":
		key = "url"
	case "WebSearch":
		key = "query"
	}
	if key == "" {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}
