package agents

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func render(verbose bool, lines ...string) string {
	var buf bytes.Buffer
	r := NewConsoleRenderer(&buf, verbose)
	for _, l := range lines {
		r.Render(ParseEvent([]byte(l)))
	}
	return buf.String()
}

func TestConsoleRenderer(t *testing.T) {
	assistant := `{"type":"assistant","message":{"content":[{"type":"text","text":"Planning now"},{"type":"tool_use","name":"Read","input":{"file_path":"specs/a.md"}}]}}`
	toolResult := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t","content":"file body"}]}}`
	result := `{"type":"result","result":"All done","duration_ms":42,"num_turns":3,"cost_usd":0.5}`
	system := `{"type":"system","subtype":"init"}`

	t.Run("quiet", func(t *testing.T) {
		out := render(false, system, assistant, toolResult, result, "garbage")
		assert.Contains(t, out, "Planning now")
		assert.Contains(t, out, "→ Read: specs/a.md")
		assert.Contains(t, out, "All done")
		assert.NotContains(t, out, "file body")
		assert.NotContains(t, out, "[system]")
		assert.Contains(t, out, "garbage")
		assert.NotContains(t, out, "Turns:")
	})

	t.Run("verbose", func(t *testing.T) {
		out := render(true, system, assistant, toolResult, result, "garbage")
		assert.Contains(t, out, "[system] init")
		assert.Contains(t, out, "← file body")
		assert.Contains(t, out, "garbage")
		assert.Contains(t, out, "Duration: 42ms")
		assert.Contains(t, out, "Cost: $0.5000")
		assert.Contains(t, out, "Turns: 3")
	})
}

func TestConsoleRendererPassesThroughText(t *testing.T) {
	out := render(false, "Error: API rate limit exceeded, retry later", `{"type":"mystery","x":1}`)
	assert.Contains(t, out, "Error: API rate limit exceeded, retry later")
	assert.NotContains(t, out, "mystery")

	out = render(true, `{"type":"mystery","x":1}`)
	assert.Contains(t, out, "[mystery]")
}

func TestConsoleRendererTruncatesBash(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"` + string(long) + `"}}]}}`
	out := render(false, line)
	assert.Contains(t, out, "...")
	assert.Less(t, len(out), 150)
}

func TestIsTerminalNonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
