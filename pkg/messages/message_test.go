package messages

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestConstructors(t *testing.T) {
	sys := System("be brief")
	assert.Equal(t, RoleSystem, sys.Role)
	assert.Equal(t, "be brief", sys.Content.Text())

	user := User("describe", Image("data:image/png;base64,AAAA"))
	assert.Equal(t, RoleUser, user.Role)
	require.Len(t, user.Content.Parts, 2)
	assert.Equal(t, Text("describe"), user.Content.Parts[0])

	plainUser := User("hi")
	assert.Equal(t, "hi", plainUser.Content.Content)
	assert.Nil(t, plainUser.Content.Parts)

	call := AssistantToolCalls("", ToolCallData{ID: "1", Name: "search", Arguments: json.RawMessage(`{"q":"x"}`)})
	assert.Equal(t, RoleAssistant, call.Role)
	require.Len(t, call.ToolCalls, 1)

	resp := ToolResponse("1", "search", `{"hits":3}`, false)
	assert.Equal(t, RoleTool, resp.Role)
	assert.Equal(t, "1", resp.ToolCallID)
	assert.Equal(t, "search", resp.ToolName)
}

func TestHasImages(t *testing.T) {
	assert.False(t, HasImages([]Message{System("x"), User("y")}))
	assert.True(t, HasImages([]Message{User("y", Image("http://x/y.png"))}))
}

func TestMessage_MarshalJSON(t *testing.T) {
	msg := AssistantToolCalls("", ToolCallData{ID: "1", Name: "search", Arguments: json.RawMessage(`{"q":"x"}`)})
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	assert.Equal(t, "assistant", gjson.GetBytes(data, "role").String())
	assert.Equal(t, "search", gjson.GetBytes(data, "tool_calls.0.name").String())
	assert.Equal(t, "x", gjson.GetBytes(data, "tool_calls.0.arguments.q").String())
}
