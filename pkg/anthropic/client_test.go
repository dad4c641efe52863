package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "first"},
			{Type: "text", Text: ""},
			{Type: "text", Text: "second"},
		},
	}
	assert.Equal(t, "first\nsecond", resp.Text())

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}

	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 1e-9)

	assert.Zero(t, usage.EstimateCost("unknown-model"))
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	})
	assert.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
}
