package inference

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedClient struct {
	reply string
	err   error
	calls int
	last  Request
}

func (c *cannedClient) Complete(ctx context.Context, req Request) (string, error) {
	c.calls += 1
	c.last = req
	return c.reply, c.err
}

type planReply struct {
	Steps []struct {
		StepId      int    `json:"step_id"`
		Description string `json:"description"`
	} `json:"steps"`
}

func TestCompleteJSONFencedReply(t *testing.T) {
	schemas := MustCompileSchemas()
	client := &cannedClient{reply: "Here is the plan:\n```json\n{\"steps\":[{\"step_id\":1,\"description\":\"draw\"}]}\n```"}

	var out planReply
	err := CompleteJSON(context.Background(), client, Request{Prompt: "plan"}, schemas.Plan, &out)
	require.NoError(t, err)
	assert.True(t, client.last.JSON, "CompleteJSON should request json output")
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "draw", out.Steps[0].Description)
}

func TestCompleteJSONSchemaMismatch(t *testing.T) {
	schemas := MustCompileSchemas()
	client := &cannedClient{reply: `{"evaluation": "perhaps"}`}

	var out map[string]interface{}
	err := CompleteJSON(context.Background(), client, Request{}, schemas.Evaluation, &out)
	assert.Error(t, err)
}

func TestCompleteJSONNoObject(t *testing.T) {
	client := &cannedClient{reply: "I cannot help with that"}
	var out map[string]interface{}
	err := CompleteJSON(context.Background(), client, Request{}, nil, &out)
	assert.Error(t, err)
}

func TestRateLimitedClientHonoursContext(t *testing.T) {
	inner := &cannedClient{reply: "ok"}
	limited := NewRateLimitedClient(inner, 1, 1)

	_, err := limited.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, Request{})
	assert.Error(t, err, "second call inside the same minute should have to wait beyond the deadline")
	assert.Equal(t, 1, inner.calls)
}

func TestAnthropicClientComplete(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"test-model",
			"content":[{"type":"text","text":"from "},{"type":"text","text":"the model"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient("key", "test-model", server.URL, 0)
	reply, err := client.Complete(context.Background(), Request{System: "be brief", Prompt: "hello", Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "from the model", reply)
	assert.Equal(t, "test-model", received["model"])
	assert.NotNil(t, received["system"])
}

func TestOpenAICompatibleClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"llama",
			"choices":[{"index":0,"message":{"role":"assistant","content":"groq says hi"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("key", "llama", server.URL)
	require.NoError(t, err)
	reply, err := client.Complete(context.Background(), Request{System: "s", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "groq says hi", reply)
}
