package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"foodbot/api/internal/llm"
)

const okReply = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-x",
"content":[{"type":"text","text":"a red apple on a wooden table"}],
"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":7}}`

func newEngine(t *testing.T, status int, reply string, calls *int, body *map[string]any) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		raw, _ := io.ReadAll(r.Body)
		if body != nil {
			_ = json.Unmarshal(raw, body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return New("secret", option.WithBaseURL(srv.URL), option.WithHTTPClient(srv.Client()))
}

func TestCompleteSendsSystemAndImage(t *testing.T) {
	var calls int
	var body map[string]any
	e := newEngine(t, http.StatusOK, okReply, &calls, &body)

	got, err := e.Complete(context.Background(), llm.Request{
		Model: "claude-x",
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleSystem, llm.Text("nutrition expert")),
			llm.NewMessage(llm.RoleUser, llm.Text("describe"), llm.ImageBase64("image/png", "iVBORw0KGgo=")),
		},
		Temperature: llm.Float32(0),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "a red apple on a wooden table" {
		t.Fatalf("got %q", got)
	}

	sys, ok := body["system"].([]any)
	if !ok || len(sys) != 1 {
		t.Fatalf("system = %v", body["system"])
	}
	if temp, ok := body["temperature"].(float64); !ok || temp != 0 {
		t.Fatalf("temperature = %v", body["temperature"])
	}
	msgs := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("system message must not be sent as a turn: %d messages", len(msgs))
	}
	content := msgs[0].(map[string]any)["content"].([]any)
	img := content[1].(map[string]any)
	if img["type"] != "image" {
		t.Fatalf("image block type = %v", img["type"])
	}
	src := img["source"].(map[string]any)
	if src["media_type"] != "image/png" || src["data"] != "iVBORw0KGgo=" {
		t.Fatalf("image source = %v", src)
	}
}

func TestCompleteErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, llm.ErrAuthentication},
		{http.StatusBadRequest, llm.ErrInvalidInput},
		{http.StatusTooManyRequests, llm.ErrTransient},
		{http.StatusInternalServerError, llm.ErrTransient},
	}
	for _, tc := range cases {
		var calls int
		e := newEngine(t, tc.status, `{"type":"error","error":{"type":"x","message":"nope"}}`, &calls, nil)
		_, err := e.Complete(context.Background(), llm.Request{
			Model:    "claude-x",
			Messages: []llm.Message{llm.NewMessage(llm.RoleUser, llm.Text("hi"))},
		})
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
		if calls != 1 {
			t.Errorf("status %d: %d calls, retries must be disabled", tc.status, calls)
		}
	}
}

func TestCompleteNoTextBlock(t *testing.T) {
	var calls int
	e := newEngine(t, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-x",
"content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`, &calls, nil)
	_, err := e.Complete(context.Background(), llm.Request{
		Model:    "claude-x",
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, llm.Text("hi"))},
	})
	if !errors.Is(err, llm.ErrUnknownResponse) {
		t.Fatalf("got %v, want ErrUnknownResponse", err)
	}
}

func TestCompleteOnlySystem(t *testing.T) {
	e := New("secret")
	_, err := e.Complete(context.Background(), llm.Request{
		Model:    "claude-x",
		Messages: []llm.Message{llm.NewMessage(llm.RoleSystem, llm.Text("only system"))},
	})
	if !errors.Is(err, llm.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}
