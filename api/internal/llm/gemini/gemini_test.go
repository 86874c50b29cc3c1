package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"foodbot/api/internal/llm"
)

func TestToContents(t *testing.T) {
	turns := []llm.Message{
		llm.NewMessage(llm.RoleUser, llm.Text("describe"), llm.ImageBase64("image/png", "iVBORw0KGgo=")),
		llm.NewMessage(llm.RoleAssistant, llm.Text("an apple")),
	}
	got, err := toContents(turns)
	if err != nil {
		t.Fatalf("toContents: %v", err)
	}
	if len(got) != 2 || got[0].Role != "user" || got[1].Role != "model" {
		t.Fatalf("unexpected roles: %+v", got)
	}
	if _, ok := got[0].Parts[0].(genai.Text); !ok {
		t.Fatalf("first part should be text, got %T", got[0].Parts[0])
	}
	blob, ok := got[0].Parts[1].(genai.Blob)
	if !ok {
		t.Fatalf("second part should be a blob, got %T", got[0].Parts[1])
	}
	if blob.MIMEType != "image/png" || len(blob.Data) != 8 {
		t.Fatalf("blob = %s, %d bytes", blob.MIMEType, len(blob.Data))
	}
}

func TestToContentsBadImage(t *testing.T) {
	_, err := toContents([]llm.Message{
		llm.NewMessage(llm.RoleUser, llm.ImageBase64("", "%%%")),
	})
	if err == nil {
		t.Fatalf("expected error for undecodable image")
	}
}

func TestFirstText(t *testing.T) {
	if _, ok := firstText(nil); ok {
		t.Fatalf("nil response must not yield text")
	}
	if _, ok := firstText(&genai.GenerateContentResponse{}); ok {
		t.Fatalf("no candidates must not yield text")
	}
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("Aproximadamente "), genai.Text("95 kcal")}}},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("other")}}},
	}}
	got, ok := firstText(resp)
	if !ok || got != "Aproximadamente 95 kcal" {
		t.Fatalf("firstText = %q, %v", got, ok)
	}
}

func TestClassify(t *testing.T) {
	e := New("key")
	cases := []struct {
		err  error
		want error
	}{
		{&googleapi.Error{Code: 403}, llm.ErrAuthentication},
		{&googleapi.Error{Code: 400}, llm.ErrInvalidInput},
		{&googleapi.Error{Code: 429}, llm.ErrTransient},
		{context.DeadlineExceeded, llm.ErrTransient},
		{&genai.BlockedError{}, llm.ErrInvalidInput},
	}
	for i, tc := range cases {
		if got := e.classify(tc.err); !errors.Is(got, tc.want) {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	_, err := New("").Complete(context.Background(), llm.Request{
		Model:    "gemini-2.5-flash",
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, llm.Text("hi"))},
	})
	if !errors.Is(err, llm.ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication", err)
	}
}

type capturedBody struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MimeType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
	GenerationConfig *struct {
		Temperature *float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type capture struct {
	mu     sync.Mutex
	path   string
	bodies []capturedBody
}

func (c *capture) last() capturedBody {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodies[len(c.bodies)-1]
}

// newServer answers every generate call with status and body and records
// the decoded request.
func newServer(t *testing.T, status int, body string, c *capture) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var b capturedBody
		if err := json.Unmarshal(raw, &b); err != nil {
			t.Errorf("request body: %v", err)
		}
		c.mu.Lock()
		c.path = r.URL.Path
		c.bodies = append(c.bodies, b)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return New("key", option.WithEndpoint(srv.URL), option.WithHTTPClient(srv.Client()))
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

const okStream = `[{"candidates":[{"content":{"role":"model","parts":[{"text":"Aproximadamente "},{"text":"95 kcal"}]}}]}]`

func TestCompleteVisionRequest(t *testing.T) {
	var c capture
	e := newServer(t, http.StatusOK, okStream, &c)
	zero := float32(0)

	got, err := e.Complete(ctxWithTimeout(t), llm.Request{
		Model:       "gemini-2.5-flash",
		Temperature: &zero,
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleUser, llm.Text("describe"), llm.ImageBase64("image/png", "iVBORw0KGgo=")),
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Aproximadamente 95 kcal" {
		t.Fatalf("got %q", got)
	}
	if !strings.HasSuffix(c.path, "/models/gemini-2.5-flash:streamGenerateContent") {
		t.Fatalf("path = %s", c.path)
	}
	b := c.last()
	if b.GenerationConfig == nil || b.GenerationConfig.Temperature == nil || *b.GenerationConfig.Temperature != 0 {
		t.Fatalf("vision call must send temperature 0, got %+v", b.GenerationConfig)
	}
	if b.SystemInstruction != nil {
		t.Fatalf("unexpected system instruction %+v", b.SystemInstruction)
	}
	if len(b.Contents) != 1 || b.Contents[0].Role != "user" || len(b.Contents[0].Parts) != 2 {
		t.Fatalf("contents = %+v", b.Contents)
	}
	img := b.Contents[0].Parts[1].InlineData
	if img == nil || img.MimeType != "image/png" || img.Data != "iVBORw0KGgo=" {
		t.Fatalf("inline image = %+v", img)
	}
}

func TestCompleteTextRequestWithHistory(t *testing.T) {
	var c capture
	e := newServer(t, http.StatusOK, okStream, &c)

	_, err := e.Complete(ctxWithTimeout(t), llm.Request{
		Model: "gemini-2.5-flash",
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleSystem, llm.Text("seja um nutricionista")),
			llm.NewMessage(llm.RoleUser, llm.Text("uma maçã")),
			llm.NewMessage(llm.RoleAssistant, llm.Text("95 kcal")),
			llm.NewMessage(llm.RoleUser, llm.Text("e uma banana?")),
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	b := c.last()
	if b.SystemInstruction == nil || len(b.SystemInstruction.Parts) != 1 || b.SystemInstruction.Parts[0].Text != "seja um nutricionista" {
		t.Fatalf("system instruction = %+v", b.SystemInstruction)
	}
	if b.GenerationConfig != nil && b.GenerationConfig.Temperature != nil {
		t.Fatalf("text call must keep the default temperature, got %v", *b.GenerationConfig.Temperature)
	}
	var roles, texts []string
	for _, ct := range b.Contents {
		roles = append(roles, ct.Role)
		texts = append(texts, ct.Parts[0].Text)
	}
	if strings.Join(roles, ",") != "user,model,user" {
		t.Fatalf("roles = %v", roles)
	}
	if strings.Join(texts, "|") != "uma maçã|95 kcal|e uma banana?" {
		t.Fatalf("texts = %v", texts)
	}
}

func TestCompleteInvalidAPIKey(t *testing.T) {
	const body = `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT",
"details":[{"@type":"type.googleapis.com/google.rpc.ErrorInfo","reason":"API_KEY_INVALID","domain":"googleapis.com",
"metadata":{"service":"generativelanguage.googleapis.com"}}]}}`
	var c capture
	e := newServer(t, http.StatusBadRequest, body, &c)

	_, err := e.Complete(ctxWithTimeout(t), llm.Request{
		Model:    "gemini-2.5-flash",
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, llm.Text("hi"))},
	})
	if !errors.Is(err, llm.ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication", err)
	}
	if llm.KindOf(err) == llm.ErrInvalidInput {
		t.Fatalf("a rejected key must not be reported as invalid input")
	}
}

func TestCompleteBadRequest(t *testing.T) {
	const body = `{"error":{"code":400,"message":"Unable to process input image.","status":"INVALID_ARGUMENT"}}`
	var c capture
	e := newServer(t, http.StatusBadRequest, body, &c)

	_, err := e.Complete(ctxWithTimeout(t), llm.Request{
		Model:    "gemini-2.5-flash",
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, llm.Text("hi"))},
	})
	if !errors.Is(err, llm.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestCompleteNoCandidates(t *testing.T) {
	var c capture
	e := newServer(t, http.StatusOK, `[{"candidates":[]}]`, &c)

	_, err := e.Complete(ctxWithTimeout(t), llm.Request{
		Model:    "gemini-2.5-flash",
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, llm.Text("hi"))},
	})
	if !errors.Is(err, llm.ErrUnknownResponse) {
		t.Fatalf("got %v, want ErrUnknownResponse", err)
	}
}
