package openai

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/llm"
)

const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// Engine talks to any OpenAI-compatible chat completions endpoint.
// Groq and OpenAI differ only in name and base URL.
type Engine struct {
	name   string
	APIKey string
	client *openai.Client
}

func New(name, apiKey, baseURL string) *Engine {
	return NewWithHTTPClient(name, apiKey, baseURL, defaultHTTPClient())
}

func NewGroq(apiKey, baseURL string) *Engine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = GroqBaseURL
	}
	return New("groq", apiKey, baseURL)
}

func NewOpenAI(apiKey, baseURL string) *Engine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = OpenAIBaseURL
	}
	return New("openai", apiKey, baseURL)
}

func NewWithHTTPClient(name, apiKey, baseURL string, httpc *http.Client) *Engine {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpc != nil {
		cfg.HTTPClient = httpc
	}
	return &Engine{
		name:   name,
		APIKey: strings.TrimSpace(apiKey),
		client: openai.NewClientWithConfig(cfg),
	}
}

func defaultHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// vision calls can take a while before the first byte
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	// Timeout=0: the request context bounds the call.
	return &http.Client{Timeout: 0, Transport: tr}
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", &llm.Error{Kind: llm.ErrAuthentication, Provider: e.name, Err: errors.New("API key is empty")}
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	cr := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toMessages(req.Messages),
	}
	if req.Temperature != nil {
		cr.Temperature = temperature(*req.Temperature)
	}

	resp, err := e.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return "", e.classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.EmptyResponse(e.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// temperature maps a requested value onto the wire. The client drops a zero
// temperature from the JSON body, so zero is sent as the smallest positive float.
func temperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func toMessages(in []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		msg := openai.ChatCompletionMessage{Role: string(m.Role)}
		if m.TextOnly() {
			msg.Content = m.JoinedText()
			out = append(out, msg)
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			case llm.PartImage:
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: imagecodec.DataURL(imageMIME(p.MIMEType), p.Data),
					},
				})
			}
		}
		msg.MultiContent = parts
		out = append(out, msg)
	}
	return out
}

func imageMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	switch m {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return m
	case "image/jpg":
		return "image/jpeg"
	}
	return imagecodec.MIMEJPEG
}

func (e *Engine) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return llm.FromStatus(e.name, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llm.FromStatus(e.name, reqErr.HTTPStatusCode, err)
	}
	return llm.FromTransport(e.name, err)
}
