package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/llm"
)

const DefaultHost = "http://localhost:11434"

// Engine runs requests against a local Ollama server. It needs no credential.
type Engine struct {
	Host   string
	client *ollama.Client
}

func New(host string, httpc *http.Client) (*Engine, error) {
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	c := &http.Client{Timeout: 5 * time.Minute}
	if httpc != nil {
		cp := *httpc
		c = &cp
	}
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.Transport = statusTransport{base: base}
	return &Engine{Host: host, client: ollama.NewClient(u, c)}, nil
}

// emptyStatusError is an error status whose body is empty or not JSON. The
// client only reports statuses it finds while decoding the body, so these
// would otherwise look like an empty stream or a decode failure.
type emptyStatusError struct {
	StatusCode int
	Status     string
}

func (e *emptyStatusError) Error() string { return e.Status }

type statusTransport struct{ base http.RoundTripper }

func (t statusTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(r)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if b := bytes.TrimSpace(body); len(b) == 0 || !json.Valid(b) {
		return nil, &emptyStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (e *Engine) Name() string { return "ollama" }

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	msgs, err := toMessages(req.Messages)
	if err != nil {
		return "", llm.InvalidInput(e.Name(), err)
	}

	stream := false
	cr := &ollama.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   &stream,
	}
	if req.Temperature != nil {
		cr.Options = map[string]any{"temperature": float64(*req.Temperature)}
	}

	var text strings.Builder
	err = e.client.Chat(ctx, cr, func(r ollama.ChatResponse) error {
		text.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", e.classify(err)
	}
	if text.Len() == 0 {
		return "", llm.EmptyResponse(e.Name())
	}
	return text.String(), nil
}

func toMessages(in []llm.Message) ([]ollama.Message, error) {
	out := make([]ollama.Message, 0, len(in))
	for i, m := range in {
		msg := ollama.Message{Role: string(m.Role), Content: m.JoinedText()}
		for _, p := range m.Parts {
			if p.Type != llm.PartImage {
				continue
			}
			data, err := imagecodec.Decode(p.Data)
			if err != nil {
				return nil, fmt.Errorf("message %d: bad base64 image: %w", i, err)
			}
			msg.Images = append(msg.Images, ollama.ImageData(data))
		}
		out = append(out, msg)
	}
	return out, nil
}

func (e *Engine) classify(err error) error {
	var se ollama.StatusError
	if errors.As(err, &se) && se.StatusCode != 0 {
		return llm.FromStatus(e.Name(), se.StatusCode, err)
	}
	var ae ollama.AuthorizationError
	if errors.As(err, &ae) && ae.StatusCode != 0 {
		return llm.FromStatus(e.Name(), ae.StatusCode, err)
	}
	var ee *emptyStatusError
	if errors.As(err, &ee) {
		return llm.FromStatus(e.Name(), ee.StatusCode, err)
	}
	return llm.FromTransport(e.Name(), err)
}
