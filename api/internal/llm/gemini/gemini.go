package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/llm"
)

// reasonKeyInvalid is the ErrorInfo reason Gemini attaches to a 400 when the
// API key is wrong.
const reasonKeyInvalid = "API_KEY_INVALID"

// Engine calls the Gemini REST API through the genai client.
//
// The client retries 503 responses with backoff for up to ten minutes, so
// callers must bound ctx with a deadline.
type Engine struct {
	APIKey string
	opts   []option.ClientOption
}

func New(apiKey string, opts ...option.ClientOption) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		opts:   opts,
	}
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", &llm.Error{Kind: llm.ErrAuthentication, Provider: e.Name(), Err: errors.New("GEMINI_API_KEY is empty")}
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	system, turns := req.SplitSystem()
	if len(turns) == 0 {
		return "", llm.InvalidInput(e.Name(), errors.New("no user message"))
	}
	contents, err := toContents(turns)
	if err != nil {
		return "", llm.InvalidInput(e.Name(), err)
	}

	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)...)
	if err != nil {
		return "", e.classify(err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(req.Model))
	if m == nil {
		return "", llm.InvalidInput(e.Name(), fmt.Errorf("model %q is nil", req.Model))
	}
	if req.Temperature != nil {
		m.GenerationConfig = genai.GenerationConfig{Temperature: ptrFloat32(*req.Temperature)}
	}
	if len(system) > 0 {
		parts := make([]genai.Part, 0, len(system))
		for _, s := range system {
			parts = append(parts, genai.Text(s))
		}
		m.SystemInstruction = &genai.Content{Parts: parts}
	}

	last := contents[len(contents)-1]
	var resp *genai.GenerateContentResponse
	if len(contents) == 1 {
		resp, err = m.GenerateContent(ctx, last.Parts...)
	} else {
		cs := m.StartChat()
		cs.History = contents[:len(contents)-1]
		resp, err = cs.SendMessage(ctx, last.Parts...)
	}
	if err != nil {
		return "", e.classify(err)
	}
	txt, ok := firstText(resp)
	if !ok {
		return "", llm.EmptyResponse(e.Name())
	}
	return txt, nil
}

func toContents(turns []llm.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(turns))
	for i, m := range turns {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		parts := make([]genai.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				parts = append(parts, genai.Text(p.Text))
			case llm.PartImage:
				data, err := imagecodec.Decode(p.Data)
				if err != nil {
					return nil, fmt.Errorf("message %d: bad base64 image: %w", i, err)
				}
				mime := p.MIMEType
				if mime == "" {
					mime = imagecodec.MIMEJPEG
				}
				parts = append(parts, genai.Blob{MIMEType: mime, Data: data})
			}
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out, nil
}

// firstText returns the text of the first candidate.
func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

func (e *Engine) classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return llm.InvalidInput(e.Name(), err)
	}
	if ae, ok := apierror.FromError(err); ok && ae.Reason() == reasonKeyInvalid {
		return &llm.Error{Kind: llm.ErrAuthentication, Provider: e.Name(), Status: max(ae.HTTPCode(), 0), Err: err}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return llm.FromStatus(e.Name(), gerr.Code, err)
	}
	return llm.FromTransport(e.Name(), err)
}

func ptrFloat32(v float32) *float32 { return &v }
