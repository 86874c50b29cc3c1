package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/llm"
)

const defaultMaxTokens = 2048

// Engine implements llm.Engine over Anthropic's Messages API.
type Engine struct {
	APIKey    string
	MaxTokens int64
	client    *anthropic.Client
}

func New(apiKey string, opts ...option.RequestOption) *Engine {
	key := strings.TrimSpace(apiKey)
	base := []option.RequestOption{
		option.WithAPIKey(key),
		// failures surface to the caller unchanged
		option.WithMaxRetries(0),
	}
	cl := anthropic.NewClient(append(base, opts...)...)
	return &Engine{
		APIKey:    key,
		MaxTokens: defaultMaxTokens,
		client:    &cl,
	}
}

func (e *Engine) Name() string { return "anthropic" }

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", &llm.Error{Kind: llm.ErrAuthentication, Provider: e.Name(), Err: errors.New("ANTHROPIC_API_KEY is empty")}
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	system, turns := req.SplitSystem()
	if len(turns) == 0 {
		return "", llm.InvalidInput(e.Name(), errors.New("no user message"))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: e.MaxTokens,
		Messages:  toMessages(turns),
	}
	for _, s := range system {
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*req.Temperature))
	}

	msg, err := e.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
			return "", llm.FromStatus(e.Name(), apiErr.StatusCode, err)
		}
		return "", llm.FromTransport(e.Name(), err)
	}

	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			return tb.Text, nil
		}
	}
	return "", llm.EmptyResponse(e.Name())
}

func toMessages(turns []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			case llm.PartImage:
				mime := p.MIMEType
				if mime == "" {
					mime = imagecodec.MIMEJPEG
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(mime, p.Data))
			}
		}
		if m.Role == llm.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			continue
		}
		out = append(out, anthropic.NewUserMessage(blocks...))
	}
	return out
}
