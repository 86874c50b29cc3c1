package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/llm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ModelConfig is fixed for the lifetime of an Analyzer.
type ModelConfig struct {
	Provider    string `validate:"required"`
	APIKey      string `validate:"required_unless=Provider ollama"`
	VisionModel string `validate:"required"`
	TextModel   string `validate:"required"`
}

// Validate checks that the identifiers (and, for hosted providers, the
// credential) are present.
func (c ModelConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("model config %q: missing %s", c.Provider, strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// Result is the outcome of one end-to-end run.
type Result struct {
	Description string        `json:"description"`
	Analysis    string        `json:"analysis"`
	Provider    string        `json:"provider"`
	VisionModel string        `json:"vision_model"`
	TextModel   string        `json:"text_model"`
	ImageMIME   string        `json:"image_mime"`
	Elapsed     time.Duration `json:"-"`
}

// Analyzer turns a food photo into a nutritional assessment with two
// sequential model calls. It holds no per-call state and is safe for
// concurrent use.
type Analyzer struct {
	eng            llm.Engine
	cfg            ModelConfig
	describePrompt string
	system         string
}

type Option func(*Analyzer)

func WithDescribePrompt(p string) Option {
	return func(a *Analyzer) {
		if s := strings.TrimSpace(p); s != "" {
			a.describePrompt = s
		}
	}
}

func WithSystemInstruction(p string) Option {
	return func(a *Analyzer) {
		if s := strings.TrimSpace(p); s != "" {
			a.system = s
		}
	}
}

func New(eng llm.Engine, cfg ModelConfig, opts ...Option) (*Analyzer, error) {
	if eng == nil {
		return nil, errors.New("analyzer: engine is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		eng:            eng,
		cfg:            cfg,
		describePrompt: DefaultDescribePrompt,
		system:         DefaultSystemInstruction,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

func (a *Analyzer) Config() ModelConfig { return a.cfg }

func (a *Analyzer) Name() string { return a.cfg.Provider }

func (a *Analyzer) DescribePrompt() string { return a.describePrompt }

// DescribeImage asks the vision model to describe a base64 image. The
// payload is embedded as is; sampling is pinned to temperature zero.
func (a *Analyzer) DescribeImage(ctx context.Context, base64Image, instruction string) (string, error) {
	req := llm.Request{
		Model: a.cfg.VisionModel,
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleUser,
				llm.Text(instruction),
				llm.ImageBase64(imagecodec.MIMEOfBase64(base64Image), base64Image),
			),
		},
		Temperature: llm.Float32(0),
	}
	return a.eng.Complete(ctx, req)
}

// AnalyzeDescription asks the text model for a nutritional assessment of a
// description. The system instruction always comes first; the provider's
// default temperature applies.
func (a *Analyzer) AnalyzeDescription(ctx context.Context, description string) (string, error) {
	req := llm.Request{
		Model: a.cfg.TextModel,
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleSystem, llm.Text(a.system)),
			llm.NewMessage(llm.RoleUser, llm.Text(description)),
		},
	}
	return a.eng.Complete(ctx, req)
}

// Analyze runs both stages on raw image bytes with the configured describe
// prompt. When the first stage fails the second one is not attempted.
func (a *Analyzer) Analyze(ctx context.Context, image []byte) (Result, error) {
	return a.AnalyzeWithPrompt(ctx, image, "")
}

// AnalyzeWithPrompt is Analyze with a caller-supplied describe prompt. A
// blank prompt falls back to the configured one.
func (a *Analyzer) AnalyzeWithPrompt(ctx context.Context, image []byte, prompt string) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = a.describePrompt
	}
	start := time.Now()
	res := Result{
		Provider:    a.cfg.Provider,
		VisionModel: a.cfg.VisionModel,
		TextModel:   a.cfg.TextModel,
	}

	log.Printf("[%s] encoding image to base64 (%d bytes)", a.cfg.Provider, len(image))
	b64 := imagecodec.Encode(image)
	res.ImageMIME = imagecodec.MIMEOfBase64(b64)

	log.Printf("[%s] describing image with %s", a.cfg.Provider, a.cfg.VisionModel)
	desc, err := a.DescribeImage(ctx, b64, prompt)
	if err != nil {
		log.Printf("[%s] describe failed: %v", a.cfg.Provider, err)
		return res, err
	}
	res.Description = desc
	log.Printf("[%s] image description ready (%d chars)", a.cfg.Provider, len(desc))

	analysis, err := a.AnalyzeDescription(ctx, desc)
	if err != nil {
		log.Printf("[%s] nutritional analysis failed: %v", a.cfg.Provider, err)
		return res, err
	}
	res.Analysis = analysis
	res.Elapsed = time.Since(start)
	log.Printf("[%s] nutritional analysis finished in %s", a.cfg.Provider, res.Elapsed.Round(time.Millisecond))
	return res, nil
}
