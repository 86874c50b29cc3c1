package engines

import (
	"fmt"
	"log"
	"sync"

	"google.golang.org/api/option"

	"foodbot/api/internal/analyzer"
	"foodbot/api/internal/config"
	"foodbot/api/internal/llm"
	"foodbot/api/internal/llm/anthropic"
	"foodbot/api/internal/llm/gemini"
	"foodbot/api/internal/llm/ollama"
	"foodbot/api/internal/llm/openai"
)

// Build creates one analyzer per enabled provider and returns them keyed by
// provider name, with cfg.Provider as the default.
func Build(cfg *config.Config) (*analyzer.Registry, error) {
	opts := []analyzer.Option{
		analyzer.WithDescribePrompt(cfg.DescribePrompt),
		analyzer.WithSystemInstruction(cfg.SystemInstruction),
	}
	var list []*analyzer.Analyzer
	for _, name := range cfg.Enabled() {
		eng, mc, err := engineFor(cfg, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		a, err := analyzer.New(eng, mc, opts...)
		if err != nil {
			return nil, err
		}
		log.Printf("engine %s ready (vision=%s text=%s)", name, mc.VisionModel, mc.TextModel)
		list = append(list, a)
	}
	return analyzer.NewRegistry(cfg.Provider, list...)
}

func engineFor(cfg *config.Config, name string) (llm.Engine, analyzer.ModelConfig, error) {
	model := func(p config.ProviderConfig) analyzer.ModelConfig {
		return analyzer.ModelConfig{Provider: name, APIKey: p.APIKey, VisionModel: p.VisionModel, TextModel: p.TextModel}
	}
	switch name {
	case config.ProviderGroq:
		return openai.NewGroq(cfg.Groq.APIKey, cfg.Groq.BaseURL), model(cfg.Groq), nil
	case config.ProviderOpenAI:
		return openai.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL), model(cfg.OpenAI), nil
	case config.ProviderGemini:
		var opts []option.ClientOption
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, option.WithEndpoint(cfg.Gemini.BaseURL))
		}
		return gemini.New(cfg.Gemini.APIKey, opts...), model(cfg.Gemini), nil
	case config.ProviderAnthropic:
		return anthropic.New(cfg.Anthropic.APIKey), model(cfg.Anthropic), nil
	case config.ProviderOllama:
		eng, err := ollama.New(cfg.Ollama.Host, nil)
		if err != nil {
			return nil, analyzer.ModelConfig{}, err
		}
		return eng, analyzer.ModelConfig{
			Provider:    name,
			VisionModel: cfg.Ollama.VisionModel,
			TextModel:   cfg.Ollama.TextModel,
		}, nil
	}
	return nil, analyzer.ModelConfig{}, fmt.Errorf("unsupported provider")
}

// Manager remembers which provider each chat picked. Chats that never
// picked one get the registry default.
type Manager struct {
	reg *analyzer.Registry
	m   sync.Map // chatID -> *analyzer.Analyzer
}

func NewManager(reg *analyzer.Registry) *Manager {
	return &Manager{reg: reg}
}

func (m *Manager) Registry() *analyzer.Registry { return m.reg }

func (m *Manager) Get(chatID int64) *analyzer.Analyzer {
	if v, ok := m.m.Load(chatID); ok {
		return v.(*analyzer.Analyzer)
	}
	a, _ := m.reg.Get("")
	return a
}

// Set switches the chat to the named provider.
func (m *Manager) Set(chatID int64, name string) (*analyzer.Analyzer, error) {
	a, err := m.reg.Get(name)
	if err != nil {
		return nil, err
	}
	m.m.Store(chatID, a)
	return a, nil
}
