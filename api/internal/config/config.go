package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ProviderConfig holds the credential and the two model identifiers of a
// hosted provider.
type ProviderConfig struct {
	APIKey      string `yaml:"api_key" env:"API_KEY"`
	VisionModel string `yaml:"vision_model" env:"VISION_MODEL"`
	TextModel   string `yaml:"text_model" env:"TEXT_MODEL"`
	BaseURL     string `yaml:"base_url" env:"BASE_URL"`
}

type OllamaConfig struct {
	Host        string `yaml:"host" env:"HOST"`
	VisionModel string `yaml:"vision_model" env:"VISION_MODEL"`
	TextModel   string `yaml:"text_model" env:"TEXT_MODEL"`
}

type Config struct {
	Port           string        `yaml:"port" env:"PORT"`
	LogFile        string        `yaml:"log_file" env:"LOG_FILE"`
	Provider       string        `yaml:"llm_provider" env:"LLM_PROVIDER"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	Groq      ProviderConfig `yaml:"groq" envPrefix:"GROQ_"`
	OpenAI    ProviderConfig `yaml:"openai" envPrefix:"OPENAI_"`
	Gemini    ProviderConfig `yaml:"gemini" envPrefix:"GEMINI_"`
	Anthropic ProviderConfig `yaml:"anthropic" envPrefix:"ANTHROPIC_"`
	Ollama    OllamaConfig   `yaml:"ollama" envPrefix:"OLLAMA_"`

	DescribePrompt    string `yaml:"describe_prompt" env:"DESCRIBE_PROMPT"`
	SystemInstruction string `yaml:"system_instruction" env:"SYSTEM_INSTRUCTION"`

	TelegramBotToken string `yaml:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	WebhookURL       string `yaml:"webhook_url" env:"WEBHOOK_URL"`
	DatabaseURL      string `yaml:"database_url" env:"DATABASE_URL"`
	// HistoryRetention drops recorded analyses older than this at startup.
	// Zero keeps everything.
	HistoryRetention time.Duration `yaml:"history_retention" env:"HISTORY_RETENTION"`
}

func Default() *Config {
	return &Config{
		Port:           "8000",
		LogFile:        "LOGs_foodbot.log",
		Provider:       ProviderGroq,
		RequestTimeout: 180 * time.Second,
		Groq: ProviderConfig{
			VisionModel: "llama-3.2-11b-vision-preview",
			TextModel:   "llama-3.3-70b-versatile",
		},
		OpenAI: ProviderConfig{
			VisionModel: "gpt-4o-mini",
			TextModel:   "gpt-4o-mini",
		},
		Gemini: ProviderConfig{
			VisionModel: "gemini-2.5-flash",
			TextModel:   "gemini-2.5-flash",
		},
		Anthropic: ProviderConfig{
			VisionModel: "claude-3-5-haiku-latest",
			TextModel:   "claude-3-5-haiku-latest",
		},
		Ollama: OllamaConfig{
			VisionModel: "llava",
			TextModel:   "llama3.1",
		},
	}
}

// Read layers defaults, the optional YAML file and the environment, in that
// order. An empty path skips the file.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	return cfg, nil
}

// Load reads the file named by CONFIG_FILE (if any) and the environment.
// It exits the process on error.
func Load() *Config {
	cfg, err := Read(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Enabled lists the providers that have a credential (or, for Ollama, a
// host), in a fixed order.
func (c *Config) Enabled() []string {
	var out []string
	for _, p := range []struct {
		name string
		on   bool
	}{
		{ProviderGroq, c.Groq.APIKey != ""},
		{ProviderOpenAI, c.OpenAI.APIKey != ""},
		{ProviderGemini, c.Gemini.APIKey != ""},
		{ProviderAnthropic, c.Anthropic.APIKey != ""},
		{ProviderOllama, c.Ollama.Host != ""},
	} {
		if p.on {
			out = append(out, p.name)
		}
	}
	return out
}

func (c *Config) IsEnabled(name string) bool {
	for _, n := range c.Enabled() {
		if n == name {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT is empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.HistoryRetention < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_RETENTION must not be negative, got %s", c.HistoryRetention))
	}
	switch c.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderGemini, ProviderAnthropic, ProviderOllama:
		if !c.IsEnabled(c.Provider) {
			errs = append(errs, fmt.Errorf("LLM_PROVIDER=%s but %s is not set", c.Provider, credentialKey(c.Provider)))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider))
	}
	return errors.Join(errs...)
}

func credentialKey(provider string) string {
	if provider == ProviderOllama {
		return "OLLAMA_HOST"
	}
	return strings.ToUpper(provider) + "_API_KEY"
}
