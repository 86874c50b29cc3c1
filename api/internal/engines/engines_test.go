package engines

import (
	"reflect"
	"testing"

	"foodbot/api/internal/config"
)

func TestBuildEnabledProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = config.ProviderOpenAI
	cfg.Groq.APIKey = "gsk"
	cfg.OpenAI.APIKey = "sk"
	cfg.Anthropic.APIKey = "ak"
	cfg.Ollama.Host = "http://127.0.0.1:11434"
	cfg.DescribePrompt = "o que é isto?"

	reg, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := []string{"anthropic", "groq", "ollama", "openai"}; !reflect.DeepEqual(reg.Names(), want) {
		t.Fatalf("names = %v, want %v", reg.Names(), want)
	}
	def, err := reg.Get("")
	if err != nil || def.Name() != "openai" {
		t.Fatalf("default = %v, %v", def, err)
	}
	if def.DescribePrompt() != "o que é isto?" {
		t.Fatalf("describe prompt override not applied")
	}
	groq, _ := reg.Get("groq")
	if groq.Config().VisionModel != "llama-3.2-11b-vision-preview" {
		t.Fatalf("groq config = %+v", groq.Config())
	}
	oll, _ := reg.Get("ollama")
	if oll.Config().APIKey != "" || oll.Config().VisionModel != "llava" {
		t.Fatalf("ollama config = %+v", oll.Config())
	}
}

func TestBuildDefaultNotEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error: default groq has no key")
	}
}

func TestBuildMissingModel(t *testing.T) {
	cfg := config.Default()
	cfg.Groq.APIKey = "gsk"
	cfg.Groq.TextModel = ""
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error for missing text model")
	}
}

func TestManagerPerChat(t *testing.T) {
	cfg := config.Default()
	cfg.Groq.APIKey = "gsk"
	cfg.Gemini.APIKey = "gk"
	reg, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(reg)
	if got := m.Get(1).Name(); got != "groq" {
		t.Fatalf("default = %s", got)
	}
	if _, err := m.Set(1, "gemini"); err != nil {
		t.Fatal(err)
	}
	if got := m.Get(1).Name(); got != "gemini" {
		t.Fatalf("chat 1 = %s", got)
	}
	if got := m.Get(2).Name(); got != "groq" {
		t.Fatalf("chat 2 = %s", got)
	}
	if _, err := m.Set(2, "anthropic"); err == nil {
		t.Fatalf("unconfigured provider accepted")
	}
	if got := m.Get(2).Name(); got != "groq" {
		t.Fatalf("failed switch must keep the previous choice, got %s", got)
	}
}
