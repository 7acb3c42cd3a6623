package assistant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/wppbot/internal/conversation"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel       = "llama3-70b-8192"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 150

	DefaultSystemPrompt = "Você é um assistente virtual da Zynapse, uma empresa de automação comercial. " +
		"Seja cordial, profissional e conciso. Limite suas respostas a 3-4 frases no máximo. " +
		"Ofereça ajuda sobre produtos de automação comercial, atendimento ao cliente e agendamento de demonstrações."

	DefaultFallbackMessage = "Desculpe, estou com dificuldades para processar sua solicitação no momento. " +
		"Por favor, tente novamente mais tarde ou entre em contato com nosso suporte."

	MinMaxTokens  = 50
	MaxMaxTokens  = 500
	MaxWindowSize = 100
)

// Profile is the per-session assistant configuration stored in assistant.yaml.
type Profile struct {
	Model           string  `yaml:"model"`
	SystemPrompt    string  `yaml:"system_prompt"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	WindowSize      int     `yaml:"window_size"`
	FallbackMessage string  `yaml:"fallback_message"`
}

// DefaultProfile returns the profile written on first start.
func DefaultProfile() Profile {
	return Profile{
		Model:           DefaultModel,
		SystemPrompt:    DefaultSystemPrompt,
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
		WindowSize:      conversation.DefaultWindowSize,
		FallbackMessage: DefaultFallbackMessage,
	}
}

// Validate checks every field against its allowed range.
func (p Profile) Validate() error {
	switch {
	case strings.TrimSpace(p.Model) == "":
		return &conversation.ValidationError{Field: "model", Reason: "must not be empty"}
	case strings.TrimSpace(p.SystemPrompt) == "":
		return &conversation.ValidationError{Field: "system_prompt", Reason: "must not be empty"}
	case p.Temperature < 0 || p.Temperature > 1:
		return &conversation.ValidationError{Field: "temperature", Reason: "must be between 0 and 1"}
	case p.MaxTokens < MinMaxTokens || p.MaxTokens > MaxMaxTokens:
		return &conversation.ValidationError{
			Field:  "max_tokens",
			Reason: fmt.Sprintf("must be between %d and %d", MinMaxTokens, MaxMaxTokens),
		}
	case p.WindowSize < 1 || p.WindowSize > MaxWindowSize:
		return &conversation.ValidationError{
			Field:  "window_size",
			Reason: fmt.Sprintf("must be between 1 and %d", MaxWindowSize),
		}
	case strings.TrimSpace(p.FallbackMessage) == "":
		return &conversation.ValidationError{Field: "fallback_message", Reason: "must not be empty"}
	}
	return nil
}

// LoadProfile reads a profile from path. Fields missing from the file keep
// their defaults. A missing file yields the default profile and os.ErrNotExist.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, err
		}
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return DefaultProfile(), fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return DefaultProfile(), err
	}
	return p, nil
}

// SaveProfile writes p to path atomically.
func SaveProfile(path string, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".assistant-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}
