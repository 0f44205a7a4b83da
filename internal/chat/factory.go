package chat

import (
	"fmt"
	"os"
	"strings"

	"github.com/codescope/codescope/internal/config"
)

// NewProvider creates the generation provider selected by cfg.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch strings.ToLower(cfg.Chat.Provider) {
	case "ollama", "":
		return NewOllamaProvider(cfg.Embeddings.OllamaHost, cfg.Chat.Model), nil
	case "openai":
		model := cfg.Chat.Model
		// The shared default names an Ollama model; let the provider pick
		// its own.
		if model == DefaultOllamaModel {
			model = ""
		}
		return NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), cfg.Embeddings.OpenAIBaseURL, model)
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", cfg.Chat.Provider)
	}
}
