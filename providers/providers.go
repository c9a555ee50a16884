// Package providers maps the hub configuration onto model clients.
//
// A provider contributes its models only when its credentials are
// configured, so the registry lists exactly the models a turn can use.
package providers

import (
	"context"
	"errors"
	"slices"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agenthub/config"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/model"
	"github.com/hupe1980/agenthub/model/anthropic"
	"github.com/hupe1980/agenthub/model/gemini"
	"github.com/hupe1980/agenthub/model/openai"
	"github.com/hupe1980/agenthub/safety"
)

// ErrNoProviders is returned when no provider has credentials.
var ErrNoProviders = errors.New("no model provider configured (set OPENAI_API_KEY, AZURE_OPENAI_API_KEY, GROQ_API_KEY, OLLAMA_MODEL, ANTHROPIC_API_KEY or GEMINI_API_KEY)")

// Model ids.
const (
	GPT4oMini      = "gpt-4o-mini"
	GPT4o          = "gpt-4o"
	AzureGPT4o     = "azure-gpt-4o"
	AzureGPT4oMini = "azure-gpt-4o-mini"
	Llama31_8B     = "llama-3.1-8b-instant"
	Llama33_70B    = "llama-3.3-70b-versatile"
	LlamaGuard4    = "meta-llama/llama-guard-4-12b"
	Ollama         = "ollama"
	Claude35Sonnet = "claude-3-5-sonnet"
	Gemini20Flash  = "gemini-2.0-flash"
)

const defaultTemperature = 0.5

// Entries returns the model table for the configured providers.
func Entries(cfg *config.Config) []model.Entry {
	p := cfg.Providers
	var entries []model.Entry

	if p.OpenAI.APIKey != "" {
		for _, id := range []string{GPT4oMini, GPT4o} {
			entries = append(entries, openAIEntry(id, "OpenAI "+id, func(o *openai.Options) {
				o.Model = id
				o.APIKey = p.OpenAI.APIKey
				o.BaseURL = p.OpenAI.BaseURL
			}))
		}
	}

	if p.Azure.APIKey != "" && p.Azure.Endpoint != "" {
		for _, id := range []string{AzureGPT4o, AzureGPT4oMini} {
			deployment, ok := p.Azure.Deployments[id]
			if !ok {
				continue
			}
			entries = append(entries, openAIEntry(id, "Azure OpenAI deployment "+deployment, func(o *openai.Options) {
				o.Model = deployment
				o.Provider = "azure"
				o.APIKey = p.Azure.APIKey
				o.AzureEndpoint = p.Azure.Endpoint
				o.AzureAPIVersion = p.Azure.APIVersion
			}))
		}
	}

	if p.Groq.APIKey != "" {
		for _, id := range []string{Llama31_8B, Llama33_70B, LlamaGuard4} {
			temperature := defaultTemperature
			if id == LlamaGuard4 {
				temperature = 0
			}
			entries = append(entries, openAIEntry(id, "Groq "+id, func(o *openai.Options) {
				o.Model = id
				o.Provider = "groq"
				o.Temperature = temperature
				o.APIKey = p.Groq.APIKey
				o.BaseURL = p.Groq.BaseURL
			}))
		}
	}

	if p.Ollama.Model != "" {
		entries = append(entries, openAIEntry(Ollama, "Ollama "+p.Ollama.Model, func(o *openai.Options) {
			o.Model = p.Ollama.Model
			o.Provider = "ollama"
			// ollama ignores the key; a placeholder keeps OPENAI_API_KEY out of requests
			o.APIKey = "ollama"
			o.BaseURL = p.Ollama.BaseURL
		}))
	}

	if p.Anthropic.APIKey != "" {
		entries = append(entries, model.Entry{
			ID:          Claude35Sonnet,
			Description: "Anthropic Claude 3.5 Sonnet",
			Factory: func() (model.Model, error) {
				return anthropic.NewModel(func(o *anthropic.Options) {
					o.Model = anthropicsdk.ModelClaude3_5Sonnet20241022
					o.APIKey = p.Anthropic.APIKey
				}), nil
			},
		})
	}

	if p.Gemini.APIKey != "" {
		entries = append(entries, model.Entry{
			ID:          Gemini20Flash,
			Description: "Google Gemini 2.0 Flash",
			Factory: func() (model.Model, error) {
				return gemini.NewModel(context.Background(), func(o *gemini.Options) {
					o.Model = Gemini20Flash
					o.APIKey = p.Gemini.APIKey
				})
			},
		})
	}

	return entries
}

func openAIEntry(id, description string, fn func(o *openai.Options)) model.Entry {
	return model.Entry{
		ID:          id,
		Description: description,
		Factory: func() (model.Model, error) {
			return openai.NewModel(fn), nil
		},
	}
}

// NewRegistry builds the model registry. The configured default model is
// used when available, otherwise the first chat model.
func NewRegistry(cfg *config.Config) (*model.Registry, error) {
	entries := Entries(cfg)

	var chat []string
	for _, e := range entries {
		if e.ID != LlamaGuard4 {
			chat = append(chat, e.ID)
		}
	}
	if len(chat) == 0 {
		return nil, ErrNoProviders
	}

	defaultID := chat[0]
	if slices.Contains(chat, cfg.DefaultModel) {
		defaultID = cfg.DefaultModel
	}

	return model.NewRegistry(entries, func(o *model.RegistryOptions) { o.DefaultID = defaultID })
}

// NewClassifier returns the Llama Guard classifier when safety is enabled.
// Without a usable guard model every classification fails with
// core.ErrClassificationUnavailable, so turns abort instead of passing
// unchecked. AllowAll is returned only when safety is disabled.
func NewClassifier(cfg *config.Config, models *model.Registry, logger logging.Logger) safety.Classifier {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if !cfg.Safety.Enabled {
		return safety.AllowAll{}
	}

	guardOpts := func(o *safety.LlamaGuardOptions) {
		o.Timeout = cfg.GetSafetyTimeout()
		o.Logger = logger
	}

	if models == nil || !models.Has(cfg.Safety.Model) {
		logger.Warn("safety.guard.unavailable", "model", cfg.Safety.Model)
		return safety.NewLlamaGuard(nil, guardOpts)
	}

	m, err := models.Get(cfg.Safety.Model)
	if err != nil {
		logger.Warn("safety.guard.unavailable", "model", cfg.Safety.Model, "error", err.Error())
		return safety.NewLlamaGuard(nil, guardOpts)
	}

	return safety.NewLlamaGuard(m, guardOpts)
}
