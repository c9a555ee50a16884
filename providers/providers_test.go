package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/config"
	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/safety"
)

func ids(cfg *config.Config) []string {
	out := []string{}
	for _, e := range Entries(cfg) {
		out = append(out, e.ID)
	}
	return out
}

func TestEntries_OnlyConfiguredProviders(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Empty(t, ids(cfg))

	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Providers.Groq.APIKey = "gsk-test"
	cfg.Providers.Ollama.Model = "llama3.2"
	assert.Equal(t, []string{GPT4oMini, GPT4o, Llama31_8B, Llama33_70B, LlamaGuard4, Ollama}, ids(cfg))

	cfg.Providers.Azure.APIKey = "az"
	assert.NotContains(t, ids(cfg), AzureGPT4o, "azure needs an endpoint")
	cfg.Providers.Azure.Endpoint = "https://example.openai.azure.com"
	assert.Contains(t, ids(cfg), AzureGPT4o)
	assert.Contains(t, ids(cfg), AzureGPT4oMini)

	cfg.Providers.Anthropic.APIKey = "ant"
	cfg.Providers.Gemini.APIKey = "gem"
	all := ids(cfg)
	assert.Equal(t, []string{Claude35Sonnet, Gemini20Flash}, all[len(all)-2:])
}

func TestNewRegistry_Default(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewRegistry(cfg)
	assert.ErrorIs(t, err, ErrNoProviders)

	cfg.Providers.Groq.APIKey = "gsk-test"
	reg, err := NewRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, Llama31_8B, reg.Default(), "gpt-4o-mini is unavailable")

	cfg.DefaultModel = Llama33_70B
	reg, err = NewRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, Llama33_70B, reg.Default())

	m, err := reg.Get(LlamaGuard4)
	require.NoError(t, err)
	assert.Equal(t, "groq", m.Info().Provider)
}

func TestNewRegistry_GuardIsNeverDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DefaultModel = LlamaGuard4
	cfg.Providers.Groq.APIKey = "gsk-test"

	reg, err := NewRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, Llama31_8B, reg.Default())
}

func TestNewClassifier(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.OpenAI.APIKey = "sk-test"
	reg, err := NewRegistry(cfg)
	require.NoError(t, err)

	unavailable := NewClassifier(cfg, reg, nil)
	require.IsType(t, &safety.LlamaGuard{}, unavailable, "guard model unavailable")
	_, err = unavailable.Classify(context.Background(), safety.User, []core.Message{core.NewHumanMessage("hi")})
	assert.ErrorIs(t, err, core.ErrClassificationUnavailable)

	cfg.Providers.Groq.APIKey = "gsk-test"
	reg, err = NewRegistry(cfg)
	require.NoError(t, err)
	assert.IsType(t, &safety.LlamaGuard{}, NewClassifier(cfg, reg, nil))

	cfg.Safety.Enabled = false
	assert.IsType(t, safety.AllowAll{}, NewClassifier(cfg, reg, nil))
}
