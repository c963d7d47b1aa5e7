package resolver

import (
	"testing"

	"wisp/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestResolveProviderScan(t *testing.T) {
	settings := models.Settings{
		Providers: []models.ProviderConfig{
			{Provider: "Gemini", Key: "g-key", Models: "gemini-2.0-flash"},
		},
	}

	assert.Equal(t, models.ProviderUnknown, ResolveProvider(settings, "gpt-x"))

	settings.Providers[0].Models = "gemini-2.0-flash,gpt-x"
	assert.Equal(t, models.ProviderGemini, ResolveProvider(settings, "gpt-x"))
}

func TestResolveProviderFirstMatchWins(t *testing.T) {
	settings := models.Settings{
		Providers: []models.ProviderConfig{
			{Provider: "Ollama", Key: "", Models: "llama3.2, shared-model"},
			{Provider: "Groq", Key: "gk", Models: "shared-model"},
		},
	}
	assert.Equal(t, models.ProviderOllama, ResolveProvider(settings, "shared-model"))
}

func TestResolveProviderActiveOverride(t *testing.T) {
	settings := models.Settings{
		Providers: []models.ProviderConfig{
			{Provider: "OpenRouter", Key: "or-key", Models: "gpt-oss-120b"},
		},
		ActiveModel:    "gpt-oss-120b",
		ActiveProvider: "Google Gemini",
	}

	// The active pair is trusted over the scan and display names
	// normalize to canonical ids.
	assert.Equal(t, models.ProviderGemini, ResolveProvider(settings, "gpt-oss-120b"))

	// A different model ignores the override and falls back to the scan.
	assert.Equal(t, models.ProviderUnknown, ResolveProvider(settings, "other-model"))
}

func TestResolveKey(t *testing.T) {
	settings := models.Settings{
		Providers: []models.ProviderConfig{
			{Provider: "Ollama", Key: "first-key", Models: "llama3.2"},
			{Provider: "Groq", Key: "groq-key", Models: "mixtral, qwen-32b"},
		},
	}

	assert.Equal(t, "groq-key", ResolveKey(settings, "qwen-32b"))
	// No match falls back to the first configured provider's key.
	assert.Equal(t, "first-key", ResolveKey(settings, "unconfigured-model"))
}

func TestResolveKeyActiveOverride(t *testing.T) {
	settings := models.Settings{
		Providers: []models.ProviderConfig{
			{Provider: "Ollama", Key: "ollama-key", Models: "llama3.2"},
			{Provider: "Groq", Key: "groq-key", Models: "llama3.2"},
		},
		ActiveModel:    "llama3.2",
		ActiveProvider: "groq",
	}
	// Case-insensitive match against the configured provider name.
	assert.Equal(t, "groq-key", ResolveKey(settings, "llama3.2"))
}

func TestResolveKeyNoProviders(t *testing.T) {
	assert.Equal(t, "", ResolveKey(models.Settings{}, "anything"))
	assert.Equal(t, models.ProviderUnknown, ResolveProvider(models.Settings{}, "anything"))
}

func TestNormalizeProvider(t *testing.T) {
	assert.Equal(t, models.ProviderGemini, models.NormalizeProvider("Google Gemini"))
	assert.Equal(t, models.ProviderGemini, models.NormalizeProvider("gemini"))
	assert.Equal(t, models.ProviderOllama, models.NormalizeProvider(" Ollama "))
	assert.Equal(t, models.ProviderHuggingFace, models.NormalizeProvider("HuggingFace"))
	assert.Equal(t, models.ProviderUnknown, models.NormalizeProvider("mystery-cloud"))
}
