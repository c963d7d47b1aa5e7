package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"wisp/internal/models"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// CatalogModel is one entry from a provider's model listing.
type CatalogModel struct {
	Name     string
	Provider models.ProviderID
}

// Catalog reads are best-effort: every failure degrades to an empty
// list and a log line, never an error to the caller.

// OllamaModels lists locally installed Ollama models.
func (c *Client) OllamaModels(ctx context.Context) []CatalogModel {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ollamaURL+"/api/tags", nil)
	if err != nil {
		return nil
	}
	resp, err := c.catalog.Do(req)
	if err != nil {
		c.log.Warn("ollama catalog unavailable", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("ollama catalog returned error", zap.Int("status", resp.StatusCode))
		return nil
	}

	var listing struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		c.log.Warn("decoding ollama catalog", zap.Error(err))
		return nil
	}

	out := make([]CatalogModel, 0, len(listing.Models))
	for _, m := range listing.Models {
		out = append(out, CatalogModel{Name: m.Name, Provider: models.ProviderOllama})
	}
	return out
}

// GeminiModels lists models available to the given Gemini API key.
func (c *Client) GeminiModels(ctx context.Context, apiKey string) []CatalogModel {
	if apiKey == "" {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		c.log.Warn("creating gemini client", zap.Error(err))
		return nil
	}

	page, err := client.Models.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		c.log.Warn("gemini catalog unavailable", zap.Error(err))
		return nil
	}

	out := make([]CatalogModel, 0, len(page.Items))
	for _, m := range page.Items {
		name := strings.TrimPrefix(m.Name, "models/")
		out = append(out, CatalogModel{Name: name, Provider: models.ProviderGemini})
	}
	return out
}

// OpenRouterModels lists the OpenRouter catalog, which speaks the
// OpenAI models API.
func (c *Client) OpenRouterModels(ctx context.Context, apiKey string) []CatalogModel {
	return c.openAIStyleModels(ctx, "https://openrouter.ai/api/v1", apiKey, models.ProviderOpenRouter)
}

// GroqModels lists the Groq catalog via its OpenAI-compatible API.
func (c *Client) GroqModels(ctx context.Context, apiKey string) []CatalogModel {
	if apiKey == "" {
		return nil
	}
	return c.openAIStyleModels(ctx, "https://api.groq.com/openai/v1", apiKey, models.ProviderGroq)
}

func (c *Client) openAIStyleModels(ctx context.Context, baseURL, apiKey string, provider models.ProviderID) []CatalogModel {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(c.catalog),
	)

	page, err := client.Models.List(ctx)
	if err != nil {
		c.log.Warn("model catalog unavailable", zap.String("base_url", baseURL), zap.Error(err))
		return nil
	}

	out := make([]CatalogModel, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, CatalogModel{Name: m.ID, Provider: provider})
	}
	return out
}
