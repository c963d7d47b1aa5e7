package models

import (
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultChatTitle is the placeholder a chat carries until its first
// user message derives a real title.
const DefaultChatTitle = "New Chat"

// Message is one turn in a conversation. Model and Provider are only
// set on assistant messages.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Model     string    `json:"model,omitempty"`
	Provider  string    `json:"provider,omitempty"`
}

// Chat is one persisted conversation. Messages are in insertion order
// and are only ever appended to or spliced, never reordered.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate a working copy
// without aliasing the persisted record's message slice.
func (c Chat) Clone() Chat {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// ProviderConfig is one configured provider row. Models is a
// comma-separated list of model names enabled for the provider.
type ProviderConfig struct {
	Provider string `json:"Provider"`
	Key      string `json:"Key"`
	Models   string `json:"Models"`
}

type Settings struct {
	Providers      []ProviderConfig `json:"providers"`
	ActiveModel    string           `json:"activeModel,omitempty"`
	ActiveProvider string           `json:"activeProvider,omitempty"`
}

// ProviderID is a canonical lowercase provider identifier.
type ProviderID string

const (
	ProviderOllama      ProviderID = "ollama"
	ProviderGemini      ProviderID = "gemini"
	ProviderOpenRouter  ProviderID = "openrouter"
	ProviderGroq        ProviderID = "groq"
	ProviderHuggingFace ProviderID = "huggingface"

	// ProviderUnknown is the sentinel for a display name that maps to
	// no known provider. It is a valid value, not an error.
	ProviderUnknown ProviderID = "unknown"
)

// NormalizeProvider collapses a provider display name to its canonical
// identifier. "Google Gemini" and "Gemini" both normalize to gemini.
func NormalizeProvider(name string) ProviderID {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ollama":
		return ProviderOllama
	case "gemini", "google gemini":
		return ProviderGemini
	case "openrouter":
		return ProviderOpenRouter
	case "groq":
		return ProviderGroq
	case "huggingface":
		return ProviderHuggingFace
	default:
		return ProviderUnknown
	}
}
