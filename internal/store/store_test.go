package store

import (
	"path/filepath"
	"testing"
	"time"

	"wisp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wisp.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	chat, err := s.Create("")
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, models.DefaultChatTitle, chat.Title)
	assert.Empty(t, chat.Messages)
	assert.False(t, chat.CreatedAt.IsZero())

	got, ok := s.Get(chat.ID)
	require.True(t, ok)
	assert.Equal(t, chat.ID, got.ID)
	assert.Equal(t, chat.Title, got.Title)

	_, ok = s.Get("no-such-chat")
	assert.False(t, ok)
}

func TestAppendMessageDerivesTitleOnce(t *testing.T) {
	s := newTestStore(t)
	chat, err := s.Create("")
	require.NoError(t, err)

	updated, ok, err := s.AppendMessage(chat.ID, models.Message{
		Role:    models.RoleUser,
		Content: "short",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "short", updated.Title)
	require.Len(t, updated.Messages, 1)
	assert.NotEmpty(t, updated.Messages[0].ID)
	assert.False(t, updated.Messages[0].CreatedAt.IsZero())

	// A later user message must not retitle the chat.
	updated, ok, err = s.AppendMessage(chat.ID, models.Message{
		Role:    models.RoleUser,
		Content: "a much longer follow-up question",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "short", updated.Title)
}

func TestAppendMessageTruncatesLongTitle(t *testing.T) {
	s := newTestStore(t)
	chat, err := s.Create("")
	require.NoError(t, err)

	updated, ok, err := s.AppendMessage(chat.ID, models.Message{
		Role:    models.RoleUser,
		Content: "this message is far longer than fifteen characters",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "this message is...", updated.Title)
}

func TestAppendMessageAssistantDoesNotTitle(t *testing.T) {
	s := newTestStore(t)
	chat, err := s.Create("")
	require.NoError(t, err)

	updated, ok, err := s.AppendMessage(chat.ID, models.Message{
		Role:     models.RoleAssistant,
		Content:  "hello there",
		Model:    "gemma3",
		Provider: "ollama",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.DefaultChatTitle, updated.Title)
	assert.Equal(t, "gemma3", updated.Messages[0].Model)
	assert.Equal(t, "ollama", updated.Messages[0].Provider)
}

func TestAppendMessageRejectsEmptyAndMissing(t *testing.T) {
	s := newTestStore(t)
	chat, err := s.Create("")
	require.NoError(t, err)

	_, ok, err := s.AppendMessage(chat.ID, models.Message{Role: models.RoleUser})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.AppendMessage("missing", models.Message{Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.Get(chat.ID)
	assert.Empty(t, got.Messages)
}

func TestListSortedByRecency(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	clock := base
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := s.Create("")
	require.NoError(t, err)
	second, err := s.Create("")
	require.NoError(t, err)

	chats := s.List()
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID)

	// Touching the older chat moves it to the front.
	_, ok, err := s.AppendMessage(first.ID, models.Message{Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)
	require.True(t, ok)

	chats = s.List()
	require.Len(t, chats, 2)
	assert.Equal(t, first.ID, chats[0].ID)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	chat, err := s.Create("")
	require.NoError(t, err)

	assert.True(t, s.Delete(chat.ID))
	assert.False(t, s.Delete(chat.ID))
	_, ok := s.Get(chat.ID)
	assert.False(t, ok)
}

func TestUpdateRewritesMessages(t *testing.T) {
	s := newTestStore(t)
	chat, err := s.Create("")
	require.NoError(t, err)

	for _, content := range []string{"one", "two"} {
		_, ok, err := s.AppendMessage(chat.ID, models.Message{Role: models.RoleUser, Content: content})
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, _ := s.Get(chat.ID)
	got.Messages = got.Messages[:1]
	updated, err := s.Update(got)
	require.NoError(t, err)
	assert.Len(t, updated.Messages, 1)

	reloaded, _ := s.Get(chat.ID)
	require.Len(t, reloaded.Messages, 1)
	assert.Equal(t, "one", reloaded.Messages[0].Content)
}

func TestUpdateFailurePropagates(t *testing.T) {
	s := newTestStore(t)
	chat, err := s.Create("")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = s.Update(chat)
	assert.Error(t, err)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, models.Settings{}, s.LoadSettings())

	settings := models.Settings{
		Providers: []models.ProviderConfig{
			{Provider: "Ollama", Key: "", Models: "gemma3,llama3.2"},
			{Provider: "OpenRouter", Key: "sk-or-abc", Models: "gpt-oss-120b"},
		},
		ActiveModel:    "gemma3",
		ActiveProvider: "Ollama",
	}
	require.NoError(t, s.SaveSettings(settings))
	assert.Equal(t, settings, s.LoadSettings())

	settings.ActiveModel = "llama3.2"
	require.NoError(t, s.SaveSettings(settings))
	assert.Equal(t, "llama3.2", s.LoadSettings().ActiveModel)
}
