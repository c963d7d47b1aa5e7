package controller

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"wisp/internal/client"
	"wisp/internal/models"
	"wisp/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func frame(content string) string {
	return fmt.Sprintf("data: {\"content\":%q}\n", content)
}

// replyBackend streams each reply chunk as one frame and closes.
func replyBackend(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			_, _ = w.Write([]byte(frame(chunk)))
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type harness struct {
	ctrl   *Controller
	store  *store.Store
	events chan Event
}

func newHarness(t *testing.T, backendURL string) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "wisp.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.SaveSettings(models.Settings{
		Providers: []models.ProviderConfig{
			{Provider: "Ollama", Key: "", Models: "llama3.2"},
		},
		ActiveModel:    "llama3.2",
		ActiveProvider: "Ollama",
	}))

	events := make(chan Event, 256)
	ctrl := New(st, client.New(backendURL, zap.NewNop()), zap.NewNop(), func(e Event) {
		events <- e
	})
	// Snapshot every frame so tests observe streaming progress.
	ctrl.consumer.SetFlushInterval(0)

	return &harness{ctrl: ctrl, store: st, events: events}
}

// waitFinished drains events until the generation terminates.
func (h *harness) waitFinished(t *testing.T) GenerationFinished {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-h.events:
			if fin, ok := e.(GenerationFinished); ok {
				return fin
			}
		case <-deadline:
			t.Fatal("generation did not finish")
		}
	}
}

// waitContent drains events until the current chat's last message
// carries the given content.
func (h *harness) waitContent(t *testing.T, content string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-h.events:
			if upd, ok := e.(ChatUpdated); ok && len(upd.Chat.Messages) > 0 {
				if upd.Chat.Messages[len(upd.Chat.Messages)-1].Content == content {
					return
				}
			}
		case <-deadline:
			t.Fatalf("never saw content %q", content)
		}
	}
}

func TestSendMessageFullTurn(t *testing.T) {
	backend := replyBackend(t, "Hel", "lo!")
	h := newHarness(t, backend.URL)

	h.ctrl.SendMessage("hi there")
	fin := h.waitFinished(t)
	require.NoError(t, fin.Err)
	assert.False(t, fin.Cancelled)

	chat, ok := h.ctrl.CurrentChat()
	require.True(t, ok)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, models.RoleUser, chat.Messages[0].Role)
	assert.Equal(t, "hi there", chat.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, chat.Messages[1].Role)
	assert.Equal(t, "Hello!", chat.Messages[1].Content)
	assert.Equal(t, "llama3.2", chat.Messages[1].Model)
	assert.Equal(t, "ollama", chat.Messages[1].Provider)

	// Persisted, not just in memory.
	stored, ok := h.store.Get(chat.ID)
	require.True(t, ok)
	assert.Len(t, stored.Messages, 2)
	assert.Equal(t, "hi there", stored.Title)
}

func TestSendMessageTwoTurns(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	h.ctrl.SendMessage("first")
	require.NoError(t, h.waitFinished(t).Err)
	h.ctrl.SendMessage("second")
	require.NoError(t, h.waitFinished(t).Err)

	chat, _ := h.ctrl.CurrentChat()
	require.Len(t, chat.Messages, 4)
	for i, role := range []string{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant} {
		assert.Equal(t, role, chat.Messages[i].Role, "position %d", i)
	}
}

func TestSendMessageEmptyIsNoOp(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	h.ctrl.SendMessage("")
	h.ctrl.SendMessage("   \n\t")

	assert.Empty(t, h.ctrl.Chats())
	_, ok := h.ctrl.CurrentChat()
	assert.False(t, ok)
	assert.Empty(t, h.events)
}

func TestSendMessageStreamsPlaceholderSnapshots(t *testing.T) {
	backend := replyBackend(t, "a", "b", "c")
	h := newHarness(t, backend.URL)

	h.ctrl.SendMessage("go")
	h.waitContent(t, "abc")
	h.waitFinished(t)
}

func TestCancellationPersistsPartial(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(frame("partial answer")))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	h := newHarness(t, server.URL)
	h.ctrl.SendMessage("question")
	h.waitContent(t, "partial answer")

	h.ctrl.StopInference()
	fin := h.waitFinished(t)
	assert.True(t, fin.Cancelled)

	chat, ok := h.ctrl.CurrentChat()
	require.True(t, ok)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "partial answer", chat.Messages[1].Content)
	assert.Equal(t, models.RoleAssistant, chat.Messages[1].Role)

	stored, _ := h.store.Get(chat.ID)
	assert.Len(t, stored.Messages, 2)
}

func TestStopInferenceIdle(t *testing.T) {
	backend := replyBackend(t, "x")
	h := newHarness(t, backend.URL)

	// Idempotent with no active generation.
	h.ctrl.StopInference()
	h.ctrl.StopInference()
}

func TestFailedRequestLeavesUserMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	h.ctrl.SendMessage("doomed")
	fin := h.waitFinished(t)
	require.Error(t, fin.Err)

	chat, ok := h.ctrl.CurrentChat()
	require.True(t, ok)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, models.RoleUser, chat.Messages[0].Role)
}

func TestEditAndResend(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	h.ctrl.SendMessage("first")
	require.NoError(t, h.waitFinished(t).Err)
	h.ctrl.SendMessage("second")
	require.NoError(t, h.waitFinished(t).Err)

	chat, _ := h.ctrl.CurrentChat()
	require.Len(t, chat.Messages, 4)

	// Editing the second user turn (position 2) drops positions >= 2
	// and replays the turn: final length is 2+2.
	h.ctrl.EditAndResendMessage(chat.Messages[2].ID, "second, reworded")
	require.NoError(t, h.waitFinished(t).Err)

	chat, _ = h.ctrl.CurrentChat()
	require.Len(t, chat.Messages, 4)
	assert.Equal(t, "first", chat.Messages[0].Content)
	assert.Equal(t, "second, reworded", chat.Messages[2].Content)
	assert.Equal(t, models.RoleAssistant, chat.Messages[3].Role)

	stored, _ := h.store.Get(chat.ID)
	assert.Len(t, stored.Messages, 4)
}

func TestEditAndResendUnknownMessage(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	h.ctrl.SendMessage("first")
	require.NoError(t, h.waitFinished(t).Err)

	h.ctrl.EditAndResendMessage("no-such-id", "whatever")

	chat, _ := h.ctrl.CurrentChat()
	assert.Len(t, chat.Messages, 2)
}

func TestDeleteMessagePair(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	h.ctrl.SendMessage("first")
	require.NoError(t, h.waitFinished(t).Err)
	h.ctrl.SendMessage("second")
	require.NoError(t, h.waitFinished(t).Err)

	chat, _ := h.ctrl.CurrentChat()
	require.Len(t, chat.Messages, 4)

	// Deleting the first user message takes its assistant reply along.
	h.ctrl.DeleteMessagePair(chat.Messages[0].ID)

	chat, _ = h.ctrl.CurrentChat()
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "second", chat.Messages[0].Content)

	// Deleting the remaining assistant message takes its user message.
	h.ctrl.DeleteMessagePair(chat.Messages[1].ID)

	chat, _ = h.ctrl.CurrentChat()
	assert.Empty(t, chat.Messages)

	stored, _ := h.store.Get(chat.ID)
	assert.Empty(t, stored.Messages)
}

func TestDeleteMessagePairOrphan(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	// Two consecutive user messages: no adjacent assistant, so only
	// the target goes.
	chat, err := h.store.Create("")
	require.NoError(t, err)
	chat, _, err = h.store.AppendMessage(chat.ID, models.Message{Role: models.RoleUser, Content: "one"})
	require.NoError(t, err)
	chat, _, err = h.store.AppendMessage(chat.ID, models.Message{Role: models.RoleUser, Content: "two"})
	require.NoError(t, err)
	require.True(t, h.ctrl.SelectChat(chat.ID))

	h.ctrl.DeleteMessagePair(chat.Messages[0].ID)

	got, _ := h.ctrl.CurrentChat()
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "two", got.Messages[0].Content)
}

func TestNewChatAndSelect(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	first, err := h.ctrl.NewChat()
	require.NoError(t, err)
	h.ctrl.SendMessage("in first")
	require.NoError(t, h.waitFinished(t).Err)

	second, err := h.ctrl.NewChat()
	require.NoError(t, err)
	cur, _ := h.ctrl.CurrentChat()
	assert.Equal(t, second.ID, cur.ID)

	require.True(t, h.ctrl.SelectChat(first.ID))
	cur, _ = h.ctrl.CurrentChat()
	assert.Equal(t, first.ID, cur.ID)
	assert.Len(t, cur.Messages, 2)

	assert.False(t, h.ctrl.SelectChat("missing"))
}

func TestDeleteChat(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	chat, err := h.ctrl.NewChat()
	require.NoError(t, err)

	assert.True(t, h.ctrl.DeleteChat(chat.ID))
	_, ok := h.ctrl.CurrentChat()
	assert.False(t, ok)
	assert.Empty(t, h.ctrl.Chats())
}

func TestUpdateSettingsPersists(t *testing.T) {
	backend := replyBackend(t, "reply")
	h := newHarness(t, backend.URL)

	settings := h.ctrl.Settings()
	settings.ActiveModel = "gemini-2.0-flash"
	settings.ActiveProvider = "Google Gemini"
	require.NoError(t, h.ctrl.UpdateSettings(settings))

	assert.Equal(t, "gemini-2.0-flash", h.store.LoadSettings().ActiveModel)
	assert.Equal(t, "gemini-2.0-flash", h.ctrl.Settings().ActiveModel)
}
