// Package controller orchestrates sessions: it owns current-chat
// selection, drives inference and the stream consumer, and merges
// results into the store. At most one generation is active at a time.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"wisp/internal/client"
	"wisp/internal/models"
	"wisp/internal/resolver"
	"wisp/internal/store"
	"wisp/internal/stream"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is a notification delivered to the UI layer. The UI only ever
// sees full chat snapshots, never incremental mutations.
type Event any

type ChatUpdated struct {
	Chat models.Chat
}

type ChatsRefreshed struct {
	Chats []models.Chat
}

type GenerationStarted struct {
	ChatID string
}

type GenerationFinished struct {
	ChatID    string
	Cancelled bool
	Err       error
}

type Controller struct {
	store    *store.Store
	client   *client.Client
	consumer *stream.Consumer
	log      *zap.Logger
	emit     func(Event)

	mu         sync.Mutex
	settings   models.Settings
	current    *models.Chat
	cancel     context.CancelFunc
	genDone    chan struct{}
	searchMode bool
}

func New(st *store.Store, cl *client.Client, log *zap.Logger, emit func(Event)) *Controller {
	if emit == nil {
		emit = func(Event) {}
	}
	return &Controller{
		store:    st,
		client:   cl,
		consumer: stream.NewConsumer(log),
		log:      log,
		emit:     emit,
		settings: st.LoadSettings(),
	}
}

// Bootstrap publishes the stored chat list and selects the most recent
// chat, if any.
func (c *Controller) Bootstrap() {
	chats := c.store.List()
	c.emit(ChatsRefreshed{Chats: chats})
	if len(chats) > 0 {
		c.SelectChat(chats[0].ID)
	}
}

func (c *Controller) Chats() []models.Chat {
	return c.store.List()
}

func (c *Controller) CurrentChat() (models.Chat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return models.Chat{}, false
	}
	return c.current.Clone(), true
}

// SelectChat loads a chat from the store and makes it current. Any
// in-flight generation is stopped first.
func (c *Controller) SelectChat(id string) bool {
	c.StopInference()
	chat, ok := c.store.Get(id)
	if !ok {
		return false
	}
	c.mu.Lock()
	cp := chat.Clone()
	c.current = &cp
	c.mu.Unlock()
	c.emit(ChatUpdated{Chat: chat.Clone()})
	return true
}

// NewChat creates an empty chat and makes it current.
func (c *Controller) NewChat() (models.Chat, error) {
	c.StopInference()
	chat, err := c.store.Create("")
	if err != nil {
		c.log.Error("creating chat", zap.Error(err))
		return models.Chat{}, err
	}
	c.mu.Lock()
	cp := chat.Clone()
	c.current = &cp
	c.mu.Unlock()
	c.emit(ChatUpdated{Chat: chat.Clone()})
	c.emit(ChatsRefreshed{Chats: c.store.List()})
	return chat, nil
}

// ClearCurrent drops the current selection without touching the store,
// so the next send starts a fresh chat.
func (c *Controller) ClearCurrent() {
	c.StopInference()
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Controller) DeleteChat(id string) bool {
	c.mu.Lock()
	isCurrent := c.current != nil && c.current.ID == id
	c.mu.Unlock()
	if isCurrent {
		c.StopInference()
	}

	deleted := c.store.Delete(id)
	if deleted && isCurrent {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
	}
	c.emit(ChatsRefreshed{Chats: c.store.List()})
	return deleted
}

func (c *Controller) Settings() models.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings persists new settings and applies them to subsequent
// sends. Resolution always re-reads settings, so a change takes effect
// on the next turn.
func (c *Controller) UpdateSettings(settings models.Settings) error {
	if err := c.store.SaveSettings(settings); err != nil {
		c.log.Error("saving settings", zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	return nil
}

func (c *Controller) SetSearchMode(on bool) {
	c.mu.Lock()
	c.searchMode = on
	c.mu.Unlock()
}

func (c *Controller) SearchMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchMode
}

// SendMessage appends a user turn and starts streaming the assistant
// reply. Empty or whitespace-only content is a strict no-op. If no
// chat is selected one is created; a created chat whose first append
// fails is deleted again rather than left orphaned.
func (c *Controller) SendMessage(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	c.StopInference()

	c.mu.Lock()
	created := false
	if c.current == nil {
		chat, err := c.store.Create("")
		if err != nil {
			c.mu.Unlock()
			c.log.Error("creating chat for send", zap.Error(err))
			return
		}
		cp := chat.Clone()
		c.current = &cp
		created = true
	}
	chatID := c.current.ID
	settings := c.settings
	searchMode := c.searchMode
	c.mu.Unlock()

	updated, ok, err := c.store.AppendMessage(chatID, models.Message{
		Role:    models.RoleUser,
		Content: content,
	})
	if err != nil || !ok {
		if err != nil {
			c.log.Error("appending user message", zap.String("chat_id", chatID), zap.Error(err))
		}
		if created {
			c.store.Delete(chatID)
			c.mu.Lock()
			c.current = nil
			c.mu.Unlock()
		} else if err != nil {
			c.reconcile(chatID)
		}
		return
	}
	c.setCurrent(updated)
	c.emit(ChatUpdated{Chat: updated.Clone()})
	if created {
		c.emit(ChatsRefreshed{Chats: c.store.List()})
	}

	modelName := settings.ActiveModel
	ref := client.ModelRef{
		Name:     modelName,
		Provider: string(resolver.ResolveProvider(settings, modelName)),
		Key:      resolver.ResolveKey(settings, modelName),
	}

	// The placeholder has a stable id; each snapshot replaces its
	// content wholesale until the turn finishes.
	placeholder := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		CreatedAt: time.Now(),
		Model:     ref.Name,
		Provider:  ref.Provider,
	}

	working := updated.Clone()
	working.Messages = append(working.Messages, placeholder)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.current = &working
	c.cancel = cancel
	c.genDone = done
	c.mu.Unlock()
	c.emit(ChatUpdated{Chat: working.Clone()})
	c.emit(GenerationStarted{ChatID: chatID})

	go c.generate(ctx, done, chatID, placeholder, updated.Messages, ref, searchMode)
}

// StopInference cancels the active generation, if any, and waits for
// it to wind down (including partial-result persistence). Idempotent.
func (c *Controller) StopInference() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.genDone
	c.cancel = nil
	c.genDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Controller) generate(ctx context.Context, done chan struct{}, chatID string, placeholder models.Message, conversation []models.Message, ref client.ModelRef, searchMode bool) {
	defer close(done)

	body, err := c.client.Chat(ctx, conversation, ref, searchMode)
	if err != nil {
		if ctx.Err() != nil {
			c.log.Info("generation cancelled before response", zap.String("chat_id", chatID))
			c.reconcile(chatID)
			c.emit(GenerationFinished{ChatID: chatID, Cancelled: true})
			return
		}
		c.log.Error("inference request failed", zap.String("chat_id", chatID), zap.Error(err))
		c.reconcile(chatID)
		c.emit(GenerationFinished{ChatID: chatID, Err: err})
		return
	}
	defer body.Close()

	final, streamErr := c.consumer.Run(ctx, body, func(snapshot string) {
		c.updatePlaceholder(chatID, placeholder.ID, snapshot)
	})

	cancelled := errors.Is(streamErr, context.Canceled)
	if streamErr != nil && !cancelled {
		c.log.Error("stream failed", zap.String("chat_id", chatID), zap.Error(streamErr))
		c.reconcile(chatID)
		c.emit(GenerationFinished{ChatID: chatID, Err: streamErr})
		return
	}

	if cancelled && final == "" {
		// Nothing accumulated; there is no partial answer to keep.
		c.reconcile(chatID)
		c.emit(GenerationFinished{ChatID: chatID, Cancelled: true})
		return
	}

	// Partial answers survive cancellation: whatever accumulated is
	// persisted as a real assistant message.
	persisted, ok, err := c.store.AppendMessage(chatID, models.Message{
		Role:     models.RoleAssistant,
		Content:  final,
		Model:    placeholder.Model,
		Provider: placeholder.Provider,
	})
	if err != nil || !ok {
		if err != nil {
			c.log.Error("persisting assistant message", zap.String("chat_id", chatID), zap.Error(err))
		}
		c.reconcile(chatID)
		c.emit(GenerationFinished{ChatID: chatID, Cancelled: cancelled, Err: err})
		return
	}

	c.setCurrent(persisted)
	c.emit(ChatUpdated{Chat: persisted.Clone()})
	c.emit(ChatsRefreshed{Chats: c.store.List()})
	c.emit(GenerationFinished{ChatID: chatID, Cancelled: cancelled})
}

// EditAndResendMessage drops the target message and everything after
// it, persists the truncation and re-sends newContent as a fresh turn.
func (c *Controller) EditAndResendMessage(messageID, newContent string) {
	if strings.TrimSpace(newContent) == "" {
		return
	}
	c.StopInference()

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		c.log.Warn("edit with no chat selected", zap.String("message_id", messageID))
		return
	}
	idx := indexOfMessage(c.current.Messages, messageID)
	if idx == -1 {
		c.mu.Unlock()
		c.log.Warn("message to edit not found", zap.String("message_id", messageID))
		return
	}
	truncated := c.current.Clone()
	truncated.Messages = truncated.Messages[:idx]
	chatID := truncated.ID
	c.current = &truncated
	c.mu.Unlock()

	// Optimistic: the UI sees the truncation before the write lands.
	c.emit(ChatUpdated{Chat: truncated.Clone()})

	updated, err := c.store.Update(truncated)
	if err != nil {
		c.log.Error("persisting truncated chat", zap.String("chat_id", chatID), zap.Error(err))
		c.reconcile(chatID)
		return
	}
	c.setCurrent(updated)

	c.SendMessage(newContent)
}

// DeleteMessagePair removes the target message and its logical
// partner: the assistant reply right after a user message, or the user
// message right before an assistant one. When the role/adjacency
// conditions do not hold, only the target is removed.
func (c *Controller) DeleteMessagePair(messageID string) {
	c.StopInference()

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	msgs := c.current.Messages
	idx := indexOfMessage(msgs, messageID)
	if idx == -1 {
		c.mu.Unlock()
		c.log.Warn("message to delete not found", zap.String("message_id", messageID))
		return
	}

	remove := map[int]bool{idx: true}
	switch msgs[idx].Role {
	case models.RoleUser:
		if idx+1 < len(msgs) && msgs[idx+1].Role == models.RoleAssistant {
			remove[idx+1] = true
		}
	case models.RoleAssistant:
		if idx-1 >= 0 && msgs[idx-1].Role == models.RoleUser {
			remove[idx-1] = true
		}
	}

	edited := c.current.Clone()
	edited.Messages = edited.Messages[:0]
	for i, m := range msgs {
		if !remove[i] {
			edited.Messages = append(edited.Messages, m)
		}
	}
	chatID := edited.ID
	c.current = &edited
	c.mu.Unlock()

	c.emit(ChatUpdated{Chat: edited.Clone()})

	updated, err := c.store.Update(edited)
	if err != nil {
		c.log.Error("persisting message deletion", zap.String("chat_id", chatID), zap.Error(err))
		c.reconcile(chatID)
		return
	}
	c.setCurrent(updated)
}

// reconcile reloads a chat from the store after a failed write or
// remote call, so the UI converges on last-known-good state.
func (c *Controller) reconcile(chatID string) {
	chat, ok := c.store.Get(chatID)
	c.mu.Lock()
	if c.current != nil && c.current.ID == chatID {
		if ok {
			cp := chat.Clone()
			c.current = &cp
		} else {
			c.current = nil
		}
	}
	c.mu.Unlock()
	if ok {
		c.emit(ChatUpdated{Chat: chat.Clone()})
	}
}

func (c *Controller) setCurrent(chat models.Chat) {
	c.mu.Lock()
	if c.current != nil && c.current.ID == chat.ID {
		cp := chat.Clone()
		c.current = &cp
	}
	c.mu.Unlock()
}

func (c *Controller) updatePlaceholder(chatID, messageID, snapshot string) {
	c.mu.Lock()
	if c.current == nil || c.current.ID != chatID {
		c.mu.Unlock()
		return
	}
	for i := range c.current.Messages {
		if c.current.Messages[i].ID == messageID {
			c.current.Messages[i].Content = snapshot
			break
		}
	}
	snap := c.current.Clone()
	c.mu.Unlock()
	c.emit(ChatUpdated{Chat: snap})
}

func indexOfMessage(msgs []models.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}
