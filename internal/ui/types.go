package ui

import (
	"wisp/internal/client"
	"wisp/internal/controller"
	"wisp/internal/models"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

var ModalWidth = 60

const (
	MaxChatWidth     = 100
	HistoryPageSize  = 10
	HistoryListLimit = 50

	CatalogFetchTimeout = 15 // seconds
)

type ErrMsg error

// NoticeMsg is a transient status line shown in the bottom bar, used
// for slash command feedback.
type NoticeMsg string

// ModelOption is one selectable entry in the model picker, aggregated
// from configured provider lists and live catalogs.
type ModelOption struct {
	Name     string
	Provider models.ProviderID
}

// ModelsLoadedMsg delivers the aggregated model catalog to the picker.
type ModelsLoadedMsg struct {
	Options []ModelOption
}

type Model struct {
	Ctrl   *controller.Controller
	Client *client.Client

	Viewport  viewport.Model
	TextInput textarea.Model
	Spinner   spinner.Model
	Renderer  *glamour.TermRenderer

	// Chat is the latest snapshot published by the controller;
	// Messages is its rendered form.
	Chat     models.Chat
	HasChat  bool
	Messages []string
	Loading  bool
	Err      error
	Notice   string

	WindowWidth  int
	WindowHeight int

	HistoryOpen        bool
	HistorySelectedIdx int
	HistoryChats       []models.Chat
	HistoryPage        int

	ModelSelectorOpen  bool
	ModelViewport      viewport.Model
	ModelOptions       []ModelOption
	SelectedModelIndex int
	ModelsLoading      bool

	ShortcutsOpen bool

	// EditingMessageID is set while the input box is repurposed to
	// rewrite an earlier user message.
	EditingMessageID string
}
