package ui

import (
	"fmt"
	"strings"

	"wisp/internal/controller"
	"wisp/internal/models"
	"wisp/internal/styles"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Loading {
			m.UpdateViewport()
		}
		return m, spCmd

	case controller.ChatUpdated:
		m.Chat = msg.Chat
		m.HasChat = true
		m.RebuildMessages()
		m.UpdateViewport()
		return m, nil

	case controller.ChatsRefreshed:
		m.HistoryChats = msg.Chats
		if m.HistorySelectedIdx >= len(m.visibleHistory()) {
			m.HistorySelectedIdx = 0
		}
		// The current chat may have been deleted out from under us.
		if m.HasChat && !containsChat(msg.Chats, m.Chat.ID) {
			m.ResetSession()
		}
		return m, nil

	case controller.GenerationStarted:
		m.Loading = true
		m.Err = nil
		m.UpdateViewport()
		return m, m.Spinner.Tick

	case controller.GenerationFinished:
		m.Loading = false
		if msg.Err != nil {
			m.Err = msg.Err
			m.Notice = fmt.Sprintf("Error: %v", msg.Err)
		}
		m.UpdateViewport()
		return m, nil

	case ModelsLoadedMsg:
		m.ModelsLoading = false
		m.ModelOptions = msg.Options
		m.SelectedModelIndex = 0
		active := m.Ctrl.Settings().ActiveModel
		for i, opt := range msg.Options {
			if opt.Name == active {
				m.SelectedModelIndex = i
				break
			}
		}
		m.UpdateModelSelectorContent()
		m.SyncModelViewportScroll()
		return m, nil

	case NoticeMsg:
		m.Notice = string(msg)
		return m, nil

	case ErrMsg:
		m.Err = msg
		m.Notice = fmt.Sprintf("Error: %v", msg)
		return m, nil

	case tea.KeyMsg:
		if m.HistoryOpen {
			return m.updateHistoryModal(msg)
		}
		if m.ModelSelectorOpen {
			return m.updateModelSelector(msg)
		}
		if m.ShortcutsOpen {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "enter", "ctrl+s":
				m.ShortcutsOpen = false
				return m, nil
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.updateInputLayout()
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEsc:
			if m.EditingMessageID != "" {
				m.EditingMessageID = ""
				m.TextInput.Reset()
				m.updateInputLayout()
				return m, nil
			}
			if m.Loading {
				return m, m.stopInferenceCmd()
			}
			return m, tea.Quit

		case tea.KeyCtrlN:
			m.ResetSession()
			return m, func() tea.Msg {
				m.Ctrl.ClearCurrent()
				return nil
			}

		case tea.KeyCtrlB:
			m.ModelSelectorOpen = true
			m.HistoryOpen = false
			m.ShortcutsOpen = false
			m.ModelsLoading = true
			m.UpdateModelSelectorContent()
			return m, FetchModelsCmd(m.Client, m.Ctrl.Settings())

		case tea.KeyCtrlH:
			m.HistoryOpen = true
			m.ModelSelectorOpen = false
			m.ShortcutsOpen = false
			m.HistoryPage = 0
			m.HistorySelectedIdx = 0
			m.HistoryChats = m.Ctrl.Chats()
			return m, nil

		case tea.KeyCtrlS:
			m.ShortcutsOpen = true
			m.ModelSelectorOpen = false
			m.HistoryOpen = false
			return m, nil

		case tea.KeyCtrlW:
			m.Ctrl.SetSearchMode(!m.Ctrl.SearchMode())
			return m, nil

		case tea.KeyCtrlX:
			if m.Loading {
				return m, m.stopInferenceCmd()
			}
			return m, nil

		case tea.KeyCtrlE:
			return m.beginEditLastUserMessage()

		case tea.KeyCtrlD:
			if id, ok := lastMessageID(m.Chat); ok {
				return m, func() tea.Msg {
					m.Ctrl.DeleteMessagePair(id)
					return nil
				}
			}
			return m, nil

		case tea.KeyEnter:
			return m.submitInput()
		}

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		ModalWidth = msg.Width - 10
		if ModalWidth > 60 {
			ModalWidth = 60
		}
		if ModalWidth < 30 {
			ModalWidth = 30
		}
		styles.ContentWidth = ModalWidth - 6

		m.ModelViewport.Width = styles.ContentWidth
		m.ModelViewport.Height = msg.Height - 15
		if m.ModelViewport.Height > 20 {
			m.ModelViewport.Height = 20
		}
		if m.ModelViewport.Height < 5 {
			m.ModelViewport.Height = 5
		}

		chatWidth := msg.Width - 2
		if chatWidth > MaxChatWidth {
			chatWidth = MaxChatWidth
		}
		m.Viewport.Width = chatWidth - 2

		m.updateInputLayout()
		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.RebuildMessages()
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries and cursor reference
	// codes that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) updateHistoryModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleHistory()
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.HistoryOpen = false
		return m, nil
	case "up", "k":
		if len(visible) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx--
		if m.HistorySelectedIdx < 0 {
			m.HistorySelectedIdx = len(visible) - 1
		}
		return m, nil
	case "down", "j":
		if len(visible) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx++
		if m.HistorySelectedIdx >= len(visible) {
			m.HistorySelectedIdx = 0
		}
		return m, nil
	case "left", "h":
		if m.HistoryPage > 0 {
			m.HistoryPage--
			m.HistorySelectedIdx = 0
		}
		return m, nil
	case "right", "l":
		totalPages := (len(m.HistoryChats) + HistoryPageSize - 1) / HistoryPageSize
		if m.HistoryPage < totalPages-1 {
			m.HistoryPage++
			m.HistorySelectedIdx = 0
		}
		return m, nil
	case "enter":
		if len(visible) == 0 {
			return m, nil
		}
		chat := visible[m.HistorySelectedIdx]
		m.HistoryOpen = false
		return m, func() tea.Msg {
			m.Ctrl.SelectChat(chat.ID)
			return nil
		}
	case "x", "delete":
		if len(visible) == 0 {
			return m, nil
		}
		chat := visible[m.HistorySelectedIdx]
		return m, func() tea.Msg {
			m.Ctrl.DeleteChat(chat.ID)
			return nil
		}
	}
	return m, nil
}

func (m *Model) updateModelSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+b":
		m.ModelSelectorOpen = false
		return m, nil
	case "up", "k":
		if len(m.ModelOptions) == 0 {
			return m, nil
		}
		m.SelectedModelIndex--
		if m.SelectedModelIndex < 0 {
			m.SelectedModelIndex = len(m.ModelOptions) - 1
		}
		m.SyncModelViewportScroll()
		m.UpdateModelSelectorContent()
		return m, nil
	case "down", "j":
		if len(m.ModelOptions) == 0 {
			return m, nil
		}
		m.SelectedModelIndex++
		if m.SelectedModelIndex >= len(m.ModelOptions) {
			m.SelectedModelIndex = 0
		}
		m.SyncModelViewportScroll()
		m.UpdateModelSelectorContent()
		return m, nil
	case "enter":
		if m.ModelsLoading || len(m.ModelOptions) == 0 {
			return m, nil
		}
		opt := m.ModelOptions[m.SelectedModelIndex]
		m.ModelSelectorOpen = false
		settings := m.Ctrl.Settings()
		settings.ActiveModel = opt.Name
		settings.ActiveProvider = string(opt.Provider)
		return m, func() tea.Msg {
			if err := m.Ctrl.UpdateSettings(settings); err != nil {
				return ErrMsg(err)
			}
			return NoticeMsg("Model: " + opt.Name)
		}
	}
	return m, nil
}

func (m *Model) submitInput() (tea.Model, tea.Cmd) {
	if m.Loading {
		return m, nil
	}
	input := strings.TrimSpace(m.TextInput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		m.TextInput.Reset()
		m.updateInputLayout()
		return m.runSlashCommand(input)
	}

	m.TextInput.Reset()
	m.updateInputLayout()
	m.Notice = ""

	if id := m.EditingMessageID; id != "" {
		m.EditingMessageID = ""
		return m, func() tea.Msg {
			m.Ctrl.EditAndResendMessage(id, input)
			return nil
		}
	}

	return m, func() tea.Msg {
		m.Ctrl.SendMessage(input)
		return nil
	}
}

func (m *Model) beginEditLastUserMessage() (tea.Model, tea.Cmd) {
	if !m.HasChat {
		return m, nil
	}
	for i := len(m.Chat.Messages) - 1; i >= 0; i-- {
		if m.Chat.Messages[i].Role == models.RoleUser {
			m.EditingMessageID = m.Chat.Messages[i].ID
			m.TextInput.SetValue(m.Chat.Messages[i].Content)
			m.updateInputLayout()
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) stopInferenceCmd() tea.Cmd {
	return func() tea.Msg {
		m.Ctrl.StopInference()
		return nil
	}
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

// ResetSession clears the local view of the conversation. The next
// send starts a fresh chat.
func (m *Model) ResetSession() {
	m.Chat = models.Chat{}
	m.HasChat = false
	m.Messages = nil
	m.Loading = false
	m.Err = nil
	m.Notice = ""
	m.EditingMessageID = ""
	m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
	m.Viewport.GotoTop()
	m.TextInput.Reset()
	m.updateInputLayout()
}

func (m *Model) visibleHistory() []models.Chat {
	chats := m.HistoryChats
	if len(chats) > HistoryListLimit {
		chats = chats[:HistoryListLimit]
	}
	start := m.HistoryPage * HistoryPageSize
	if start >= len(chats) {
		return nil
	}
	end := start + HistoryPageSize
	if end > len(chats) {
		end = len(chats)
	}
	return chats[start:end]
}

func containsChat(chats []models.Chat, id string) bool {
	for _, c := range chats {
		if c.ID == id {
			return true
		}
	}
	return false
}
