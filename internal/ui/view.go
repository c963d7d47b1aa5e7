package ui

import (
	"fmt"
	"strings"

	"wisp/internal/models"
	"wisp/internal/styles"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) UpdateModelSelectorContent() {
	if m.ModelsLoading {
		loading := styles.ModalItemStyle.Render(
			lipgloss.NewStyle().Foreground(styles.HintColor).Render("Fetching model catalogs..."))
		m.ModelViewport.SetContent(loading)
		return
	}
	if len(m.ModelOptions) == 0 {
		empty := styles.ModalItemStyle.Render(
			lipgloss.NewStyle().Foreground(styles.HintColor).Render("No models found. Add a provider with /provider add"))
		m.ModelViewport.SetContent(empty)
		return
	}

	active := m.Ctrl.Settings().ActiveModel

	var items []string
	var lastProvider models.ProviderID
	for i, opt := range m.ModelOptions {
		if opt.Provider != lastProvider {
			if lastProvider != "" {
				items = append(items, "")
			}
			providerColor := "#545454"
			if c, ok := styles.ProviderColors[string(opt.Provider)]; ok {
				providerColor = c
			}
			header := styles.ModalHeaderStyle.
				Foreground(lipgloss.Color(providerColor)).
				Render(string(opt.Provider))
			items = append(items, header)
			lastProvider = opt.Provider
		}

		isSelected := i == m.SelectedModelIndex
		isCurrent := opt.Name == active

		displayName := TruncateRunes(opt.Name, styles.ContentWidth-4)
		if isCurrent {
			displayName = "● " + displayName
		} else {
			displayName = "  " + displayName
		}

		var styledItem string
		if isSelected {
			styledItem = styles.ModalSelectedStyle.
				Width(styles.ContentWidth).
				Render(displayName)
		} else {
			style := styles.ModalItemStyle.Width(styles.ContentWidth)
			if isCurrent {
				style = style.Foreground(lipgloss.Color("#90CAF9"))
			} else {
				style = style.Foreground(lipgloss.AdaptiveColor{Light: "#1a1a2e", Dark: "#FFFFFF"})
			}
			styledItem = style.Render(displayName)
		}

		items = append(items, styledItem)
	}

	m.ModelViewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, items...))
}

func (m *Model) RenderModelSelector() string {
	title := styles.ModalTitleStyle.Render("Select Model")
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.ModelViewport.View())

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: select • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderHistorySelector() string {
	totalPages := (len(m.HistoryChats) + HistoryPageSize - 1) / HistoryPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	title := styles.ModalTitleStyle.Render(
		fmt.Sprintf("Recent Chats (%d) - Page %d/%d", len(m.HistoryChats), m.HistoryPage+1, totalPages))

	visible := m.visibleHistory()
	var body string
	if len(visible) == 0 {
		body = styles.ModalItemStyle.Render(
			lipgloss.NewStyle().Foreground(styles.HintColor).Render("No chats yet"))
	} else {
		items := make([]string, 0, len(visible))
		for i, chat := range visible {
			isSelected := i == m.HistorySelectedIdx
			cursor := "  "
			if isSelected {
				cursor = "> "
			}
			timeStr := RelativeTime(chat.UpdatedAt)
			titleText := TitlePreview(chat.Title)
			if titleText == "" {
				titleText = models.DefaultChatTitle
			}
			availableWidth := styles.ContentWidth - 2 - len(cursor) - 1 - len(timeStr)
			titleText = TruncateRunes(titleText, availableWidth)

			itemContent := fmt.Sprintf("%s%s %s", cursor, titleText,
				lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))
			if isSelected {
				items = append(items, styles.ModalSelectedStyle.Render(itemContent))
			} else {
				items = append(items, styles.ModalItemStyle.Render(itemContent))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • ←/→: page • Enter: open • x: delete • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit Application"},
		{"Ctrl+N", "New Chat Session"},
		{"Ctrl+B", "Select Model"},
		{"Ctrl+H", "View Chat History"},
		{"Ctrl+W", "Toggle Web Search"},
		{"Ctrl+E", "Edit Last Message"},
		{"Ctrl+D", "Delete Last Message Pair"},
		{"Ctrl+X / Esc", "Stop Generation"},
		{"Ctrl+S", "View Shortcuts (this menu)"},
		{"/clear", "Start a Fresh Chat"},
		{"/provider", "Manage Providers"},
	}

	var items []string
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFCC80")).
		Bold(true).
		Width(14)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E0E0E0"))

	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), descStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, items...)
	content := lipgloss.JoinVertical(lipgloss.Left, title, listContent)

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderBottomBar() string {
	modeBadge := "CHAT"
	modeColor := "#81D4FA"
	if m.Ctrl.SearchMode() {
		modeBadge = "SEARCH"
		modeColor = "#80CBC4"
	}
	mode := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(modeColor)).
		Padding(0, 1).
		Render(modeBadge)

	chatTitle := ""
	if m.HasChat {
		chatTitle = TruncateRunes(m.Chat.Title, 30)
	}
	titleSeg := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(chatTitle)

	settings := m.Ctrl.Settings()
	modelName := settings.ActiveModel
	if modelName == "" {
		modelName = "no model"
	}
	provider := string(models.NormalizeProvider(settings.ActiveProvider))
	model := lipgloss.NewStyle().
		Foreground(styles.GetProviderColor(provider)).
		Render(TruncateRunes(modelName, 25))

	noticeColor := lipgloss.Color("#888888")
	if m.Err != nil {
		noticeColor = lipgloss.Color("#EF9A9A")
	}
	notice := lipgloss.NewStyle().
		Foreground(noticeColor).
		Render(TruncateRunes(m.Notice, 48))

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#555555")).
		Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, mode, "  ", titleSeg, "  ", model)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, notice, "  ", help)

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	spacer := strings.Repeat(" ", availableWidth)

	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, spacer, rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		Padding(0, 1).
		Render(bar)
}

func GetWelcomeScreen(width, height int) string {
	art := `
 ╭──────────────────────────────────────────╮
 │                                          │
 │   ██╗    ██╗██╗███████╗██████╗           │
 │   ██║    ██║██║██╔════╝██╔══██╗          │
 │   ██║ █╗ ██║██║███████╗██████╔╝          │
 │   ██║███╗██║██║╚════██║██╔═══╝           │
 │   ╚███╔███╔╝██║███████║██║               │
 │    ╚══╝╚══╝ ╚═╝╚══════╝╚═╝               │
 │                                          │
 ╰──────────────────────────────────────────╯
`
	subtitle := "Every model, one conversation away."

	styledArt := styles.WelcomeArtStyle.Render(art)
	styledSubtitle := styles.WelcomeSubtitleStyle.Render(subtitle)

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledSubtitle)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) UpdateViewport() {
	if len(m.Messages) == 0 && !m.Loading {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}

	content := strings.Join(m.Messages, "\n\n")
	if m.Loading {
		loadingMsg := fmt.Sprintf("%s Generating...", m.Spinner.View())
		if len(m.Messages) > 0 {
			content = content + "\n\n" + loadingMsg
		} else {
			content = loadingMsg
		}
	}
	m.Viewport.SetContent(content)
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	inputWidth := m.WindowWidth - 4
	boxStyle := styles.InputBoxStyle
	titleText := "WISP"
	if m.EditingMessageID != "" {
		boxStyle = styles.EditBoxStyle
		titleText = "WISP · editing"
	}
	inputBox := boxStyle.Width(inputWidth).Render(m.TextInput.View())

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render(titleText),
		"",
		m.Viewport.View(),
		"",
		inputBox,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	bottomBar := m.RenderBottomBar()

	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, bottomBar)

	var modal string
	switch {
	case m.HistoryOpen:
		modal = m.RenderHistorySelector()
	case m.ModelSelectorOpen:
		modal = m.RenderModelSelector()
	case m.ShortcutsOpen:
		modal = m.RenderShortcutsModal()
	default:
		return content
	}

	modal = styles.ModalStyle.Width(ModalWidth).Render(modal)
	return lipgloss.Place(
		m.WindowWidth,
		m.WindowHeight,
		lipgloss.Center,
		lipgloss.Center,
		modal,
	)
}
