package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"wisp/internal/client"
	"wisp/internal/models"
	"wisp/internal/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// FetchModelsCmd aggregates the model picker's entries: models listed
// in provider settings first, then whatever the live catalogs report.
func FetchModelsCmd(cl *client.Client, settings models.Settings) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), CatalogFetchTimeout*time.Second)
		defer cancel()

		var opts []ModelOption
		seen := make(map[string]bool)
		add := func(name string, provider models.ProviderID) {
			name = strings.TrimSpace(name)
			if name == "" {
				return
			}
			key := string(provider) + "/" + name
			if seen[key] {
				return
			}
			seen[key] = true
			opts = append(opts, ModelOption{Name: name, Provider: provider})
		}

		for _, p := range settings.Providers {
			pid := models.NormalizeProvider(p.Provider)
			for _, name := range strings.Split(p.Models, ",") {
				add(name, pid)
			}
		}

		for _, cm := range cl.OllamaModels(ctx) {
			add(cm.Name, cm.Provider)
		}
		for _, p := range settings.Providers {
			switch models.NormalizeProvider(p.Provider) {
			case models.ProviderGemini:
				for _, cm := range cl.GeminiModels(ctx, p.Key) {
					add(cm.Name, cm.Provider)
				}
			case models.ProviderOpenRouter:
				for _, cm := range cl.OpenRouterModels(ctx, p.Key) {
					add(cm.Name, cm.Provider)
				}
			case models.ProviderGroq:
				for _, cm := range cl.GroqModels(ctx, p.Key) {
					add(cm.Name, cm.Provider)
				}
			}
		}

		sort.SliceStable(opts, func(i, j int) bool {
			if opts[i].Provider != opts[j].Provider {
				return opts[i].Provider < opts[j].Provider
			}
			return opts[i].Name < opts[j].Name
		})

		return ModelsLoadedMsg{Options: opts}
	}
}

// runSlashCommand handles /clear, /model and /provider. Unknown
// commands surface a notice instead of being sent as chat input.
func (m *Model) runSlashCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/clear", "/reset":
		m.ResetSession()
		return m, func() tea.Msg {
			m.Ctrl.ClearCurrent()
			return nil
		}

	case "/model":
		if len(fields) < 2 {
			m.Notice = "Usage: /model <name>"
			return m, nil
		}
		name := fields[1]
		settings := m.Ctrl.Settings()
		settings.ActiveModel = name
		settings.ActiveProvider = ""
		return m, func() tea.Msg {
			if err := m.Ctrl.UpdateSettings(settings); err != nil {
				return ErrMsg(err)
			}
			return NoticeMsg("Model: " + name)
		}

	case "/provider":
		return m.runProviderCommand(fields[1:])
	}

	m.Notice = "Unknown command: " + fields[0]
	return m, nil
}

func (m *Model) runProviderCommand(args []string) (tea.Model, tea.Cmd) {
	usage := "Usage: /provider add <name> <key> [models] | /provider rm <name>"
	if len(args) == 0 {
		m.Notice = usage
		return m, nil
	}

	settings := m.Ctrl.Settings()
	switch args[0] {
	case "add":
		if len(args) < 3 {
			m.Notice = usage
			return m, nil
		}
		row := models.ProviderConfig{Provider: args[1], Key: args[2]}
		if len(args) > 3 {
			row.Models = args[3]
		}
		replaced := false
		for i, p := range settings.Providers {
			if strings.EqualFold(p.Provider, row.Provider) {
				settings.Providers[i] = row
				replaced = true
				break
			}
		}
		if !replaced {
			settings.Providers = append(settings.Providers, row)
		}
		return m, m.saveSettingsCmd(settings, "Provider saved: "+row.Provider)

	case "rm":
		if len(args) < 2 {
			m.Notice = usage
			return m, nil
		}
		kept := settings.Providers[:0]
		removed := false
		for _, p := range settings.Providers {
			if strings.EqualFold(p.Provider, args[1]) {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		if !removed {
			m.Notice = "No such provider: " + args[1]
			return m, nil
		}
		settings.Providers = kept
		return m, m.saveSettingsCmd(settings, "Provider removed: "+args[1])
	}

	m.Notice = usage
	return m, nil
}

func (m *Model) saveSettingsCmd(settings models.Settings, notice string) tea.Cmd {
	return func() tea.Msg {
		if err := m.Ctrl.UpdateSettings(settings); err != nil {
			return ErrMsg(err)
		}
		return NoticeMsg(notice)
	}
}

// RebuildMessages re-renders the current chat into display form.
func (m *Model) RebuildMessages() {
	m.Messages = m.Messages[:0]
	for i, msg := range m.Chat.Messages {
		switch msg.Role {
		case models.RoleUser:
			m.Messages = append(m.Messages, FormatUserMessage(msg.Content, m.Viewport.Width, i == 0))
		case models.RoleAssistant:
			content := msg.Content
			if m.Renderer != nil && content != "" {
				if rendered, err := m.Renderer.Render(content); err == nil {
					content = strings.TrimSpace(rendered)
				}
			}
			m.Messages = append(m.Messages, FormatAssistantMessage(content, msg.Model, msg.Provider))
		}
	}
}

func lastMessageID(chat models.Chat) (string, bool) {
	if len(chat.Messages) == 0 {
		return "", false
	}
	return chat.Messages[len(chat.Messages)-1].ID, true
}

func FormatUserMessage(content string, width int, isFirst bool) string {
	label := styles.UserLabelStyle.Render("YOU")
	msg := styles.UserMsgStyle.Width(width - 4).Render(content)
	if isFirst {
		return fmt.Sprintf("\n%s\n%s", label, msg)
	}
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatAssistantMessage(content, model, provider string) string {
	label := styles.AiLabelStyle.Render("WISP")
	if model != "" {
		tag := lipgloss.NewStyle().
			Foreground(styles.GetProviderColor(provider)).
			Italic(true).
			Render(model)
		label = lipgloss.JoinHorizontal(lipgloss.Center, label, tag)
	}
	msg := styles.AiMsgStyle.Render(content)
	return fmt.Sprintf("%s\n%s", label, msg)
}

func TitlePreview(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	const maxRunes = 500
	r := []rune(s)
	if len(r) > maxRunes {
		return string(r[:maxRunes])
	}
	return s
}

func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

func RelativeTime(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if d < 24*time.Hour {
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1 hr ago"
		}
		return fmt.Sprintf("%d hrs ago", hrs)
	}
	days := int(d.Hours() / 24)
	if days < 14 {
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	weeks := days / 7
	if weeks == 1 {
		return "1 week ago"
	}
	return fmt.Sprintf("%d weeks ago", weeks)
}

func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	lines := strings.Split(value, "\n")
	if len(lines) == 0 {
		return 1
	}
	count := 0
	for _, line := range lines {
		w := runewidth.StringWidth(line)
		if w == 0 {
			count++
			continue
		}
		count += (w-1)/width + 1
	}
	return count
}

func (m *Model) SyncModelViewportScroll() {
	const itemHeight = 1
	const headerHeight = 1

	var currentY int
	var lastProvider models.ProviderID
	for i, opt := range m.ModelOptions {
		itemStartY := currentY

		if opt.Provider != lastProvider {
			if lastProvider != "" {
				currentY++
			}
			itemStartY = currentY
			currentY += headerHeight
			lastProvider = opt.Provider
		}

		if i == m.SelectedModelIndex {
			if currentY+itemHeight > m.ModelViewport.YOffset+m.ModelViewport.Height {
				m.ModelViewport.SetYOffset(currentY + itemHeight - m.ModelViewport.Height)
			}
			if itemStartY < m.ModelViewport.YOffset {
				m.ModelViewport.SetYOffset(itemStartY)
			}
			break
		}
		currentY += itemHeight
	}
}
