package console

import (
	"context"
	"fmt"
	"strings"

	"moviebot/pkg/dispatcher"
	"moviebot/pkg/reply"
	"moviebot/pkg/tmdb"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type mode int

const (
	modeInteractive mode = iota
	modeOneShot
)

const mouseWheelLines = 3

type entry struct {
	query  string
	result *dispatcher.LookupResult
}

type lookupResultMsg struct {
	index  int
	result dispatcher.LookupResult
}

type model struct {
	ctx        context.Context
	lookupFn   LookupFunc
	mode       mode
	oneShotArg string

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	entries   []entry
	width     int
	height    int
	isReady   bool
	isLoading bool
	followLog bool
}

func newModel(ctx context.Context, lookupFn LookupFunc, runMode mode, query string) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("44"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Movie title..."
	in.Focus()
	in.CharLimit = 0

	return &model{
		ctx:        ctx,
		lookupFn:   lookupFn,
		mode:       runMode,
		oneShotArg: strings.TrimSpace(query),
		theme:      defaultTheme(),
		spinner:    spin,
		input:      in,
		viewport:   viewport.New(80, 12),
		width:      100,
		height:     28,
		followLog:  true,
	}
}

func (m *model) Init() tea.Cmd {
	if m.mode == modeOneShot {
		return m.startLookup(m.oneShotArg)
	}

	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.MouseMsg:
		if m.mode == modeInteractive {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.mode == modeOneShot {
			return m, nil
		}
		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			if m.isLoading {
				return m, nil
			}

			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			if IsExitCommand(query) {
				return m, tea.Quit
			}

			m.input.SetValue("")
			return m, m.startLookup(query)
		}
	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case lookupResultMsg:
		m.isLoading = false
		if typed.index >= 0 && typed.index < len(m.entries) {
			result := typed.result
			m.entries[typed.index].result = &result
		}
		m.refreshViewport(false)
		if m.mode == modeOneShot {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.mode == modeInteractive {
		m.input, cmd = m.input.Update(msg)
	}

	return m, cmd
}

func (m *model) startLookup(query string) tea.Cmd {
	m.entries = append(m.entries, entry{query: query})
	m.isLoading = true
	m.followLog = true
	m.refreshViewport(true)

	return tea.Batch(m.spinner.Tick, lookupCmd(m.ctx, m.lookupFn, len(m.entries)-1, query))
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.mode == modeOneShot {
		return m.oneShotView()
	}

	header := m.theme.header.Width(m.width - 2).Render("🎬 MovieBot Search Console")
	found, total := lookupCounts(m.entries)
	meta := m.theme.headerMeta.Render(fmt.Sprintf("lookups:%d · found:%d · previewing Telegram replies", total, found))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter search  ·  PgUp/PgDn scroll  ·  End jump latest  ·  🛑 Ctrl+C/Esc quit")
	if m.isLoading {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s searching TMDB...", m.spinner.View()))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("🔎 Title")+" "+m.theme.hint.Render("(type exit, quit, or :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(50, m.width-6)
	h := m.height - 10
	if m.mode == modeOneShot {
		h = m.height - 6
	}
	h = max(8, h)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset

	sections := make([]string, 0, len(m.entries)*2)
	for _, item := range m.entries {
		sections = append(sections, m.renderQuery(item.query, m.viewport.Width))
		if item.result != nil {
			sections = append(sections, m.renderReply(item.result.Reply, m.viewport.Width))
		}
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderQuery(query string, width int) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.queryTitle.Render("▛▚ [ 🔎 ] ▞▜"),
		m.theme.queryBox.Width(width).Render(displayQuery(query)),
	)
}

func (m *model) renderReply(r reply.Reply, width int) string {
	switch r.Kind {
	case reply.KindPhoto, reply.KindText:
		body := strings.TrimSpace(r.Text)
		if r.PhotoURL != "" {
			body = m.theme.hint.Render("🖼  "+r.PhotoURL) + "\n\n" + body
		}
		if r.Button != nil {
			body += "\n\n" + m.theme.link.Render(r.Button.Label+" → "+r.Button.URL)
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.movieTitle.Render("▛▚ [ 🎬 "+r.Kind.String()+" ] ▞▜"),
			m.theme.movieBox.Width(width).Render(body),
		)
	default:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.missTitle.Render("▛▚ [ 😔 ] ▞▜"),
			m.theme.missBox.Width(width).Render(strings.TrimSpace(r.Text)),
		)
	}
}

func (m *model) oneShotView() string {
	contentWidth := max(40, m.width-6)
	parts := []string{m.renderQuery(m.oneShotArg, contentWidth)}

	if m.isLoading {
		parts = append(parts, m.theme.statusBusy.Render(fmt.Sprintf("%s searching TMDB...", m.spinner.View())))
		return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
	}

	if len(m.entries) > 0 && m.entries[0].result != nil {
		parts = append(parts, m.renderReply(m.entries[0].result.Reply, contentWidth))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n\n"
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.SetYOffset(m.viewport.YOffset - mouseWheelLines)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.SetYOffset(m.viewport.YOffset + mouseWheelLines)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func lookupCmd(ctx context.Context, lookupFn LookupFunc, index int, query string) tea.Cmd {
	return func() tea.Msg {
		return lookupResultMsg{index: index, result: lookupFn(ctx, query)}
	}
}

func lookupCounts(entries []entry) (found int, total int) {
	for _, item := range entries {
		if item.result == nil {
			continue
		}
		total++
		if item.result.Outcome.Status == tmdb.StatusFound {
			found++
		}
	}

	return found, total
}

// displayQuery shows an empty query explicitly; TMDB still receives it.
func displayQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return "(empty query)"
	}

	return strings.TrimSpace(query)
}

// IsExitCommand reports whether input asks to leave an interactive session.
func IsExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
