package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const bodyPreviewLines = 20

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateEditURL modelState = iota
	stateFetching
	stateShowResult
)

type interactiveModel struct {
	ctx     context.Context
	err     error
	cfg     *config
	session *session
	result  *result
	input   textinput.Model
	spinner spinner.Model
	state   modelState
}

type fetchedMsg struct {
	err    error
	result *result
}

func newInteractiveModel(ctx context.Context, cfg *config, s *session) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "https://example.com/"
	ti.Prompt = "url: "
	ti.Width = 60
	ti.SetValue(cfg.URL)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &interactiveModel{
		ctx:     ctx,
		cfg:     cfg,
		session: s,
		input:   ti,
		spinner: sp,
		state:   stateEditURL,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) fetch() tea.Msg {
	cfg := *m.cfg
	cfg.URL = strings.TrimSpace(m.input.Value())
	res, err := m.session.fetch(m.ctx, &cfg)
	return fetchedMsg{result: res, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q", "esc":
			if m.state != stateEditURL {
				m.state = stateEditURL
				m.input.Focus()
				return m, nil
			}
			if msg.String() == "esc" {
				return m, tea.Quit
			}
		case "enter":
			switch m.state {
			case stateEditURL:
				m.state = stateFetching
				m.input.Blur()
				return m, tea.Batch(m.spinner.Tick, m.fetch)
			case stateShowResult:
				m.state = stateEditURL
				m.input.Focus()
				return m, nil
			}
		}

	case fetchedMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		return m, nil

	case spinner.TickMsg:
		if m.state != stateFetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state == stateEditURL {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("fetch"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(orDefault(m.cfg.Method, "GET")))
	b.WriteString("\n\n")

	switch m.state {
	case stateEditURL:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter send • esc quit"))

	case stateFetching:
		b.WriteString(m.spinner.View())
		b.WriteString(" waiting for ")
		b.WriteString(m.input.Value())

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			m.renderResult(&b)
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf(
			"live guest handles %d • host resources %d",
			len(m.session.client.Live()), m.session.host.Resources().Len())))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter new request • ctrl+c quit"))
	}
	return b.String()
}

func (m *interactiveModel) renderResult(b *strings.Builder) {
	res := m.result
	status := fmt.Sprintf("%d", res.status)
	if res.status >= 400 {
		b.WriteString(errorStyle.Render(status))
	} else {
		b.WriteString(okStyle.Render(status))
	}
	fmt.Fprintf(b, " in %s, %d bytes\n\n", res.elapsed.Round(time.Millisecond), len(res.body))

	for _, h := range res.headers {
		b.WriteString(nameStyle.Render(string(h.Name)))
		b.WriteString(": ")
		b.Write(h.Value)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	lines := strings.Split(string(res.body), "\n")
	if len(lines) > bodyPreviewLines {
		lines = append(lines[:bodyPreviewLines], helpStyle.Render(fmt.Sprintf("… %d more lines", len(lines)-bodyPreviewLines)))
	}
	b.WriteString(strings.Join(lines, "\n"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func runInteractive(ctx context.Context, cfg *config, log *zap.Logger) error {
	s, err := newSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	p := tea.NewProgram(newInteractiveModel(ctx, cfg, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
