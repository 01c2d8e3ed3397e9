package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/mh-runtime/config"
	"github.com/wippyai/mh-runtime/invoke"
	"github.com/wippyai/mh-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type kindInfo struct {
	name   string
	about  string
	fields []fieldInfo
}

type fieldInfo struct {
	name        string
	placeholder string
}

var descField = fieldInfo{name: "descriptor", placeholder: "(II)I"}

var kinds = []kindInfo{
	{invoke.InvokerExact.String(), "calls handles of exactly the target type", []fieldInfo{descField}},
	{invoke.InvokerGeneric.String(), "retypes handles to the target type", []fieldInfo{descField}},
	{invoke.InvokerBasic.String(), "unchecked invoker of the basic type", []fieldInfo{descField}},
	{invoke.InvokerVarHandle.String(), "var handle access, retyped", []fieldInfo{descField, {name: "mode", placeholder: "getAndAdd"}}},
	{invoke.InvokerVarHandleExact.String(), "var handle access, exact type", []fieldInfo{descField, {name: "mode", placeholder: "get"}}},
	{invoke.InvokerSpread.String(), "spreads trailing arguments from an array", []fieldInfo{descField, {name: "leading", placeholder: "0"}}},
}

type interactiveModel struct {
	err      error
	rt       *runtime.Runtime
	logger   *zap.Logger
	cfg      *config.File
	result   string
	stats    string
	inputs   []textinput.Model
	width    int
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectKind modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(cfg *config.File, width int) *interactiveModel {
	return &interactiveModel{
		cfg:   cfg,
		width: width,
		state: stateSelectKind,
	}
}

type loadedMsg struct {
	err    error
	rt     *runtime.Runtime
	logger *zap.Logger
}

type buildResultMsg struct {
	err    error
	result string
	stats  string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadRuntime
}

func (m *interactiveModel) loadRuntime() tea.Msg {
	// The TUI owns the terminal; logs go nowhere unless debugging.
	logger := zap.NewNop()
	if m.cfg.Log.Level == "debug" {
		var err error
		if logger, err = newLogger(m.cfg); err != nil {
			return loadedMsg{err: err}
		}
	}
	rt, err := runtime.New(context.Background(), &runtime.Options{Config: m.cfg, Logger: logger})
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{rt: rt, logger: logger}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.shutdown()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectKind && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectKind && m.selected < len(kinds)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectKind:
				if m.rt == nil {
					return m, nil
				}
				m.prepareInputs()
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.buildInvoker

			case stateShowResult:
				m.state = stateSelectKind
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectKind
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectKind
				m.result = ""
				m.err = nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.logger = msg.logger

	case buildResultMsg:
		m.result = msg.result
		m.stats = msg.stats
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) shutdown() {
	if m.rt != nil {
		m.rt.Close(context.Background())
	}
	if m.logger != nil {
		_ = m.logger.Sync()
	}
}

func (m *interactiveModel) prepareInputs() {
	k := kinds[m.selected]
	inputWidth := 40
	if m.width > 20 && m.width-20 < inputWidth {
		inputWidth = m.width - 20
	}
	m.inputs = make([]textinput.Model, len(k.fields))
	for i, f := range k.fields {
		ti := textinput.New()
		ti.Placeholder = f.placeholder
		ti.Prompt = f.name + ": "
		ti.Width = inputWidth
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// request collects the field values for the selected kind.
func (m *interactiveModel) request() (request, error) {
	k := kinds[m.selected]
	req := request{kind: k.name}
	for i, f := range k.fields {
		v := strings.TrimSpace(m.inputs[i].Value())
		if v == "" {
			v = f.placeholder
		}
		switch f.name {
		case "descriptor":
			req.desc = v
		case "mode":
			req.mode = v
		case "leading":
			n, err := strconv.Atoi(v)
			if err != nil {
				return request{}, fmt.Errorf("leading: %w", err)
			}
			req.leading = n
		}
	}
	return req, nil
}

func (m *interactiveModel) buildInvoker() tea.Msg {
	req, err := m.request()
	if err != nil {
		return buildResultMsg{err: err}
	}
	h, err := req.build(m.rt)
	if err != nil {
		return buildResultMsg{err: err}
	}

	var result, stats strings.Builder
	describe(&result, h)
	printStats(&stats, m.rt.Stats())
	return buildResultMsg{result: result.String(), stats: stats.String()}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.rt == nil {
		return "Starting runtime..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Invoker Explorer"))
	b.WriteString(" backend ")
	b.WriteString(typeStyle.Render(m.cfg.Lowering.Backend))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectKind:
		b.WriteString("Select an invoker kind:\n\n")
		for i, k := range kinds {
			line := kindStyle.Render(k.name) + "  " + helpStyle.Render(k.about)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + k.name))
				b.WriteString("  " + helpStyle.Render(k.about))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter choose • q quit"))

	case stateInputArgs:
		k := kinds[m.selected]
		b.WriteString(fmt.Sprintf("Building %s invoker\n\n", kindStyle.Render(k.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter build • esc back"))

	case stateShowResult:
		k := kinds[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", kindStyle.Render(k.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
			b.WriteString(typeStyle.Render(m.stats))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(cfg *config.File) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = 80
	}
	p := tea.NewProgram(newInteractiveModel(cfg, width), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
