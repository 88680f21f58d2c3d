package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProgressSpinner provides a simple spinner for long operations
type ProgressSpinner struct {
	spinner spinner.Model
	message string
	noColor bool
	out     io.Writer
	style   lipgloss.Style
	program *tea.Program
	done    chan struct{}
}

// NewProgressSpinner creates a new progress spinner
func NewProgressSpinner(message string, out io.Writer, noColor bool) *ProgressSpinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // Blue

	return &ProgressSpinner{
		spinner: s,
		message: message,
		noColor: noColor,
		out:     out,
		style:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")), // Gray for message
	}
}

func (p *ProgressSpinner) animated() bool {
	return !p.noColor && os.Getenv("CI") == ""
}

// Start begins the spinner in a goroutine
func (p *ProgressSpinner) Start() {
	if !p.animated() {
		// Just print the message without spinner in no-color mode
		fmt.Fprintf(p.out, "%s...\n", p.message)
		return
	}

	prog := &spinnerProgram{
		spinner: p.spinner,
		message: p.message,
		style:   p.style,
	}
	p.program = tea.NewProgram(prog, tea.WithOutput(p.out), tea.WithInput(nil))
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

// Update replaces the message next to the spinner
func (p *ProgressSpinner) Update(message string) {
	p.message = message
	if p.program == nil {
		if !p.animated() {
			fmt.Fprintf(p.out, "%s...\n", message)
		}
		return
	}
	p.program.Send(messageMsg(message))
}

// Stop stops the spinner and waits for the terminal to be restored
func (p *ProgressSpinner) Stop() {
	if p.program == nil {
		return
	}
	p.program.Quit()
	<-p.done
	p.program = nil
}

// spinnerProgram implements the tea.Model interface for the spinner
type spinnerProgram struct {
	spinner spinner.Model
	message string
	style   lipgloss.Style
}

type messageMsg string

func (s *spinnerProgram) Init() tea.Cmd {
	return s.spinner.Tick
}

func (s *spinnerProgram) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	case messageMsg:
		s.message = string(msg)
	}
	return s, nil
}

func (s *spinnerProgram) View() string {
	return fmt.Sprintf("%s %s", s.spinner.View(), s.style.Render(s.message))
}
