package tui

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render

const (
	padding  = 2
	maxWidth = 80
)

type tickMsg time.Time

type eventMsg Event

type mode int

const (
	spin mode = iota
	bar
	text
)

// Widget is the bubbletea renderer. Events arrive as messages so the model is only
// touched from the program loop.
type Widget struct {
	mode     mode
	title    string
	spinner  spinner.Model
	progress progress.Model
	percent  float64
	// OnQuit runs when the user presses ctrl+c or esc.
	OnQuit func()

	program *tea.Program
	running atomic.Bool
	done    chan struct{}
}

func NewWidget(opts ...tea.ProgramOption) *Widget {
	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	w := &Widget{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		percent:  0,
		done:     make(chan struct{}),
	}
	w.program = tea.NewProgram(w, opts...)
	return w
}

// Run blocks until the program exits.
func (w *Widget) Run() error {
	w.running.Store(true)
	defer close(w.done)
	if _, err := w.program.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func (w *Widget) SetProgress(title string, percent float64) {
	w.program.Send(eventMsg(NewEventBar(title, percent)))
}

func (w *Widget) SetSpinner(title string) {
	w.program.Send(eventMsg(NewEventSpin(title)))
}

func (w *Widget) SetText(title string) {
	w.program.Send(eventMsg(NewEventText(title)))
}

// Close stops the program and waits for the terminal to be restored.
func (w *Widget) Close() {
	w.program.Quit()
	if w.running.Load() {
		<-w.done
	}
}

func (w *Widget) Init() tea.Cmd {
	return tea.Batch(tickCmd(), w.spinner.Tick)
}

func (w *Widget) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			if w.OnQuit != nil {
				w.OnQuit()
			}
			return w, tea.Quit
		}
		return w, nil

	case eventMsg:
		w.title = msg.text
		switch msg.eventType {
		case eventTypeSpin:
			w.mode = spin
		case eventTypeBar:
			w.mode = bar
			w.percent = msg.percent
		case eventTypeText:
			w.mode = text
		}
		return w, nil

	case tea.WindowSizeMsg:
		w.progress.Width = msg.Width - padding*2 - 4
		if w.progress.Width > maxWidth {
			w.progress.Width = maxWidth
		}
		return w, nil

	case tickMsg:
		cmd := w.progress.SetPercent(w.percent)
		return w, tea.Batch(tickCmd(), cmd)

	// FrameMsg is sent when the progress bar wants to animate itself
	case progress.FrameMsg:
		progressModel, cmd := w.progress.Update(msg)
		w.progress = progressModel.(progress.Model)
		return w, cmd

	default:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}
}

func (w *Widget) View() string {
	pad := strings.Repeat(" ", padding)

	switch w.mode {
	case text:
		return fmt.Sprintf("\n\n%s%s\n\n", pad, w.title)
	case spin:
		return fmt.Sprintf("\n\n%s%s %s\n\n", pad, w.spinner.View(), w.title)
	case bar:
		return "\n" +
			pad + w.title + "\n\n" +
			pad + w.progress.View() + "\n" +
			pad + helpStyle("esc to cancel") + "\n"
	}
	return ""
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
