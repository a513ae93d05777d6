package progress

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jrsteele09/go-sso-connect/token"
)

type finishedMsg struct {
	err error
}

type spinnerModel struct {
	spinner      spinner.Model
	connectionID string
	cancelled    bool
	finished     bool
	err          error
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		default:
			return m, nil
		}
	case finishedMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m spinnerModel) View() string {
	if m.cancelled {
		return "Login cancelled.\n"
	}
	if m.finished {
		if line := outcomeLine(m.err); line != "" {
			return line + "\n"
		}
		return ""
	}
	return fmt.Sprintf("\r%s Waiting for authorization of %s (esc to cancel)", m.spinner.View(), m.connectionID)
}

// Spinner shows a terminal spinner while the login is pending. Pressing esc,
// q or ctrl+c cancels the flow.
type Spinner struct {
	in   io.Reader
	out  io.Writer
	opts options
}

var _ token.Interaction = (*Spinner)(nil)

func NewSpinner(in io.Reader, out io.Writer, opts ...Option) *Spinner {
	return &Spinner{in: in, out: out, opts: buildOptions(opts)}
}

func (s *Spinner) Begin(ctx context.Context, connectionID string, auth token.DeviceAuthorization) (context.Context, func(error)) {
	fmt.Fprintln(s.out, s.opts.present(connectionID, auth))

	flowCtx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	program := tea.NewProgram(
		spinnerModel{spinner: sp, connectionID: connectionID},
		tea.WithContext(flowCtx),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		final, err := program.Run()
		if m, ok := final.(spinnerModel); ok && m.cancelled {
			cancel()
			return
		}
		if err != nil && flowCtx.Err() == nil {
			// Without a working terminal the flow continues unattended.
			fmt.Fprintln(s.out, "Waiting for authorization...")
		}
	}()

	return flowCtx, func(err error) {
		program.Send(finishedMsg{err: err})
		<-done
		cancel()
	}
}
