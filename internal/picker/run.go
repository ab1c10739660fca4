package picker

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ErrNoTTY is returned when the picker cannot get an interactive terminal.
// Callers typically fall back to non-interactive output.
var ErrNoTTY = errors.New("no interactive terminal")

// RunOptions configures an interactive picker run.
type RunOptions struct {
	Title        string
	Provider     Provider
	InitialQuery string
}

// Run drives the picker TUI on /dev/tty and returns the accepted item.
// accepted is false when the user dismissed the picker with Esc or Ctrl+C.
//
// Stdin and stdout stay untouched so callers can keep using them for data;
// the TUI renders on the controlling terminal directly.
func Run(opts RunOptions) (item Item, accepted bool, err error) {
	if err := checkTTY(); err != nil {
		return Item{}, false, err
	}
	if err := checkTERM(); err != nil {
		return Item{}, false, err
	}
	if err := checkTermWidth(); err != nil {
		return Item{}, false, err
	}

	tty, err := openTTY()
	if err != nil {
		return Item{}, false, fmt.Errorf("%w: %v", ErrNoTTY, err)
	}
	defer tty.Close()

	// Detect the color profile from the tty and apply it to the default
	// renderer. When stdout is a pipe lipgloss defaults to Ascii (no color);
	// we detect from the real tty instead. SetColorProfile modifies the
	// existing default renderer in-place so package-level styles already
	// created in model.go pick it up.
	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	model := NewModel(opts.Title, opts.Provider)
	if opts.InitialQuery != "" {
		model = model.WithQuery(opts.InitialQuery)
	}

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
	)

	finalModel, err := p.Run()
	if err != nil {
		return Item{}, false, fmt.Errorf("picker: %w", err)
	}

	m, ok := finalModel.(Model)
	if !ok {
		return Item{}, false, errors.New("picker: unexpected model type")
	}

	if m.IsCancelled() {
		return Item{}, false, nil
	}

	item, accepted = m.Result()
	return item, accepted, nil
}
