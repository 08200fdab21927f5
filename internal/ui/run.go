package ui

import (
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ============================================================================
// String Builder Pool - reduces GC pressure from rendering
// ============================================================================

var builderPool = sync.Pool{
	New: func() any {
		return &strings.Builder{}
	},
}

func getBuilder() *strings.Builder {
	b := builderPool.Get().(*strings.Builder)
	b.Reset()
	return b
}

func putBuilder(b *strings.Builder) {
	if b.Cap() < 64*1024 { // Don't pool huge builders
		builderPool.Put(b)
	}
}

// ============================================================================
// Run TUI
// ============================================================================

// getTTY returns file handles for TUI input/output
// Uses /dev/tty so the viewer works when stdin is a pipe
func getTTY() (in *os.File, out *os.File, cleanup func()) {
	var closers []func()

	in = os.Stdin
	if !isTerminalFile(os.Stdin) {
		if tty, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0); err == nil {
			in = tty
			closers = append(closers, func() { tty.Close() })
		}
	}

	out = os.Stdout
	lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(out))

	return in, out, func() {
		for _, c := range closers {
			c()
		}
	}
}

// isTerminalFile reports whether f is a character device. A file that
// cannot be inspected, such as a closed stdin, is not one.
func isTerminalFile(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Run launches the viewer and blocks until the user quits
func Run(opts Options) error {
	uiStyles.Load(opts.Workspace.Theme())

	ttyIn, ttyOut, cleanup := getTTY()
	defer cleanup()

	m := newModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithOutput(ttyOut), tea.WithInput(ttyIn))
	_, err := p.Run()
	return err
}

// ============================================================================
// Helpers
// ============================================================================

// clamp restricts v to the range [minV, maxV]
func clamp(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// scrollWindow calculates the visible range for a scrollable list
func scrollWindow(cursor, total, height int, offset *int) (start, end int) {
	if cursor < *offset {
		*offset = cursor
	}
	if cursor >= *offset+height {
		*offset = cursor - height + 1
	}
	maxOffset := max(0, total-height)
	*offset = clamp(*offset, 0, maxOffset)

	start = *offset
	end = min(start+height, total)
	return
}
