// Package tty owns the interactive terminal: raw mode, the alternate screen,
// buffered frames and keyboard input.
package tty

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/cancelreader"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/skobkin/amdgputop/internal/render"
)

const keyBuffer = 16

// ErrNotTerminal is returned by Open when stdin or stdout is not a TTY.
var ErrNotTerminal = errors.New("not a terminal")

// Options configures Open.
type Options struct {
	// Color enables the role palette. Boldness is kept either way.
	Color  bool
	Logger *slog.Logger
}

// Terminal is a full-screen drawing surface. Drawing calls only fill a frame
// buffer; Flush sends it in one write.
type Terminal struct {
	out     io.Writer
	frame   bytes.Buffer
	cursor  *termenv.Output
	palette render.Palette
	size    func() (int, int, error)
	logger  *slog.Logger

	cols, rows int
	row, col   int

	keys chan rune
	done chan struct{}

	reader    cancelreader.CancelReader
	restore   func() error
	closeOnce sync.Once
	closeErr  error
}

// Open switches the terminal to raw mode and the alternate screen. The caller
// must Close the terminal on every path.
func Open(in, out *os.File, opts Options) (*Terminal, error) {
	inFd, outFd := int(in.Fd()), int(out.Fd())
	if !term.IsTerminal(inFd) || !term.IsTerminal(outFd) {
		return nil, ErrNotTerminal
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	screen := termenv.NewOutput(out)
	t := newTerminal(out, screen.Profile, opts.Color, func() (int, int, error) {
		return term.GetSize(outFd)
	}, logger.With("component", "tty"))
	if err := t.Resize(); err != nil {
		return nil, err
	}

	state, err := term.MakeRaw(inFd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}

	reader, err := cancelreader.NewReader(in)
	if err != nil {
		_ = term.Restore(inFd, state)
		return nil, fmt.Errorf("open key reader: %w", err)
	}
	t.reader = reader
	t.restore = func() error {
		screen.ShowCursor()
		screen.ExitAltScreen()
		return term.Restore(inFd, state)
	}

	screen.AltScreen()
	screen.HideCursor()
	screen.ClearScreen()

	go t.readKeys(reader)

	t.logger.Debug("terminal opened", "cols", t.cols, "rows", t.rows, "profile", screen.Profile)
	return t, nil
}

func newTerminal(out io.Writer, profile termenv.Profile, color bool, size func() (int, int, error), logger *slog.Logger) *Terminal {
	t := &Terminal{
		out:     out,
		size:    size,
		logger:  logger,
		keys:    make(chan rune, keyBuffer),
		done:    make(chan struct{}),
		restore: func() error { return nil },
	}
	t.cursor = termenv.NewOutput(&t.frame, termenv.WithProfile(profile))

	renderer := lipgloss.NewRenderer(&t.frame)
	renderer.SetColorProfile(profile)
	t.palette = render.NewPalette(renderer, color)
	return t
}

// Keys delivers single key presses. It is closed when input ends.
func (t *Terminal) Keys() <-chan rune {
	return t.keys
}

// Size implements render.Screen.
func (t *Terminal) Size() (int, int) {
	return t.cols, t.rows
}

// Move implements render.Screen.
func (t *Terminal) Move(row, col int) {
	t.row, t.col = row, col
	if t.visible() {
		t.cursor.MoveCursor(row+1, col+1)
	}
}

// ClearToEOL implements render.Screen.
func (t *Terminal) ClearToEOL() {
	if t.visible() {
		t.cursor.ClearLineRight()
	}
}

// Write implements render.Screen. Text past the right edge is dropped.
func (t *Terminal) Write(text string, style render.Style) {
	if !t.visible() {
		t.col += runewidth.StringWidth(text)
		return
	}
	clipped := runewidth.Truncate(text, t.cols-t.col, "")
	t.frame.WriteString(t.palette.Render(clipped, style))
	t.col += runewidth.StringWidth(text)
}

func (t *Terminal) visible() bool {
	return t.row >= 0 && t.row < t.rows && t.col >= 0 && t.col < t.cols
}

// Clear blanks the whole screen.
func (t *Terminal) Clear() {
	t.cursor.ClearScreen()
}

// Flush writes the pending frame.
func (t *Terminal) Flush() error {
	if t.frame.Len() == 0 {
		return nil
	}
	_, err := t.out.Write(t.frame.Bytes())
	t.frame.Reset()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Resize re-reads the terminal dimensions.
func (t *Terminal) Resize() error {
	cols, rows, err := t.size()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	t.cols, t.rows = cols, rows
	return nil
}

// Close stops key input and restores the terminal. Only the first call has
// any effect.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		if t.reader != nil {
			t.reader.Cancel()
		}
		t.closeErr = t.restore()
		if t.reader != nil {
			_ = t.reader.Close()
		}
		t.logger.Debug("terminal restored")
	})
	return t.closeErr
}

func (t *Terminal) readKeys(r io.Reader) {
	defer close(t.keys)

	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, key := range decodeKeys(buf[:n]) {
			select {
			case t.keys <- key:
			case <-t.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, cancelreader.ErrCanceled) && !errors.Is(err, io.EOF) {
				t.logger.Warn("read keys", "err", err)
			}
			return
		}
	}
}

// decodeKeys turns one read chunk into key presses. A chunk that starts with
// ESC and carries more bytes is an escape sequence (arrows, function keys)
// and is dropped; a lone ESC is a key.
func decodeKeys(chunk []byte) []rune {
	if len(chunk) > 1 && chunk[0] == 0x1b {
		return nil
	}
	keys := make([]rune, 0, len(chunk))
	for len(chunk) > 0 {
		r, size := utf8.DecodeRune(chunk)
		if r != utf8.RuneError {
			keys = append(keys, r)
		}
		chunk = chunk[size:]
	}
	return keys
}
