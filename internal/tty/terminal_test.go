package tty

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skobkin/amdgputop/internal/render"
)

func testTerminal(t *testing.T, out io.Writer, profile termenv.Profile, color bool, cols, rows int) *Terminal {
	t.Helper()
	term := newTerminal(out, profile, color, func() (int, int, error) {
		return cols, rows, nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, term.Resize())
	return term
}

func TestDecodeKeys(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  []rune
	}{
		{name: "quit", chunk: "q", want: []rune{'q'}},
		{name: "lone escape", chunk: "\x1b", want: []rune{27}},
		{name: "ctrl-d", chunk: "\x04", want: []rune{4}},
		{name: "ctrl-c", chunk: "\x03", want: []rune{3}},
		{name: "arrow up", chunk: "\x1b[A", want: nil},
		{name: "alt-q", chunk: "\x1bq", want: nil},
		{name: "typed burst", chunk: "ab", want: []rune{'a', 'b'}},
		{name: "utf8", chunk: "й", want: []rune{'й'}},
		{name: "empty", chunk: "", want: []rune{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeKeys([]byte(tc.chunk))
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFrameIsBufferedUntilFlush(t *testing.T) {
	var out bytes.Buffer
	term := testTerminal(t, &out, termenv.Ascii, false, 20, 5)

	term.Move(1, 2)
	term.ClearToEOL()
	term.Write("GPU busy:", render.Style{Role: render.RoleLabel})
	assert.Zero(t, out.Len())

	require.NoError(t, term.Flush())
	assert.Equal(t, "\x1b[2;3H\x1b[0KGPU busy:", out.String())

	out.Reset()
	require.NoError(t, term.Flush())
	assert.Zero(t, out.Len(), "empty frame writes nothing")
}

func TestWriteClipsAtRightEdge(t *testing.T) {
	var out bytes.Buffer
	term := testTerminal(t, &out, termenv.Ascii, false, 10, 3)

	term.Move(0, 6)
	term.Write("abcdefgh", render.Style{})
	term.Write("zz", render.Style{})
	term.Move(3, 0)
	term.Write("below", render.Style{})
	require.NoError(t, term.Flush())

	assert.Equal(t, "\x1b[1;7Habcd", out.String())
}

func TestPaletteFollowsColorOption(t *testing.T) {
	for _, color := range []bool{true, false} {
		var out bytes.Buffer
		term := testTerminal(t, &out, termenv.ANSI, color, 40, 3)

		term.Move(0, 0)
		term.Write("hot", render.Style{Role: render.RoleBad})
		term.Write("lbl", render.Style{Role: render.RoleLabel, Bold: true})
		require.NoError(t, term.Flush())

		assert.Equal(t, color, strings.Contains(out.String(), "31"), "color=%v: %q", color, out.String())
		if !color {
			assert.Contains(t, out.String(), "\x1b[1mlbl", "bold is kept without color")
		}
	}
}

func TestResizeRereadsSize(t *testing.T) {
	cols, rows := 80, 24
	term := newTerminal(io.Discard, termenv.Ascii, false, func() (int, int, error) {
		return cols, rows, nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, term.Resize())

	cols, rows = 40, 10
	require.NoError(t, term.Resize())
	c, r := term.Size()
	assert.Equal(t, 40, c)
	assert.Equal(t, 10, r)

	failing := newTerminal(io.Discard, termenv.Ascii, false, func() (int, int, error) {
		return 0, 0, errors.New("ioctl failed")
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, failing.Resize(), "get terminal size")
}

func TestCloseRestoresOnce(t *testing.T) {
	term := testTerminal(t, io.Discard, termenv.Ascii, false, 10, 3)
	restores := 0
	term.restore = func() error {
		restores++
		return nil
	}

	require.NoError(t, term.Close())
	require.NoError(t, term.Close())
	assert.Equal(t, 1, restores)
}

func TestReadKeysForwardsAndDropsSequences(t *testing.T) {
	term := testTerminal(t, io.Discard, termenv.Ascii, false, 10, 3)
	r, w := io.Pipe()
	go term.readKeys(r)

	_, err := w.Write([]byte("\x1b[B"))
	require.NoError(t, err)
	_, err = w.Write([]byte("q"))
	require.NoError(t, err)

	select {
	case key := <-term.Keys():
		assert.Equal(t, 'q', key)
	case <-time.After(time.Second):
		t.Fatal("no key forwarded")
	}

	require.NoError(t, w.Close())
	select {
	case _, ok := <-term.Keys():
		assert.False(t, ok, "keys channel closes at end of input")
	case <-time.After(time.Second):
		t.Fatal("keys channel not closed")
	}
}

func TestReadKeysStopsOnClose(t *testing.T) {
	term := testTerminal(t, io.Discard, termenv.Ascii, false, 10, 3)
	input := strings.NewReader(strings.Repeat("x", 4*keyBuffer))
	done := make(chan struct{})
	go func() {
		term.readKeys(input)
		close(done)
	}()

	require.NoError(t, term.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader goroutine blocked after Close")
	}
}
