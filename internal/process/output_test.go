package process

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func collectLines(t *testing.T, r io.Reader, limit int) ([]string, error) {
	t.Helper()
	var lines []string
	err := readLines(r, limit, func(line string) {
		lines = append(lines, line)
	})
	return lines, err
}

func TestReadLines(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"trailing newline", "a\nb\n", 10, []string{"a", "b"}},
		{"no trailing newline", "a\nb", 10, []string{"a", "b"}},
		{"keeps empty lines", "a\n\nb\n", 10, []string{"a", "", "b"}},
		{"strips carriage return", "a\r\nb\r\n", 10, []string{"a", "b"}},
		{"truncates long line", "short\n0123456789abcdef\nnext\n", 10, []string{"short", "0123456789", "next"}},
		{"truncates unterminated line", "0123456789abcdef", 4, []string{"0123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collectLines(t, strings.NewReader(tt.input), tt.limit)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReadLines_LineLongerThanBuffer(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 3*readBufferSize+17)
	input := "before\n" + long + "\nafter\n"

	got, err := collectLines(t, iotest.HalfReader(strings.NewReader(input)), 2*readBufferSize)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "before", got[0])
	require.Equal(t, long[:2*readBufferSize], got[1])
	require.Equal(t, "after", got[2])
}

func TestReadLines_ReadError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("a\npartial"), iotest.ErrReader(boom))

	got, err := collectLines(t, r, 100)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"a", "partial"}, got)
}
