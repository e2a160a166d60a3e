package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes short", "y\n", true},
		{"yes long", "yes\n", true},
		{"uppercase", "YES\n", true},
		{"no", "n\n", false},
		{"empty line defaults to no", "\n", false},
		{"garbage", "sure\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := Confirm(bufio.NewReader(strings.NewReader(tt.input)), &out, "Proceed")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Proceed [y/N]: ", out.String())
		})
	}
}

func TestConfirm_EOFWithoutInput(t *testing.T) {
	var out bytes.Buffer
	got, err := Confirm(bufio.NewReader(strings.NewReader("")), &out, "Proceed")
	require.Error(t, err)
	assert.False(t, got)
}

func TestConfirm_AnswerWithoutTrailingNewline(t *testing.T) {
	var out bytes.Buffer
	got, err := Confirm(bufio.NewReader(strings.NewReader("y")), &out, "Proceed")
	require.NoError(t, err)
	assert.True(t, got)
}
