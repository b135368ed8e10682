package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeAccepted(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		code  string
	}{
		{"bare code", "\nfrom manim import *\nclass S(Scene): pass\n", "from manim import *\nclass S(Scene): pass"},
		{"single block", "```python\nfrom manim import *\n```", "from manim import *"},
		{"block with chatter", "Here you go:\n```python\nx = 1\ny = 2\n```\nEnjoy!", "x = 1\ny = 2"},
		{"untagged block", "```\nx = 1\n```", "x = 1"},
		{"crlf", "```python\r\nx = 1\r\n```", "x = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ExtractCode(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestExtractCodeDefects(t *testing.T) {
	replies := map[string]string{
		"empty":        "   \n",
		"unclosed":     "```python\nx = 1\n",
		"two blocks":   "```python\nx = 1\n```\nand\n```python\ny = 2\n```",
		"empty block":  "```python\n\n```",
		"tagged close": "```python\nx = 1\n```python",
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractCode(reply)
			var defect *CodeDefect
			require.True(t, errors.As(err, &defect), "expected a CodeDefect, got %v", err)
			assert.Contains(t, defect.Message, "exactly one fenced code block")
		})
	}
}
