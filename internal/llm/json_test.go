package llm

import (
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	t.Run("NoFence", func(t *testing.T) {
		in := `{"a": 1}`
		if got := StripCodeFence(in); got != in {
			t.Errorf("Expected unchanged input, got %q", got)
		}
	})

	t.Run("JSONFence", func(t *testing.T) {
		in := "```json\n{\"a\": 1}\n```"
		if got := StripCodeFence(in); got != `{"a": 1}` {
			t.Errorf("Expected fence stripped, got %q", got)
		}
	})

	t.Run("BareFence", func(t *testing.T) {
		in := "```\n{\"a\": 1}\n```"
		if got := StripCodeFence(in); got != `{"a": 1}` {
			t.Errorf("Expected fence stripped, got %q", got)
		}
	})

	t.Run("WhitespacePadding", func(t *testing.T) {
		in := "  \n```json\n{\"a\": 1}\n```\n  "
		if got := StripCodeFence(in); got != `{"a": 1}` {
			t.Errorf("Expected fence stripped, got %q", got)
		}
	})
}
