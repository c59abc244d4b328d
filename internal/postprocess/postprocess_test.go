package postprocess

import (
	"errors"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain", "Bonjour le monde", "Bonjour le monde"},
		{"thinking block", "<thinking>Let me translate</thinking>Bonjour", "Bonjour"},
		{"think block", "<think>x</think> Salut", "Salut"},
		{"truncated reasoning", "Avant<reasoning>cut off", "Avant"},
		{"echo", "Here is the translation: Bonjour", "Bonjour"},
		{"echo with courtesy", "Sure, here's the translation: Bonjour", "Bonjour"},
		{"quotes", `"Bonjour"`, "Bonjour"},
		{"guillemets", "«Bonjour»", "Bonjour"},
		{"curly quotes", "“Bonjour”", "Bonjour"},
		{"all phases", "<think>hmm</think>Translation: \"Bonjour\"", "Bonjour"},
		{"unmatched quotes kept", `"Bonjour'`, `"Bonjour'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.expected {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\nplain\n```", "plain"},
		{"no fence", "no fence"},
		{"text ```x``` text", "text ```x``` text"},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.input); got != tt.expected {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject("<think>plan</think>Sure!\n```json\n{\"title\": \"Titre\", \"tags\": [\"a\"]}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["title"] != "Titre" {
		t.Errorf("expected title Titre, got %v", obj["title"])
	}
	if tags, ok := obj["tags"].([]any); !ok || len(tags) != 1 {
		t.Errorf("expected tags array, got %#v", obj["tags"])
	}
}

func TestDecodeObject_WithSurroundingProse(t *testing.T) {
	obj, err := DecodeObject(`The result is {"content": "Texte"} as requested.`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["content"] != "Texte" {
		t.Errorf("unexpected content %v", obj["content"])
	}
}

func TestDecodeObject_Errors(t *testing.T) {
	if _, err := DecodeObject("just text"); !errors.Is(err, ErrNoJSONObject) {
		t.Errorf("expected ErrNoJSONObject, got %v", err)
	}
	if _, err := DecodeObject(`{"broken": }`); err == nil {
		t.Error("expected decode error for malformed JSON")
	}
	if _, err := DecodeObject(`[1, 2]`); err == nil {
		t.Error("expected error for array response")
	}
}
