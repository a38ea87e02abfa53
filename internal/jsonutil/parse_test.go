package jsonutil

import (
	"strings"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", "{\"a\": 1}"},
		{"bare fence", "```\n{\"a\": 1}\n```", "{\"a\": 1}"},
		{"no fence", "{\"a\": 1}", "{\"a\": 1}"},
		{"leading whitespace", "  ```json\n{}\n```  ", "{}"},
		{"multiline body", "```json\n{\n  \"a\": 1\n}\n```", "{\n  \"a\": 1\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.input); got != tt.expected {
				t.Errorf("StripMarkdownFences(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`, false},
		{"object in prose", `Here is the result: {"a": 1} hope that helps`, `{"a": 1}`, false},
		{"array", `[1, 2, 3]`, `[1, 2, 3]`, false},
		{"no json", "just words", "", true},
		{"unclosed object", `{"a": 1`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractJSON(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON(%q): %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		required []string
		wantErr  string
	}{
		{"all present", `{"summary": "x", "moments": []}`, []string{"summary", "moments"}, ""},
		{"fenced", "```json\n{\"summary\": \"x\"}\n```", []string{"summary"}, ""},
		{"missing field", `{"summary": "x"}`, []string{"summary", "moments"}, "missing required field"},
		{"null field", `{"summary": null}`, []string{"summary"}, "is null"},
		{"not json", "I could not analyze this video", []string{"summary"}, "no JSON content"},
		{"no required fields", `{"anything": true}`, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ParseObject(tt.input, tt.required)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseObject: %v", err)
				}
				for _, f := range tt.required {
					if _, ok := obj[f]; !ok {
						t.Errorf("parsed object missing %q", f)
					}
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseObject error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
