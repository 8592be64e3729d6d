package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single element",
			input:    []string{"chairman"},
			expected: []string{"chairman"},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  chairman  ", "chief  ", "  commander"},
			expected: []string{"chairman", "chief", "commander"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"chairman", "chief", "chairman", "commander", "chief"},
			expected: []string{"chairman", "chief", "commander"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"chairman", "", "  ", "chief"},
			expected: []string{"chairman", "chief"},
		},
		{
			name:     "combined: trim, dedupe, remove empty",
			input:    []string{"  chairman ", "chief", "chairman", "", "  ", "chief"},
			expected: []string{"chairman", "chief"},
		},
		{
			name:     "preserves case",
			input:    []string{"Chairman", "chairman", "CHAIRMAN"},
			expected: []string{"Chairman", "chairman", "CHAIRMAN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrim(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDedupeFold(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "first spelling wins",
			input:    []string{"Chief of Staff", "chief of staff", "CHIEF OF STAFF"},
			expected: []string{"Chief of Staff"},
		},
		{
			name:     "trims before comparing",
			input:    []string{"  Chairman ", "Vice Chairman", "chairman", " ", "VICE CHAIRMAN"},
			expected: []string{"Chairman", "Vice Chairman"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeFold(tt.input))
		})
	}
}
