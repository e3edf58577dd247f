package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected string
	}{
		"collapses whitespace": {
			input:    "  hola \t mundo \n  ",
			expected: "hola mundo",
		},
		"strips control characters": {
			input:    "hola\x00mundo\x1f!",
			expected: "hola mundo !",
		},
		"keeps accents": {
			input:    "instalación eléctrica",
			expected: "instalación eléctrica",
		},
		"empty": {
			input:    "",
			expected: "",
		},
		"only whitespace": {
			input:    " \n\t ",
			expected: "",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeSocial(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected string
	}{
		"strips accents and lowercases": {
			input:    "Buen Día",
			expected: "buen dia",
		},
		"squeezes repeated letters": {
			input:    "Holaaaa!!!",
			expected: "hola",
		},
		"drops punctuation": {
			input:    "¿qué tal?",
			expected: "que tal",
		},
		"collapses inner whitespace": {
			input:    "buenas    tardes",
			expected: "buenas tardes",
		},
		"mixed": {
			input:    "GRACIASSS, amigo!!",
			expected: "gracias amigo",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSocial(tt.input))
		})
	}
}
