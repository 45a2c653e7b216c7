package aliasing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already normalized", "touros", "touros"},
		{"uppercase folded", "TOUROS", "touros"},
		{"surrounding whitespace trimmed", "  Vacas  ", "vacas"},
		{"inner whitespace collapsed", "Bois   2   anos", "bois 2 anos"},
		{"tabs and newlines collapsed", "Bois\t2\nanos", "bois 2 anos"},
		{"accents preserved", "B. Fêmea", "b. fêmea"},
		{"empty input", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestResolverResolve(t *testing.T) {
	resolver := NewResolver(&Config{
		CategoryAliases: map[string]string{
			"Bois 2 anos":    "bois-2a",
			"Novilha 3 anos": "novilha-3a",
		},
	})

	assert.True(t, resolver.HasAliases())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"exact alias", "Bois 2 anos", "bois-2a"},
		{"case insensitive", "BOIS 2 ANOS", "bois-2a"},
		{"whitespace insensitive", "  bois   2 anos ", "bois-2a"},
		{"second alias", "Novilha 3 anos", "novilha-3a"},
		{"unknown name", "Rufião", ""},
		{"empty name", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolver.Resolve(tt.input))
		})
	}
}

func TestResolverWithoutAliases(t *testing.T) {
	resolver := NewResolver(&Config{CategoryAliases: map[string]string{}})

	assert.False(t, resolver.HasAliases())
	assert.Empty(t, resolver.Resolve("Touros"))
}
