package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "The Go Programming Language", "the go programming language"},
		{"trims whitespace", "  Dune \t", "dune"},
		{"trims and lowercases", "  MOBY Dick  ", "moby dick"},
		{"interior whitespace kept", "a  b", "a  b"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"unicode", "CRIME AND PUNISHMENT É", "crime and punishment é"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.input))
		})
	}
}

func TestNormalizeTitle_Idempotent(t *testing.T) {
	inputs := []string{"  Mixed CASE  ", "already normal", "\tTabs\t"}
	for _, in := range inputs {
		once := NormalizeTitle(in)
		assert.Equal(t, once, NormalizeTitle(once))
	}
}
