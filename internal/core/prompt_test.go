package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose_OwnerSectionsComeFirst(t *testing.T) {
	got := Compose("Q", "P", "D")

	p, d, q := strings.Index(got, "P"), strings.Index(got, "D"), strings.Index(got, "Q")
	assert.True(t, p >= 0 && d > p && q > d, "expected P before D before Q in %q", got)
	assert.Equal(t, "## Prompt:\nP\n## Description:\nD\n## User Query:\nQ", got)
}

func TestCompose_Sections(t *testing.T) {
	tests := []struct {
		name        string
		ownerPrompt string
		description string
		want        string
	}{
		{"query only", "", "", "tell a joke"},
		{"description only", "", "You are a comedian", "## Description:\nYou are a comedian\n## User Query:\ntell a joke"},
		{"prompt only", "Rhyme.", "", "## Prompt:\nRhyme.\n## User Query:\ntell a joke"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose("tell a joke", tt.ownerPrompt, tt.description))
		})
	}
}

func TestComposeImage(t *testing.T) {
	assert.Equal(t, "a cat", ComposeImage("a cat", "", ""))
	assert.Equal(t,
		"## Description:\nWatercolor style\n## Additional Information:\na cat",
		ComposeImage("a cat", "", "Watercolor style"))
}
