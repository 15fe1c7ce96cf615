package utils_test

import (
	"testing"

	"github.com/mangrovewatch/mangrove/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestCompressAllWhitespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single space", input: "hello world", want: "hello world"},
		{name: "multiple spaces", input: "hello    world", want: "hello world"},
		{name: "newlines and spaces", input: "hello\n\n  world  \n\n", want: "hello world"},
		{name: "tabs", input: "hello\t\t  world", want: "hello world"},
		{name: "only whitespace", input: "   \n\t   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.CompressAllWhitespace(tt.input))
		})
	}
}

func TestCompressWhitespacePreserveNewlines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "keeps newlines", input: "a   b\nc    d", want: "a b\nc d"},
		{name: "windows line endings", input: "a\r\nb", want: "a\nb"},
		{name: "trims outer blank lines", input: "\n\n a \n\n", want: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.CompressWhitespacePreserveNewlines(tt.input))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mang", utils.TruncateRunes("mangrove", 4))
	assert.Equal(t, "mangrove", utils.TruncateRunes("mangrove", 40))
	assert.Equal(t, "ñañ", utils.TruncateRunes("ñañaña", 3))
	assert.Empty(t, utils.TruncateRunes("mangrove", 0))
	assert.Equal(t, 3, utils.RuneLen("  ñañ "))
}

func TestPtr(t *testing.T) {
	t.Parallel()

	s := utils.Ptr("mangrove")
	assert.NotNil(t, s)
	assert.Equal(t, "mangrove", *s)

	f := utils.Ptr(float32(0.2))
	assert.InDelta(t, 0.2, *f, 1e-6)
}
