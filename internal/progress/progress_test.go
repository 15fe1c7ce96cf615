package progress_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mangrovewatch/mangrove/internal/progress"
	"github.com/stretchr/testify/assert"
)

func TestBarSetStepMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		percent int64
		want    int64
	}{
		{name: "within range", percent: 40, want: 40},
		{name: "negative", percent: -5, want: 0},
		{name: "over full", percent: 140, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bar := progress.NewBar(10, "analysis 0")
			bar.SetStepMessage("Analyzing", tt.percent)
			assert.Equal(t, tt.want, bar.Percent())
		})
	}
}

func TestBarString(t *testing.T) {
	t.Parallel()

	bar := progress.NewBar(10, "stats 0")
	bar.SetStepMessage("Saving statistics", 50)

	out := bar.String()
	assert.Contains(t, out, "stats 0 [=====-----]")
	assert.Contains(t, out, " 50%")
	assert.Contains(t, out, "Saving statistics")

	bar.Reset()
	assert.Equal(t, int64(0), bar.Percent())
	assert.Contains(t, bar.String(), "[----------]")
}

func TestRendererDraw(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	bars := []*progress.Bar{progress.NewBar(4, "a"), progress.NewBar(4, "b")}
	renderer := progress.NewRendererTo(&buf, bars)

	renderer.Draw()
	first := buf.String()
	assert.Equal(t, 2, strings.Count(first, "\n"))
	assert.NotContains(t, first, "\033[1A")

	renderer.Draw()
	assert.Equal(t, 2, strings.Count(buf.String()[len(first):], "\033[1A"))
}
