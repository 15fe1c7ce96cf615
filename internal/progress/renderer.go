package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// RefreshInterval is how often the renderer redraws its bars.
const RefreshInterval = 200 * time.Millisecond

// Renderer redraws a fixed set of bars in place on a terminal.
type Renderer struct {
	bars   []*Bar
	output io.Writer
	mu     sync.Mutex
	drawn  bool
}

// NewRenderer creates a renderer writing to stdout.
func NewRenderer(bars []*Bar) *Renderer {
	return NewRendererTo(os.Stdout, bars)
}

// NewRendererTo creates a renderer writing to w.
func NewRendererTo(w io.Writer, bars []*Bar) *Renderer {
	return &Renderer{
		bars:   bars,
		output: w,
	}
}

// Render redraws the bars until ctx is cancelled, then clears them.
func (r *Renderer) Render(ctx context.Context) {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		r.Draw()

		select {
		case <-ctx.Done():
			r.clear()
			return
		case <-ticker.C:
		}
	}
}

// Draw writes one frame, overwriting the previous one.
func (r *Renderer) Draw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drawn {
		r.moveUp()
	}

	for _, bar := range r.bars {
		_, _ = fmt.Fprintln(r.output, "\033[K"+bar.String())
	}

	r.drawn = true
}

func (r *Renderer) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drawn {
		r.moveUp()
		r.drawn = false
	}
}

// moveUp erases the previous frame line by line.
func (r *Renderer) moveUp() {
	for range r.bars {
		_, _ = fmt.Fprint(r.output, "\033[1A\033[K")
	}
}
