package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// maxCycleHistory is the number of past cycle durations averaged for the ETA.
const maxCycleHistory = 10

// Bar is a terminal progress line for one worker. A worker cycle moves the bar
// from 0 to 100 through named steps; Reset starts the next cycle.
type Bar struct {
	mu         sync.Mutex
	label      string
	width      int
	percent    int64
	step       string
	stepStart  time.Time
	cycleStart time.Time
	history    []time.Duration
}

// NewBar creates a bar of the given character width.
func NewBar(width int, label string) *Bar {
	now := time.Now()
	return &Bar{
		label:      label,
		width:      width,
		stepStart:  now,
		cycleStart: now,
	}
}

// SetStepMessage names the current step and moves the bar to percent.
func (b *Bar) SetStepMessage(message string, percent int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.step = message
	b.stepStart = time.Now()
	b.percent = min(max(percent, 0), 100)
}

// Reset records the finished cycle's duration and empties the bar.
func (b *Bar) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	b.history = append(b.history, now.Sub(b.cycleStart))
	if len(b.history) > maxCycleHistory {
		b.history = b.history[1:]
	}

	b.percent = 0
	b.step = ""
	b.stepStart = now
	b.cycleStart = now
}

// Percent returns the current completion percentage.
func (b *Bar) Percent() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.percent
}

// String renders the bar with the current step, its duration and the average cycle time.
func (b *Bar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	filled := int(b.percent) * b.width / 100

	return fmt.Sprintf("%s [%s%s] %3d%% | %s (%s) | Avg cycle: %s",
		b.label,
		strings.Repeat("=", filled),
		strings.Repeat("-", b.width-filled),
		b.percent,
		b.step,
		time.Since(b.stepStart).Round(time.Second),
		b.averageCycle())
}

func (b *Bar) averageCycle() time.Duration {
	if len(b.history) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range b.history {
		total += d
	}

	return (total / time.Duration(len(b.history))).Round(time.Second)
}
