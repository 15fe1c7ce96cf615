package logger

// RingBuffer keeps the most recent lines written to a log file.
type RingBuffer struct {
	lines    []string
	capacity int
	next     int
	size     int
}

// NewRingBuffer creates a ring buffer holding up to capacity lines.
func NewRingBuffer(capacity int) *RingBuffer {
	capacity = max(capacity, 1)

	return &RingBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Add appends a line, overwriting the oldest once full.
func (rb *RingBuffer) Add(line string) {
	rb.lines[rb.next] = line
	rb.next = (rb.next + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}
}

// Len returns the number of buffered lines.
func (rb *RingBuffer) Len() int {
	return rb.size
}

// Lines returns the buffered lines oldest first.
func (rb *RingBuffer) Lines() []string {
	if rb.size == 0 {
		return nil
	}

	out := make([]string, 0, rb.size)
	start := (rb.next - rb.size + rb.capacity) % rb.capacity

	for i := range rb.size {
		out = append(out, rb.lines[(start+i)%rb.capacity])
	}

	return out
}
