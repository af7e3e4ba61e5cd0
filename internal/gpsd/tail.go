package gpsd

import "sync"

// logTail keeps the most recent lines of a stream, bounded in count and
// per-line size, for failure reports.
type logTail struct {
	mu           sync.Mutex
	maxLines     int
	maxLineBytes int
	lines        []string
}

func newLogTail(maxLines, maxLineBytes int) *logTail {
	if maxLines < 0 {
		maxLines = 0
	}
	if maxLineBytes <= 0 {
		maxLineBytes = 16 * 1024
	}
	return &logTail{maxLines: maxLines, maxLineBytes: maxLineBytes, lines: make([]string, 0, maxLines)}
}

func (t *logTail) add(line string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxLines == 0 {
		return
	}
	if len(line) > t.maxLineBytes {
		line = line[:t.maxLineBytes]
	}
	if len(t.lines) < t.maxLines {
		t.lines = append(t.lines, line)
		return
	}
	copy(t.lines, t.lines[1:])
	t.lines[len(t.lines)-1] = line
}

func (t *logTail) snapshot() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.lines))
	out = append(out, t.lines...)
	return out
}
