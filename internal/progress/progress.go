package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Indicator draws a progress bar for a batch run. It is safe to call from
// several goroutines.
type Indicator struct {
	out        io.Writer // nil disables output
	message    string
	total      int
	current    int
	startTime  time.Time
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewIndicator(out io.Writer, message string) *Indicator {
	return &Indicator{out: out, message: message, startTime: time.Now()}
}

// Update records current of total items done. Redraws are throttled to
// every 100ms except for the final item.
func (p *Indicator) Update(current, total int) {
	if p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current, p.total = current, total
	now := time.Now()
	if now.Sub(p.lastUpdate) < 100*time.Millisecond && current < total {
		return
	}
	p.lastUpdate = now
	if total <= 0 {
		return
	}

	percentage := float64(current) / float64(total) * 100
	var eta string
	if elapsed := now.Sub(p.startTime); current > 0 && current < total {
		perItem := elapsed / time.Duration(current)
		eta = " ETA: " + formatDuration(perItem*time.Duration(total-current))
	}
	fmt.Fprintf(p.out, "\r%s [%s] %d/%d (%.1f%%)%s",
		p.message, progressBar(percentage), current, total, percentage, eta)
}

// Finish prints the completion line.
func (p *Indicator) Finish() {
	if p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s ✓ Completed %d items in %s\n",
		p.message, p.current, formatDuration(time.Since(p.startTime)))
}

func progressBar(percentage float64) string {
	const width = 30
	filled := int(percentage / 100.0 * width)

	var bar strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && percentage < 100:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return bar.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
