package render

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/yegors/flight-tracker/internal/poller"
)

// Console prints one line per cycle, the terminal feed
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console feed writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Banner prints the start-up line
func (c *Console) Banner() {
	_ = c.println("Fetching real-time flight data from OpenSky...\n")
}

// OnSnapshot prints the summary line for snap
func (c *Console) OnSnapshot(_ context.Context, snap poller.Snapshot) error {
	return c.println(snap.Summary.FormatLine(snap.Timestamp))
}

// OnFailure prints the cause of a failed cycle
func (c *Console) OnFailure(_ context.Context, _ time.Time, err error) {
	_ = c.println("Error: " + err.Error())
}

func (c *Console) println(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, line); err != nil {
		return fmt.Errorf("failed to write console line: %w", err)
	}
	return nil
}
