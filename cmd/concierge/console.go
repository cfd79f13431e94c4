package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// console serializes line-mode output and draws a progress spinner on
// terminals. Lines printed while a spinner runs are written above it.
type console struct {
	w     io.Writer
	isTTY bool

	mu       sync.Mutex
	spinning bool
}

func newConsole(w io.Writer, isTTY bool) *console {
	return &console{w: w, isTTY: isTTY}
}

// Step prints a completed step with a checkmark.
func (c *console) Step(msg string) {
	c.Line(mark(true) + " " + msg)
}

// Line prints one line of output.
func (c *console) Line(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spinning {
		fmt.Fprint(c.w, "\r\033[K")
	}
	fmt.Fprintln(c.w, s)
}

// Linef formats and prints one line.
func (c *console) Linef(format string, args ...any) {
	c.Line(fmt.Sprintf(format, args...))
}

// StartSpinner shows msg with an animated spinner until the returned stop
// function runs. stop(true) prints the final checkmark and stop(false) a
// cross; only the first call has an effect. Without a terminal msg is
// printed once and stop prints the result line.
func (c *console) StartSpinner(msg string) func(ok bool) {
	if !c.isTTY {
		c.Line(msg)
		var once sync.Once
		return func(ok bool) { once.Do(func() { c.Line(mark(ok) + " " + msg) }) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)

	c.mu.Lock()
	c.spinning = true
	c.mu.Unlock()

	frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i = (i + 1) % len(frames) {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				fmt.Fprintf(c.w, "\r%c %s", frames[i], msg)
				c.mu.Unlock()
			}
		}
	}()

	var once sync.Once
	return func(ok bool) {
		once.Do(func() {
			cancel()
			wg.Wait()

			c.mu.Lock()
			defer c.mu.Unlock()
			c.spinning = false
			fmt.Fprintf(c.w, "\r\033[K%s %s\n", mark(ok), msg)
		})
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
