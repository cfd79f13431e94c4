package conn_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"concierge/pkg/conn"
)

var errRemoteClosed = errors.New("remote closed")

// fakeConn is an in-memory conn.Conn. Frames pushed with deliver are returned
// by ReadMessage; drop simulates the remote side going away.
type fakeConn struct {
	dialer *fakeDialer
	in     chan []byte
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.done:
		return nil, errRemoteClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.dialer.release()
	})
	return nil
}

func (c *fakeConn) deliver(data string) {
	c.in <- []byte(data)
}

func (c *fakeConn) drop() {
	_ = c.Close()
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

func (c *fakeConn) setWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// fakeDialer hands out fakeConns and records how many are alive at once.
type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	live    int
	maxLive int
	fail    bool
	gate    chan struct{} // when non-nil, Dial blocks until it is closed
	conns   []*fakeConn
	dialAt  []time.Time
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (conn.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.dialAt = append(d.dialAt, time.Now())
	gate, fail := d.gate, d.fail
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("connection refused")
	}

	c := &fakeConn{dialer: d, in: make(chan []byte, 16), done: make(chan struct{})}
	d.mu.Lock()
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live--
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) MaxLive() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLive
}

func (d *fakeDialer) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func (d *fakeDialer) DialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dialAt...)
}

// stateRecorder collects every published transition.
type stateRecorder struct {
	mu     sync.Mutex
	states []conn.State
}

func (r *stateRecorder) observe(s conn.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) States() []conn.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conn.State(nil), r.states...)
}

// waitFor polls condition every tick until it returns true or timeout expires.
func waitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("waitFor: condition not met within %v", timeout)
}
