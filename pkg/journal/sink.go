package journal

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// DefaultSinkCapacity bounds the number of entries waiting to be written.
const DefaultSinkCapacity = 256

type entry struct {
	kind    Kind
	subject string
	detail  string
}

// Sink decouples callers from database latency. Post never blocks; entries
// are written by Run. When the buffer is full the oldest entry is evicted.
type Sink struct {
	j   *Journal
	log *slog.Logger

	mu      sync.Mutex
	buf     []entry
	cap     int
	evicted int
	wake    chan struct{}
}

// NewSink creates a Sink writing to j. A nil logger discards.
func NewSink(j *Journal, capacity int, log *slog.Logger) *Sink {
	if capacity <= 0 {
		capacity = DefaultSinkCapacity
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sink{
		j:    j,
		log:  log,
		buf:  make([]entry, 0, capacity),
		cap:  capacity,
		wake: make(chan struct{}, 1),
	}
}

// Post queues an entry. A nil Sink ignores it.
func (s *Sink) Post(kind Kind, subject, detail string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if len(s.buf) >= s.cap {
		copy(s.buf, s.buf[1:])
		s.buf[len(s.buf)-1] = entry{kind, subject, detail}
		s.evicted++
	} else {
		s.buf = append(s.buf, entry{kind, subject, detail})
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued entries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Run writes queued entries until ctx is done, then flushes what is left.
// Writes are not bound to ctx so the final flush can complete.
func (s *Sink) Run(ctx context.Context) error {
	wctx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			s.flush(wctx)
			return nil
		case <-s.wake:
			s.flush(wctx)
		}
	}
}

func (s *Sink) drain() ([]entry, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return nil, 0
	}
	out := make([]entry, len(s.buf))
	copy(out, s.buf)
	s.buf = s.buf[:0]
	evicted := s.evicted
	s.evicted = 0
	return out, evicted
}

func (s *Sink) flush(ctx context.Context) {
	batch, evicted := s.drain()
	if evicted > 0 {
		s.log.Warn("journal sink overflow, oldest entries dropped", "dropped", evicted)
	}
	for _, e := range batch {
		if err := s.j.Record(ctx, e.kind, e.subject, e.detail); err != nil {
			s.log.Warn("journal write failed", "kind", e.kind, "error", err)
		}
	}
}
