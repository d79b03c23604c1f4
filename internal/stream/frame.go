// Package stream feeds camera frames into recognition sessions.
//
// Each camera runs a producer that polls a Grabber into a single-slot
// LatestFrame and a consumer that runs the newest frame through its
// Session. Frames the consumer is too slow for are dropped, never queued.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Next once the producer has stopped.
var ErrClosed = errors.New("frame slot closed")

// Frame is one grabbed image.
type Frame struct {
	Seq  uint64 // starts at 1
	Data []byte
	At   time.Time
}

// LatestFrame holds the most recent frame of a camera. One producer and one
// consumer may use it concurrently.
type LatestFrame struct {
	mu     sync.Mutex
	frame  Frame
	seq    uint64
	closed bool
	notify chan struct{}
}

func NewLatestFrame() *LatestFrame {
	return &LatestFrame{notify: make(chan struct{}, 1)}
}

// Put replaces the held frame and returns its sequence number. Puts after
// Close are ignored.
func (l *LatestFrame) Put(data []byte, at time.Time) uint64 {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	l.seq++
	l.frame = Frame{Seq: l.seq, Data: data, At: at}
	seq := l.seq
	l.mu.Unlock()

	l.wake()
	return seq
}

// Close marks the producer as gone.
func (l *LatestFrame) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.wake()
}

// Latest returns the held frame, if any.
func (l *LatestFrame) Latest() (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame, l.seq > 0
}

// Next blocks until a frame newer than after is available. A closed slot
// still hands out its last frame once.
func (l *LatestFrame) Next(ctx context.Context, after uint64) (Frame, error) {
	for {
		l.mu.Lock()
		if l.seq > after {
			f := l.frame
			l.mu.Unlock()
			return f, nil
		}
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return Frame{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-l.notify:
		}
	}
}

func (l *LatestFrame) wake() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}
