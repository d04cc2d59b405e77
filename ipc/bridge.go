package ipc

import (
	"errors"
	"image"
	"sync"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layers"
)

// ErrClosed is returned by sends on a closed bridge.
var ErrClosed = errors.New("ipc: bridge closed")

// queue is an unbounded FIFO feeding a channel.
type queue struct {
	mu     sync.Mutex
	items  []Message
	closed bool
	wake   chan struct{}
	done   chan struct{}
	out    chan Message
}

func newQueue() *queue {
	q := &queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Message),
	}
	go q.run()
	return q
}

func (q *queue) push(m Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, m)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *queue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		for len(q.items) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		m := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- m:
		case <-q.done:
			return
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	close(q.done)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Bridge connects one content producer to one compositor.
type Bridge struct {
	up   *queue // content to compositor
	down *queue // compositor to content

	content    ContentEnd
	compositor CompositorEnd
}

// New returns an open bridge.
func New() *Bridge {
	b := &Bridge{up: newQueue(), down: newQueue()}
	b.content = ContentEnd{b: b}
	b.compositor = CompositorEnd{b: b}
	return b
}

// Content returns the producer's end.
func (b *Bridge) Content() *ContentEnd { return &b.content }

// Compositor returns the compositor's end.
func (b *Bridge) Compositor() *CompositorEnd { return &b.compositor }

// Close shuts both directions down. Undelivered messages are dropped.
func (b *Bridge) Close() {
	b.up.close()
	b.down.close()
}

// ContentEnd sends content messages and receives compositor replies.
type ContentEnd struct {
	b *Bridge
}

// SendTreeUpdate queues a transaction.
func (e *ContentEnd) SendTreeUpdate(tx *layers.Transaction) error {
	return e.b.up.push(TreeUpdate{Tx: tx})
}

// SendBuffer queues painted content for a node. The producer must not
// touch buf until it comes back in a Recycled message.
func (e *ContentEnd) SendBuffer(node layers.ID, buf *bufferhost.RotatedBuffer, dirty geom.Region) error {
	return e.b.up.push(BufferUpdate{Node: node, Buffer: buf, Dirty: dirty})
}

// SendImage queues a new image for an image node.
func (e *ContentEnd) SendImage(node layers.ID, img image.Image) error {
	return e.b.up.push(ImageUpdate{Node: node, Image: img})
}

// Replies returns the channel of compositor messages. It is closed when
// the bridge closes.
func (e *ContentEnd) Replies() <-chan Message { return e.b.down.out }

// Close closes the whole bridge.
func (e *ContentEnd) Close() { e.b.Close() }

// CompositorEnd receives content messages and sends replies.
type CompositorEnd struct {
	b *Bridge
}

// Inbound returns the channel of content messages. It is closed when the
// bridge closes.
func (e *CompositorEnd) Inbound() <-chan Message { return e.b.up.out }

// Send queues a reply to the producer.
func (e *CompositorEnd) Send(m Message) error { return e.b.down.push(m) }

// Pending returns the number of replies not yet received.
func (e *CompositorEnd) Pending() int { return e.b.down.len() }
