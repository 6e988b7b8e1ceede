package relay

// pendingMessage is one queued client payload with its websocket frame type.
type pendingMessage struct {
	messageType int
	data        []byte
}

// pendingBuffer holds client messages that arrived before the upstream
// connection was ready. Insertion order is arrival order and drains are
// strictly FIFO. The buffer is owned by its session's event loop and is not
// safe for concurrent use.
type pendingBuffer struct {
	items []pendingMessage
}

// enqueue appends a payload to the tail.
func (b *pendingBuffer) enqueue(messageType int, data []byte) {
	b.items = append(b.items, pendingMessage{messageType: messageType, data: data})
}

// len reports the number of queued payloads.
func (b *pendingBuffer) len() int {
	return len(b.items)
}

// drainInto transmits queued payloads from the head, in order, until the
// buffer is empty. If a write fails, the drain stops immediately and the
// failed payload plus everything behind it stay queued. Returns the number of
// payloads delivered.
func (b *pendingBuffer) drainInto(w messageWriter) (int, error) {
	sent := 0
	for len(b.items) > 0 {
		head := b.items[0]
		if err := w.WriteMessage(head.messageType, head.data); err != nil {
			return sent, err
		}
		b.items = b.items[1:]
		sent++
	}
	b.items = nil
	return sent, nil
}

// discard drops all queued payloads.
func (b *pendingBuffer) discard() {
	b.items = nil
}

// messageWriter is the write half of a websocket connection.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}
