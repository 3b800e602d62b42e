package signaling

// outboundQueue holds serialized messages that could not be written yet.
// It is not safe for concurrent use; the owning Channel guards it.
type outboundQueue struct {
	items [][]byte
}

// push appends a serialized message.
func (q *outboundQueue) push(data []byte) {
	q.items = append(q.items, data)
}

// len returns the number of pending messages.
func (q *outboundQueue) len() int {
	return len(q.items)
}

// drain passes pending messages to write in insertion order. It stops at the
// first write error and keeps that message and everything after it queued.
func (q *outboundQueue) drain(write func([]byte) error) (int, error) {
	for i, data := range q.items {
		if err := write(data); err != nil {
			q.items = q.items[i:]
			return i, err
		}
	}
	n := len(q.items)
	q.items = nil
	return n, nil
}
