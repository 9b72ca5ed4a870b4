package pipeline

import "github.com/tjfontaine/relaypipe/internal/core/ports"

// queue is a FIFO of participants consumed through a cursor.
// Popped slots are cleared so consumed participants can be collected.
type queue struct {
	items []ports.Participant
	head  int
}

func (q *queue) push(p ports.Participant) {
	q.items = append(q.items, p)
}

func (q *queue) pop() (ports.Participant, bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	p := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	return p, true
}

// len returns the number of participants not yet dequeued.
func (q *queue) len() int {
	return len(q.items) - q.head
}
