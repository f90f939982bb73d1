// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

// fifo is an unbounded first-in first-out queue. Not safe for
// concurrent use; the store mutex guards it.
type fifo[T any] struct {
	items []T
	head  int
}

func (q *fifo[T]) push(item T) {
	q.items = append(q.items, item)
}

func (q *fifo[T]) len() int {
	return len(q.items) - q.head
}

// pop removes up to n items from the front.
func (q *fifo[T]) pop(n int) []T {
	if n > q.len() {
		n = q.len()
	}
	if n <= 0 {
		return nil
	}

	out := make([]T, n)
	copy(out, q.items[q.head:q.head+n])

	var zero T
	for i := q.head; i < q.head+n; i++ {
		q.items[i] = zero
	}
	q.head += n

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return out
}

func (q *fifo[T]) reset() {
	q.items = nil
	q.head = 0
}
