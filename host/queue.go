package host

import (
	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
)

// submissionQueue is a host-memory ring of submission entries.
type submissionQueue struct {
	id    uint16
	depth uint16
	buf   *mem.Buffer
	tail  uint16
	head  uint16 // Last head reported by the controller
}

// full reports whether another entry would overrun the controller's head.
func (q *submissionQueue) full() bool {
	return (q.tail+1)%q.depth == q.head
}

// push copies cmd into the tail slot and returns the new tail.
func (q *submissionQueue) push(cmd *nvme.Command) uint16 {
	off := uint64(q.tail) * nvme.CommandSize
	cmd.MarshalTo(q.buf.Bytes()[off : off+nvme.CommandSize])
	q.tail = (q.tail + 1) % q.depth
	return q.tail
}

// completionQueue is a host-memory ring of completion entries consumed by
// phase tag.
type completionQueue struct {
	id     uint16
	depth  uint16
	buf    *mem.Buffer
	head   uint16
	phase  bool // Phase tag expected of the next new entry
	vector uint16
}

func newCompletionQueue(id, depth uint16, buf *mem.Buffer, vector uint16) *completionQueue {
	clear(buf.Bytes())
	return &completionQueue{
		id:     id,
		depth:  depth,
		buf:    buf,
		phase:  true,
		vector: vector,
	}
}

// pop parses the entry at head if the controller has posted it, and
// advances head. It returns false when no new entry is present.
func (q *completionQueue) pop(out *nvme.Completion) bool {
	off := uint64(q.head) * nvme.CompletionSize
	entry := q.buf.Bytes()[off : off+nvme.CompletionSize]
	if nvme.PhaseOf(entry) != q.phase {
		return false
	}
	nvme.ParseCompletion(entry, out)

	q.head = (q.head + 1) % q.depth
	if q.head == 0 {
		q.phase = !q.phase
	}
	return true
}
