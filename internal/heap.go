package internal

// taskHeap is a slice-backed binary min-heap ordered by (sortIndex, id).
// The id tie-break keeps same-priority tasks FIFO: earlier-created tasks
// sort first when their sort indices are equal.
type taskHeap struct {
	tasks []*Task
}

func (h *taskHeap) Len() int {
	return len(h.tasks)
}

// Peek returns the minimum without removing it, or nil when empty.
func (h *taskHeap) Peek() *Task {
	if len(h.tasks) == 0 {
		return nil
	}
	return h.tasks[0]
}

func (h *taskHeap) Push(t *Task) {
	h.tasks = append(h.tasks, t)
	h.siftUp(len(h.tasks) - 1)
}

// Pop removes and returns the minimum, or nil when empty. The last element
// replaces the root and sifts down.
func (h *taskHeap) Pop() *Task {
	if len(h.tasks) == 0 {
		return nil
	}

	min := h.tasks[0]
	last := len(h.tasks) - 1

	h.tasks[0] = h.tasks[last]
	h.tasks[last] = nil
	h.tasks = h.tasks[:last]

	if last > 0 {
		h.siftDown(0)
	}

	return min
}

func (h *taskHeap) less(i, j int) bool {
	a, b := h.tasks[i], h.tasks[j]
	if !a.sortIndex.Equal(b.sortIndex) {
		return a.sortIndex.Before(b.sortIndex)
	}
	return a.id < b.id
}

func (h *taskHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			return
		}
		h.tasks[i], h.tasks[parent] = h.tasks[parent], h.tasks[i]
		i = parent
	}
}

func (h *taskHeap) siftDown(i int) {
	n := len(h.tasks)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}

		smallest := left
		if right := left + 1; right < n && h.less(right, left) {
			smallest = right
		}

		if !h.less(smallest, i) {
			return
		}

		h.tasks[i], h.tasks[smallest] = h.tasks[smallest], h.tasks[i]
		i = smallest
	}
}
