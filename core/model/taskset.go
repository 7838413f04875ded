package model

// TaskSet is a set of tasks keyed by ID. Iteration follows insertion order so
// that seeded runs are reproducible.
type TaskSet struct {
	index map[string]int
	items []*Task
}

// NewTaskSet returns a set holding the given tasks.
func NewTaskSet(tasks ...*Task) *TaskSet {
	s := &TaskSet{index: make(map[string]int, len(tasks))}
	for _, t := range tasks {
		s.Add(t)
	}
	return s
}

// Add inserts t and returns false if it was already present.
func (s *TaskSet) Add(t *Task) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[t.ID]; ok {
		return false
	}
	s.index[t.ID] = len(s.items)
	s.items = append(s.items, t)
	return true
}

// Remove deletes t and returns false if it was not present.
func (s *TaskSet) Remove(t *Task) bool {
	i, ok := s.index[t.ID]
	if !ok {
		return false
	}
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	delete(s.index, t.ID)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
	return true
}

// Contains reports whether a task with the same ID is in the set.
func (s *TaskSet) Contains(t *Task) bool {
	if s == nil || t == nil {
		return false
	}
	_, ok := s.index[t.ID]
	return ok
}

// Len returns the number of tasks.
func (s *TaskSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Slice returns a copy of the tasks in insertion order.
func (s *TaskSet) Slice() []*Task {
	if s == nil {
		return nil
	}
	return append([]*Task(nil), s.items...)
}

// Clear removes every task.
func (s *TaskSet) Clear() {
	s.index = make(map[string]int)
	s.items = nil
}

// Equal reports whether both sets hold the same task IDs.
func (s *TaskSet) Equal(o *TaskSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, t := range s.Slice() {
		if !o.Contains(t) {
			return false
		}
	}
	return true
}
