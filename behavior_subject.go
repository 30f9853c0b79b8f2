package streamix

// BehaviorSubject is a subject that remembers its latest value: every new
// subscriber first observes the current value, then subsequent commits.
// Subscribers joining after the terminal observe only the terminal.
type BehaviorSubject[T any] struct {
	*Subject[T]
}

// NewBehaviorSubject creates a behavior subject seeded with initial.
func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	s := &Subject[T]{
		name: "behaviorSubject",
		kind: KindBehaviorSubject,
		buf:  newBuffer[T](bufferBehavior, 1),
	}
	s.Next(initial)
	return &BehaviorSubject[T]{Subject: s}
}

// Current returns the latest committed value. A behavior subject always
// has one.
func (s *BehaviorSubject[T]) Current() T {
	v, _ := s.Value()
	return v
}
