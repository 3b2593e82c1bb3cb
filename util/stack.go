package util

import "iter"

// Stack is a LIFO of A, where the most recently pushed element is the top
type Stack[A any] struct {
	items []A
}

func (s *Stack[A]) Push(v A) {
	s.items = append(s.items, v)
}

func (s *Stack[A]) Pop() (ret A, ok bool) {
	if len(s.items) <= 0 {
		return ret, false
	}
	lastIndex := len(s.items) - 1
	defer func() {
		s.items = s.items[:lastIndex]
	}()
	return s.items[lastIndex], true
}

// Peek returns the top of the stack without removing it
func (s *Stack[A]) Peek() (ret A, ok bool) {
	if len(s.items) <= 0 {
		return ret, false
	}
	return s.items[len(s.items)-1], true
}

// At returns the element at depth i, where 0 is the bottom of the stack
func (s *Stack[A]) At(i int) A {
	return s.items[i]
}

func (s *Stack[A]) Len() int {
	return len(s.items)
}

// TopDown iterates from the top of the stack to its bottom
func (s *Stack[A]) TopDown() iter.Seq[A] {
	return Reverse(s.items)
}

func (s *Stack[A]) PopAll() []A {
	defer func() {
		s.items = make([]A, 0)
	}()
	return s.items
}
