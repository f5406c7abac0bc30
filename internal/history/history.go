// Package history implements the undo/redo timeline of one open sketch.
//
// The stack is a list of canvas states with a cursor pointing at the state
// on screen and a base index that undo can never cross. Pushing after an
// undo discards every state past the cursor.
package history

import "sketchboard/internal/sketch"

// Stack is not safe for concurrent use; it belongs to a single surface.
type Stack struct {
	states []sketch.State
	cursor int
	base   int
	limit  int
}

type Option func(*Stack)

// WithLimit caps the number of stored states. Once exceeded, the oldest
// entries above the floor are dropped. Values below 2 disable the cap.
func WithLimit(n int) Option {
	return func(s *Stack) {
		if n >= 2 {
			s.limit = n
		}
	}
}

// New returns a stack holding only initial.
func New(initial sketch.State, opts ...Option) *Stack {
	s := &Stack{states: []sketch.State{initial}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push records state as the newest entry and moves the cursor onto it. Any
// redo tail is destroyed.
func (s *Stack) Push(state sketch.State) {
	s.states = append(s.states[:s.cursor+1], state)
	s.cursor = len(s.states) - 1
	s.trim()
}

// Undo steps back one state. It is a no-op at the floor.
func (s *Stack) Undo() (sketch.State, bool) {
	if !s.CanUndo() {
		return s.Current(), false
	}
	s.cursor--
	return s.states[s.cursor], true
}

// Redo steps forward one state. It is a no-op at the newest state.
func (s *Stack) Redo() (sketch.State, bool) {
	if !s.CanRedo() {
		return s.Current(), false
	}
	s.cursor++
	return s.states[s.cursor], true
}

// Reset replaces the whole timeline with [initial]. base is clamped into the
// valid index range, which after a reset is always just 0.
func (s *Stack) Reset(initial sketch.State, base int) {
	s.states = []sketch.State{initial}
	s.cursor = 0
	s.base = min(max(base, 0), len(s.states)-1)
}

func (s *Stack) Current() sketch.State { return s.states[s.cursor] }
func (s *Stack) Cursor() int           { return s.cursor }
func (s *Stack) Base() int             { return s.base }
func (s *Stack) Len() int              { return len(s.states) }
func (s *Stack) CanUndo() bool         { return s.cursor > s.base }
func (s *Stack) CanRedo() bool         { return s.cursor < len(s.states)-1 }

// At returns the state stored at index i.
func (s *Stack) At(i int) sketch.State { return s.states[i] }

func (s *Stack) trim() {
	for s.limit > 0 && len(s.states) > s.limit {
		// The floor itself stays; the oldest entry above it goes.
		drop := s.base + 1
		if drop >= s.cursor {
			return
		}
		s.states = append(s.states[:drop:drop], s.states[drop+1:]...)
		s.cursor--
	}
}
