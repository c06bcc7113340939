// Package session holds the client-side navigation state for a tutoring
// session: the stack of problems from the uploaded root down to the
// subproblem currently being worked on, and the chat transcript. Nothing
// here is persisted; the server holds the tree, the client holds a path
// through it.
package session

import (
	"errors"
	"fmt"
)

// Frame is one level of the problem stack.
type Frame struct {
	ID           string
	Title        string
	IsSubproblem bool
}

// Stack is the ordered path from the root problem to the current
// subproblem. The root is always at the bottom; every deeper frame is a
// generated subproblem. Frames are only ever appended by a stuck flow and
// removed last-in-first-out.
type Stack struct {
	frames []Frame
}

// NewStack starts a session at a root problem.
func NewStack(root Frame) (*Stack, error) {
	if root.ID == "" {
		return nil, errors.New("root frame requires an id")
	}
	if root.IsSubproblem {
		return nil, errors.New("stack must start at a root problem")
	}
	return &Stack{frames: []Frame{root}}, nil
}

// Current returns the frame being worked on.
func (s *Stack) Current() Frame {
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of frames, the root included.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Frames returns a copy of the path, root first.
func (s *Stack) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Push appends a freshly created subproblem frame.
func (s *Stack) Push(f Frame) error {
	if f.ID == "" {
		return errors.New("frame requires an id")
	}
	if !f.IsSubproblem {
		return errors.New("only subproblems can be pushed onto the stack")
	}
	s.frames = append(s.frames, f)
	return nil
}

// Pop removes the current subproblem and returns it. The root frame is
// never popped; Pop at the root reports ok=false.
func (s *Stack) Pop() (Frame, bool) {
	if len(s.frames) == 1 {
		return Frame{}, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

// TruncateTo cuts the stack back to the prefix ending at index i, the
// breadcrumb navigation operation. TruncateTo(0) returns to the root.
func (s *Stack) TruncateTo(i int) error {
	if i < 0 || i >= len(s.frames) {
		return fmt.Errorf("breadcrumb index %d out of range (depth %d)", i, len(s.frames))
	}
	s.frames = s.frames[:i+1]
	return nil
}
