package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// GeneratedBy records how a problem node came into existence.
type GeneratedBy string

const (
	GeneratedByUserUpload    GeneratedBy = "user_upload"
	GeneratedByLLMSubproblem GeneratedBy = "llm_subproblem"
)

func (g GeneratedBy) Valid() bool {
	return g == GeneratedByUserUpload || g == GeneratedByLLMSubproblem
}

// Status is the lifecycle state of a problem node.
type Status string

const (
	StatusActive  Status = "active"
	StatusSolved  Status = "solved"
	StatusAborted Status = "aborted"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSolved || s == StatusAborted
}

// allowedTransitions is the full transition table. Solved and aborted are
// terminal. Setting the current status again is a no-op, handled separately.
var allowedTransitions = map[Status][]Status{
	StatusActive:  {StatusSolved, StatusAborted},
	StatusSolved:  {},
	StatusAborted: {},
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ProblemContent is the student-visible statement of a problem. At least one
// of Text or ImageURL must be set; Category and Title are display metadata.
type ProblemContent struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Category string `json:"category,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Validate checks the content invariant at the store boundary.
func (c ProblemContent) Validate() error {
	if c.Text == "" && c.ImageURL == "" {
		return errors.New("problem content requires text or an image URL")
	}
	return nil
}

// ProblemNode is one node in the problem tree: either an uploaded root
// problem or a generated subproblem. HiddenSolution and HiddenAnswer must
// never reach a client except through the reveal operation.
type ProblemNode struct {
	ID             string
	ParentID       string // empty for root nodes
	Content        ProblemContent
	HiddenSolution string
	HiddenAnswer   string
	TargetInsight  string // set only on generated subproblems
	GeneratedBy    GeneratedBy
	Status         Status
	CreatedAt      time.Time
}

// HiddenFields is the reveal-only projection of a node.
type HiddenFields struct {
	Solution string
	Answer   string
}

// Attempt is an immutable record of one submission of student work against
// a node. Attempts are only ever inserted, never updated or deleted.
type Attempt struct {
	ID            string
	ProblemNodeID string
	UserWork      []string // image references
	UserText      string
	Timestamp     time.Time
}

// RecentProblem is the listing row for the recent-problems view: node
// metadata joined with the time of its most recent attempt.
type RecentProblem struct {
	ID           string
	Title        string
	Category     string
	Status       Status
	LastActiveAt time.Time
	CreatedAt    time.Time
}
