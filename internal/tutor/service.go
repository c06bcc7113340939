package tutor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/unstuck-app/unstuck/internal/llm"
	"github.com/unstuck-app/unstuck/internal/storage"
)

// ModelGateway is the slice of the LLM gateway the tutor uses. The
// production implementation is *llm.Gateway; tests substitute a stub.
type ModelGateway interface {
	ExtractProblem(ctx context.Context, imageURL string) (llm.ExtractResult, error)
	Solve(ctx context.Context, problemText, imageURL string) (llm.SolveResult, error)
	Decompose(ctx context.Context, p llm.Problem, hiddenSolution string, work llm.StudentWork) (llm.DecomposeResult, error)
	CheckThinking(ctx context.Context, p llm.Problem, work llm.StudentWork) (string, error)
	Verify(ctx context.Context, original *llm.Problem, subproblem llm.Problem, attempt llm.StudentWork) (llm.VerifyResult, error)
}

// Service orchestrates the problem hierarchy: it owns no state of its own,
// only the workflow between the store and the model gateway. The client
// keeps its own path through the tree; the server only holds the tree.
type Service struct {
	store *storage.Store
	gw    ModelGateway
}

// NewService creates a Service over the given store and gateway.
func NewService(store *storage.Store, gw ModelGateway) *Service {
	return &Service{store: store, gw: gw}
}

// IngestRequest is a new problem submission: an image, free text, or both.
type IngestRequest struct {
	ImageURL string
	Text     string
}

// IngestResult reports the created root node. Extraction metadata is set
// only when the problem arrived as an image.
type IngestResult struct {
	ProblemID   string
	ProblemText string
	Category    string
	Title       string
}

// Ingest creates a root problem node: transcribe the image when no text was
// given, solve, and persist with the solution hidden. The node id is
// returned, never the hidden fields.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if req.ImageURL == "" && req.Text == "" {
		return IngestResult{}, errValidation("an image URL or problem text is required")
	}

	content := storage.ProblemContent{
		Text:     req.Text,
		ImageURL: req.ImageURL,
	}
	var result IngestResult

	if req.Text == "" {
		extracted, err := s.gw.ExtractProblem(ctx, req.ImageURL)
		if err != nil {
			return IngestResult{}, err
		}
		content.Text = extracted.ProblemText
		content.Category = extracted.Category
		content.Title = extracted.Title
		result.ProblemText = extracted.ProblemText
		result.Category = extracted.Category
		result.Title = extracted.Title
	}

	solved, err := s.gw.Solve(ctx, content.Text, req.ImageURL)
	if err != nil {
		return IngestResult{}, err
	}

	node := storage.ProblemNode{
		ID:             uuid.New().String(),
		Content:        content,
		HiddenSolution: solved.Solution,
		HiddenAnswer:   solved.Answer,
		GeneratedBy:    storage.GeneratedByUserUpload,
		Status:         storage.StatusActive,
	}
	if err := s.store.CreateNode(node); err != nil {
		return IngestResult{}, fmt.Errorf("persisting problem node: %w", err)
	}

	slog.Info("problem ingested", "problem_id", node.ID, "has_image", req.ImageURL != "")
	result.ProblemID = node.ID
	return result, nil
}

// ParentSummary is the shallow projection of a node's parent.
type ParentSummary struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
	Title    string `json:"title,omitempty"`
}

// ProblemView is the public projection of a node. It is a strict allow-list:
// hidden solution and answer have no field here, which is what enforces the
// confidentiality invariant for every non-reveal read.
type ProblemView struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	Category      string         `json:"category"`
	Title         string         `json:"title"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	Status        storage.Status `json:"status"`
	ParentID      string         `json:"parentId,omitempty"`
	IsSubproblem  bool           `json:"isSubproblem"`
	TargetInsight string         `json:"targetInsight,omitempty"`
	Parent        *ParentSummary `json:"parent,omitempty"`
}

// GetProblem returns the public projection of a node with a shallow parent
// summary. A malformed (non-UUID) id is a validation error, not a miss.
func (s *Service) GetProblem(ctx context.Context, id string) (ProblemView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ProblemView{}, errValidation("invalid problem id format")
	}

	node, parent, err := s.store.GetNodeWithParent(id)
	if err != nil {
		return ProblemView{}, err
	}

	view := ProblemView{
		ID:            node.ID,
		Text:          node.Content.Text,
		Category:      node.Content.Category,
		Title:         node.Content.Title,
		ImageURL:      node.Content.ImageURL,
		Status:        node.Status,
		ParentID:      node.ParentID,
		IsSubproblem:  node.GeneratedBy == storage.GeneratedByLLMSubproblem,
		TargetInsight: node.TargetInsight,
	}
	if view.Category == "" {
		view.Category = "General"
	}
	if view.Title == "" {
		view.Title = "Problem"
	}
	if parent != nil {
		view.Parent = &ParentSummary{
			ID:       parent.ID,
			Text:     parent.Content.Text,
			ImageURL: parent.Content.ImageURL,
			Title:    parent.Content.Title,
		}
	}
	return view, nil
}

// StuckRequest carries the student's evidence when they signal being stuck.
type StuckRequest struct {
	ProblemID  string
	WorkImages []string
	WorkText   string
}

// StuckResult is the generated subproblem plus tutoring messages. The
// subproblem's solution stays hidden, like any other node's.
type StuckResult struct {
	SubproblemID           string `json:"subproblemId"`
	StudentSummary         string `json:"studentSummary"`
	MissingInsight         string `json:"missingInsight"`
	SubproblemText         string `json:"subproblemText"`
	TutorIntro             string `json:"tutorIntro"`
	TutorSubproblemMessage string `json:"tutorSubproblemMessage"`
}

// Stuck diagnoses the student's gap and pushes one new level onto the
// problem tree: a child node isolating the missing insight. Each call
// creates a fresh subproblem; siblings from repeated calls are allowed.
func (s *Service) Stuck(ctx context.Context, req StuckRequest) (StuckResult, error) {
	if req.ProblemID == "" {
		return StuckResult{}, errValidation("problem id is required")
	}

	node, err := s.store.GetNode(req.ProblemID)
	if err != nil {
		return StuckResult{}, err
	}

	work := llm.StudentWork{Text: req.WorkText, Images: req.WorkImages}
	dec, err := s.gw.Decompose(ctx, asProblem(node.Content), node.HiddenSolution, work)
	if err != nil {
		return StuckResult{}, err
	}

	child := storage.ProblemNode{
		ID:       uuid.New().String(),
		ParentID: node.ID,
		Content:  storage.ProblemContent{Text: dec.SubproblemText},
		// Subproblems are insight checks, not answer checks.
		HiddenSolution: dec.HiddenSubproblemSolution,
		HiddenAnswer:   "",
		TargetInsight:  dec.MissingInsight,
		GeneratedBy:    storage.GeneratedByLLMSubproblem,
		Status:         storage.StatusActive,
	}
	if err := s.store.CreateNode(child); err != nil {
		return StuckResult{}, fmt.Errorf("persisting subproblem: %w", err)
	}

	if err := s.logAttempt(node.ID, req.WorkImages, req.WorkText); err != nil {
		return StuckResult{}, err
	}

	slog.Info("subproblem generated", "parent_id", node.ID, "subproblem_id", child.ID)
	return StuckResult{
		SubproblemID:           child.ID,
		StudentSummary:         dec.StudentSummary,
		MissingInsight:         dec.MissingInsight,
		SubproblemText:         dec.SubproblemText,
		TutorIntro:             dec.TutorIntro,
		TutorSubproblemMessage: dec.TutorSubproblemMessage,
	}, nil
}

// CheckRequest carries work submitted for an advisory thinking check.
type CheckRequest struct {
	ProblemID  string
	WorkImages []string
	WorkText   string
}

// CheckThinking critiques the student's work and logs the attempt. It never
// changes node status and never creates nodes.
func (s *Service) CheckThinking(ctx context.Context, req CheckRequest) (string, error) {
	if req.ProblemID == "" {
		return "", errValidation("problem id is required")
	}

	node, err := s.store.GetNode(req.ProblemID)
	if err != nil {
		return "", err
	}

	work := llm.StudentWork{Text: req.WorkText, Images: req.WorkImages}
	feedback, err := s.gw.CheckThinking(ctx, asProblem(node.Content), work)
	if err != nil {
		return "", err
	}

	if err := s.logAttempt(node.ID, req.WorkImages, req.WorkText); err != nil {
		return "", err
	}
	return feedback, nil
}

// CompleteRequest carries the attempt the student wants verified.
type CompleteRequest struct {
	SubproblemID string
	WorkImages   []string
	WorkText     string
}

// Complete verifies a subproblem attempt against one parent level. The
// verification verdict is the sole gate for the active -> solved transition;
// popping the navigation stack on solved=true is the client's job.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (llm.VerifyResult, error) {
	if req.SubproblemID == "" {
		return llm.VerifyResult{}, errValidation("subproblem id is required")
	}

	node, parent, err := s.store.GetNodeWithParent(req.SubproblemID)
	if err != nil {
		return llm.VerifyResult{}, err
	}

	var original *llm.Problem
	if parent != nil {
		p := asProblem(parent.Content)
		original = &p
	}

	attempt := llm.StudentWork{Text: req.WorkText, Images: req.WorkImages}
	verdict, err := s.gw.Verify(ctx, original, asProblem(node.Content), attempt)
	if err != nil {
		return llm.VerifyResult{}, err
	}

	if verdict.Solved {
		if err := s.store.UpdateStatus(node.ID, storage.StatusSolved); err != nil {
			return llm.VerifyResult{}, fmt.Errorf("marking subproblem solved: %w", err)
		}
		slog.Info("subproblem solved", "subproblem_id", node.ID)
	}

	if err := s.logAttempt(node.ID, req.WorkImages, req.WorkText); err != nil {
		return llm.VerifyResult{}, err
	}
	return verdict, nil
}

// Reveal returns the hidden solution and answer of a node. No status
// change, no attempt logged; calling it twice yields identical results.
func (s *Service) Reveal(ctx context.Context, problemID string) (storage.HiddenFields, error) {
	if problemID == "" {
		return storage.HiddenFields{}, errValidation("problem id is required")
	}
	return s.store.GetHiddenFields(problemID)
}

// RecentProblems lists the latest uploaded root problems for the
// last-active display. The limit is clamped by the store.
func (s *Service) RecentProblems(ctx context.Context, limit int) ([]storage.RecentProblem, error) {
	return s.store.ListRecent(storage.GeneratedByUserUpload, limit)
}

// AttemptCount reports how many attempts have been logged against a node.
func (s *Service) AttemptCount(ctx context.Context, problemID string) (int, error) {
	attempts, err := s.store.ListAttempts(problemID)
	if err != nil {
		return 0, err
	}
	return len(attempts), nil
}

func (s *Service) logAttempt(nodeID string, images []string, text string) error {
	a := storage.Attempt{
		ID:            uuid.New().String(),
		ProblemNodeID: nodeID,
		UserWork:      images,
		UserText:      text,
	}
	if err := s.store.CreateAttempt(a); err != nil {
		return fmt.Errorf("logging attempt: %w", err)
	}
	return nil
}

func asProblem(c storage.ProblemContent) llm.Problem {
	return llm.Problem{Text: c.Text, ImageURL: c.ImageURL}
}
