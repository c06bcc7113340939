package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Problem mirrors the student-visible statement of a node. The gateway keeps
// its own type so it stays decoupled from the storage layer.
type Problem struct {
	Text     string
	ImageURL string
}

// StudentWork is the evidence a student submits with a request: free text
// and/or image references of scratch work.
type StudentWork struct {
	Text   string
	Images []string
}

// ExtractResult is the transcription of a problem image.
type ExtractResult struct {
	ProblemText string `json:"problem_text"`
	Category    string `json:"category"`
	Title       string `json:"title"`
}

// SolveResult is the full hidden solution for a newly ingested problem.
type SolveResult struct {
	Solution string `json:"solution"`
	Answer   string `json:"answer"`
}

// DecomposeResult is the Socratic decomposition produced for a stuck student.
type DecomposeResult struct {
	StudentSummary           string `json:"student_summary"`
	MissingInsight           string `json:"missing_insight"`
	SubproblemText           string `json:"subproblem_text"`
	TutorIntro               string `json:"tutor_message_intro"`
	TutorSubproblemMessage   string `json:"tutor_message_subproblem"`
	HiddenSubproblemSolution string `json:"hidden_subproblem_solution"`
}

// VerifyResult is the verdict on a student's subproblem attempt.
type VerifyResult struct {
	Solved       bool   `json:"solved"`
	TutorMessage string `json:"tutor_message"`
}

// Gateway translates domain requests into single structured-output model
// calls. Every operation either returns a fully parsed result or a typed
// *UpstreamError; partial or invalid model output never leaks upward.
type Gateway struct {
	chat Chatter
}

// NewGateway creates a Gateway over the given chat client.
func NewGateway(c Chatter) *Gateway {
	return &Gateway{chat: c}
}

// ExtractProblem transcribes a problem statement from an image.
func (g *Gateway) ExtractProblem(ctx context.Context, imageURL string) (ExtractResult, error) {
	var out ExtractResult
	err := g.call(ctx, "extract", ChatRequest{
		System: extractSystemPrompt,
		User: []Part{{
			ImageURL: imageURL,
			Text:     "Please read and transcribe this problem exactly as shown. Use LaTeX for all mathematical expressions.",
		}},
		Schema:    extractSchema,
		MaxTokens: 2048,
	}, &out)
	return out, err
}

// Solve produces a complete step-by-step solution and a concise final
// answer. Invoked once per problem ingestion.
func (g *Gateway) Solve(ctx context.Context, problemText, imageURL string) (SolveResult, error) {
	var out SolveResult
	err := g.call(ctx, "solve", ChatRequest{
		System: solveSystemPrompt,
		User: []Part{{
			ImageURL: imageURL,
			Text:     "Please solve this problem completely. Show all steps.\n\nProblem:\n" + problemText,
		}},
		Schema:    solveSchema,
		MaxTokens: 4096,
	}, &out)
	return out, err
}

// Decompose diagnoses the student's conceptual gap against the hidden
// solution and generates a strictly easier subproblem isolating it.
func (g *Gateway) Decompose(ctx context.Context, p Problem, hiddenSolution string, work StudentWork) (DecomposeResult, error) {
	var out DecomposeResult
	err := g.call(ctx, "decompose", ChatRequest{
		System:    decomposeSystemPrompt,
		User:      withWorkImages([]Part{{Text: buildDecomposeContext(p, hiddenSolution, work)}}, work),
		Schema:    decomposeSchema,
		MaxTokens: 2048,
	}, &out)
	return out, err
}

// CheckThinking critiques the student's work in progress. Purely advisory.
func (g *Gateway) CheckThinking(ctx context.Context, p Problem, work StudentWork) (string, error) {
	var out struct {
		Feedback string `json:"feedback"`
	}
	err := g.call(ctx, "check", ChatRequest{
		System:    checkSystemPrompt,
		User:      withWorkImages([]Part{{Text: buildCheckContext(p, work)}}, work),
		Schema:    checkSchema,
		MaxTokens: 1024,
	}, &out)
	return out.Feedback, err
}

// Verify decides whether a subproblem attempt demonstrates the target
// concept. This is the sole gate for the solved-state transition.
func (g *Gateway) Verify(ctx context.Context, original *Problem, subproblem Problem, attempt StudentWork) (VerifyResult, error) {
	var out VerifyResult
	err := g.call(ctx, "verify", ChatRequest{
		System:    verifySystemPrompt,
		User:      withWorkImages([]Part{{Text: buildVerifyContext(original, subproblem, attempt)}}, attempt),
		Schema:    verifySchema,
		MaxTokens: 1024,
	}, &out)
	return out, err
}

// withWorkImages appends the student's scratch-work photos so the model
// sees them alongside the text context.
func withWorkImages(parts []Part, work StudentWork) []Part {
	for _, u := range work.Images {
		parts = append(parts, Part{ImageURL: u})
	}
	return parts
}

func (g *Gateway) call(ctx context.Context, op string, req ChatRequest, out any) error {
	raw, err := g.chat.Chat(ctx, req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
