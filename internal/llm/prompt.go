package llm

import (
	"fmt"
	"strings"
)

const extractSystemPrompt = `You are an expert at reading and transcribing math and science problems from images.

Your task is to:
1. Carefully read the problem from the image
2. Transcribe it accurately, preserving all mathematical notation
3. Use LaTeX notation for all math expressions (e.g., $x^2$, $\frac{a}{b}$, $\int$)
4. Identify the subject category of the problem and give it a short descriptive title`

const solveSystemPrompt = `You are an expert math and science tutor. When given a problem, you must:
1. Carefully read and understand the problem
2. Solve it step by step
3. Provide the final answer

Use LaTeX math notation where appropriate.`

const decomposeSystemPrompt = `You are a Socratic tutor helping a student who is stuck on a problem. Your goal is to identify what concept or insight the student is missing and create a simpler subproblem that will help them discover this insight on their own.

You have access to:
1. The original problem
2. The hidden solution (the student cannot see this)
3. The student's work so far

Analyze what the student understands and what they're missing. Then create a targeted subproblem. Use LaTeX for math.`

const checkSystemPrompt = `You are a supportive math tutor. Review the student's work and provide helpful feedback.

Be encouraging but honest. If they're on the right track, tell them. If there's an error, gently point them toward it without giving away the answer.`

const verifySystemPrompt = `You are verifying if a student has correctly solved a subproblem.

Review their work and determine if they've grasped the concept. If they have, provide an encouraging message that helps them connect this insight back to the original problem. If not, provide a gentle hint.`

// writeProblem appends a problem statement section. Image content is
// referenced inline; the image itself travels as a separate message part
// only where the operation sends it (extract, solve).
func writeProblem(sb *strings.Builder, heading string, p Problem) {
	sb.WriteString("## " + heading + "\n")
	if p.Text != "" {
		sb.WriteString(p.Text + "\n")
	}
	if p.ImageURL != "" {
		fmt.Fprintf(sb, "[Problem Image: %s]\n", p.ImageURL)
	}
}

// writeWork appends the student's work section.
func writeWork(sb *strings.Builder, heading string, w StudentWork) {
	sb.WriteString("## " + heading + "\n")
	if w.Text != "" {
		sb.WriteString(w.Text + "\n")
	}
	if len(w.Images) > 0 {
		fmt.Fprintf(sb, "[Student has submitted %d image(s) of their work]\n", len(w.Images))
	}
	if w.Text == "" && len(w.Images) == 0 {
		sb.WriteString("No work submitted yet - student is stuck at the beginning.\n")
	}
}

func buildDecomposeContext(p Problem, hiddenSolution string, work StudentWork) string {
	var sb strings.Builder
	writeProblem(&sb, "Original Problem", p)
	sb.WriteString("\n## Hidden Solution (student cannot see this)\n")
	sb.WriteString(hiddenSolution + "\n")
	sb.WriteString("\n")
	writeWork(&sb, "Student's Work So Far", work)
	return sb.String()
}

func buildCheckContext(p Problem, work StudentWork) string {
	var sb strings.Builder
	writeProblem(&sb, "Problem", p)
	sb.WriteString("\n")
	writeWork(&sb, "Student's Work", work)
	return sb.String()
}

func buildVerifyContext(original *Problem, subproblem Problem, attempt StudentWork) string {
	var sb strings.Builder
	if original != nil {
		writeProblem(&sb, "Original Problem", *original)
		sb.WriteString("\n")
	}
	writeProblem(&sb, "Subproblem", subproblem)
	sb.WriteString("\n")
	writeWork(&sb, "Student's Attempt", attempt)
	return sb.String()
}
