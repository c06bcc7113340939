package llm

// Schema defines the JSON structure expected from the model. Name is used
// as the response-format schema name; Definition is a JSON Schema document.
type Schema struct {
	Name       string
	Definition map[string]any
}

func objectSchema(props map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var extractSchema = &Schema{
	Name: "problem-extraction",
	Definition: objectSchema(map[string]any{
		"problem_text": str("Full problem statement with LaTeX math notation"),
		"category":     str("Subject category, e.g. Calculus, Number Theory, Physics"),
		"title":        str("Short descriptive title for the problem"),
	}, []string{"problem_text", "category", "title"}),
}

var solveSchema = &Schema{
	Name: "problem-solution",
	Definition: objectSchema(map[string]any{
		"solution": str("Detailed step-by-step solution with LaTeX where appropriate"),
		"answer":   str("The final answer, concise"),
	}, []string{"solution", "answer"}),
}

var decomposeSchema = &Schema{
	Name: "subproblem-generation",
	Definition: objectSchema(map[string]any{
		"student_summary":            str("What the student seems to understand"),
		"missing_insight":            str("The key concept or step the student is missing"),
		"subproblem_text":            str("A simpler problem isolating the missing insight, LaTeX for math"),
		"tutor_message_intro":        str("Encouraging message acknowledging the student's effort"),
		"tutor_message_subproblem":   str("Message introducing the subproblem and why it helps"),
		"hidden_subproblem_solution": str("Solution to the subproblem, hidden from the student"),
	}, []string{
		"student_summary", "missing_insight", "subproblem_text",
		"tutor_message_intro", "tutor_message_subproblem", "hidden_subproblem_solution",
	}),
}

var checkSchema = &Schema{
	Name: "thinking-feedback",
	Definition: objectSchema(map[string]any{
		"feedback": str("Feedback to the student, 2-4 sentences, LaTeX for math"),
	}, []string{"feedback"}),
}

var verifySchema = &Schema{
	Name: "attempt-verification",
	Definition: objectSchema(map[string]any{
		"solved":        map[string]any{"type": "boolean", "description": "Whether the student demonstrated the concept"},
		"tutor_message": str("Feedback; connect the insight back to the original problem when solved"),
	}, []string{"solved", "tutor_message"}),
}
