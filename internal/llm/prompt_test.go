package llm

import (
	"strings"
	"testing"
)

func TestBuildDecomposeContext(t *testing.T) {
	got := buildDecomposeContext(
		Problem{Text: "Prove n^3 - n is divisible by 6"},
		"Factor as n(n-1)(n+1).",
		StudentWork{Text: "I checked n=1..5", Images: []string{"a.png", "b.png"}},
	)

	for _, want := range []string{
		"## Original Problem",
		"Prove n^3 - n is divisible by 6",
		"## Hidden Solution (student cannot see this)",
		"Factor as n(n-1)(n+1).",
		"## Student's Work So Far",
		"I checked n=1..5",
		"2 image(s)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
}

func TestBuildDecomposeContext_NoWork(t *testing.T) {
	got := buildDecomposeContext(Problem{Text: "p"}, "s", StudentWork{})
	if !strings.Contains(got, "No work submitted yet") {
		t.Errorf("empty work should note the student is stuck at the beginning:\n%s", got)
	}
}

func TestBuildCheckContext_ImageProblem(t *testing.T) {
	got := buildCheckContext(Problem{ImageURL: "https://example.com/p.png"}, StudentWork{Text: "w"})
	if !strings.Contains(got, "[Problem Image: https://example.com/p.png]") {
		t.Errorf("image problems should be referenced inline:\n%s", got)
	}
}

func TestBuildVerifyContext_Sections(t *testing.T) {
	original := Problem{Text: "orig"}
	got := buildVerifyContext(&original, Problem{Text: "sub"}, StudentWork{Text: "att"})

	origIdx := strings.Index(got, "## Original Problem")
	subIdx := strings.Index(got, "## Subproblem")
	attIdx := strings.Index(got, "## Student's Attempt")
	if origIdx < 0 || subIdx < 0 || attIdx < 0 {
		t.Fatalf("missing section:\n%s", got)
	}
	if !(origIdx < subIdx && subIdx < attIdx) {
		t.Errorf("sections out of order:\n%s", got)
	}
}
