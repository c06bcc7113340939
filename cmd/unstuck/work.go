package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unstuck-app/unstuck/internal/session"
)

var workCmd = &cobra.Command{
	Use:   "work <id>",
	Short: "Work on a problem interactively",
	Long: `Start an interactive tutoring session on a problem. Your position in
the problem tree is tracked as a stack: saying you are stuck pushes a
simpler subproblem, solving one pops back to where you came from.

Session commands:
  stuck <what you tried>   push a simpler subproblem
  check <your reasoning>   get feedback without a verdict
  solve <your answer>      submit the current subproblem for verification
  reveal                   show the hidden solution (spoilers!)
  stack                    show the breadcrumb trail
  log                      show the session transcript
  quit                     leave the session`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runWorkSession(cmd.Context(), client, args[0], os.Stdin)
	},
}

type problemView struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	Status       string `json:"status"`
	IsSubproblem bool   `json:"isSubproblem"`
}

func fetchProblem(ctx context.Context, client *apiClient, id string) (problemView, error) {
	resp, err := client.get(ctx, "/problem/"+id)
	if err != nil {
		return problemView{}, err
	}
	var view problemView
	if err := decodeJSON(resp, &view); err != nil {
		return problemView{}, err
	}
	return view, nil
}

func runWorkSession(ctx context.Context, client *apiClient, id string, input *os.File) error {
	view, err := fetchProblem(ctx, client, id)
	if err != nil {
		return err
	}

	stack, err := session.NewStack(session.Frame{
		ID:           view.ID,
		Title:        view.Title,
		IsSubproblem: view.IsSubproblem,
	})
	if err != nil {
		return err
	}
	var transcript session.Transcript

	fmt.Printf("%s (%s)\n%s\n\n", colorize(colorBold, view.Title), view.Category, view.Text)

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Printf("[depth %d] > ", stack.Depth())
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch verb {
		case "quit", "exit":
			return nil

		case "stack":
			for i, f := range stack.Frames() {
				marker := "  "
				if i == stack.Depth()-1 {
					marker = "→ "
				}
				fmt.Printf("%s%d. %s (%s)\n", marker, i+1, f.Title, f.ID[:8])
			}

		case "log":
			for _, m := range transcript.Messages() {
				label := colorize(colorBold, string(m.Speaker))
				fmt.Printf("%s: %s\n", label, m.Text)
			}

		case "stuck":
			transcript.Append(session.SpeakerStudent, rest)
			resp, err := client.post(ctx, "/stuck", map[string]any{
				"problemId": stack.Current().ID,
				"userText":  rest,
			})
			if err != nil {
				return err
			}
			var result struct {
				SubproblemID           string `json:"subproblemId"`
				SubproblemText         string `json:"subproblemText"`
				TutorIntro             string `json:"tutorIntro"`
				TutorSubproblemMessage string `json:"tutorSubproblemMessage"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				printError("%v", err)
				continue
			}
			transcript.Append(session.SpeakerTutor, result.TutorIntro)
			transcript.Append(session.SpeakerTutor, result.TutorSubproblemMessage)

			title := result.SubproblemText
			if len(title) > 60 {
				title = title[:60] + "..."
			}
			if err := stack.Push(session.Frame{ID: result.SubproblemID, Title: title, IsSubproblem: true}); err != nil {
				return err
			}
			printTutor("%s", result.TutorIntro)
			printTutor("%s", result.TutorSubproblemMessage)
			fmt.Printf("\n%s\n%s\n\n", colorize(colorBold, "Subproblem:"), result.SubproblemText)

		case "check":
			transcript.Append(session.SpeakerStudent, rest)
			resp, err := client.post(ctx, "/check", map[string]any{
				"problemId": stack.Current().ID,
				"userText":  rest,
			})
			if err != nil {
				return err
			}
			var result struct {
				Feedback string `json:"feedback"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				printError("%v", err)
				continue
			}
			transcript.Append(session.SpeakerTutor, result.Feedback)
			printTutor("%s", result.Feedback)

		case "solve":
			cur := stack.Current()
			if !cur.IsSubproblem {
				printWarning("solve verifies subproblems; you are at the original problem. Use `check` or `reveal` here.")
				continue
			}
			transcript.Append(session.SpeakerStudent, rest)
			resp, err := client.post(ctx, "/complete", map[string]any{
				"subproblemId": cur.ID,
				"userText":     rest,
			})
			if err != nil {
				return err
			}
			var result struct {
				Solved       bool   `json:"solved"`
				TutorMessage string `json:"tutorMessage"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				printError("%v", err)
				continue
			}
			transcript.Append(session.SpeakerTutor, result.TutorMessage)
			printTutor("%s", result.TutorMessage)
			if result.Solved {
				stack.Pop()
				back := stack.Current()
				printSuccess("Solved! Back to: %s", back.Title)
			} else {
				printWarning("Not quite yet — keep at it.")
			}

		case "reveal":
			resp, err := client.get(ctx, "/reveal?problemId="+stack.Current().ID)
			if err != nil {
				return err
			}
			var result struct {
				Solution string `json:"solution"`
				Answer   string `json:"answer"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				printError("%v", err)
				continue
			}
			transcript.Append(session.SpeakerTutor, result.Solution)
			fmt.Printf("%s\n%s\n", colorize(colorBold, "Solution:"), result.Solution)
			if result.Answer != "" {
				fmt.Printf("\n%s %s\n", colorize(colorBold, "Answer:"), result.Answer)
			}

		default:
			printWarning("unknown command %q — try stuck, check, solve, reveal, stack, log, or quit", verb)
		}
	}
	return scanner.Err()
}
