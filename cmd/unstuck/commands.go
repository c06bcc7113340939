package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/unstuck-app/unstuck/internal/config"
)

// imageDataURL reads an image file and encodes it as a data URL the
// server can forward to the model.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s does not look like an image (detected %s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func workImages(paths []string) ([]string, error) {
	var urls []string
	for _, p := range paths {
		u, err := imageDataURL(p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// --- new ---

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Upload a new problem",
	Long: `Upload a new problem as text or a photo.

Examples:
  unstuck new --text "Evaluate the integral of x^2 e^x dx"
  unstuck new --image ./problem.jpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		image, _ := cmd.Flags().GetString("image")

		if text == "" && image == "" {
			return fmt.Errorf("one of --text or --image is required")
		}

		req := map[string]any{}
		if text != "" {
			req["text"] = text
		}
		if image != "" {
			url, err := imageDataURL(image)
			if err != nil {
				return err
			}
			req["imageUrl"] = url
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ingest", req)
		if err != nil {
			return err
		}

		var result struct {
			ProblemID   string `json:"problemId"`
			ProblemText string `json:"problemText"`
			Title       string `json:"title"`
			Category    string `json:"category"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.ProblemText != "" {
			fmt.Printf("%s (%s)\n%s\n\n", colorize(colorBold, result.Title), result.Category, result.ProblemText)
		}
		printSuccess("Problem %s ready — work on it, then `unstuck stuck %s` if you need help", result.ProblemID, result.ProblemID)
		return nil
	},
}

func init() {
	newCmd.Flags().String("text", "", "problem statement as text")
	newCmd.Flags().String("image", "", "path to a photo of the problem")
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a problem or subproblem (solution stays hidden)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/problem/"+args[0])
		if err != nil {
			return err
		}

		var problem any
		if err := decodeJSON(resp, &problem); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(problem)
	},
}

// --- stuck ---

var stuckCmd = &cobra.Command{
	Use:   "stuck <id>",
	Short: "Get a simpler subproblem when you are stuck",
	Long: `Tell the tutor you are stuck on a problem. It looks at your work so far
and hands back a simpler subproblem that isolates the one insight you
are missing.

Examples:
  unstuck stuck 4f7c... --text "I tried substitution but it got worse"
  unstuck stuck 4f7c... --work ./scratch1.jpg --work ./scratch2.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		workPaths, _ := cmd.Flags().GetStringArray("work")

		images, err := workImages(workPaths)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"problemId":      args[0],
			"userText":       text,
			"userWorkImages": images,
		}
		resp, err := client.post(cmd.Context(), "/stuck", req)
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
			return err
		}

		printTutor("%s", result.TutorIntro)
		printTutor("%s", result.TutorSubproblemMessage)
		fmt.Printf("\n%s\n%s\n\n", colorize(colorBold, "Subproblem:"), result.SubproblemText)
		printSuccess("When you have it, run `unstuck solve %s --text \"...\"`", result.SubproblemID)
		return nil
	},
}

func init() {
	stuckCmd.Flags().String("text", "", "describe what you tried")
	stuckCmd.Flags().StringArray("work", nil, "photo of your work (repeatable)")
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Get feedback on your thinking without a verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		workPaths, _ := cmd.Flags().GetStringArray("work")

		images, err := workImages(workPaths)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"problemId":      args[0],
			"userText":       text,
			"userWorkImages": images,
		}
		resp, err := client.post(cmd.Context(), "/check", req)
		if err != nil {
			return err
		}

		var result struct {
			Feedback string `json:"feedback"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printTutor("%s", result.Feedback)
		return nil
	},
}

func init() {
	checkCmd.Flags().String("text", "", "your current reasoning")
	checkCmd.Flags().StringArray("work", nil, "photo of your work (repeatable)")
}

// --- solve ---

var solveCmd = &cobra.Command{
	Use:   "solve <subproblem-id>",
	Short: "Submit an answer to a subproblem for verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		workPaths, _ := cmd.Flags().GetStringArray("work")

		if text == "" && len(workPaths) == 0 {
			return fmt.Errorf("one of --text or --work is required")
		}

		images, err := workImages(workPaths)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"subproblemId":   args[0],
			"userText":       text,
			"userWorkImages": images,
		}
		resp, err := client.post(cmd.Context(), "/complete", req)
		if err != nil {
			return err
		}

		var result struct {
			Solved       bool   `json:"solved"`
			TutorMessage string `json:"tutorMessage"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printTutor("%s", result.TutorMessage)
		if result.Solved {
			printSuccess("Solved! Head back up to the problem you came from.")
		} else {
			printWarning("Not quite yet — keep at it.")
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().String("text", "", "your answer or reasoning")
	solveCmd.Flags().StringArray("work", nil, "photo of your work (repeatable)")
}

// --- reveal ---

var revealCmd = &cobra.Command{
	Use:   "reveal <id>",
	Short: "Reveal the worked solution (spoilers!)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/reveal?problemId="+args[0])
		if err != nil {
			return err
		}

		var result struct {
			Solution string `json:"solution"`
			Answer   string `json:"answer"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%s\n%s\n", colorize(colorBold, "Solution:"), result.Solution)
		if result.Answer != "" {
			fmt.Printf("\n%s %s\n", colorize(colorBold, "Answer:"), result.Answer)
		}
		return nil
	},
}

// --- recent ---

type recentEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	Status       string `json:"status"`
	LastActiveAt string `json:"lastActiveAt"`
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently uploaded problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		details, _ := cmd.Flags().GetBool("details")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/recent-problems?limit=%d", limit))
		if err != nil {
			return err
		}

		var body struct {
			Problems []recentEntry `json:"problems"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}

		if len(body.Problems) == 0 {
			fmt.Println("No problems yet. Upload one with `unstuck new`.")
			return nil
		}

		texts := make([]string, len(body.Problems))
		if details {
			// Fetch full problem statements concurrently.
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(4)
			for i, p := range body.Problems {
				g.Go(func() error {
					detailResp, err := client.get(gctx, "/problem/"+p.ID)
					if err != nil {
						return err
					}
					var view struct {
						Text string `json:"text"`
					}
					if err := decodeJSON(detailResp, &view); err != nil {
						return err
					}
					texts[i] = view.Text
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
		}

		for i, p := range body.Problems {
			fmt.Printf("%s  %-8s  %s (%s)  %s\n",
				colorize(colorCyan, p.ID[:8]),
				p.Status,
				colorize(colorBold, p.Title),
				p.Category,
				p.LastActiveAt,
			)
			if details && texts[i] != "" {
				text := texts[i]
				if len(text) > 200 {
					text = text[:200] + "..."
				}
				fmt.Printf("          %s\n", text)
			}
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().Int("limit", 5, "maximum number of problems to list (max 10)")
	recentCmd.Flags().Bool("details", false, "also fetch and show problem statements")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
